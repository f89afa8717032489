package pkgmanager

import (
	"context"
	"os/exec"
	"time"

	"github.com/AvengeMedia/dankcenter/internal/config"
	"github.com/AvengeMedia/dankcenter/internal/log"
	"github.com/spf13/afero"
)

const defaultProbeTimeout = 10 * time.Second

// SystemProber answers capability and installed-state questions by
// looking at PATH and running the real tools.
type SystemProber struct {
	settings config.Settings
	fs       afero.Fs
	timeout  time.Duration
}

func NewSystemProber(settings config.Settings, fs afero.Fs) *SystemProber {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &SystemProber{
		settings: settings,
		fs:       fs,
		timeout:  defaultProbeTimeout,
	}
}

func (p *SystemProber) CommandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Works runs name with args, discarding output, and reports a zero exit.
// A probe that hangs past the timeout counts as broken.
func (p *SystemProber) Works(name string, args ...string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.run(ctx, name, args...)
}

func (p *SystemProber) run(ctx context.Context, name string, args ...string) bool {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Run(); err != nil {
		log.Debugf("probe %s %v: %v", name, args, err)
		return false
	}
	return true
}
