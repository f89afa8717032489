package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/AvengeMedia/dankcenter/internal/config"
	"github.com/AvengeMedia/dankcenter/internal/log"
	"github.com/AvengeMedia/dankcenter/internal/notify"
	"github.com/AvengeMedia/dankcenter/internal/osinfo"
	"github.com/AvengeMedia/dankcenter/internal/pkgmanager"
	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/AvengeMedia/dankcenter/internal/process"
	"github.com/AvengeMedia/dankcenter/internal/supervisor"
	"github.com/spf13/afero"
)

// app wires the policy, prober and supervisor for one invocation.
type app struct {
	prober     *pkgmanager.SystemProber
	supervisor *supervisor.Supervisor
	notifier   notify.Notifier
	closers    []io.Closer
}

func newApp(cfg config.Settings) *app {
	fs := afero.NewOsFs()
	prober := pkgmanager.NewSystemProber(cfg, fs)

	if info, err := osinfo.Detect(fs); err != nil {
		log.Debugf("os detection: %v", err)
	} else if !info.ArchFamily() {
		log.Warnf("%s is not Arch based; repository and AUR operations will likely fail", info)
	}

	a := &app{
		prober:   prober,
		notifier: notify.Nop{},
	}

	if cfg.NotifyEnabled() {
		n := notify.NewDBusNotifier()
		a.notifier = n
		a.closers = append(a.closers, n)
	}

	launcher := supervisor.ProcessLauncher{Launcher: &process.Launcher{ReapTimeout: cfg.ReapTimeout}}
	a.supervisor = supervisor.New(
		policy.New(cfg, prober),
		supervisor.WithLauncher(launcher),
		supervisor.WithFs(fs),
	)
	return a
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Debugf("close: %v", err)
		}
	}
	a.closers = nil
}

// logToFile keeps log lines from tearing the alt screen. The returned func
// puts stderr back.
func logToFile() func() {
	path := filepath.Join(os.TempDir(), "dankcenter.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(os.Stderr) }
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}
}
