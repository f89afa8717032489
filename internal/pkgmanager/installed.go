package pkgmanager

import (
	"context"
	"path/filepath"

	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/spf13/afero"
)

// Installed reports whether id (display name name) from source is present
// on this system. Script sources have no way to tell and report false.
func (p *SystemProber) Installed(ctx context.Context, source policy.Source, id, name string) bool {
	switch source {
	case policy.SourceRepo, policy.SourceAUR:
		return p.run(ctx, p.settings.PackageManager, "-Q", id)
	case policy.SourceFlatpak:
		if !p.CommandExists(p.settings.Flatpak.Tool) {
			return false
		}
		return p.run(ctx, p.settings.Flatpak.Tool, "info", id)
	case policy.SourceAppImage:
		if name == "" {
			name = id
		}
		return p.appImagePresent(name)
	default:
		return false
	}
}

func (p *SystemProber) appImagePresent(name string) bool {
	dirs := p.settings.AppImage
	for _, dir := range []string{dirs.SystemDir, dirs.UserDir} {
		if ok, _ := afero.Exists(p.fs, filepath.Join(dir, name+".AppImage")); ok {
			return true
		}
	}
	return false
}
