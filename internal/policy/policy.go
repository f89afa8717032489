package policy

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AvengeMedia/dankcenter/internal/config"
	"github.com/AvengeMedia/dankcenter/internal/log"
)

// Prober answers the capability questions the decision table depends on.
type Prober interface {
	// CommandExists reports whether name resolves on PATH.
	CommandExists(name string) bool
	// Works runs name with args silently and reports whether it exited 0.
	Works(name string, args ...string) bool
}

// Policy maps an operation on a package source to a concrete command.
type Policy struct {
	settings config.Settings
	probe    Prober
}

func New(settings config.Settings, probe Prober) *Policy {
	return &Policy{
		settings: settings,
		probe:    probe,
	}
}

// Select decides how to perform kind on id from source. name is the
// display name, only used for file paths of AppImage installs.
func (p *Policy) Select(kind OperationKind, source Source, id, name string) Decision {
	if strings.TrimSpace(id) == "" {
		return immediate(false, "No package identifier given")
	}
	if kind != Install && kind != Uninstall {
		return immediate(false, fmt.Sprintf("Unsupported operation %d", int(kind)))
	}

	switch source {
	case SourceRepo:
		if kind == Install {
			return p.repoCommand(id, "-S", "-S")
		}
		return p.repoCommand(id, "-Rns", "-R")
	case SourceAUR:
		if kind == Install {
			return p.aurInstall(id)
		}
		return p.repoCommand(id, "-Rns", "-R")
	case SourceFlatpak:
		return p.flatpak(kind, id)
	case SourceAppImage:
		if kind == Install {
			return immediate(false, fmt.Sprintf(
				"Visit appimage.github.io to download %s.AppImage, then place it in ~/.local/bin/", id))
		}
		return p.appImageRemove(id, name)
	case SourceScript:
		return Decision{Command: &CommandSpec{Executable: id, Args: []string{kind.String()}}}
	default:
		return immediate(false, fmt.Sprintf("Unsupported package source %d", int(source)))
	}
}

// HelperWorks runs the AUR helper's version check. A helper built against
// an older libalpm fails here after a system update.
func (p *Policy) HelperWorks() bool {
	ok := p.probe.Works(p.settings.AURHelper, "--version")
	if !ok {
		log.Warnf("%s --version failed, falling back to %s %s", p.settings.AURHelper, p.settings.Escalation, p.settings.PackageManager)
	}
	return ok
}

// repoCommand picks the helper when it works and the escalated package
// manager otherwise. The two flags differ for removal (-Rns vs -R).
func (p *Policy) repoCommand(id, helperOp, fallbackOp string) Decision {
	if p.HelperWorks() {
		return Decision{Command: &CommandSpec{
			Executable: p.settings.AURHelper,
			Args:       []string{helperOp, "--noconfirm", id},
		}}
	}
	return Decision{Command: &CommandSpec{
		Executable: p.settings.Escalation,
		Args:       []string{p.settings.PackageManager, fallbackOp, "--noconfirm", id},
	}}
}

// aurInstall heals the helper and installs in one shell so the user sees a
// single uninterrupted log.
func (p *Policy) aurInstall(id string) Decision {
	script := HealScript(p.settings.AURHelper, p.settings.HealCommand, id)
	return Decision{Command: &CommandSpec{
		Executable: p.settings.Shell,
		Args:       []string{"-c", script},
		PreCheck:   script,
	}}
}

// HealScript builds the AUR install script: probe the helper, run the heal
// command if the probe fails, then install id.
func HealScript(helper, heal, id string) string {
	var b strings.Builder
	b.WriteString("set -euo pipefail\n")
	fmt.Fprintf(&b, "if ! %s --version &>/dev/null 2>&1; then\n", helper)
	fmt.Fprintf(&b, "  echo '── Healing %s (system update changed libalpm) ──'\n", helper)
	fmt.Fprintf(&b, "  %s || { echo 'ERROR: %s heal failed'; exit 1; }\n", heal, helper)
	b.WriteString("fi\n")
	fmt.Fprintf(&b, "%s -S --noconfirm %s\n", helper, ShellQuote(id))
	return b.String()
}

func (p *Policy) flatpak(kind OperationKind, id string) Decision {
	fp := p.settings.Flatpak
	if !p.probe.CommandExists(fp.Tool) {
		return immediate(false, fmt.Sprintf("%s is not installed. Run: sudo %s -S flatpak", fp.Tool, p.settings.PackageManager))
	}

	if kind == Uninstall {
		return Decision{Command: &CommandSpec{
			Executable: fp.Tool,
			Args:       []string{"uninstall", "-y", "--user", id},
		}}
	}

	return Decision{
		Prepare: []CommandSpec{{
			Executable: fp.Tool,
			Args:       []string{"remote-add", "--if-not-exists", "--user", fp.Remote, fp.RemoteURL},
		}},
		Command: &CommandSpec{
			Executable: fp.Tool,
			Args:       []string{"install", "-y", "--user", fp.Remote, id},
		},
	}
}

func (p *Policy) appImageRemove(id, name string) Decision {
	if strings.TrimSpace(name) == "" {
		name = id
	}
	if strings.ContainsRune(name, '/') || name == "." || name == ".." {
		return immediate(false, fmt.Sprintf("Refusing to remove AppImage with name %q", name))
	}

	d := immediate(true, fmt.Sprintf("Removed %s", name))
	d.Remove = AppImagePaths(p.settings.AppImage, name)
	return d
}

// AppImagePaths lists every file an AppImage install named name may own:
// the system copy, the per-user copy and the generated desktop entry.
func AppImagePaths(dirs config.AppImageDirs, name string) []string {
	return []string{
		filepath.Join(dirs.SystemDir, name+".AppImage"),
		filepath.Join(dirs.UserDir, name+".AppImage"),
		filepath.Join(dirs.ApplicationsDir, strings.ToLower(name)+"-appimage.desktop"),
	}
}
