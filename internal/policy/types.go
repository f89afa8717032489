package policy

import (
	"fmt"
	"strings"
)

type OperationKind int

const (
	Install OperationKind = iota
	Uninstall
)

func (k OperationKind) String() string {
	switch k {
	case Install:
		return "install"
	case Uninstall:
		return "uninstall"
	default:
		return "unknown"
	}
}

// Source is the package source an app comes from. It decides which
// command line the policy picks.
type Source int

const (
	SourceRepo Source = iota
	SourceAUR
	SourceFlatpak
	SourceAppImage
	SourceScript
)

func (s Source) String() string {
	switch s {
	case SourceRepo:
		return "repo"
	case SourceAUR:
		return "aur"
	case SourceFlatpak:
		return "flatpak"
	case SourceAppImage:
		return "appimage"
	case SourceScript:
		return "script"
	default:
		return "unknown"
	}
}

// Label is the display name used in front ends.
func (s Source) Label() string {
	switch s {
	case SourceRepo:
		return "Official"
	case SourceAUR:
		return "AUR"
	case SourceFlatpak:
		return "Flatpak"
	case SourceAppImage:
		return "AppImage"
	case SourceScript:
		return "Script"
	default:
		return "Unknown"
	}
}

func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "repo", "pacman", "official":
		return SourceRepo, nil
	case "aur":
		return SourceAUR, nil
	case "flatpak", "flathub":
		return SourceFlatpak, nil
	case "appimage":
		return SourceAppImage, nil
	case "script":
		return SourceScript, nil
	default:
		return 0, fmt.Errorf("unknown package source: %q", s)
	}
}

func ParseKind(s string) (OperationKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "install":
		return Install, nil
	case "uninstall", "remove":
		return Uninstall, nil
	default:
		return 0, fmt.Errorf("unknown operation: %q", s)
	}
}

// CommandSpec is one concrete command line. PreCheck holds the generated
// script text when the command is a shell running one.
type CommandSpec struct {
	Executable string
	Args       []string
	PreCheck   string
}

func (c CommandSpec) String() string {
	if c.PreCheck != "" {
		return c.Executable + " -c <script>"
	}
	return strings.TrimSpace(c.Executable + " " + strings.Join(c.Args, " "))
}

// Outcome is the final result of an operation.
type Outcome struct {
	Success bool
	Message string
}

// Decision is what the policy wants done. Exactly one of Command and
// Outcome is set. Prepare steps run before Command and their result is
// ignored; Remove paths are deleted before Outcome is reported.
type Decision struct {
	Command *CommandSpec
	Prepare []CommandSpec
	Outcome *Outcome
	Remove  []string
}

// Immediate reports whether the decision needs no child process.
func (d Decision) Immediate() bool {
	return d.Command == nil
}

func immediate(success bool, message string) Decision {
	return Decision{Outcome: &Outcome{Success: success, Message: message}}
}
