package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds the tool names and paths the command policy and the
// front ends depend on.
type Settings struct {
	AURHelper      string          `yaml:"aur_helper"`
	Escalation     string          `yaml:"escalation"`
	PackageManager string          `yaml:"package_manager"`
	HealCommand    string          `yaml:"heal_command"`
	Shell          string          `yaml:"shell"`
	Flatpak        FlatpakSettings `yaml:"flatpak"`
	AppImage       AppImageDirs    `yaml:"appimage"`
	PollInterval   time.Duration   `yaml:"poll_interval"`
	ReapTimeout    time.Duration   `yaml:"reap_timeout"`
	Notify         *bool           `yaml:"notify,omitempty"`
	LogLevel       string          `yaml:"log_level"`
}

type FlatpakSettings struct {
	Tool      string `yaml:"tool"`
	Remote    string `yaml:"remote"`
	RemoteURL string `yaml:"remote_url"`
}

type AppImageDirs struct {
	SystemDir       string `yaml:"system_dir"`
	UserDir         string `yaml:"user_dir"`
	ApplicationsDir string `yaml:"applications_dir"`
}

// NotifyEnabled reports whether completion notifications are on.
func (s Settings) NotifyEnabled() bool {
	return s.Notify == nil || *s.Notify
}

func Defaults() Settings {
	notify := true
	return Settings{
		AURHelper:      "paru",
		Escalation:     "pkexec",
		PackageManager: "pacman",
		HealCommand:    "heal-paru",
		Shell:          "bash",
		Flatpak: FlatpakSettings{
			Tool:      "flatpak",
			Remote:    "flathub",
			RemoteURL: "https://dl.flathub.org/repo/flathub.flatpakrepo",
		},
		AppImage: AppImageDirs{
			SystemDir:       "/opt/appimages",
			UserDir:         "~/.local/bin",
			ApplicationsDir: "~/.local/share/applications",
		},
		PollInterval: 50 * time.Millisecond,
		ReapTimeout:  2 * time.Second,
		Notify:       &notify,
		LogLevel:     "info",
	}
}

// Loader reads settings from a YAML file, writing the defaults on first use.
type Loader struct {
	overridePath string
}

func NewLoader(path string) *Loader {
	return &Loader{overridePath: path}
}

// Path resolves the settings file: explicit path, then DANKCENTER_CONFIG,
// then $XDG_CONFIG_HOME/dankcenter/config.yaml.
func (l *Loader) Path() string {
	if l.overridePath != "" {
		return ExpandHome(l.overridePath)
	}
	if custom := os.Getenv("DANKCENTER_CONFIG"); custom != "" {
		return ExpandHome(custom)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dankcenter", "config.yaml")
	}
	return filepath.Join(userHomeDir(), ".config", "dankcenter", "config.yaml")
}

func (l *Loader) Load() (Settings, error) {
	path := l.Path()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		cfg := Defaults()
		if err := writeDefault(path, cfg); err != nil {
			return Settings{}, err
		}
		return cfg.expanded(), nil
	}

	var cfg Settings
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Settings{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return hydrateDefaults(cfg).expanded(), nil
}

func writeDefault(path string, cfg Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func hydrateDefaults(cfg Settings) Settings {
	def := Defaults()

	fill := func(dst *string, fallback string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = fallback
		}
	}
	fill(&cfg.AURHelper, def.AURHelper)
	fill(&cfg.Escalation, def.Escalation)
	fill(&cfg.PackageManager, def.PackageManager)
	fill(&cfg.HealCommand, def.HealCommand)
	fill(&cfg.Shell, def.Shell)
	fill(&cfg.Flatpak.Tool, def.Flatpak.Tool)
	fill(&cfg.Flatpak.Remote, def.Flatpak.Remote)
	fill(&cfg.Flatpak.RemoteURL, def.Flatpak.RemoteURL)
	fill(&cfg.AppImage.SystemDir, def.AppImage.SystemDir)
	fill(&cfg.AppImage.UserDir, def.AppImage.UserDir)
	fill(&cfg.AppImage.ApplicationsDir, def.AppImage.ApplicationsDir)
	fill(&cfg.LogLevel, def.LogLevel)

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ReapTimeout <= 0 {
		cfg.ReapTimeout = def.ReapTimeout
	}
	if cfg.Notify == nil {
		cfg.Notify = def.Notify
	}
	return cfg
}

func (s Settings) expanded() Settings {
	s.AppImage.SystemDir = ExpandHome(s.AppImage.SystemDir)
	s.AppImage.UserDir = ExpandHome(s.AppImage.UserDir)
	s.AppImage.ApplicationsDir = ExpandHome(s.AppImage.ApplicationsDir)
	return s
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return userHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(userHomeDir(), path[2:])
	}
	return path
}

func userHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}
