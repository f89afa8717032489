package policy

import (
	"os/exec"
	"strings"
	"testing"

	"github.com/AvengeMedia/dankcenter/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	commands map[string]bool
	works    map[string]bool
	calls    []string
}

func (f *fakeProber) CommandExists(name string) bool {
	f.calls = append(f.calls, "which "+name)
	return f.commands[name]
}

func (f *fakeProber) Works(name string, args ...string) bool {
	f.calls = append(f.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return f.works[name]
}

func testSettings() config.Settings {
	s := config.Defaults()
	s.AppImage = config.AppImageDirs{
		SystemDir:       "/opt/appimages",
		UserDir:         "/home/dank/.local/bin",
		ApplicationsDir: "/home/dank/.local/share/applications",
	}
	return s
}

func TestRepoInstall(t *testing.T) {
	t.Run("helper works", func(t *testing.T) {
		probe := &fakeProber{works: map[string]bool{"paru": true}}
		d := New(testSettings(), probe).Select(Install, SourceRepo, "firefox", "Firefox")

		require.NotNil(t, d.Command)
		assert.Equal(t, "paru", d.Command.Executable)
		assert.Equal(t, []string{"-S", "--noconfirm", "firefox"}, d.Command.Args)
		assert.Equal(t, []string{"paru --version"}, probe.calls)
	})

	t.Run("helper broken falls back to escalated pacman", func(t *testing.T) {
		probe := &fakeProber{}
		d := New(testSettings(), probe).Select(Install, SourceRepo, "firefox", "Firefox")

		require.NotNil(t, d.Command)
		assert.Equal(t, "pkexec", d.Command.Executable)
		assert.Equal(t, []string{"pacman", "-S", "--noconfirm", "firefox"}, d.Command.Args)
		assert.False(t, d.Immediate())
	})
}

func TestRemove(t *testing.T) {
	for _, source := range []Source{SourceRepo, SourceAUR} {
		t.Run(source.String(), func(t *testing.T) {
			works := New(testSettings(), &fakeProber{works: map[string]bool{"paru": true}}).
				Select(Uninstall, source, "vlc", "VLC")
			require.NotNil(t, works.Command)
			assert.Equal(t, "paru", works.Command.Executable)
			assert.Equal(t, []string{"-Rns", "--noconfirm", "vlc"}, works.Command.Args)

			broken := New(testSettings(), &fakeProber{}).Select(Uninstall, source, "vlc", "VLC")
			require.NotNil(t, broken.Command)
			assert.Equal(t, "pkexec", broken.Command.Executable)
			assert.Equal(t, []string{"pacman", "-R", "--noconfirm", "vlc"}, broken.Command.Args)
		})
	}
}

func TestAURInstallScript(t *testing.T) {
	probe := &fakeProber{}
	d := New(testSettings(), probe).Select(Install, SourceAUR, "foo's-app", "Foo")

	require.NotNil(t, d.Command)
	assert.Equal(t, "bash", d.Command.Executable)
	require.Len(t, d.Command.Args, 2)
	assert.Equal(t, "-c", d.Command.Args[0])

	script := d.Command.Args[1]
	assert.Equal(t, script, d.Command.PreCheck)
	assert.True(t, strings.HasPrefix(script, "set -euo pipefail\n"))
	assert.Contains(t, script, "if ! paru --version &>/dev/null 2>&1; then")
	assert.Contains(t, script, "heal-paru || { echo 'ERROR: paru heal failed'; exit 1; }")
	assert.Contains(t, script, `paru -S --noconfirm 'foo'\''s-app'`)

	// heal must come before the install line
	assert.Less(t, strings.Index(script, "heal-paru"), strings.Index(script, "paru -S"))

	// the probe runs inside the script, not in the policy
	assert.Empty(t, probe.calls)
}

func TestShellQuoteRoundTrip(t *testing.T) {
	ids := []string{
		"simple",
		"foo's-app",
		"'",
		"''",
		"a'b'c",
		"$(rm -rf ~)",
		"semi;colon && pipe|x",
		"back`tick`",
		"spaces and\ttabs",
	}

	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			quoted := ShellQuote(id)
			assert.True(t, strings.HasPrefix(quoted, "'"))
			assert.True(t, strings.HasSuffix(quoted, "'"))
			assert.Equal(t, id, unquote(quoted))
		})
	}
}

func TestShellQuotePassesSingleArgument(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	for _, id := range []string{"foo's-app", "$(echo pwned)", "two words"} {
		out, err := exec.Command("sh", "-c", "set -- "+ShellQuote(id)+`; printf '%s|%s' "$#" "$1"`).Output()
		require.NoError(t, err)
		assert.Equal(t, "1|"+id, string(out))
	}
}

// unquote reverses ShellQuote: strip the outer quotes, then fold every
// '\'' back into a literal quote.
func unquote(s string) string {
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")
	return strings.ReplaceAll(s, `'\''`, "'")
}

func TestFlatpak(t *testing.T) {
	t.Run("install ensures remote then installs", func(t *testing.T) {
		probe := &fakeProber{commands: map[string]bool{"flatpak": true}}
		d := New(testSettings(), probe).Select(Install, SourceFlatpak, "org.gimp.GIMP", "GIMP")

		require.NotNil(t, d.Command)
		require.Len(t, d.Prepare, 1)
		assert.Equal(t, "flatpak", d.Prepare[0].Executable)
		assert.Equal(t, []string{"remote-add", "--if-not-exists", "--user", "flathub",
			"https://dl.flathub.org/repo/flathub.flatpakrepo"}, d.Prepare[0].Args)
		assert.Equal(t, []string{"install", "-y", "--user", "flathub", "org.gimp.GIMP"}, d.Command.Args)
	})

	t.Run("uninstall", func(t *testing.T) {
		probe := &fakeProber{commands: map[string]bool{"flatpak": true}}
		d := New(testSettings(), probe).Select(Uninstall, SourceFlatpak, "org.gimp.GIMP", "GIMP")

		require.NotNil(t, d.Command)
		assert.Empty(t, d.Prepare)
		assert.Equal(t, []string{"uninstall", "-y", "--user", "org.gimp.GIMP"}, d.Command.Args)
	})

	for _, kind := range []OperationKind{Install, Uninstall} {
		t.Run(kind.String()+" without flatpak", func(t *testing.T) {
			d := New(testSettings(), &fakeProber{}).Select(kind, SourceFlatpak, "org.gimp.GIMP", "GIMP")

			assert.True(t, d.Immediate())
			require.NotNil(t, d.Outcome)
			assert.False(t, d.Outcome.Success)
			assert.Contains(t, d.Outcome.Message, "flatpak is not installed")
			assert.Empty(t, d.Prepare)
		})
	}
}

func TestAppImage(t *testing.T) {
	t.Run("install is never possible", func(t *testing.T) {
		d := New(testSettings(), &fakeProber{}).Select(Install, SourceAppImage, "Foo", "Foo")
		require.NotNil(t, d.Outcome)
		assert.False(t, d.Outcome.Success)
		assert.Contains(t, d.Outcome.Message, "appimage.github.io")
		assert.Contains(t, d.Outcome.Message, "Foo.AppImage")
	})

	t.Run("uninstall lists known locations", func(t *testing.T) {
		d := New(testSettings(), &fakeProber{}).Select(Uninstall, SourceAppImage, "foo-id", "Foo")
		require.NotNil(t, d.Outcome)
		assert.True(t, d.Outcome.Success)
		assert.Equal(t, "Removed Foo", d.Outcome.Message)
		assert.Equal(t, []string{
			"/opt/appimages/Foo.AppImage",
			"/home/dank/.local/bin/Foo.AppImage",
			"/home/dank/.local/share/applications/foo-appimage.desktop",
		}, d.Remove)
	})

	t.Run("uninstall rejects path-like names", func(t *testing.T) {
		d := New(testSettings(), &fakeProber{}).Select(Uninstall, SourceAppImage, "x", "../../etc/passwd")
		require.NotNil(t, d.Outcome)
		assert.False(t, d.Outcome.Success)
		assert.Empty(t, d.Remove)
	})
}

func TestScript(t *testing.T) {
	p := New(testSettings(), &fakeProber{})

	install := p.Select(Install, SourceScript, "/usr/local/bin/setup-thing", "Thing")
	require.NotNil(t, install.Command)
	assert.Equal(t, "/usr/local/bin/setup-thing", install.Command.Executable)
	assert.Equal(t, []string{"install"}, install.Command.Args)

	uninstall := p.Select(Uninstall, SourceScript, "/usr/local/bin/setup-thing", "Thing")
	require.NotNil(t, uninstall.Command)
	assert.Equal(t, []string{"uninstall"}, uninstall.Command.Args)
}

func TestSelectRejectsBadInput(t *testing.T) {
	p := New(testSettings(), &fakeProber{})

	d := p.Select(Install, SourceRepo, "  ", "")
	require.NotNil(t, d.Outcome)
	assert.False(t, d.Outcome.Success)

	d = p.Select(Install, Source(42), "x", "x")
	require.NotNil(t, d.Outcome)
	assert.False(t, d.Outcome.Success)

	d = p.Select(OperationKind(7), SourceRepo, "x", "x")
	require.NotNil(t, d.Outcome)
	assert.False(t, d.Outcome.Success)
}

func TestParseSource(t *testing.T) {
	tests := map[string]Source{
		"repo":     SourceRepo,
		"pacman":   SourceRepo,
		"AUR":      SourceAUR,
		"flatpak":  SourceFlatpak,
		"appimage": SourceAppImage,
		" script ": SourceScript,
	}
	for in, want := range tests {
		got, err := ParseSource(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseSource("snap")
	assert.Error(t, err)

	kind, err := ParseKind("remove")
	require.NoError(t, err)
	assert.Equal(t, Uninstall, kind)
}
