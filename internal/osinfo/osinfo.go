package osinfo

import (
	"bufio"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/AvengeMedia/dankcenter/internal/errdefs"
	"github.com/spf13/afero"
)

const osReleasePath = "/etc/os-release"

// OSInfo is the subset of os-release the package commands care about.
type OSInfo struct {
	ID           string
	IDLike       []string
	PrettyName   string
	Architecture string
}

// ArchFamily reports whether pacman and the AUR helpers can be expected.
func (i *OSInfo) ArchFamily() bool {
	return i.ID == "arch" || slices.Contains(i.IDLike, "arch")
}

func (i *OSInfo) String() string {
	name := i.PrettyName
	if name == "" {
		name = i.ID
	}
	return fmt.Sprintf("%s (%s)", name, i.Architecture)
}

func Detect(fs afero.Fs) (*OSInfo, error) {
	if runtime.GOOS != "linux" {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeGeneric, fmt.Sprintf("Only linux is supported, but I found %s", runtime.GOOS))
	}

	file, err := fs.Open(osReleasePath)
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeGeneric, "Failed to detect Linux distribution")
	}
	defer file.Close()

	info := &OSInfo{Architecture: runtime.GOARCH}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, "\"'")

		switch key {
		case "ID":
			info.ID = value
		case "ID_LIKE":
			info.IDLike = strings.Fields(value)
		case "PRETTY_NAME":
			info.PrettyName = value
		}
	}

	return info, scanner.Err()
}
