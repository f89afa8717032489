package tui

import "strings"

// LastMeaningfulLine returns the newest line that is not blank and not
// just '#' progress characters, or "" if there is none. With two merged
// streams this reflects arrival order, which is close enough for a status.
func LastMeaningfulLine(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Trim(lines[i], "# \t") != "" {
			return strings.TrimSpace(lines[i])
		}
	}
	return ""
}
