package policy

import "strings"

// ShellQuote wraps s in single quotes for POSIX shells. Every embedded
// single quote becomes '\'' (close, escaped quote, reopen).
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
