package process

import "strings"

const esc = 0x1b

// Sanitize strips CSI escape sequences (ESC '[' ... letter) and carriage
// returns so a line can be rendered as plain text. A bare ESC is dropped on
// its own; a CSI without a terminator swallows the rest of the input.
func Sanitize(raw string) string {
	if !strings.ContainsAny(raw, "\x1b\r") {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch c {
		case '\r':
		case esc:
			if i+1 < len(raw) && raw[i+1] == '[' {
				i += 2
				for i < len(raw) && !isASCIILetter(raw[i]) {
					i++
				}
			}
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
