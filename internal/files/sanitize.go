package files

import (
	"strings"
	"unicode"
)

const maxNameRunes = 100

// Sanitize turns a note title or attachment name into a portable file name.
func Sanitize(name string) string {
	var b strings.Builder
	lastDash := false
	n := 0
	for _, r := range name {
		if n >= maxNameRunes {
			break
		}
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsControl(r):
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
				n++
			}
			continue
		}
		b.WriteRune(r)
		lastDash = false
		n++
	}
	out := strings.Trim(strings.TrimSpace(b.String()), ".-")
	out = strings.TrimSpace(out)
	if out == "" {
		return "Untitled"
	}
	return out
}
