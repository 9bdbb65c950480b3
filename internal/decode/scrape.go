package decode

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ScrapePlaceholder is returned by Scrape when nothing readable is found.
const ScrapePlaceholder = "[Note content could not be decoded]"

// minScrapeRun is the shortest printable run Scrape keeps.
const minScrapeRun = 10

// Scrape is the last-resort fallback for bodies no schema could decode: it
// keeps runs of at least ten printable characters, one per line. With
// suppressFirst the first run is always dropped, mirroring the title-line
// suppression of decoded notes.
func Scrape(raw []byte, suppressFirst bool) string {
	var lines []string
	var cur strings.Builder
	n := 0
	flush := func() {
		if n >= minScrapeRun {
			if s := strings.TrimSpace(cur.String()); s != "" {
				lines = append(lines, s)
			}
		}
		cur.Reset()
		n = 0
	}

	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		raw = raw[size:]
		if (r == utf8.RuneError && size <= 1) || !unicode.IsPrint(r) {
			flush()
			continue
		}
		cur.WriteRune(r)
		n++
	}
	flush()

	if suppressFirst && len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return ScrapePlaceholder
	}
	return strings.Join(lines, "\n")
}
