// Package render turns a decoded note into Markdown: it walks the note's
// attribute runs, copying plain text through and replacing attachment runs
// with rendered markers.
package render

import (
	"strings"
	"unicode/utf16"

	"github.com/agentic-research/notesmd/internal/decode"
)

// AttachmentFunc renders the marker that replaces an attachment run.
type AttachmentFunc func(ref decode.AttachmentRef) string

// Interleave splices attachment markers into note's text. Run lengths and
// offsets count UTF-16 code units.
//
// With suppressFirst the text up to and including the first line break is
// dropped (it repeats the note's title). The run cursor then starts at that
// offset rather than at zero, and advances by each run's raw length, so runs
// are not re-aligned with the text after the cut: an attachment inside or
// near the first line lands shifted by the first line's length.
func Interleave(note *decode.Note, suppressFirst bool, attach AttachmentFunc) string {
	if note == nil {
		return ""
	}
	units := utf16.Encode([]rune(note.Text))
	textOffset := 0
	if suppressFirst {
		for i, u := range units {
			if u == '\n' {
				textOffset = i + 1
				break
			}
		}
	}

	var b strings.Builder
	cursor := textOffset
	for _, run := range note.Runs {
		start := cursor
		end := start + run.Length
		cursor = end
		if start < textOffset {
			continue
		}
		if run.Attachment != nil {
			if attach != nil {
				b.WriteString(attach(*run.Attachment))
			}
			continue
		}
		b.WriteString(slice(units, start, end))
	}
	if len(note.Runs) > 0 && cursor < len(units) {
		b.WriteString(slice(units, cursor, len(units)))
	}

	out := b.String()
	if strings.TrimSpace(out) == "" {
		out = slice(units, textOffset, len(units))
	}
	return normalize(out)
}

func slice(units []uint16, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(units) {
		end = len(units)
	}
	if start >= end {
		return ""
	}
	return string(utf16.Decode(units[start:end]))
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func normalize(s string) string {
	return strings.TrimSpace(lineEndings.Replace(s))
}
