package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentic-research/notesmd/internal/decode"
)

func marker(ref decode.AttachmentRef) string { return "[" + ref.Identifier + "]" }

func TestInterleave_PlainText(t *testing.T) {
	note := &decode.Note{Text: "Title\r\nbody line\rlast", Runs: []decode.AttributeRun{{Length: 21}}}

	assert.Equal(t, "Title\nbody line\nlast", Interleave(note, false, marker))
	assert.Equal(t, "body line\nlast", Interleave(note, true, marker))
}

func TestInterleave_SuppressionIdempotentOnSingleLine(t *testing.T) {
	note := &decode.Note{Text: "just one line", Runs: []decode.AttributeRun{{Length: 13}}}
	assert.Equal(t, Interleave(note, false, marker), Interleave(note, true, marker))
	assert.Equal(t, "just one line", Interleave(note, true, marker))
}

func TestInterleave_Attachments(t *testing.T) {
	text := "see ￼ and ￼."
	note := &decode.Note{Text: text, Runs: []decode.AttributeRun{
		{Length: 4},
		{Length: 1, Attachment: &decode.AttachmentRef{Identifier: "A"}},
		{Length: 5},
		{Length: 1, Attachment: &decode.AttachmentRef{Identifier: "B"}},
	}}
	// Text past the last run is appended verbatim.
	assert.Equal(t, "see [A] and [B].", Interleave(note, false, marker))
}

func TestInterleave_UTF16Offsets(t *testing.T) {
	// The emoji is two UTF-16 code units; run lengths count units, not bytes
	// or runes.
	text := "😀 x￼"
	note := &decode.Note{Text: text, Runs: []decode.AttributeRun{
		{Length: 4},
		{Length: 1, Attachment: &decode.AttachmentRef{Identifier: "IMG"}},
	}}
	assert.Equal(t, "😀 x[IMG]", Interleave(note, false, marker))
}

func TestInterleave_Fallbacks(t *testing.T) {
	t.Run("no runs", func(t *testing.T) {
		note := &decode.Note{Text: "Title\n  body  "}
		assert.Equal(t, "body", Interleave(note, true, marker))
	})
	t.Run("whitespace only", func(t *testing.T) {
		note := &decode.Note{Text: "Title\nbody", Runs: []decode.AttributeRun{
			{Length: 10, Attachment: &decode.AttachmentRef{Identifier: "X"}},
		}}
		blank := func(decode.AttachmentRef) string { return "  " }
		assert.Equal(t, "body", Interleave(note, true, blank))
	})
	t.Run("nil note", func(t *testing.T) {
		assert.Equal(t, "", Interleave(nil, true, marker))
	})
	t.Run("runs longer than text", func(t *testing.T) {
		note := &decode.Note{Text: "short", Runs: []decode.AttributeRun{{Length: 50}, {Length: 10}}}
		assert.Equal(t, "short", Interleave(note, false, marker))
	})
}

// The run cursor starts at the post-suppression offset instead of zero, so
// with suppression on every run is shifted right by the length of the first
// line. Plain text still comes out whole, but an attachment's marker is
// placed at the shifted position and the original placeholder character is
// copied through as text.
func TestInterleave_SuppressedOffsetShift(t *testing.T) {
	text := "Head\nab￼cd"
	note := &decode.Note{Text: text, Runs: []decode.AttributeRun{
		{Length: 5}, // "Head\n"
		{Length: 2}, // "ab"
		{Length: 1, Attachment: &decode.AttachmentRef{Identifier: "A"}},
		{Length: 2}, // "cd"
	}}

	assert.Equal(t, text, Interleave(note, false, func(decode.AttachmentRef) string { return "￼" }),
		"without suppression the text round-trips")
	assert.Equal(t, "Head\nab[A]cd", Interleave(note, false, marker))

	// Cursor starts at 5: run 1 covers [5,10) = "ab￼cd", run 2 covers
	// [10,12) which is past the end, the attachment marker follows, and
	// run 4 is past the end too.
	assert.Equal(t, "ab￼cd[A]", Interleave(note, true, marker))
}
