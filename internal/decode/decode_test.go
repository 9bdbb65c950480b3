package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/notesmd/internal/blob"
	"github.com/agentic-research/notesmd/internal/graph"
	"github.com/agentic-research/notesmd/internal/notetest"
)

func TestDecode_Document(t *testing.T) {
	raw := notetest.Document("Groceries\nmilk eggs",
		notetest.Run{Length: 10},
		notetest.Run{Length: 1, ID: "ATT-1", UTI: "public.jpeg"},
		notetest.Run{Length: 8},
	)

	note, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Groceries\nmilk eggs", note.Text)
	require.Len(t, note.Runs, 3)
	assert.Equal(t, 10, note.Runs[0].Length)
	assert.Nil(t, note.Runs[0].Attachment)
	assert.Equal(t, &AttachmentRef{Identifier: "ATT-1", TypeTag: "public.jpeg"}, note.Runs[1].Attachment)
}

func TestDecode_CompressedDocument(t *testing.T) {
	text := "Plain text note\r\nwith two lines"
	data, err := blob.Decompress(notetest.Gzip(t, notetest.Document(text, notetest.Run{Length: 31})))
	require.NoError(t, err)

	note, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, text, note.Text)
}

func TestDecode_FallsBackToMergeable(t *testing.T) {
	t.Run("note entry", func(t *testing.T) {
		b := graph.NewBuilder()
		b.Add(graph.Unknown{})
		b.Add(&graph.NoteEntry{Text: "from the graph"})
		note, err := Decode(notetest.Mergeable(b.Graph()))
		require.NoError(t, err)
		assert.Equal(t, "from the graph", note.Text)
	})

	t.Run("ordering contents", func(t *testing.T) {
		b := graph.NewBuilder()
		b.Add(&graph.OrderedSet{Text: "ordered text", Order: [][]byte{notetest.UUID(1)}})
		note, err := Decode(notetest.Mergeable(b.Graph()))
		require.NoError(t, err)
		assert.Equal(t, "ordered text", note.Text)
	})

	t.Run("note entry wins over ordering", func(t *testing.T) {
		b := graph.NewBuilder()
		b.Add(&graph.OrderedSet{Text: "ordered text"})
		b.Add(&graph.NoteEntry{Text: "note text"})
		note, err := Decode(notetest.Mergeable(b.Graph()))
		require.NoError(t, err)
		assert.Equal(t, "note text", note.Text)
	})
}

func TestDecode_Failures(t *testing.T) {
	t.Run("no text anywhere", func(t *testing.T) {
		b := graph.NewBuilder()
		b.Add(&graph.Dictionary{})
		_, err := Decode(notetest.Mergeable(b.Graph()))
		require.ErrorIs(t, err, ErrContentExtraction)
		assert.NotErrorIs(t, err, ErrSchemaDecode)
	})

	t.Run("not protobuf", func(t *testing.T) {
		_, err := Decode([]byte{0xff, 0xff, 0xff, 0xff, 0xff})
		require.ErrorIs(t, err, ErrContentExtraction)
		assert.ErrorIs(t, err, ErrSchemaDecode)
	})

	t.Run("empty document", func(t *testing.T) {
		_, err := Decode(notetest.Document(""))
		require.ErrorIs(t, err, ErrContentExtraction)
	})
}

func TestGraph(t *testing.T) {
	b := graph.NewBuilder()
	box := b.BoxUUID(notetest.UUID(7))
	b.Add(&graph.Dictionary{Elements: []graph.DictElement{{Key: graph.Index(box), Value: graph.Index(0)}}})
	b.Add(&graph.NoteEntry{Text: "cell"})
	b.Add(graph.Unknown{})
	b.Add(&graph.OrderedSet{
		Order:    [][]byte{notetest.UUID(1), notetest.UUID(2)},
		Contents: []graph.DictElement{{Key: graph.Index(0), Value: graph.Uint(3)}},
	})
	want := b.Graph()

	got, err := Graph(notetest.Mergeable(want))
	require.NoError(t, err)
	assert.Equal(t, want.KeyNames, got.KeyNames)
	assert.Equal(t, want.TypeNames, got.TypeNames)
	assert.Equal(t, want.UUIDs, got.UUIDs)
	require.Len(t, got.Entries, 5)

	assert.Equal(t, want.Entries[0], got.Entries[0])
	assert.Equal(t, want.Entries[1], got.Entries[1])
	assert.Equal(t, &graph.NoteEntry{Text: "cell"}, got.Entries[2])
	assert.Equal(t, graph.Unknown{}, got.Entries[3])
	assert.Equal(t, want.Entries[4], got.Entries[4])

	assert.Equal(t, "07070707070707070707070707070707", got.ResolveUUID(graph.Index(box)))
}

func TestGraph_NotMergeable(t *testing.T) {
	_, err := Graph([]byte{0xff, 0xff})
	require.ErrorIs(t, err, ErrSchemaDecode)

	_, err = Graph(nil)
	require.ErrorIs(t, err, ErrSchemaDecode)
}

func TestScrape(t *testing.T) {
	raw := append([]byte("\x00\x01Title line here\x00\x02short\x03"), []byte("The body of the note\x00\x7f")...)

	assert.Equal(t, "Title line here\nThe body of the note", Scrape(raw, false))
	assert.Equal(t, "The body of the note", Scrape(raw, true))
	assert.Equal(t, "Only one run", Scrape([]byte("\x00Only one run\x00"), false))
	assert.Equal(t, ScrapePlaceholder, Scrape([]byte("\x00Only one run\x00"), true),
		"a lone run is the title line and is suppressed")
	assert.Equal(t, ScrapePlaceholder, Scrape([]byte{0, 1, 2, 'a', 'b', 3}, false))
}
