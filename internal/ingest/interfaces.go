package ingest

import (
	"context"

	"github.com/agentic-research/notesmd/internal/render"
	"github.com/agentic-research/notesmd/internal/store"
)

// Source is the note store an export reads from. *store.Store implements it.
type Source interface {
	render.Lookup

	// Notes lists the notes to export.
	Notes(ctx context.Context) ([]store.Note, error)
	// NoteBody returns a note's compressed body.
	NoteBody(ctx context.Context, id int64) ([]byte, error)
}

var _ Source = (*store.Store)(nil)
