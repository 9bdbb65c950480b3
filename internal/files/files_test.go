package files

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func put(t *testing.T, fs billy.Filesystem, name, content string) {
	t.Helper()
	require.NoError(t, WriteFile(fs, name, []byte(content), time.Time{}, time.Time{}))
}

func read(t *testing.T, fs billy.Filesystem, name string) string {
	t.Helper()
	f, err := fs.Open(name)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestExport_SearchesSourceRoots(t *testing.T) {
	first, second, dest := memfs.New(), memfs.New(), memfs.New()
	put(t, second, "Media/M1/gen/photo.jpg", "jpeg bytes")

	e := NewExporter(dest, "attachments", first, second)
	got, err := e.Export(context.Background(), Request{
		SourcePath: "Media/M1/gen/photo.jpg",
		Name:       "photo",
		Ext:        ".jpg",
		NoteTitle:  "Trip: Day 1",
	})
	require.NoError(t, err)
	assert.Equal(t, "attachments/Trip- Day 1 - photo.jpg", got)
	assert.Equal(t, "jpeg bytes", read(t, dest, got))
}

func TestExport_Dedup(t *testing.T) {
	src, dest := memfs.New(), memfs.New()
	put(t, src, "a.png", "same")
	put(t, src, "b.png", "diff")
	put(t, src, "c.png", "longer content")
	e := NewExporter(dest, "attachments", src)
	ctx := context.Background()

	p1, err := e.Export(ctx, Request{SourcePath: "a.png", Name: "img", NoteTitle: "N"})
	require.NoError(t, err)
	assert.Equal(t, "attachments/N - img.png", p1)

	// Identical content reuses the existing file.
	p2, err := e.Export(ctx, Request{SourcePath: "a.png", Name: "img", NoteTitle: "N"})
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	// Same size, different bytes: a new name.
	p3, err := e.Export(ctx, Request{SourcePath: "b.png", Name: "img", NoteTitle: "N"})
	require.NoError(t, err)
	assert.Equal(t, "attachments/N - img (2).png", p3)
	assert.Equal(t, "diff", read(t, dest, p3))

	// Different size: also a new name.
	p4, err := e.Export(ctx, Request{SourcePath: "c.png", Name: "img", NoteTitle: "N"})
	require.NoError(t, err)
	assert.Equal(t, "attachments/N - img (3).png", p4)
}

func TestExport_NotFound(t *testing.T) {
	e := NewExporter(memfs.New(), "attachments", memfs.New())
	_, err := e.Export(context.Background(), Request{SourcePath: "missing.pdf", Name: "x"})
	require.ErrorIs(t, err, ErrSourceNotFound)
}

func TestExport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewExporter(memfs.New(), "attachments")
	_, err := e.Export(ctx, Request{SourcePath: "x"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriteFile_Times(t *testing.T) {
	dir := t.TempDir()
	fs := Disk(dir)
	created := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	modified := time.Date(2021, 6, 7, 8, 9, 10, 0, time.UTC)

	require.NoError(t, WriteFile(fs, "sub/note.md", []byte("# hi\n"), created, modified))

	info, err := os.Stat(filepath.Join(dir, "sub", "note.md"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(modified), "mtime = %v", info.ModTime())
	data, err := os.ReadFile(filepath.Join(dir, "sub", "note.md"))
	require.NoError(t, err)
	assert.Equal(t, "# hi\n", string(data))
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Shopping list":      "Shopping list",
		"a/b\\c":             "a-b-c",
		"what?*":             "what",
		"  .hidden.  ":       "hidden",
		"":                   "Untitled",
		"///":                "Untitled",
		"tab\there":          "tab-here",
		"Résumé 2024":        "Résumé 2024",
		"<<double>> trouble": "double- trouble",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in), "Sanitize(%q)", in)
	}
	assert.Len(t, []rune(Sanitize(strings.Repeat("x", 300))), maxNameRunes)
}
