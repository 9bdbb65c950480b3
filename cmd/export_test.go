package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/notesmd/api"
	"github.com/agentic-research/notesmd/internal/decode"
	"github.com/agentic-research/notesmd/internal/notetest"
)

func TestExport_EndToEnd(t *testing.T) {
	dbPath, db := notetest.NoteStore(t)
	notetest.AddNote(t, db, 1, "Recipes", 100, 86400, notetest.Gzip(t, notetest.Document("Recipes\npancakes ￼",
		notetest.Run{Length: 17},
		notetest.Run{Length: 1, ID: "IMG", UTI: "public.jpeg"},
	)))
	notetest.AddNote(t, db, 2, "Broken", 100, 200, []byte("plain"))
	_, err := db.Exec(`INSERT INTO ZICCLOUDSYNCINGOBJECT (Z_PK, ZIDENTIFIER, ZTYPEUTI, ZMEDIA) VALUES (10, 'IMG', 'public.jpeg', 11)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO ZICCLOUDSYNCINGOBJECT (Z_PK, ZIDENTIFIER, ZFILENAME) VALUES (11, 'MEDIA-1', 'stack.jpg')`)
	require.NoError(t, err)

	media := filepath.Join(filepath.Dir(dbPath), "Accounts", "ACC", "Media", "MEDIA-1")
	require.NoError(t, os.MkdirAll(media, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(media, "stack.jpg"), []byte("jpeg"), 0o644))

	out := filepath.Join(t.TempDir(), "export")
	rootCmd.SetArgs([]string{"export", "--db", dbPath, "--out", out, "--manifest", "--keep-first-line"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	md, err := os.ReadFile(filepath.Join(out, "Recipes.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Recipes\n\nRecipes\npancakes ![stack](attachments/Recipes%20-%20stack.jpg)\n", string(md))

	jpeg, err := os.ReadFile(filepath.Join(out, "attachments", "Recipes - stack.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(jpeg))

	info, err := os.Stat(filepath.Join(out, "Recipes.md"))
	require.NoError(t, err)
	assert.Equal(t, int64(978307200+86400), info.ModTime().Unix())

	manifest, err := os.ReadFile(filepath.Join(out, "manifest.json"))
	require.NoError(t, err)
	doc, err := oj.Parse(manifest)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2)}, jp.MustParseString("$.failed[*]").Get(doc))
}

func TestSourceRoots(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Accounts", "A"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Accounts", "B"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Accounts", "stray.txt"), nil, 0o644))

	roots := sourceRoots(filepath.Join(dir, "NoteStore.sqlite"))
	assert.Equal(t, []string{
		dir,
		filepath.Join(dir, "Accounts", "A"),
		filepath.Join(dir, "Accounts", "B"),
	}, roots)
}

func TestExportFlags_Apply(t *testing.T) {
	newCmd := func() (*cobra.Command, *exportFlags) {
		var o exportFlags
		c := &cobra.Command{}
		c.Flags().StringVar(&o.database, "db", "", "")
		c.Flags().StringVar(&o.outputDir, "out", "", "")
		c.Flags().StringSliceVar(&o.sources, "source", nil, "")
		c.Flags().BoolVar(&o.keepFirstLine, "keep-first-line", false, "")
		c.Flags().BoolVar(&o.transcripts, "transcripts", false, "")
		c.Flags().BoolVar(&o.manifest, "manifest", false, "")
		c.Flags().BoolVar(&o.incremental, "incremental", false, "")
		return c, &o
	}

	t.Run("unset flags keep config", func(t *testing.T) {
		c, o := newCmd()
		cfg := api.Config{Database: "cfg.sqlite", OutputDir: "cfg-out", SuppressFirstLine: true, Manifest: true}
		o.apply(c, &cfg)
		assert.Equal(t, api.Config{Database: "cfg.sqlite", OutputDir: "cfg-out", SuppressFirstLine: true, Manifest: true}, cfg)
	})

	t.Run("set flags override", func(t *testing.T) {
		c, o := newCmd()
		require.NoError(t, c.Flags().Parse([]string{
			"--db", "flag.sqlite", "--keep-first-line", "--source", "/a", "--source", "/b", "--incremental",
		}))
		cfg := api.DefaultConfig()
		o.apply(c, &cfg)
		assert.Equal(t, "flag.sqlite", cfg.Database)
		assert.False(t, cfg.SuppressFirstLine)
		assert.Equal(t, []string{"/a", "/b"}, cfg.SourceRoots)
		assert.True(t, cfg.Incremental)
		assert.True(t, cfg.Manifest, "incremental runs need a manifest")
	})
}

func TestPrintNote(t *testing.T) {
	var buf bytes.Buffer
	printNote(&buf, &decode.Note{
		Text: "ab￼",
		Runs: []decode.AttributeRun{
			{Length: 2, Link: "https://go.dev"},
			{Length: 1, Attachment: &decode.AttachmentRef{Identifier: "T", TypeTag: "com.apple.notes.table"}},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "text (3 UTF-16 units):\nab￼\n")
	assert.Contains(t, out, "https://go.dev")
	assert.Regexp(t, `2\s+1\s+table\s+T\s+com\.apple\.notes\.table`, out)
}

func TestPrintNote_CountsUTF16Units(t *testing.T) {
	var buf bytes.Buffer
	printNote(&buf, &decode.Note{
		Text: "hi 👋",
		Runs: []decode.AttributeRun{{Length: 5}},
	})
	assert.Contains(t, buf.String(), "text (5 UTF-16 units):")
	assert.Regexp(t, `0\s+5\s+text`, buf.String())
}
