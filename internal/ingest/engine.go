// Package ingest drives an export run: it walks the note store one note at a
// time, decodes and renders each body, and writes one Markdown file per note.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/notesmd/internal/blob"
	"github.com/agentic-research/notesmd/internal/decode"
	"github.com/agentic-research/notesmd/internal/files"
	"github.com/agentic-research/notesmd/internal/render"
	"github.com/agentic-research/notesmd/internal/store"
)

// Options controls an export run.
type Options struct {
	// SuppressFirstLine drops each body's first line, which repeats the title.
	SuppressFirstLine bool
	// Manifest writes manifest.json at the output root.
	Manifest bool
	// Incremental skips notes the previous manifest records with an
	// unchanged modification date. It implies Manifest.
	Incremental bool
}

// Engine drives the export.
type Engine struct {
	src      Source
	renderer *render.Renderer
	out      billy.Filesystem
	opts     Options
	logger   *slog.Logger

	names map[string]bool // output names taken this run, lowercased
}

func NewEngine(src Source, renderer *render.Renderer, out billy.Filesystem, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		src:      src,
		renderer: renderer,
		out:      out,
		opts:     opts,
		logger:   logger,
		names:    make(map[string]bool),
	}
}

// Run exports every note. Per-note failures are logged and counted; the run
// stops early only when the store becomes unreadable or ctx is done.
func (e *Engine) Run(ctx context.Context) (*Stats, error) {
	stats := NewStats()

	notes, err := e.src.Notes(ctx)
	if err != nil {
		return stats, fmt.Errorf("list notes: %w", err)
	}

	prev := previousRun{}
	if e.opts.Incremental {
		if prev, err = readManifest(e.out); err != nil {
			e.logger.Warn("ignoring previous manifest", "err", err)
			prev = previousRun{}
		}
	}

	// Files kept from the previous run are reserved before any new name is
	// handed out.
	kept := make(map[int64]map[string]any)
	for _, n := range notes {
		if entry, ok := prev.unchanged(n.ID, n.Modified); ok {
			if file, _ := entry["file"].(string); e.exists(file) {
				e.names[strings.ToLower(file)] = true
				kept[n.ID] = entry
			}
		}
	}

	var manifest []map[string]any
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if entry, ok := kept[n.ID]; ok {
			stats.Skipped.Add(key(n.ID))
			manifest = append(manifest, entry)
			continue
		}

		entry, err := e.ExportNote(ctx, n)
		if err != nil {
			if errors.Is(err, store.ErrAccessDenied) {
				return stats, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			stats.Failed.Add(key(n.ID))
			e.logger.Warn("note export failed", "note", n.ID, "title", n.Title, "err", err)
			continue
		}

		stats.Processed.Add(key(n.ID))
		if entry.Scraped {
			stats.Scraped.Add(key(n.ID))
		}
		stats.Attachments += entry.Attachments
		stats.Degraded += entry.degraded
		manifest = append(manifest, entry.value())
		e.logger.Debug("note exported", "note", n.ID, "file", entry.File)
	}

	if e.opts.Manifest || e.opts.Incremental {
		if err := writeManifest(e.out, manifest, stats); err != nil {
			return stats, fmt.Errorf("write manifest: %w", err)
		}
	}
	return stats, nil
}

// ExportNote decodes, renders and writes a single note. Bodies no schema can
// decode are written from the raw-text fallback and flagged as scraped.
func (e *Engine) ExportNote(ctx context.Context, n store.Note) (ManifestEntry, error) {
	entry := ManifestEntry{ID: n.ID, Title: n.Title, Created: n.Created, Modified: n.Modified}

	raw, err := e.src.NoteBody(ctx, n.ID)
	if err != nil {
		return entry, err
	}
	data, err := blob.Decompress(raw)
	if err != nil {
		return entry, err
	}

	var body string
	note, err := decode.Decode(data)
	switch {
	case err == nil:
		info := render.NoteInfo{Title: n.Title, Created: n.Created, Modified: n.Modified}
		res := e.renderer.Render(ctx, info, note, e.opts.SuppressFirstLine)
		body = res.Markdown
		entry.Attachments = res.Exported
		entry.degraded = res.Degraded
	case errors.Is(err, decode.ErrContentExtraction):
		e.logger.Info("note body not decodable, scraping raw text", "note", n.ID, "err", err)
		body = decode.Scrape(data, e.opts.SuppressFirstLine)
		entry.Scraped = true
	default:
		return entry, err
	}

	title := n.Title
	if strings.TrimSpace(title) == "" {
		title = "Untitled"
	}
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString("\n\n")
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}

	entry.File = e.claimName(title)
	if err := files.WriteFile(e.out, entry.File, []byte(b.String()), n.Created, n.Modified); err != nil {
		return entry, err
	}
	return entry, nil
}

// claimName returns an unused Markdown file name for title, numbering
// repeats "Title (2).md", "Title (3).md" and so on.
func (e *Engine) claimName(title string) string {
	base := files.Sanitize(title)
	name := base + ".md"
	for i := 2; e.names[strings.ToLower(name)]; i++ {
		name = fmt.Sprintf("%s (%d).md", base, i)
	}
	e.names[strings.ToLower(name)] = true
	return name
}

func (e *Engine) exists(name string) bool {
	if name == "" || path.IsAbs(name) {
		return false
	}
	_, err := e.out.Stat(name)
	return err == nil
}
