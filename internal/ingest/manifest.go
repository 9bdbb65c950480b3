package ingest

import (
	"fmt"
	"io"
	"os"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/notesmd/internal/files"
)

// ManifestName is the manifest's file name at the output root.
const ManifestName = "manifest.json"

// ManifestEntry records one exported note.
type ManifestEntry struct {
	ID          int64
	Title       string
	File        string
	Created     time.Time
	Modified    time.Time
	Attachments int
	Scraped     bool

	degraded int
}

func (m ManifestEntry) value() map[string]any {
	v := map[string]any{
		"id":          m.ID,
		"title":       m.Title,
		"file":        m.File,
		"attachments": m.Attachments,
		"scraped":     m.Scraped,
	}
	if !m.Created.IsZero() {
		v["created"] = m.Created.UTC().Format(time.RFC3339Nano)
	}
	if !m.Modified.IsZero() {
		v["modified"] = m.Modified.UTC().Format(time.RFC3339Nano)
	}
	return v
}

// writeManifest writes the run's manifest as indented JSON with sorted keys.
func writeManifest(fs billy.Filesystem, entries []map[string]any, stats *Stats) error {
	notes := make([]any, 0, len(entries))
	for _, e := range entries {
		notes = append(notes, e)
	}
	failed := make([]any, 0, stats.Failed.GetCardinality())
	for _, id := range stats.Failed.ToArray() {
		failed = append(failed, int64(id))
	}
	doc := map[string]any{
		"notes":  notes,
		"failed": failed,
		"counts": map[string]any{
			"processed":   stats.Processed.GetCardinality(),
			"scraped":     stats.Scraped.GetCardinality(),
			"skipped":     stats.Skipped.GetCardinality(),
			"failed":      stats.Failed.GetCardinality(),
			"attachments": stats.Attachments,
			"degraded":    stats.Degraded,
		},
	}
	data := oj.JSON(doc, &ojg.Options{Indent: 2, Sort: true})
	return files.WriteFile(fs, ManifestName, []byte(data+"\n"), time.Time{}, time.Time{})
}

var manifestNotes = jp.MustParseString("$.notes[*]")

// previousRun maps note keys to their entries in an earlier manifest.
type previousRun map[int64]map[string]any

// unchanged reports whether the earlier run exported note id with the same
// modification stamp, returning the recorded entry.
func (p previousRun) unchanged(id int64, modified time.Time) (map[string]any, bool) {
	prev, ok := p[id]
	if !ok || modified.IsZero() {
		return nil, false
	}
	stamp, _ := prev["modified"].(string)
	file, _ := prev["file"].(string)
	if file == "" || stamp != modified.UTC().Format(time.RFC3339Nano) {
		return nil, false
	}
	return prev, true
}

// readManifest loads the manifest left by an earlier run. A missing
// manifest is an empty previous run.
func readManifest(fs billy.Filesystem) (previousRun, error) {
	f, err := fs.Open(ManifestName)
	if err != nil {
		if os.IsNotExist(err) {
			return previousRun{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", ManifestName, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ManifestName, err)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestName, err)
	}

	prev := previousRun{}
	for _, n := range manifestNotes.Get(doc) {
		m, ok := n.(map[string]any)
		if !ok {
			continue
		}
		id, ok := m["id"].(int64)
		if !ok {
			continue
		}
		prev[id] = m
	}
	return prev, nil
}
