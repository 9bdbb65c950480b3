package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/agentic-research/notesmd/internal/decode"
	"github.com/agentic-research/notesmd/internal/files"
	"github.com/agentic-research/notesmd/internal/store"
	"github.com/agentic-research/notesmd/internal/table"
)

// Kind classifies an attachment by its type tag.
type Kind int

const (
	KindMedia Kind = iota // anything not listed below
	KindHashtag
	KindMention
	KindLink
	KindTable
	KindScan
	KindModifiedScan
	KindDrawing
	KindDrawingLegacy
	KindDrawingLegacy2
)

var kindByTag = map[string]Kind{
	"com.apple.notes.inlinetextattachment.hashtag": KindHashtag,
	"com.apple.notes.inlinetextattachment.mention": KindMention,
	"public.url":               KindLink,
	"com.apple.notes.table":    KindTable,
	"com.apple.notes.gallery":  KindScan,
	"com.apple.paper.doc.scan": KindModifiedScan,
	"com.apple.paper":          KindDrawing,
	"com.apple.drawing":        KindDrawingLegacy,
	"com.apple.drawing.2":      KindDrawingLegacy2,
}

var kindNames = [...]string{
	KindMedia:          "media",
	KindHashtag:        "hashtag",
	KindMention:        "mention",
	KindLink:           "url-card",
	KindTable:          "table",
	KindScan:           "scan",
	KindModifiedScan:   "modified-scan",
	KindDrawing:        "drawing",
	KindDrawingLegacy:  "drawing-legacy",
	KindDrawingLegacy2: "drawing-legacy-2",
}

// Classify maps a type tag to its Kind. Unknown tags are media.
func Classify(typeTag string) Kind {
	if k, ok := kindByTag[typeTag]; ok {
		return k
	}
	return KindMedia
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Branch is the rendering strategy for a Kind.
type Branch int

const (
	BranchInline Branch = iota
	BranchLink
	BranchTable
	BranchFile
)

// Branch returns how attachments of kind k are rendered.
func (k Kind) Branch() Branch {
	switch k {
	case KindHashtag, KindMention:
		return BranchInline
	case KindLink:
		return BranchLink
	case KindTable:
		return BranchTable
	default:
		return BranchFile
	}
}

// TablePlaceholder replaces a table that could not be reconstructed.
const TablePlaceholder = "[Table could not be processed]"

// Lookup is the read side of the note store the renderer needs.
type Lookup interface {
	AltText(ctx context.Context, identifier string) (string, error)
	Link(ctx context.Context, identifier string) (store.Link, error)
	TableData(ctx context.Context, identifier string) ([]byte, error)
	Attachment(ctx context.Context, identifier string) (store.Attachment, error)
}

// FileExporter copies an attachment's file and returns its output path.
type FileExporter interface {
	Export(ctx context.Context, req files.Request) (string, error)
}

// NoteInfo is the metadata of the note being rendered.
type NoteInfo struct {
	Title    string
	Created  time.Time
	Modified time.Time
}

// Result is a rendered note body and what it took to produce it.
type Result struct {
	Markdown string
	Exported int // attachment files exported
	Degraded int // attachments replaced by a placeholder
}

// Renderer renders notes and their attachments.
type Renderer struct {
	lookup      Lookup
	files       FileExporter
	transcripts bool
	logger      *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTranscripts emits handwriting transcripts above drawings.
func WithTranscripts(enabled bool) Option {
	return func(r *Renderer) { r.transcripts = enabled }
}

// WithLogger sets the logger for degraded attachments.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) { r.logger = logger }
}

// New returns a Renderer. files may be nil, in which case file attachments
// render as placeholders.
func New(lookup Lookup, files FileExporter, opts ...Option) *Renderer {
	r := &Renderer{lookup: lookup, files: files, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render interleaves note's text with its rendered attachments.
func (r *Renderer) Render(ctx context.Context, info NoteInfo, note *decode.Note, suppressFirst bool) Result {
	var res Result
	res.Markdown = Interleave(note, suppressFirst, func(ref decode.AttachmentRef) string {
		out, exported, err := r.attachment(ctx, info, ref)
		if err != nil {
			res.Degraded++
			r.logger.Debug("attachment degraded",
				"note", info.Title, "id", ref.Identifier, "type", ref.TypeTag, "err", err)
		}
		if exported {
			res.Exported++
		}
		return out
	})
	return res
}

// Attachment renders a single attachment reference.
func (r *Renderer) Attachment(ctx context.Context, info NoteInfo, ref decode.AttachmentRef) string {
	out, _, _ := r.attachment(ctx, info, ref)
	return out
}

func placeholder(k Kind) string {
	return fmt.Sprintf("<!-- %s attachment unavailable -->", k)
}

// attachment returns the marker, whether a file was exported, and the error
// that forced a fallback, if any. The marker is always usable.
func (r *Renderer) attachment(ctx context.Context, info NoteInfo, ref decode.AttachmentRef) (string, bool, error) {
	k := Classify(ref.TypeTag)
	switch k.Branch() {
	case BranchInline:
		return r.inline(ctx, k, ref.Identifier)
	case BranchLink:
		out, err := r.link(ctx, ref.Identifier)
		if err != nil {
			return placeholder(k), false, err
		}
		return out, false, nil
	case BranchTable:
		out, err := r.table(ctx, ref.Identifier)
		if err != nil {
			return TablePlaceholder, false, err
		}
		return out, false, nil
	default:
		out, err := r.file(ctx, info, k, ref.Identifier)
		if err != nil {
			return placeholder(k), false, err
		}
		return out, true, nil
	}
}

func (r *Renderer) inline(ctx context.Context, k Kind, identifier string) (string, bool, error) {
	alt, err := r.lookup.AltText(ctx, identifier)
	if err == nil && alt != "" {
		return alt, false, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		err = nil
	}
	prefix := "#"
	if k == KindMention {
		prefix = "@"
	}
	return prefix + identifier, false, err
}

func (r *Renderer) link(ctx context.Context, identifier string) (string, error) {
	l, err := r.lookup.Link(ctx, identifier)
	if err != nil {
		return "", err
	}
	if l.URL == "" {
		return "", fmt.Errorf("link %s has no URL", identifier)
	}
	title := l.Title
	if title == "" {
		title = l.URL
	}
	return fmt.Sprintf("[%s](%s)", escapeText(title), l.URL), nil
}

func (r *Renderer) table(ctx context.Context, identifier string) (string, error) {
	data, err := r.lookup.TableData(ctx, identifier)
	if err != nil {
		return "", err
	}
	grid, err := table.FromBlob(data)
	if err != nil {
		return "", err
	}
	md := grid.Markdown()
	if md == "" {
		return "", fmt.Errorf("table %s is empty", identifier)
	}
	return "\n" + md, nil
}

func (r *Renderer) file(ctx context.Context, info NoteInfo, k Kind, identifier string) (string, error) {
	if r.files == nil {
		return "", fmt.Errorf("no file exporter configured")
	}
	att, err := r.lookup.Attachment(ctx, identifier)
	if err != nil {
		return "", err
	}
	req, err := Describe(k, att)
	if err != nil {
		return "", err
	}
	req.NoteTitle = info.Title
	req.Created = info.Created
	req.Modified = info.Modified

	out, err := r.files.Export(ctx, req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if r.transcripts && att.Handwriting != "" {
		b.WriteString("\n> [!handwriting]\n")
		for _, line := range strings.Split(strings.TrimSpace(att.Handwriting), "\n") {
			b.WriteString("> ")
			b.WriteString(strings.TrimRight(line, "\r"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "![%s](%s)", escapeText(req.Name), strings.ReplaceAll(out, " ", "%20"))
	return b.String(), nil
}

// Describe returns where an attachment's file lives relative to a note store
// root and what to call the exported copy.
func Describe(k Kind, att store.Attachment) (files.Request, error) {
	id := att.Identifier
	name := func(fallback string) string {
		if att.Title != "" {
			return strings.TrimSuffix(att.Title, path.Ext(att.Title))
		}
		return fallback
	}
	switch k {
	case KindScan:
		if att.Width <= 0 || att.Height <= 0 {
			return files.Request{}, fmt.Errorf("scan %s has no preview size", id)
		}
		return files.Request{
			SourcePath: fmt.Sprintf("Previews/%s-1-%dx%d-0.jpeg", id, att.Width, att.Height),
			Name:       name("Scan"),
			Ext:        "jpeg",
		}, nil
	case KindModifiedScan:
		return files.Request{
			SourcePath: joinGeneration("FallbackPDFs", id, att.PDFGeneration, "FallbackPDF.pdf"),
			Name:       name("Scan"),
			Ext:        "pdf",
		}, nil
	case KindDrawing, KindDrawingLegacy, KindDrawingLegacy2:
		return files.Request{
			SourcePath: joinGeneration("FallbackImages", id, att.FallbackGeneration, "FallbackImage.png"),
			Name:       name("Drawing"),
			Ext:        "png",
		}, nil
	}

	if att.MediaIdentifier == "" || att.MediaFilename == "" {
		return files.Request{}, fmt.Errorf("attachment %s has no media file", id)
	}
	ext := path.Ext(att.MediaFilename)
	return files.Request{
		SourcePath: joinGeneration("Media", att.MediaIdentifier, att.MediaGeneration, att.MediaFilename),
		Name:       strings.TrimSuffix(att.MediaFilename, ext),
		Ext:        strings.TrimPrefix(ext, "."),
	}, nil
}

func joinGeneration(dir, id, generation, file string) string {
	if generation == "" {
		return path.Join(dir, id, file)
	}
	return path.Join(dir, id, generation, file)
}

var textEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
