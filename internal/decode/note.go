// Package decode turns decompressed note bodies into text and attribute runs.
//
// The notes app changed its on-disk body format between releases and no
// reliable version marker says which one a given row uses, so every body is
// tried against an ordered list of schemas and the first one that yields
// note text wins.
package decode

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/agentic-research/notesmd/internal/schema"
)

var (
	// ErrSchemaDecode means no known top-level schema could parse the body.
	ErrSchemaDecode = errors.New("body matches no known schema")
	// ErrContentExtraction means the body parsed but carried no note text.
	ErrContentExtraction = errors.New("no note text found in body")
)

// AttachmentRef points at an attachment row in the note store.
type AttachmentRef struct {
	Identifier string
	TypeTag    string
}

// AttributeRun covers Length UTF-16 code units of the note text.
type AttributeRun struct {
	Length     int
	Link       string
	Attachment *AttachmentRef
}

// Note is a decoded note body.
type Note struct {
	Text string
	Runs []AttributeRun
}

type attempt struct {
	name   string
	decode func(reg *schema.Registry, raw []byte) (*Note, error)
}

// errNoText marks an attempt that parsed structurally but found no text.
var errNoText = errors.New("no note text")

var attempts = []attempt{
	{name: "document", decode: decodeDocument},
	{name: "mergeable", decode: decodeMergeable},
}

// Decode extracts the note from a decompressed body. When every schema
// fails the error wraps ErrContentExtraction, and additionally
// ErrSchemaDecode if none of them even parsed.
func Decode(raw []byte) (*Note, error) {
	reg, err := schema.Load()
	if err != nil {
		return nil, err
	}

	parsed := false
	var errs []error
	for _, a := range attempts {
		note, err := a.decode(reg, raw)
		if err == nil {
			return note, nil
		}
		if errors.Is(err, errNoText) {
			parsed = true
		}
		errs = append(errs, fmt.Errorf("%s: %w", a.name, err))
	}
	if !parsed {
		return nil, fmt.Errorf("%w: %w: %w", ErrContentExtraction, ErrSchemaDecode, errors.Join(errs...))
	}
	return nil, fmt.Errorf("%w: %w", ErrContentExtraction, errors.Join(errs...))
}

func decodeDocument(reg *schema.Registry, raw []byte) (*Note, error) {
	msg, err := reg.Unmarshal(schema.NoteStoreProto, raw)
	if err != nil {
		return nil, err
	}
	note := schema.Msg(schema.Msg(msg, "document"), "note")
	if schema.Str(note, "note_text") == "" {
		return nil, errNoText
	}
	return noteFromMessage(note), nil
}

func decodeMergeable(reg *schema.Registry, raw []byte) (*Note, error) {
	data, err := mergeableData(reg, raw)
	if err != nil {
		return nil, err
	}
	entries := schema.Msgs(data, "mergeable_data_object_entry")
	for _, e := range entries {
		if note := schema.Msg(e, "note"); schema.Str(note, "note_text") != "" {
			return noteFromMessage(note), nil
		}
	}
	for _, e := range entries {
		note := orderingNote(e)
		if schema.Str(note, "note_text") != "" {
			return noteFromMessage(note), nil
		}
	}
	return nil, errNoText
}

func orderingNote(entry protoreflect.Message) protoreflect.Message {
	set := schema.Msg(entry, "ordered_set")
	return schema.Msg(schema.Msg(schema.Msg(set, "ordering"), "array"), "contents")
}

func mergeableData(reg *schema.Registry, raw []byte) (protoreflect.Message, error) {
	msg, err := reg.Unmarshal(schema.MergableDataProto, raw)
	if err != nil {
		return nil, err
	}
	data := schema.Msg(schema.Msg(msg, "mergable_data_object"), "mergeable_data_object_data")
	if data == nil {
		return nil, errNoText
	}
	return data, nil
}

func noteFromMessage(m protoreflect.Message) *Note {
	n := &Note{Text: schema.Str(m, "note_text")}
	for _, r := range schema.Msgs(m, "attribute_run") {
		run := AttributeRun{
			Length: int(schema.Int(r, "length")),
			Link:   schema.Str(r, "link"),
		}
		if run.Length < 0 {
			run.Length = 0
		}
		if info := schema.Msg(r, "attachment_info"); info != nil {
			run.Attachment = &AttachmentRef{
				Identifier: schema.Str(info, "attachment_identifier"),
				TypeTag:    schema.Str(info, "type_uti"),
			}
		}
		n.Runs = append(n.Runs, run)
	}
	return n
}
