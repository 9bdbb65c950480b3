package decode

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/agentic-research/notesmd/internal/graph"
	"github.com/agentic-research/notesmd/internal/schema"
)

// Graph decodes a mergeable data body into its object graph.
func Graph(raw []byte) (*graph.Graph, error) {
	reg, err := schema.Load()
	if err != nil {
		return nil, err
	}
	data, err := mergeableData(reg, raw)
	if err != nil {
		if errors.Is(err, errNoText) {
			return nil, fmt.Errorf("%w: no mergeable data object", ErrSchemaDecode)
		}
		return nil, fmt.Errorf("%w: %w", ErrSchemaDecode, err)
	}

	g := &graph.Graph{
		KeyNames:  schema.Strs(data, "mergeable_data_object_key_item"),
		TypeNames: schema.Strs(data, "mergeable_data_object_type_item"),
		UUIDs:     schema.BytesList(data, "mergeable_data_object_uuid_item"),
	}
	for _, e := range schema.Msgs(data, "mergeable_data_object_entry") {
		g.Entries = append(g.Entries, toEntry(e))
	}
	return g, nil
}

func toEntry(e protoreflect.Message) graph.Entry {
	switch {
	case schema.Has(e, "ordered_set"):
		set := schema.Msg(e, "ordered_set")
		ordering := schema.Msg(set, "ordering")
		array := schema.Msg(ordering, "array")
		out := &graph.OrderedSet{
			Contents: dictElements(schema.Msg(ordering, "contents")),
			Elements: dictElements(schema.Msg(set, "elements")),
			Text:     schema.Str(schema.Msg(array, "contents"), "note_text"),
		}
		for _, att := range schema.Msgs(array, "attachment") {
			out.Order = append(out.Order, schema.Bytes(att, "uuid"))
		}
		return out
	case schema.Has(e, "dictionary"):
		return &graph.Dictionary{Elements: dictElements(schema.Msg(e, "dictionary"))}
	case schema.Has(e, "custom_map"):
		cm := schema.Msg(e, "custom_map")
		out := &graph.CustomMap{Type: int(schema.Int(cm, "type"))}
		for _, me := range schema.Msgs(cm, "map_entry") {
			out.Items = append(out.Items, graph.MapItem{
				Key:   int(schema.Int(me, "key")),
				Value: objectRef(schema.Msg(me, "value")),
			})
		}
		return out
	case schema.Has(e, "note"):
		return &graph.NoteEntry{Text: schema.Str(schema.Msg(e, "note"), "note_text")}
	}
	return graph.Unknown{}
}

func dictElements(d protoreflect.Message) []graph.DictElement {
	var out []graph.DictElement
	for _, el := range schema.Msgs(d, "element") {
		out = append(out, graph.DictElement{
			Key:   objectRef(schema.Msg(el, "key")),
			Value: objectRef(schema.Msg(el, "value")),
		})
	}
	return out
}

func objectRef(m protoreflect.Message) graph.ObjectRef {
	switch {
	case schema.Has(m, "object_index"):
		return graph.Index(int(schema.Int(m, "object_index")))
	case schema.Has(m, "unsigned_integer_value"):
		return graph.Uint(schema.Uint(m, "unsigned_integer_value"))
	case schema.Has(m, "string_value"):
		return graph.ObjectRef{Kind: graph.RefString, Str: schema.Str(m, "string_value")}
	}
	return graph.ObjectRef{}
}
