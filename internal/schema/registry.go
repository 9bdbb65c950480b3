// Package schema holds the static protobuf descriptions of the note store's
// two top-level body shapes and the nested messages they share.
//
// The descriptors are built in code rather than generated: the note store's
// format is undocumented, only a subset of each message is modelled, and
// everything not described here is dropped as an unknown field on decode.
package schema

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Package is the protobuf package the registry's messages live in.
const Package = "notesmd.store"

// Message names.
const (
	// Document bodies: NoteStoreProto -> Document -> Note.
	NoteStoreProto = "NoteStoreProto"
	Document       = "Document"
	Note           = "Note"
	AttributeRun   = "AttributeRun"
	AttachmentInfo = "AttachmentInfo"

	// Mergeable data: the generic object graph used by tables and newer notes.
	MergableDataProto        = "MergableDataProto"
	MergableDataObject       = "MergableDataObject"
	MergableDataObjectData   = "MergableDataObjectData"
	MergeableDataObjectEntry = "MergeableDataObjectEntry"
	ObjectID                 = "ObjectID"
	Dictionary               = "Dictionary"
	DictionaryElement        = "Dictionary.Element"
	MergeableDataObjectMap   = "MergeableDataObjectMap"
	MapEntry                 = "MapEntry"
	OrderedSet               = "OrderedSet"
	OrderedSetOrdering       = "OrderedSetOrdering"
	OrderedSetOrderingArray  = "OrderedSetOrderingArray"
	OrderingAttachment       = "OrderedSetOrderingArrayAttachment"
)

// Registry resolves message names to descriptors.
type Registry struct {
	file protoreflect.FileDescriptor
}

var (
	loadOnce sync.Once
	loaded   *Registry
	loadErr  error
)

// Load returns the process-wide registry, building it on first use.
func Load() (*Registry, error) {
	loadOnce.Do(func() {
		fd, err := protodesc.NewFile(fileProto(), new(protoregistry.Files))
		if err != nil {
			loadErr = fmt.Errorf("build note store descriptors: %w", err)
			return
		}
		loaded = &Registry{file: fd}
	})
	return loaded, loadErr
}

// MustLoad is Load for callers that treat a broken registry as a programming error.
func MustLoad() *Registry {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}

// Descriptor returns the descriptor for a message name such as "Note" or
// "Dictionary.Element", or nil if the registry does not describe it.
func (r *Registry) Descriptor(name string) protoreflect.MessageDescriptor {
	d, err := r.resolve(name)
	if err != nil {
		return nil
	}
	return d
}

func (r *Registry) resolve(name string) (protoreflect.MessageDescriptor, error) {
	full := protoreflect.FullName(Package + "." + name)
	msgs := r.file.Messages()
	for i := 0; i < msgs.Len(); i++ {
		if d := findMessage(msgs.Get(i), full); d != nil {
			return d, nil
		}
	}
	return nil, fmt.Errorf("unknown message %q", name)
}

func findMessage(d protoreflect.MessageDescriptor, full protoreflect.FullName) protoreflect.MessageDescriptor {
	if d.FullName() == full {
		return d
	}
	nested := d.Messages()
	for i := 0; i < nested.Len(); i++ {
		if m := findMessage(nested.Get(i), full); m != nil {
			return m
		}
	}
	return nil
}

// Unmarshal decodes data as the named message. Fields the registry does not
// describe are discarded.
func (r *Registry) Unmarshal(name string, data []byte) (protoreflect.Message, error) {
	d, err := r.resolve(name)
	if err != nil {
		return nil, err
	}
	msg := dynamicpb.NewMessage(d)
	if err := (proto.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return msg, nil
}

// --- descriptor construction ---

type fieldKind int

const (
	kindMessage fieldKind = iota
	kindString
	kindBytes
	kindInt32
	kindUint64
)

type fieldSpec struct {
	name     string
	number   int32
	kind     fieldKind
	repeated bool
	typeName string // message fields only
}

func (f fieldSpec) proto() *descriptorpb.FieldDescriptorProto {
	label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	if f.repeated {
		label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	}
	fdp := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(f.name),
		Number: proto.Int32(f.number),
		Label:  label.Enum(),
	}
	switch f.kind {
	case kindMessage:
		fdp.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
		fdp.TypeName = proto.String("." + Package + "." + f.typeName)
	case kindString:
		fdp.Type = descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()
	case kindBytes:
		fdp.Type = descriptorpb.FieldDescriptorProto_TYPE_BYTES.Enum()
	case kindInt32:
		fdp.Type = descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum()
	case kindUint64:
		fdp.Type = descriptorpb.FieldDescriptorProto_TYPE_UINT64.Enum()
	}
	return fdp
}

func message(name string, fields ...fieldSpec) *descriptorpb.DescriptorProto {
	dp := &descriptorpb.DescriptorProto{Name: proto.String(name)}
	for _, f := range fields {
		dp.Field = append(dp.Field, f.proto())
	}
	return dp
}

func msgField(name string, num int32, typeName string) fieldSpec {
	return fieldSpec{name: name, number: num, kind: kindMessage, typeName: typeName}
}

func repeatedMsg(name string, num int32, typeName string) fieldSpec {
	return fieldSpec{name: name, number: num, kind: kindMessage, typeName: typeName, repeated: true}
}

func fileProto() *descriptorpb.FileDescriptorProto {
	dict := message(Dictionary, repeatedMsg("element", 1, DictionaryElement))
	dict.NestedType = []*descriptorpb.DescriptorProto{
		message("Element",
			msgField("key", 1, ObjectID),
			msgField("value", 2, ObjectID),
		),
	}

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("notesmd/store.proto"),
		Package: proto.String(Package),
		Syntax:  proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{
			// document bodies
			message(NoteStoreProto, msgField("document", 2, Document)),
			message(Document,
				fieldSpec{name: "version", number: 2, kind: kindInt32},
				msgField("note", 3, Note),
			),
			message(Note,
				fieldSpec{name: "note_text", number: 2, kind: kindString},
				repeatedMsg("attribute_run", 5, AttributeRun),
			),
			message(AttributeRun,
				fieldSpec{name: "length", number: 1, kind: kindInt32},
				fieldSpec{name: "link", number: 9, kind: kindString},
				msgField("attachment_info", 12, AttachmentInfo),
			),
			message(AttachmentInfo,
				fieldSpec{name: "attachment_identifier", number: 1, kind: kindString},
				fieldSpec{name: "type_uti", number: 2, kind: kindString},
			),

			// mergeable data
			message(MergableDataProto, msgField("mergable_data_object", 2, MergableDataObject)),
			message(MergableDataObject,
				fieldSpec{name: "version", number: 2, kind: kindInt32},
				msgField("mergeable_data_object_data", 3, MergableDataObjectData),
			),
			message(MergableDataObjectData,
				repeatedMsg("mergeable_data_object_entry", 3, MergeableDataObjectEntry),
				fieldSpec{name: "mergeable_data_object_key_item", number: 4, kind: kindString, repeated: true},
				fieldSpec{name: "mergeable_data_object_type_item", number: 5, kind: kindString, repeated: true},
				fieldSpec{name: "mergeable_data_object_uuid_item", number: 6, kind: kindBytes, repeated: true},
			),
			message(MergeableDataObjectEntry,
				msgField("dictionary", 6, Dictionary),
				msgField("note", 10, Note),
				msgField("custom_map", 13, MergeableDataObjectMap),
				msgField("ordered_set", 16, OrderedSet),
			),
			message(ObjectID,
				fieldSpec{name: "unsigned_integer_value", number: 2, kind: kindUint64},
				fieldSpec{name: "string_value", number: 4, kind: kindString},
				fieldSpec{name: "object_index", number: 6, kind: kindInt32},
			),
			dict,
			message(MergeableDataObjectMap,
				fieldSpec{name: "type", number: 1, kind: kindInt32},
				repeatedMsg("map_entry", 3, MapEntry),
			),
			message(MapEntry,
				fieldSpec{name: "key", number: 1, kind: kindInt32},
				msgField("value", 2, ObjectID),
			),
			message(OrderedSet,
				msgField("ordering", 1, OrderedSetOrdering),
				msgField("elements", 2, Dictionary),
			),
			message(OrderedSetOrdering,
				msgField("array", 1, OrderedSetOrderingArray),
				msgField("contents", 2, Dictionary),
			),
			message(OrderedSetOrderingArray,
				msgField("contents", 1, Note),
				repeatedMsg("attachment", 2, OrderingAttachment),
			),
			message(OrderingAttachment,
				fieldSpec{name: "index", number: 1, kind: kindInt32},
				fieldSpec{name: "uuid", number: 2, kind: kindBytes},
			),
		},
	}
}
