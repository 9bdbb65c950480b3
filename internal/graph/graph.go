// Package graph models the note store's generic "mergeable data" object
// graph: a flat arena of entries that refer to each other, to interned key
// and type names, and to a shared UUID table purely by position.
package graph

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned when a reference points outside the arena.
var ErrIndexOutOfRange = errors.New("object index out of range")

// RefKind identifies what an ObjectRef carries.
type RefKind uint8

const (
	RefNone   RefKind = iota // no value set
	RefIndex                 // position in Graph.Entries
	RefUint                  // unsigned literal
	RefString                // string literal
)

// ObjectRef is a reference to another entry, or a literal value. Which one
// a producer emits depends on its context; see Graph.ResolveUUID.
type ObjectRef struct {
	Kind  RefKind
	Index int
	Uint  uint64
	Str   string
}

// Index returns a reference to the entry at position i.
func Index(i int) ObjectRef { return ObjectRef{Kind: RefIndex, Index: i} }

// Uint returns a reference carrying an unsigned literal.
func Uint(v uint64) ObjectRef { return ObjectRef{Kind: RefUint, Uint: v} }

func (r ObjectRef) String() string {
	switch r.Kind {
	case RefIndex:
		return fmt.Sprintf("@%d", r.Index)
	case RefUint:
		return fmt.Sprintf("%d", r.Uint)
	case RefString:
		return fmt.Sprintf("%q", r.Str)
	default:
		return "<nil>"
	}
}

// Entry is one element of the arena. The concrete type is one of
// *OrderedSet, *Dictionary, *CustomMap, *NoteEntry or Unknown.
type Entry interface {
	entryKind() string
}

// DictElement is one key/value pair of a Dictionary.
type DictElement struct {
	Key   ObjectRef
	Value ObjectRef
}

// MapItem is one entry of a CustomMap. Key indexes Graph.KeyNames.
type MapItem struct {
	Key   int
	Value ObjectRef
}

// OrderedSet is a CRDT ordered collection. Order lists the raw UUIDs of the
// canonical ordering array; Contents maps ephemeral ids to those UUIDs.
type OrderedSet struct {
	Order    [][]byte
	Contents []DictElement
	Elements []DictElement
	Text     string // ordering.array.contents note text, if any
}

// Dictionary is an unordered set of key/value references.
type Dictionary struct {
	Elements []DictElement
}

// CustomMap is a typed record. Type indexes Graph.TypeNames.
type CustomMap struct {
	Type  int
	Items []MapItem
}

// NoteEntry is an embedded note; only its text is kept.
type NoteEntry struct {
	Text string
}

// Unknown stands in for entry kinds the decoder does not model.
type Unknown struct{}

func (*OrderedSet) entryKind() string { return "ordered_set" }
func (*Dictionary) entryKind() string { return "dictionary" }
func (*CustomMap) entryKind() string { return "custom_map" }
func (*NoteEntry) entryKind() string { return "note" }
func (Unknown) entryKind() string { return "unknown" }

// Kind names the variant of e, for diagnostics.
func Kind(e Entry) string {
	if e == nil {
		return "nil"
	}
	return e.entryKind()
}

// Graph is the per-document arena. It is read-only once built.
type Graph struct {
	Entries   []Entry
	KeyNames  []string
	TypeNames []string
	UUIDs     [][]byte
}

// ResolveIndex returns the entry at position i.
func (g *Graph) ResolveIndex(i int) (Entry, error) {
	if i < 0 || i >= len(g.Entries) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, len(g.Entries))
	}
	return g.Entries[i], nil
}

// Deref follows an index reference.
func (g *Graph) Deref(ref ObjectRef) (Entry, error) {
	if ref.Kind != RefIndex {
		return nil, fmt.Errorf("%w: %s is not an entry reference", ErrIndexOutOfRange, ref)
	}
	return g.ResolveIndex(ref.Index)
}

// ResolveUUID maps a reference to a UUID as lowercase hex. UUIDs are never
// stored inline: ref points at a CustomMap whose first item holds an
// unsigned literal, and that literal indexes the graph's UUID table.
// Anything that does not fit that shape resolves to "".
func (g *Graph) ResolveUUID(ref ObjectRef) string {
	e, err := g.Deref(ref)
	if err != nil {
		return ""
	}
	cm, ok := e.(*CustomMap)
	if !ok || len(cm.Items) == 0 {
		return ""
	}
	v := cm.Items[0].Value
	if v.Kind != RefUint || v.Uint >= uint64(len(g.UUIDs)) {
		return ""
	}
	return HexUUID(g.UUIDs[v.Uint])
}

// HexUUID renders a 16-byte UUID as 32 lowercase hex characters, or "" for
// any other length.
func HexUUID(b []byte) string {
	if len(b) != 16 {
		return ""
	}
	return hex.EncodeToString(b)
}

// KeyName returns the interned key name at i, or "".
func (g *Graph) KeyName(i int) string {
	if i < 0 || i >= len(g.KeyNames) {
		return ""
	}
	return g.KeyNames[i]
}

// TypeName returns the interned type name at i, or "".
func (g *Graph) TypeName(i int) string {
	if i < 0 || i >= len(g.TypeNames) {
		return ""
	}
	return g.TypeNames[i]
}

// FindCustomMap returns the first CustomMap whose type name is typeName.
func (g *Graph) FindCustomMap(typeName string) (int, *CustomMap, bool) {
	for i, e := range g.Entries {
		cm, ok := e.(*CustomMap)
		if ok && g.TypeName(cm.Type) == typeName {
			return i, cm, true
		}
	}
	return -1, nil, false
}
