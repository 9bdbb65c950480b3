// Package notetest encodes synthetic note store bodies for tests: document
// bodies, mergeable data objects and table objects.
package notetest

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/agentic-research/notesmd/internal/graph"
)

// Run describes one attribute run. ID and UTI are set for attachment runs.
type Run struct {
	Length int
	ID     string
	UTI    string
}

func appendMsg(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// Note encodes a Note message.
func Note(text string, runs ...Run) []byte {
	var b []byte
	b = appendString(b, 2, text)
	for _, r := range runs {
		var rb []byte
		rb = appendVarint(rb, 1, uint64(r.Length))
		if r.ID != "" || r.UTI != "" {
			var ai []byte
			ai = appendString(ai, 1, r.ID)
			ai = appendString(ai, 2, r.UTI)
			rb = appendMsg(rb, 12, ai)
		}
		b = appendMsg(b, 5, rb)
	}
	return b
}

// Document encodes a document body: NoteStoreProto{document{version, note}}.
func Document(text string, runs ...Run) []byte {
	var doc []byte
	doc = appendVarint(doc, 2, 1)
	doc = appendMsg(doc, 3, Note(text, runs...))
	return appendMsg(nil, 2, doc)
}

// Gzip compresses b.
func Gzip(t testing.TB, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func objectID(ref graph.ObjectRef) []byte {
	switch ref.Kind {
	case graph.RefIndex:
		return appendVarint(nil, 6, uint64(ref.Index))
	case graph.RefUint:
		return appendVarint(nil, 2, ref.Uint)
	case graph.RefString:
		return appendString(nil, 4, ref.Str)
	}
	return nil
}

func dictionary(elems []graph.DictElement) []byte {
	var b []byte
	for _, el := range elems {
		var eb []byte
		eb = appendMsg(eb, 1, objectID(el.Key))
		eb = appendMsg(eb, 2, objectID(el.Value))
		b = appendMsg(b, 1, eb)
	}
	return b
}

func entry(e graph.Entry) []byte {
	switch v := e.(type) {
	case *graph.NoteEntry:
		return appendMsg(nil, 10, Note(v.Text))
	case *graph.Dictionary:
		return appendMsg(nil, 6, dictionary(v.Elements))
	case *graph.CustomMap:
		var b []byte
		b = appendVarint(b, 1, uint64(v.Type))
		for _, it := range v.Items {
			var mb []byte
			mb = appendVarint(mb, 1, uint64(it.Key))
			mb = appendMsg(mb, 2, objectID(it.Value))
			b = appendMsg(b, 3, mb)
		}
		return appendMsg(nil, 13, b)
	case *graph.OrderedSet:
		var arr []byte
		if v.Text != "" {
			arr = appendMsg(arr, 1, Note(v.Text))
		}
		for i, u := range v.Order {
			var ab []byte
			ab = appendVarint(ab, 1, uint64(i))
			ab = protowire.AppendTag(ab, 2, protowire.BytesType)
			ab = protowire.AppendBytes(ab, u)
			arr = appendMsg(arr, 2, ab)
		}
		var ordering []byte
		ordering = appendMsg(ordering, 1, arr)
		ordering = appendMsg(ordering, 2, dictionary(v.Contents))
		var set []byte
		set = appendMsg(set, 1, ordering)
		set = appendMsg(set, 2, dictionary(v.Elements))
		return appendMsg(nil, 16, set)
	}
	// An entry kind the decoder does not model (register_latest).
	return appendMsg(nil, 1, appendVarint(nil, 1, 1))
}

// Mergeable encodes g as a mergeable data body.
func Mergeable(g *graph.Graph) []byte {
	var data []byte
	for _, e := range g.Entries {
		data = appendMsg(data, 3, entry(e))
	}
	for _, k := range g.KeyNames {
		data = appendString(data, 4, k)
	}
	for _, t := range g.TypeNames {
		data = appendString(data, 5, t)
	}
	for _, u := range g.UUIDs {
		data = protowire.AppendTag(data, 6, protowire.BytesType)
		data = protowire.AppendBytes(data, u)
	}
	var obj []byte
	obj = appendVarint(obj, 2, 1)
	obj = appendMsg(obj, 3, data)
	return appendMsg(nil, 2, obj)
}

// UUID returns a 16-byte UUID filled with b.
func UUID(b byte) []byte {
	return bytes.Repeat([]byte{b}, 16)
}

// Cell places text at (row, col) of a synthetic table.
type Cell struct {
	Row, Col int
	Text     string
}

// Table builds the object graph of a table with the given row and column
// counts. Each axis gets a canonical ordering of fresh UUIDs and an
// ephemeral-id dictionary mapping onto it, the way the notes app stores them.
func Table(rows, cols int, cells ...Cell) *graph.Graph {
	b := graph.NewBuilder()

	axis := func(n int, seed byte) (set int, ids []int) {
		ord := &graph.OrderedSet{}
		for i := 0; i < n; i++ {
			canonical := UUID(seed + byte(2*i))
			ephemeral := UUID(seed + byte(2*i+1))
			ord.Order = append(ord.Order, canonical)
			k := b.BoxUUID(canonical)
			v := b.BoxUUID(ephemeral)
			ord.Contents = append(ord.Contents, graph.DictElement{Key: graph.Index(k), Value: graph.Index(v)})
			ids = append(ids, v)
		}
		return b.Add(ord), ids
	}
	rowSet, rowIDs := axis(rows, 0x10)
	colSet, colIDs := axis(cols, 0x80)

	byCol := map[int][]graph.DictElement{}
	for _, c := range cells {
		text := b.Add(&graph.NoteEntry{Text: c.Text})
		byCol[c.Col] = append(byCol[c.Col], graph.DictElement{Key: graph.Index(rowIDs[c.Row]), Value: graph.Index(text)})
	}
	cellData := &graph.Dictionary{}
	for col := 0; col < cols; col++ {
		if len(byCol[col]) == 0 {
			continue
		}
		colDict := b.Add(&graph.Dictionary{Elements: byCol[col]})
		cellData.Elements = append(cellData.Elements, graph.DictElement{Key: graph.Index(colIDs[col]), Value: graph.Index(colDict)})
	}
	cellsIdx := b.Add(cellData)

	b.Add(&graph.CustomMap{
		Type: b.Type("com.apple.notes.ICTable"),
		Items: []graph.MapItem{
			{Key: b.Key("crRows"), Value: graph.Index(rowSet)},
			{Key: b.Key("crColumns"), Value: graph.Index(colSet)},
			{Key: b.Key("cellColumns"), Value: graph.Index(cellsIdx)},
		},
	})
	return b.Graph()
}
