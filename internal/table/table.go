// Package table rebuilds the cell grid of an embedded table from its
// mergeable data object graph and renders it as a Markdown pipe table.
package table

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/notesmd/internal/blob"
	"github.com/agentic-research/notesmd/internal/decode"
	"github.com/agentic-research/notesmd/internal/graph"
)

// Names the notes app uses for a table object and its fields.
const (
	TypeName   = "com.apple.notes.ICTable"
	KeyRows    = "crRows"
	KeyColumns = "crColumns"
	KeyCells   = "cellColumns"
)

var (
	// ErrNoTable means the graph holds no table root.
	ErrNoTable = errors.New("no table root in object graph")
	// ErrMalformed means the table root lacks a usable axis or cell map.
	ErrMalformed = errors.New("malformed table object")
)

// Grid is a rows × columns matrix of cell text; "" is an empty cell.
type Grid [][]string

// axis maps ephemeral row or column UUIDs to their final position.
type axis struct {
	locations map[string]int
	count     int
}

func (a *axis) position(uuid string) (int, bool) {
	if a == nil || uuid == "" {
		return 0, false
	}
	i, ok := a.locations[uuid]
	if !ok || i < 0 || i >= a.count {
		return 0, false
	}
	return i, true
}

// FromBlob decompresses and decodes a table's mergeable data blob and
// reconstructs its grid.
func FromBlob(data []byte) (Grid, error) {
	raw, err := blob.Decompress(data)
	if err != nil {
		return nil, err
	}
	g, err := decode.Graph(raw)
	if err != nil {
		return nil, err
	}
	return Reconstruct(g)
}

// Reconstruct locates the table root in g and fills its grid. Cells whose
// row or column cannot be placed, or that carry no text, stay empty.
func Reconstruct(g *graph.Graph) (Grid, error) {
	_, root, ok := g.FindCustomMap(TypeName)
	if !ok {
		return nil, ErrNoTable
	}

	var rows, cols *axis
	var cellData graph.Entry
	for _, item := range root.Items {
		switch g.KeyName(item.Key) {
		case KeyRows:
			rows = orderingAxis(g, item.Value)
		case KeyColumns:
			cols = orderingAxis(g, item.Value)
		case KeyCells:
			cellData, _ = g.Deref(item.Value)
		}
	}
	if rows == nil || cols == nil {
		return nil, fmt.Errorf("%w: missing row or column ordering", ErrMalformed)
	}
	byColumn, ok := cellData.(*graph.Dictionary)
	if !ok {
		return nil, fmt.Errorf("%w: missing cell data", ErrMalformed)
	}

	grid := make(Grid, rows.count)
	for r := range grid {
		grid[r] = make([]string, cols.count)
	}

	for _, colEl := range byColumn.Elements {
		col, ok := cols.position(g.ResolveUUID(colEl.Key))
		if !ok {
			continue
		}
		e, err := g.Deref(colEl.Value)
		if err != nil {
			continue
		}
		byRow, ok := e.(*graph.Dictionary)
		if !ok {
			continue
		}
		for _, rowEl := range byRow.Elements {
			row, ok := rows.position(g.ResolveUUID(rowEl.Key))
			if !ok {
				continue
			}
			grid[row][col] = cellText(g, rowEl.Value)
		}
	}
	return grid, nil
}

// orderingAxis reads an ordered set: the ordering array fixes the canonical
// position of each UUID, and the contents dictionary maps ephemeral UUIDs
// (the values) onto canonical ones (the keys).
func orderingAxis(g *graph.Graph, ref graph.ObjectRef) *axis {
	e, err := g.Deref(ref)
	if err != nil {
		return nil
	}
	set, ok := e.(*graph.OrderedSet)
	if !ok {
		return nil
	}

	canonical := make(map[string]int, len(set.Order))
	for i, u := range set.Order {
		if h := graph.HexUUID(u); h != "" {
			if _, dup := canonical[h]; !dup {
				canonical[h] = i
			}
		}
	}

	a := &axis{locations: make(map[string]int), count: len(set.Order)}
	for _, el := range set.Contents {
		pos, ok := canonical[g.ResolveUUID(el.Key)]
		if !ok {
			continue
		}
		if v := g.ResolveUUID(el.Value); v != "" {
			a.locations[v] = pos
		}
	}
	return a
}

func cellText(g *graph.Graph, ref graph.ObjectRef) string {
	e, err := g.Deref(ref)
	if err != nil {
		return ""
	}
	switch v := e.(type) {
	case *graph.NoteEntry:
		return strings.TrimSpace(v.Text)
	case *graph.OrderedSet:
		return strings.TrimSpace(v.Text)
	}
	return ""
}

// Rows returns the number of rows.
func (gr Grid) Rows() int { return len(gr) }

// Columns returns the number of columns.
func (gr Grid) Columns() int {
	if len(gr) == 0 {
		return 0
	}
	return len(gr[0])
}

// Markdown renders the grid as a pipe table. The separator always follows
// the first row, whether or not that row is a header.
func (gr Grid) Markdown() string {
	if gr.Rows() == 0 || gr.Columns() == 0 {
		return ""
	}
	var b strings.Builder
	for i, row := range gr {
		b.WriteString("|")
		for _, cell := range row {
			b.WriteString(" ")
			b.WriteString(escapeCell(cell))
			b.WriteString(" |")
		}
		b.WriteString("\n")
		if i == 0 {
			b.WriteString("|")
			b.WriteString(strings.Repeat(" -- |", len(row)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", "<br>", "\n", "<br>", "\r", "<br>")

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}
