package graph

// Builder appends entries to an arena and interns key, type and UUID
// values, returning the integer handles entries refer to each other by.
// It is used by tests and tools that need to synthesize a graph.
type Builder struct {
	g     Graph
	keys  map[string]int
	types map[string]int
}

func NewBuilder() *Builder {
	return &Builder{
		keys:  make(map[string]int),
		types: make(map[string]int),
	}
}

// Add appends e and returns its index.
func (b *Builder) Add(e Entry) int {
	b.g.Entries = append(b.g.Entries, e)
	return len(b.g.Entries) - 1
}

// Key interns a key name.
func (b *Builder) Key(name string) int {
	if i, ok := b.keys[name]; ok {
		return i
	}
	b.g.KeyNames = append(b.g.KeyNames, name)
	b.keys[name] = len(b.g.KeyNames) - 1
	return b.keys[name]
}

// Type interns a type name.
func (b *Builder) Type(name string) int {
	if i, ok := b.types[name]; ok {
		return i
	}
	b.g.TypeNames = append(b.g.TypeNames, name)
	b.types[name] = len(b.g.TypeNames) - 1
	return b.types[name]
}

// BoxUUID appends uuid to the UUID table and adds the CustomMap that boxes
// its table position, returning the index of that CustomMap. This is the
// only way the format refers to a UUID from a reference.
func (b *Builder) BoxUUID(uuid []byte) int {
	b.g.UUIDs = append(b.g.UUIDs, uuid)
	pos := uint64(len(b.g.UUIDs) - 1)
	return b.Add(&CustomMap{
		Type:  b.Type("com.apple.CRDT.NSUUID"),
		Items: []MapItem{{Key: b.Key("UUIDIndex"), Value: Uint(pos)}},
	})
}

// Graph returns the built arena.
func (b *Builder) Graph() *Graph {
	g := b.g
	return &g
}
