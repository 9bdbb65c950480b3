package schema

import "google.golang.org/protobuf/reflect/protoreflect"

// The accessors below read dynamic messages by field name. A nil message, an
// undescribed field, or an unset field all read as the zero value, so callers
// can chain lookups through optional sub-messages without probing each level.

func field(m protoreflect.Message, name string) protoreflect.FieldDescriptor {
	if m == nil {
		return nil
	}
	return m.Descriptor().Fields().ByName(protoreflect.Name(name))
}

// Has reports whether the named field is populated.
func Has(m protoreflect.Message, name string) bool {
	fd := field(m, name)
	return fd != nil && m.Has(fd)
}

// Msg returns the named sub-message, or nil when unset.
func Msg(m protoreflect.Message, name string) protoreflect.Message {
	fd := field(m, name)
	if fd == nil || fd.Message() == nil || !m.Has(fd) {
		return nil
	}
	return m.Get(fd).Message()
}

// Msgs returns the elements of a repeated message field.
func Msgs(m protoreflect.Message, name string) []protoreflect.Message {
	fd := field(m, name)
	if fd == nil || !fd.IsList() || fd.Message() == nil {
		return nil
	}
	list := m.Get(fd).List()
	out := make([]protoreflect.Message, list.Len())
	for i := range out {
		out[i] = list.Get(i).Message()
	}
	return out
}

// Str returns a string field.
func Str(m protoreflect.Message, name string) string {
	fd := field(m, name)
	if fd == nil || fd.Kind() != protoreflect.StringKind || fd.IsList() {
		return ""
	}
	return m.Get(fd).String()
}

// Strs returns a repeated string field.
func Strs(m protoreflect.Message, name string) []string {
	fd := field(m, name)
	if fd == nil || fd.Kind() != protoreflect.StringKind || !fd.IsList() {
		return nil
	}
	list := m.Get(fd).List()
	out := make([]string, list.Len())
	for i := range out {
		out[i] = list.Get(i).String()
	}
	return out
}

// BytesList returns a repeated bytes field.
func BytesList(m protoreflect.Message, name string) [][]byte {
	fd := field(m, name)
	if fd == nil || fd.Kind() != protoreflect.BytesKind || !fd.IsList() {
		return nil
	}
	list := m.Get(fd).List()
	out := make([][]byte, list.Len())
	for i := range out {
		out[i] = list.Get(i).Bytes()
	}
	return out
}

// Bytes returns a singular bytes field.
func Bytes(m protoreflect.Message, name string) []byte {
	fd := field(m, name)
	if fd == nil || fd.Kind() != protoreflect.BytesKind || fd.IsList() {
		return nil
	}
	return m.Get(fd).Bytes()
}

// Int returns a signed integer field.
func Int(m protoreflect.Message, name string) int64 {
	fd := field(m, name)
	if fd == nil || fd.IsList() || fd.Kind() != protoreflect.Int32Kind {
		return 0
	}
	return m.Get(fd).Int()
}

// Uint returns an unsigned integer field.
func Uint(m protoreflect.Message, name string) uint64 {
	fd := field(m, name)
	if fd == nil || fd.IsList() || fd.Kind() != protoreflect.Uint64Kind {
		return 0
	}
	return m.Get(fd).Uint()
}
