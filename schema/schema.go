// Package schema models the field descriptors that accompany a result set.
//
// A Schema is built once from the schema document and never mutated. Every
// later stage (column allocation, value decoding, Arrow export) reads it.
package schema

import (
	"errors"
	"fmt"

	"github.com/TFMV/bqdecode/wire"
)

// ---------------------------------------------------------------------
// Field Types
// ---------------------------------------------------------------------

// Type is the closed set of field kinds understood by the decoder.
type Type int

const (
	Integer Type = iota
	Float
	Boolean
	String
	Timestamp
	Time
	Date
	DateTime
	Record
)

var typeNames = map[string]Type{
	"INTEGER":   Integer,
	"FLOAT":     Float,
	"BOOLEAN":   Boolean,
	"STRING":    String,
	"TIMESTAMP": Timestamp,
	"TIME":      Time,
	"DATE":      Date,
	"DATETIME":  DateTime,
	"RECORD":    Record,
}

// String returns the wire spelling of t.
func (t Type) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Float:
		return "FLOAT"
	case Boolean:
		return "BOOLEAN"
	case String:
		return "STRING"
	case Timestamp:
		return "TIMESTAMP"
	case Time:
		return "TIME"
	case Date:
		return "DATE"
	case DateTime:
		return "DATETIME"
	case Record:
		return "RECORD"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType maps a wire type name onto a Type.
func ParseType(s string) (Type, error) {
	t, ok := typeNames[s]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownType, s)
	}
	return t, nil
}

// ---------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------

var (
	// ErrUnknownType is reported for a type string outside the closed set.
	ErrUnknownType = errors.New("unknown field type")
	// ErrMalformed is reported when the schema document lacks a required member.
	ErrMalformed = errors.New("malformed schema")
)

// Error describes why a schema document was rejected.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: %v", e.Err)
	}
	return fmt.Sprintf("schema: field %q: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------
// Field and Schema
// ---------------------------------------------------------------------

// Field describes one column, and for records, its children.
type Field struct {
	name     string
	path     string
	typ      Type
	repeated bool
	fields   []*Field
}

// NewField builds a field by hand. Children only matter for Record fields.
func NewField(name string, typ Type, repeated bool, children ...*Field) *Field {
	f := &Field{name: name, typ: typ, repeated: repeated}
	f.fields = make([]*Field, len(children))
	for j, c := range children {
		f.fields[j] = c.under(name)
	}
	f.path = name
	return f
}

// under returns a copy of f (and its subtree) rooted beneath parent.
func (f *Field) under(parent string) *Field {
	c := &Field{
		name:     f.name,
		path:     parent + "." + f.name,
		typ:      f.typ,
		repeated: f.repeated,
		fields:   make([]*Field, len(f.fields)),
	}
	for j, child := range f.fields {
		c.fields[j] = child.under(c.path)
	}
	return c
}

// Name is the field name as given in the schema document.
func (f *Field) Name() string { return f.name }

// Type is the column type of f.
func (f *Field) Type() Type { return f.typ }

// Repeated reports whether f holds an array per row.
func (f *Field) Repeated() bool { return f.repeated }

// Path is the dotted name of f from the top-level field down.
func (f *Field) Path() string { return f.path }

// NumFields is the number of children of f.
func (f *Field) NumFields() int { return len(f.fields) }

// Field returns the j-th child of f.
func (f *Field) Field(j int) *Field { return f.fields[j] }

// Fields returns a copy of the children of f.
func (f *Field) Fields() []*Field { return append([]*Field(nil), f.fields...) }

// Schema is the ordered list of top-level fields of a result set.
type Schema struct {
	fields []*Field
}

// New wraps already built top-level fields.
func New(fields ...*Field) *Schema {
	return &Schema{fields: append([]*Field(nil), fields...)}
}

// NumFields is the number of top-level fields.
func (s *Schema) NumFields() int { return len(s.fields) }

// Field returns the j-th top-level field.
func (s *Schema) Field(j int) *Field { return s.fields[j] }

// Fields returns a copy of the top-level fields.
func (s *Schema) Fields() []*Field { return append([]*Field(nil), s.fields...) }

// FieldIndex returns the position of the top-level field called name, or -1.
func (s *Schema) FieldIndex(name string) int {
	for j, f := range s.fields {
		if f.name == name {
			return j
		}
	}
	return -1
}

// ---------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------

// Parse reads a schema document of the form {"schema": {"fields": [...]}}.
func Parse(doc wire.Node) (*Schema, error) {
	meta, ok := wire.Member(doc, "schema")
	if !ok {
		return nil, &Error{Err: fmt.Errorf("%w: missing \"schema\" member", ErrMalformed)}
	}
	node, ok := wire.Member(meta, "fields")
	if !ok {
		return nil, &Error{Err: fmt.Errorf("%w: missing \"schema.fields\" member", ErrMalformed)}
	}
	fields, err := ParseFields(node)
	if err != nil {
		return nil, err
	}
	return &Schema{fields: fields}, nil
}

// ParseFields reads an array of field descriptors.
func ParseFields(node wire.Node) ([]*Field, error) {
	return parseFields(node, "")
}

// ParseField reads a single field descriptor.
func ParseField(node wire.Node) (*Field, error) {
	return parseField(node, "")
}

func parseFields(node wire.Node, parent string) ([]*Field, error) {
	items, ok := wire.Array(node)
	if !ok {
		return nil, &Error{Field: parent, Err: fmt.Errorf("%w: fields is %s, not an array", ErrMalformed, wire.Kind(node))}
	}
	fields := make([]*Field, 0, len(items))
	for _, item := range items {
		f, err := parseField(item, parent)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseField(node wire.Node, parent string) (*Field, error) {
	name, ok := memberText(node, "name")
	if !ok {
		return nil, &Error{Field: parent, Err: fmt.Errorf("%w: field without a name", ErrMalformed)}
	}
	path := name
	if parent != "" {
		path = parent + "." + name
	}

	typeName, ok := memberText(node, "type")
	if !ok {
		return nil, &Error{Field: path, Err: fmt.Errorf("%w: field without a type", ErrMalformed)}
	}
	typ, err := ParseType(typeName)
	if err != nil {
		return nil, &Error{Field: path, Err: err}
	}

	mode, _ := memberText(node, "mode")
	f := &Field{
		name:     name,
		path:     path,
		typ:      typ,
		repeated: mode == "REPEATED",
	}

	// Children are accepted on any type; only records read them.
	if children, ok := wire.Member(node, "fields"); ok {
		f.fields, err = parseFields(children, path)
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

func memberText(node wire.Node, key string) (string, bool) {
	v, ok := wire.Member(node, key)
	if !ok {
		return "", false
	}
	return wire.Text(v)
}
