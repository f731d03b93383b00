// Package table holds decoded result sets as struct-of-arrays tables.
//
// A Table is allocated once for its final row count. Its columns are then
// filled in place; nothing in this package grows or shrinks a column.
package table

import (
	"github.com/TFMV/bqdecode/schema"
)

// Table is an ordered set of equally long columns, one per schema field.
type Table struct {
	fields  []*schema.Field
	columns []Column
	rows    int
}

// New allocates a table of n rows for the given fields. n must not be
// negative.
func New(fields []*schema.Field, n int) *Table {
	t := &Table{
		fields:  fields,
		columns: make([]Column, len(fields)),
		rows:    n,
	}
	for j, f := range fields {
		t.columns[j] = NewColumn(f, f.Repeated(), n)
	}
	return t
}

// FromSchema allocates a table of n rows for the top-level fields of s.
func FromSchema(s *schema.Schema, n int) *Table {
	return New(s.Fields(), n)
}

func (t *Table) NumRows() int              { return t.rows }
func (t *Table) NumCols() int              { return len(t.columns) }
func (t *Table) Column(j int) Column       { return t.columns[j] }
func (t *Table) Field(j int) *schema.Field { return t.fields[j] }

// Fields returns a copy of the field list, in column order.
func (t *Table) Fields() []*schema.Field {
	return append([]*schema.Field(nil), t.fields...)
}

// ColumnByName returns the column of the field called name.
func (t *Table) ColumnByName(name string) (Column, bool) {
	for j, f := range t.fields {
		if f.Name() == name {
			return t.columns[j], true
		}
	}
	return nil, false
}

// SetNullRow sets every cell of row i to null, recursing into records.
func (t *Table) SetNullRow(i int) {
	for _, c := range t.columns {
		c.SetNull(i)
	}
}
