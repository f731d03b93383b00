package table

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/TFMV/bqdecode/schema"
)

// Column is one fixed-length column of a Table.
//
// The concrete types are *Vector[T] for scalars, *ListColumn for repeated
// scalars, *RecordColumn for records and *RepeatedRecordColumn for repeated
// records.
type Column interface {
	// Len is the number of rows; it never changes after allocation.
	Len() int
	// Type is the schema type of the cells.
	Type() schema.Type
	// IsNull reports whether row i holds no data.
	IsNull(i int) bool
	// SetNull resets row i to the null value of the column.
	SetNull(i int)
}

// Scalar lists the Go types that back scalar cells.
type Scalar interface {
	~int64 | ~int32 | ~float64 | ~bool | ~string
}

// ---------------------------------------------------------------------
// Scalar columns
// ---------------------------------------------------------------------

// Vector is a scalar column. Each cell is a value paired with a presence bit;
// the zero value of T is never used as a null marker.
type Vector[T Scalar] struct {
	typ    schema.Type
	values []T
	valid  *roaring.Bitmap
}

// NewVector allocates n null cells of the given type.
func NewVector[T Scalar](typ schema.Type, n int) *Vector[T] {
	return &Vector[T]{
		typ:    typ,
		values: make([]T, n),
		valid:  roaring.New(),
	}
}

func (v *Vector[T]) Len() int          { return len(v.values) }
func (v *Vector[T]) Type() schema.Type { return v.typ }
func (v *Vector[T]) IsNull(i int) bool { return !v.valid.Contains(uint32(i)) }

// Set stores x at row i and marks it present.
func (v *Vector[T]) Set(i int, x T) {
	v.values[i] = x
	v.valid.Add(uint32(i))
}

func (v *Vector[T]) SetNull(i int) {
	var zero T
	v.values[i] = zero
	v.valid.Remove(uint32(i))
}

// Value returns the cell at row i and whether it is present.
func (v *Vector[T]) Value(i int) (T, bool) {
	return v.values[i], v.valid.Contains(uint32(i))
}

// NullCount is the number of null cells.
func (v *Vector[T]) NullCount() int {
	return len(v.values) - int(v.valid.GetCardinality())
}

// Values returns the backing slice. Null cells hold the zero value of T.
func (v *Vector[T]) Values() []T { return v.values }

// ---------------------------------------------------------------------
// Repeated scalar columns
// ---------------------------------------------------------------------

// ListColumn holds, per row, an independently sized scalar vector.
type ListColumn struct {
	field *schema.Field
	rows  []Column
}

func (c *ListColumn) Len() int          { return len(c.rows) }
func (c *ListColumn) Type() schema.Type { return c.field.Type() }
func (c *ListColumn) IsNull(i int) bool { return c.rows[i] == nil }
func (c *ListColumn) SetNull(i int)     { c.rows[i] = nil }

// Row returns the elements of row i, or nil if the row was never written.
func (c *ListColumn) Row(i int) Column { return c.rows[i] }

// SetRow stores the elements of row i.
func (c *ListColumn) SetRow(i int, elems Column) { c.rows[i] = elems }

// ---------------------------------------------------------------------
// Record columns
// ---------------------------------------------------------------------

// RecordColumn holds one single-row nested table per row.
type RecordColumn struct {
	field *schema.Field
	rows  []*Table
}

func (c *RecordColumn) Len() int          { return len(c.rows) }
func (c *RecordColumn) Type() schema.Type { return schema.Record }

// IsNull reports whether every child cell of row i is null.
func (c *RecordColumn) IsNull(i int) bool {
	t := c.rows[i]
	for j := range t.columns {
		if !t.columns[j].IsNull(0) {
			return false
		}
	}
	return true
}

func (c *RecordColumn) SetNull(i int) { c.rows[i].SetNullRow(0) }

// Row returns the nested one-row table of row i.
func (c *RecordColumn) Row(i int) *Table { return c.rows[i] }

// RepeatedRecordColumn holds one independently sized nested table per row.
type RepeatedRecordColumn struct {
	field *schema.Field
	rows  []*Table
}

func (c *RepeatedRecordColumn) Len() int          { return len(c.rows) }
func (c *RepeatedRecordColumn) Type() schema.Type { return schema.Record }
func (c *RepeatedRecordColumn) IsNull(i int) bool { return c.rows[i] == nil }
func (c *RepeatedRecordColumn) SetNull(i int)     { c.rows[i] = nil }

// Row returns the nested table of row i. A row that was never written reads
// as an empty table.
func (c *RepeatedRecordColumn) Row(i int) *Table {
	if c.rows[i] == nil {
		return New(c.field.Fields(), 0)
	}
	return c.rows[i]
}

// SetRow stores the nested table of row i.
func (c *RepeatedRecordColumn) SetRow(i int, t *Table) { c.rows[i] = t }

// ---------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------

// NewColumn allocates the storage for n rows of field f. When repeated is
// false the field is treated as singular even if f itself is repeated; the
// decoder uses that to build the element vector of one repeated cell.
func NewColumn(f *schema.Field, repeated bool, n int) Column {
	if repeated {
		if f.Type() == schema.Record {
			return &RepeatedRecordColumn{field: f, rows: make([]*Table, n)}
		}
		return &ListColumn{field: f, rows: make([]Column, n)}
	}

	switch f.Type() {
	case schema.Integer:
		return NewVector[int64](f.Type(), n)
	case schema.Float, schema.Timestamp, schema.Time, schema.DateTime:
		return NewVector[float64](f.Type(), n)
	case schema.Boolean:
		return NewVector[bool](f.Type(), n)
	case schema.String:
		return NewVector[string](f.Type(), n)
	case schema.Date:
		return NewVector[int32](f.Type(), n)
	case schema.Record:
		c := &RecordColumn{field: f, rows: make([]*Table, n)}
		children := f.Fields()
		for i := range c.rows {
			c.rows[i] = New(children, 1)
		}
		return c
	}
	panic(fmt.Sprintf("table: no column layout for %s", f.Type()))
}
