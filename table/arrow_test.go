package table

import (
	"testing"

	"github.com/TFMV/bqdecode/schema"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrowSchema(t *testing.T) {
	s := ArrowSchema(testFields())
	require.Equal(t, 11, s.NumFields())

	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, s.Field(0).Type))
	assert.True(t, arrow.TypeEqual(TimestampType, s.Field(4).Type))
	assert.True(t, arrow.TypeEqual(arrow.FixedWidthTypes.Time64us, s.Field(5).Type))
	assert.True(t, arrow.TypeEqual(arrow.FixedWidthTypes.Date32, s.Field(6).Type))
	assert.True(t, arrow.TypeEqual(DateTimeType, s.Field(7).Type))
	assert.True(t, arrow.TypeEqual(arrow.ListOf(arrow.BinaryTypes.String), s.Field(8).Type))

	addr, ok := s.Field(9).Type.(*arrow.StructType)
	require.True(t, ok)
	assert.Equal(t, "city", addr.Field(0).Name)
	assert.True(t, arrow.TypeEqual(arrow.ListOf(arrow.PrimitiveTypes.Int64), addr.Field(1).Type))

	items, ok := s.Field(10).Type.(*arrow.ListType)
	require.True(t, ok)
	assert.Equal(t, arrow.STRUCT, items.Elem().ID())
}

func TestToArrow(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tbl := New(testFields(), 2)
	tbl.Column(0).(*Vector[int64]).Set(0, 7)
	tbl.Column(4).(*Vector[float64]).Set(0, 1577836800.5)
	tbl.Column(5).(*Vector[float64]).Set(0, 45045.5)
	tbl.Column(6).(*Vector[int32]).Set(0, 18262)

	tags := NewVector[string](schema.String, 2)
	tags.Set(0, "a")
	tags.Set(1, "b")
	tbl.Column(8).(*ListColumn).SetRow(0, tags)

	addr := tbl.Column(9).(*RecordColumn).Row(0)
	addr.Column(0).(*Vector[string]).Set(0, "Oslo")

	items := New(tbl.Field(10).Fields(), 2)
	items.Column(0).(*Vector[string]).Set(1, "sku-2")
	tbl.Column(10).(*RepeatedRecordColumn).SetRow(0, items)

	rec, err := ToArrow(tbl, mem)
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, int64(11), rec.NumCols())

	ids := rec.Column(0).(*array.Int64)
	assert.Equal(t, int64(7), ids.Value(0))
	assert.True(t, ids.IsNull(1))

	ts := rec.Column(4).(*array.Timestamp)
	assert.Equal(t, arrow.Timestamp(1577836800500000), ts.Value(0))

	clock := rec.Column(5).(*array.Time64)
	assert.Equal(t, arrow.Time64(45045500000), clock.Value(0))

	day := rec.Column(6).(*array.Date32)
	assert.Equal(t, arrow.Date32(18262), day.Value(0))

	list := rec.Column(8).(*array.List)
	assert.False(t, list.IsNull(0))
	assert.True(t, list.IsNull(1), "unwritten list rows are null")
	start, end := list.ValueOffsets(0)
	assert.Equal(t, int64(2), end-start)
	assert.Equal(t, "b", list.ListValues().(*array.String).Value(1))

	st := rec.Column(9).(*array.Struct)
	assert.Equal(t, "Oslo", st.Field(0).(*array.String).Value(0))
	assert.True(t, st.Field(0).IsNull(1))

	rr := rec.Column(10).(*array.List)
	start, end = rr.ValueOffsets(0)
	assert.Equal(t, int64(2), end-start)
	elems := rr.ListValues().(*array.Struct)
	assert.True(t, elems.Field(0).IsNull(0))
	assert.Equal(t, "sku-2", elems.Field(0).(*array.String).Value(1))
	assert.True(t, rr.IsNull(1))
}
