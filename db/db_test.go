package db

import (
	"testing"

	"github.com/TFMV/bqdecode/schema"
	"github.com/TFMV/bqdecode/table"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(ids ...int64) *table.Table {
	t := table.New([]*schema.Field{schema.NewField("id", schema.Integer, false)}, len(ids))
	col := t.Column(0).(*table.Vector[int64])
	for i, id := range ids {
		col.Set(i, id)
	}
	return t
}

func TestDBRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	db := NewDB(4, mem, nil)
	defer db.Close()

	db.Put("orders", newTable(1, 2, 3))

	rec, err := db.Record("orders")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.NumRows())
	assert.Equal(t, int64(2), rec.Column(0).(*array.Int64).Value(1))
	rec.Release()

	// Second lookup is served from the cache and is the same record.
	again, err := db.Record("orders")
	require.NoError(t, err)
	assert.Equal(t, int64(3), again.NumRows())
	again.Release()

	_, ok := db.Table("orders")
	assert.True(t, ok)
}

func TestDBNotFound(t *testing.T) {
	db := NewDB(1, nil, nil)
	defer db.Close()

	_, err := db.Record("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDBEvictionReleases(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	db := NewDB(1, mem, nil)
	db.Put("a", newTable(1))
	db.Put("b", newTable(2))

	for _, name := range []string{"a", "b", "a"} {
		rec, err := db.Record(name)
		require.NoError(t, err)
		rec.Release()
	}
	db.Close()
}

func TestDBPinnedRecordsAndNames(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	db := NewDB(2, mem, nil)
	rec, err := table.ToArrow(newTable(9), mem)
	require.NoError(t, err)
	db.PutRecord("loaded", rec)
	rec.Release()

	db.Put("decoded", newTable(1))
	assert.Equal(t, []string{"decoded", "loaded"}, db.Names())

	got, err := db.Record("loaded")
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.Column(0).(*array.Int64).Value(0))
	got.Release()

	db.Drop("loaded")
	assert.Equal(t, []string{"decoded"}, db.Names())
	db.Close()
	assert.Empty(t, db.Names())
}
