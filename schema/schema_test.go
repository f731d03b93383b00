package schema

import (
	"errors"
	"testing"

	"github.com/TFMV/bqdecode/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, s string) wire.Node {
	t.Helper()
	doc, err := wire.DecodeBytes([]byte(s))
	require.NoError(t, err)
	return doc
}

func TestParse(t *testing.T) {
	doc := mustDoc(t, `{"schema": {"fields": [
		{"name": "id", "type": "INTEGER", "mode": "NULLABLE"},
		{"name": "tags", "type": "STRING", "mode": "REPEATED"},
		{"name": "address", "type": "RECORD", "mode": "NULLABLE", "fields": [
			{"name": "city", "type": "STRING", "mode": "NULLABLE"},
			{"name": "zips", "type": "INTEGER", "mode": "REPEATED"}
		]},
		{"name": "seen", "type": "TIMESTAMP"}
	]}}`)

	s, err := Parse(doc)
	require.NoError(t, err)
	require.Equal(t, 4, s.NumFields())

	assert.Equal(t, "id", s.Field(0).Name())
	assert.Equal(t, Integer, s.Field(0).Type())
	assert.False(t, s.Field(0).Repeated())

	assert.True(t, s.Field(1).Repeated())
	assert.Equal(t, String, s.Field(1).Type())

	addr := s.Field(2)
	assert.Equal(t, Record, addr.Type())
	require.Equal(t, 2, addr.NumFields())
	assert.Equal(t, "city", addr.Field(0).Name())
	assert.Equal(t, "address.zips", addr.Field(1).Path())
	assert.True(t, addr.Field(1).Repeated())

	// A missing mode is not repeated.
	assert.False(t, s.Field(3).Repeated())
	assert.Equal(t, 3, s.FieldIndex("seen"))
	assert.Equal(t, -1, s.FieldIndex("nope"))
}

func TestParseUnknownType(t *testing.T) {
	doc := mustDoc(t, `{"schema": {"fields": [
		{"name": "ok", "type": "STRING", "mode": "NULLABLE"},
		{"name": "r", "type": "RECORD", "fields": [
			{"name": "geo", "type": "GEOGRAPHY", "mode": "NULLABLE"}
		]}
	]}}`)

	s, err := Parse(doc)
	assert.Nil(t, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownType))

	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "r.geo", serr.Field)
}

func TestParseMalformed(t *testing.T) {
	cases := map[string]string{
		"no schema":       `{"fields": []}`,
		"no fields":       `{"schema": {}}`,
		"fields object":   `{"schema": {"fields": {}}}`,
		"missing name":    `{"schema": {"fields": [{"type": "STRING"}]}}`,
		"missing type":    `{"schema": {"fields": [{"name": "x"}]}}`,
		"non-text type":   `{"schema": {"fields": [{"name": "x", "type": 3}]}}`,
		"children object": `{"schema": {"fields": [{"name": "x", "type": "RECORD", "fields": {}}]}}`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(mustDoc(t, src))
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestChildrenOnScalarAreKept(t *testing.T) {
	f, err := ParseField(mustDoc(t, `{"name": "x", "type": "STRING", "fields": [
		{"name": "y", "type": "INTEGER"}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, String, f.Type())
	assert.Equal(t, 1, f.NumFields())
}

func TestParseTypeRoundTrip(t *testing.T) {
	for _, typ := range []Type{Integer, Float, Boolean, String, Timestamp, Time, Date, DateTime, Record} {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseType("integer")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestNewFieldPaths(t *testing.T) {
	f := NewField("outer", Record, false,
		NewField("inner", Record, true,
			NewField("leaf", Integer, false)))
	assert.Equal(t, "outer", f.Path())
	assert.Equal(t, "outer.inner", f.Field(0).Path())
	assert.Equal(t, "outer.inner.leaf", f.Field(0).Field(0).Path())
}
