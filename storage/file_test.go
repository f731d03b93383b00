package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/TFMV/bqdecode/decode"
	"github.com/TFMV/bqdecode/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestFileSourcesDecodeMany(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", `{"schema": {"fields": [{"name": "n", "type": "INTEGER", "mode": "NULLABLE"}]}}`)
	p1 := writeFile(t, dir, "p1.json", `{"rows": [{"f": [{"v": "1"}]}, {"f": [{"v": "2"}]}]}`)
	p2 := writeFile(t, dir, "p2.json", `{"rows": [{"f": [{"v": "3"}]}]}`)

	schemaDoc, err := LoadFile(schemaPath)
	require.NoError(t, err)

	var ticks []string
	tbl, err := decode.DecodeMany(schemaDoc, FileSources(p1, p2), 3, func(d decode.DocumentDone) {
		ticks = append(ticks, d.Name)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{p1, p2}, ticks)
	assert.Equal(t, []int64{1, 2, 3}, tbl.Column(0).(*table.Vector[int64]).Values())
}

func TestFileSourceFailures(t *testing.T) {
	dir := t.TempDir()
	schemaDoc := map[string]any{"schema": map[string]any{"fields": []any{
		map[string]any{"name": "n", "type": "INTEGER"},
	}}}
	broken := writeFile(t, dir, "broken.json", `{"rows": [`)

	for _, path := range []string{broken, filepath.Join(dir, "missing.json")} {
		_, err := decode.DecodeMany(schemaDoc, FileSources(path), 1, nil)
		var se *decode.SourceError
		assert.ErrorAs(t, err, &se, path)
	}
}
