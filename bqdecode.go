// Package bqdecode decodes BigQuery JSON query results into typed columnar
// tables.
//
// Parse handles a result held in memory, ParseFiles one spread over page
// files on disk and ParseField a single value. The packages underneath
// expose the pieces: schema for field definitions, table for the decoded
// columns, decode for page assembly and storage for page sources and Arrow
// persistence.
package bqdecode

import (
	"github.com/TFMV/bqdecode/decode"
	"github.com/TFMV/bqdecode/schema"
	"github.com/TFMV/bqdecode/storage"
	"github.com/TFMV/bqdecode/table"
	"github.com/TFMV/bqdecode/wire"
)

// Parse decodes the result page data using the table schema document meta.
func Parse(meta, data []byte, opts ...decode.Option) (*table.Table, error) {
	schemaDoc, err := wire.DecodeBytes(meta)
	if err != nil {
		return nil, err
	}
	dataDoc, err := wire.DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	return decode.DecodeOne(schemaDoc, dataDoc, opts...)
}

// ParseFiles decodes the page files paths, in order, into a table of n rows.
// onDone may be nil.
func ParseFiles(schemaPath string, paths []string, n int, onDone func(decode.DocumentDone), opts ...decode.Option) (*table.Table, error) {
	schemaDoc, err := storage.LoadFile(schemaPath)
	if err != nil {
		return nil, err
	}
	return decode.DecodeMany(schemaDoc, storage.FileSources(paths...), n, onDone, opts...)
}

// ParseField decodes one field definition and, when value is not empty, one
// value of it into a single-row column.
func ParseField(field, value []byte) (table.Column, error) {
	fieldDoc, err := wire.DecodeBytes(field)
	if err != nil {
		return nil, err
	}
	f, err := schema.ParseField(fieldDoc)
	if err != nil {
		return nil, err
	}
	var node wire.Node
	if len(value) > 0 {
		if node, err = wire.DecodeBytes(value); err != nil {
			return nil, err
		}
	}
	return decode.DecodeField(f, node)
}
