package decode

import (
	"fmt"

	"github.com/TFMV/bqdecode/schema"
	"github.com/TFMV/bqdecode/table"
	"github.com/TFMV/bqdecode/wire"
	"go.uber.org/zap"
)

// Source supplies one page of a result set.
type Source interface {
	// Name identifies the page in errors and progress reports.
	Name() string
	// Load acquires and parses the page.
	Load() (wire.Node, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc struct {
	ID string
	Fn func() (wire.Node, error)
}

func (s SourceFunc) Name() string             { return s.ID }
func (s SourceFunc) Load() (wire.Node, error) { return s.Fn() }

// DocumentDone is reported once per completed page.
type DocumentDone struct {
	Index  int
	Name   string
	Offset int
	Rows   int
}

// DecodeOne decodes a single page; the table has exactly as many rows as
// the page.
func DecodeOne(schemaDoc, dataDoc wire.Node, opts ...Option) (*table.Table, error) {
	s, err := schema.Parse(schemaDoc)
	if err != nil {
		return nil, err
	}
	rows, err := pageRows(dataDoc)
	if err != nil {
		return nil, err
	}

	a := NewAssembler(s, opts...)
	t, err := a.Allocate(len(rows))
	if err != nil {
		return nil, err
	}
	if _, err := a.Write(dataDoc, t, 0); err != nil {
		return nil, err
	}
	return t, nil
}

// DecodeMany decodes the pages of sources, in order, into one table of
// totalRows rows. Pages are loaded one at a time; onDone, when set, runs
// after each page is written. Any failure aborts the remaining pages and no
// table is returned.
func DecodeMany(schemaDoc wire.Node, sources []Source, totalRows int, onDone func(DocumentDone), opts ...Option) (*table.Table, error) {
	s, err := schema.Parse(schemaDoc)
	if err != nil {
		return nil, err
	}
	a := NewAssembler(s, opts...)
	t, err := a.Allocate(totalRows)
	if err != nil {
		return nil, err
	}

	offset := 0
	for idx, src := range sources {
		doc, err := src.Load()
		if err != nil {
			return nil, &SourceError{Index: idx, Name: src.Name(), Err: err}
		}
		n, err := a.Write(doc, t, offset)
		if err != nil {
			return nil, fmt.Errorf("page %d (%s): %w", idx, src.Name(), err)
		}
		if onDone != nil {
			onDone(DocumentDone{Index: idx, Name: src.Name(), Offset: offset, Rows: n})
		}
		offset += n
	}

	if offset != totalRows {
		a.logger.Warn("pages held fewer rows than allocated",
			zap.Int("allocated", totalRows),
			zap.Int("written", offset))
	}
	return t, nil
}

// DecodeField decodes a single value of f into a one-row column. A nil node
// leaves the cell null.
func DecodeField(f *schema.Field, node wire.Node) (table.Column, error) {
	col := table.NewColumn(f, f.Repeated(), 1)
	if node == nil {
		return col, nil
	}
	if err := decodeCell(f, col, 0, node); err != nil {
		return nil, err
	}
	return col, nil
}
