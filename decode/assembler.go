// Package decode turns paginated result documents into columnar tables.
//
// A table is allocated once for the known total row count; each page is then
// written in place at a caller-chosen row offset:
//
//	a := decode.NewAssembler(s)
//	t, err := a.Allocate(total)
//	if err != nil {
//		return err
//	}
//	offset := 0
//	for _, page := range pages {
//		n, err := a.Write(page, t, offset)
//		if err != nil {
//			return err
//		}
//		offset += n
//	}
package decode

import (
	"errors"
	"fmt"
	"time"

	"github.com/TFMV/bqdecode/schema"
	"github.com/TFMV/bqdecode/table"
	"github.com/TFMV/bqdecode/wire"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------
// Prometheus Metrics
// ---------------------------------------------------------------------

var (
	writeLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "bqdecode_write_latency_seconds",
		Help: "Latency of writing one page into a table",
	})
	rowsDecoded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bqdecode_rows_decoded_total",
		Help: "Rows decoded into tables",
	})
	pagesDecoded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bqdecode_pages_decoded_total",
		Help: "Pages written into tables, empty pages included",
	})
)

func init() {
	prometheus.MustRegister(writeLatency, rowsDecoded, pagesDecoded)
}

// ---------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------

type options struct {
	logger *zap.Logger
}

// Option configures an Assembler.
type Option func(*options)

// WithLogger sets the logger used for per-page debug output.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// ---------------------------------------------------------------------
// Assembler
// ---------------------------------------------------------------------

// Assembler writes pages of one result set into a table allocated for it.
// It keeps no cursor; the row offset is always passed in by the caller.
type Assembler struct {
	schema *schema.Schema
	logger *zap.Logger
}

// NewAssembler returns an assembler for tables of schema s.
func NewAssembler(s *schema.Schema, opts ...Option) *Assembler {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Assembler{schema: s, logger: o.logger}
}

// Schema returns the schema the assembler decodes against.
func (a *Assembler) Schema() *schema.Schema { return a.schema }

// Allocate builds a table of totalRows rows, all cells null. A negative
// count is ErrRowRange.
func (a *Assembler) Allocate(totalRows int) (*table.Table, error) {
	if totalRows < 0 {
		return nil, fmt.Errorf("%w: negative total row count %d", ErrRowRange, totalRows)
	}
	return table.FromSchema(a.schema, totalRows), nil
}

// Write decodes the rows of doc into t starting at rowOffset and returns the
// number of rows written. A document without "rows" is an empty page.
func (a *Assembler) Write(doc wire.Node, t *table.Table, rowOffset int) (int, error) {
	start := time.Now()

	rows, err := pageRows(doc)
	if err != nil {
		return 0, err
	}
	if t.NumCols() != a.schema.NumFields() {
		return 0, fmt.Errorf("decode: table has %d columns, schema has %d fields", t.NumCols(), a.schema.NumFields())
	}
	if rowOffset < 0 || rowOffset+len(rows) > t.NumRows() {
		return 0, fmt.Errorf("%w: writing rows [%d, %d) into a table of %d rows",
			ErrRowRange, rowOffset, rowOffset+len(rows), t.NumRows())
	}

	p := a.schema.NumFields()
	for i, row := range rows {
		if err := a.writeRow(row, t, rowOffset+i, p); err != nil {
			var se *StructuralError
			if errors.As(err, &se) {
				se.Row = rowOffset + i
			}
			return 0, err
		}
	}

	writeLatency.Observe(time.Since(start).Seconds())
	rowsDecoded.Add(float64(len(rows)))
	pagesDecoded.Inc()
	a.logger.Debug("page written",
		zap.Int("rows", len(rows)),
		zap.Int("offset", rowOffset),
		zap.Duration("elapsed", time.Since(start)))

	return len(rows), nil
}

func (a *Assembler) writeRow(row wire.Node, t *table.Table, i, p int) error {
	values, err := childValues("rows", p, row)
	if err != nil {
		return err
	}
	for j := 0; j < p; j++ {
		f := a.schema.Field(j)
		v, err := unwrap(f.Path(), values[j])
		if err != nil {
			return err
		}
		if err := decodeCell(f, t.Column(j), i, v); err != nil {
			return err
		}
	}
	return nil
}

// pageRows returns the row array of a page; a missing or null "rows" member
// is an empty page.
func pageRows(doc wire.Node) ([]wire.Node, error) {
	if _, ok := wire.Object(doc); !ok {
		return nil, structural("document", "object", doc)
	}
	node, ok := wire.Member(doc, "rows")
	if !ok || node == nil {
		return nil, nil
	}
	rows, ok := wire.Array(node)
	if !ok {
		return nil, structural("rows", "array", node)
	}
	return rows, nil
}
