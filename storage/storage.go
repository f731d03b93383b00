// Package storage moves decoded data in and out of the process: JSON pages
// from local files or GCS, and catalog tables to and from Arrow IPC files.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/TFMV/bqdecode/db"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Extension is the file suffix used for Arrow IPC files written by Backup.
const Extension = ".arrow"

// Storage wraps a catalog to provide Save/Load functionality.
type Storage struct {
	db  *db.DB
	mem memory.Allocator
}

// NewStorage creates a new Storage instance for the given catalog.
func NewStorage(catalog *db.DB, mem memory.Allocator) *Storage {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Storage{db: catalog, mem: mem}
}

// SaveToDisk writes the catalog table name to path in the Arrow IPC file
// format.
func (s *Storage) SaveToDisk(name, path string) error {
	rec, err := s.db.Record(name)
	if err != nil {
		return err
	}
	defer rec.Release()
	return WriteRecord(path, rec, s.mem)
}

// LoadFromDisk reads an Arrow IPC file and registers its contents under
// name. Multiple record batches are concatenated into one record.
func (s *Storage) LoadFromDisk(name, path string) error {
	rec, err := ReadRecord(path, s.mem)
	if err != nil {
		return err
	}
	defer rec.Release()
	s.db.PutRecord(name, rec)
	return nil
}

// Backup saves every catalog table into dir as <name>.arrow.
func (s *Storage) Backup(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory %q: %w", dir, err)
	}
	for _, name := range s.db.Names() {
		if err := s.SaveToDisk(name, filepath.Join(dir, name+Extension)); err != nil {
			return fmt.Errorf("failed to back up table %q: %w", name, err)
		}
	}
	return nil
}

// Restore loads every .arrow file of dir, named after the file.
func (s *Storage) Restore(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+Extension))
	if err != nil {
		return fmt.Errorf("failed to list %q: %w", dir, err)
	}
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), Extension)
		if err := s.LoadFromDisk(name, path); err != nil {
			return fmt.Errorf("failed to restore table %q: %w", name, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// Arrow IPC files
// ---------------------------------------------------------------------

// WriteRecord writes rec to path as an Arrow IPC file.
func WriteRecord(path string, rec arrow.Record, mem memory.Allocator) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %q: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	writer, err := ipc.NewFileWriter(
		file,
		ipc.WithSchema(rec.Schema()),
		ipc.WithAllocator(mem),
	)
	if err != nil {
		return fmt.Errorf("failed to create Arrow file writer: %w", err)
	}
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write record to Arrow file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish Arrow file: %w", err)
	}
	return file.Sync()
}

// ReadRecord reads every batch of an Arrow IPC file into a single record.
// The caller must Release it.
func ReadRecord(path string, mem memory.Allocator) (arrow.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	reader, err := ipc.NewFileReader(file, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow file reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	batches := make([]arrow.Record, 0, reader.NumRecords())
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()
	for i := 0; i < reader.NumRecords(); i++ {
		rec, err := reader.RecordAt(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d from file: %w", i, err)
		}
		batches = append(batches, rec)
	}
	return concatRecords(reader.Schema(), batches, mem)
}

func concatRecords(schema *arrow.Schema, batches []arrow.Record, mem memory.Allocator) (arrow.Record, error) {
	if len(batches) == 1 {
		batches[0].Retain()
		return batches[0], nil
	}

	var rows int64
	for _, b := range batches {
		rows += b.NumRows()
	}
	cols := make([]arrow.Array, schema.NumFields())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	for j := range cols {
		parts := make([]arrow.Array, len(batches))
		for k, b := range batches {
			parts[k] = b.Column(j)
		}
		if len(parts) == 0 {
			cols[j] = array.MakeArrayOfNull(mem, schema.Field(j).Type, 0)
			continue
		}
		col, err := array.Concatenate(parts, mem)
		if err != nil {
			return nil, fmt.Errorf("failed to concatenate column %q: %w", schema.Field(j).Name, err)
		}
		cols[j] = col
	}
	return array.NewRecord(schema, cols, rows), nil
}
