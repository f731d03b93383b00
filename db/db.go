// Package db is an in-memory catalog of decoded tables. Tables are kept in
// their columnar form and converted to Arrow records on demand; converted
// records are cached in an LRU.
package db

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TFMV/bqdecode/table"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/golang/groupcache/lru"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------
// Prometheus Metrics
// ---------------------------------------------------------------------

var (
	fetchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "bqdecode_catalog_fetch_latency_seconds",
		Help: "Latency of fetching a catalog table as an Arrow record",
	})
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bqdecode_catalog_cache_hits_total",
		Help: "Arrow record lookups served from the LRU",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bqdecode_catalog_cache_misses_total",
		Help: "Arrow record lookups that required a conversion",
	})
)

func init() {
	prometheus.MustRegister(fetchLatency, cacheHits, cacheMisses)
}

// ErrNotFound is returned for names that are not in the catalog.
var ErrNotFound = errors.New("table not found")

// ---------------------------------------------------------------------
// DB
// ---------------------------------------------------------------------

// DB holds named tables. It is safe for concurrent use; tables must not be
// written to once they are registered.
type DB struct {
	mu     sync.Mutex
	tables map[string]*table.Table
	pinned map[string]arrow.Record
	cache  *lru.Cache
	mem    memory.Allocator
	logger *zap.Logger
}

// NewDB creates a catalog whose LRU holds up to cacheSize converted records.
func NewDB(cacheSize int, mem memory.Allocator, logger *zap.Logger) *DB {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := lru.New(cacheSize)
	cache.OnEvicted = func(key lru.Key, value interface{}) {
		value.(arrow.Record).Release()
	}
	return &DB{
		tables: make(map[string]*table.Table),
		pinned: make(map[string]arrow.Record),
		cache:  cache,
		mem:    mem,
		logger: logger,
	}
}

// Put registers a decoded table under name, replacing any previous entry.
func (db *DB) Put(name string, t *table.Table) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.dropLocked(name)
	db.tables[name] = t
	db.logger.Info("table registered", zap.String("table", name), zap.Int("rows", t.NumRows()))
}

// PutRecord registers an Arrow record, such as one loaded from disk. The
// catalog takes its own reference.
func (db *DB) PutRecord(name string, rec arrow.Record) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.dropLocked(name)
	rec.Retain()
	db.pinned[name] = rec
	db.logger.Info("record registered", zap.String("table", name), zap.Int64("rows", rec.NumRows()))
}

// Table returns the decoded table registered under name.
func (db *DB) Table(name string) (*table.Table, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[name]
	return t, ok
}

// Record returns name as an Arrow record. The caller must Release it.
func (db *DB) Record(name string) (arrow.Record, error) {
	start := time.Now()
	defer func() { fetchLatency.Observe(time.Since(start).Seconds()) }()

	db.mu.Lock()
	defer db.mu.Unlock()

	if rec, ok := db.pinned[name]; ok {
		rec.Retain()
		return rec, nil
	}
	if v, ok := db.cache.Get(name); ok {
		cacheHits.Inc()
		rec := v.(arrow.Record)
		rec.Retain()
		return rec, nil
	}

	t, ok := db.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	cacheMisses.Inc()
	rec, err := table.ToArrow(t, db.mem)
	if err != nil {
		return nil, fmt.Errorf("failed to convert table %q: %w", name, err)
	}
	rec.Retain()
	db.cache.Add(name, rec)
	return rec, nil
}

// Names lists the catalog entries in lexical order.
func (db *DB) Names() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	names := make([]string, 0, len(db.tables)+len(db.pinned))
	for name := range db.tables {
		names = append(names, name)
	}
	for name := range db.pinned {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Drop removes name from the catalog.
func (db *DB) Drop(name string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.dropLocked(name)
}

func (db *DB) dropLocked(name string) {
	delete(db.tables, name)
	db.cache.Remove(name)
	if rec, ok := db.pinned[name]; ok {
		rec.Release()
		delete(db.pinned, name)
	}
}

// Close releases every record held by the catalog.
func (db *DB) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.cache.Clear()
	for name, rec := range db.pinned {
		rec.Release()
		delete(db.pinned, name)
	}
	db.tables = make(map[string]*table.Table)
}
