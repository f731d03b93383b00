package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TFMV/bqdecode/config"
	"github.com/TFMV/bqdecode/db"
	"github.com/TFMV/bqdecode/decode"
	"github.com/TFMV/bqdecode/flight"
	"github.com/TFMV/bqdecode/storage"
	"github.com/TFMV/bqdecode/table"
	"github.com/TFMV/bqdecode/wire"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/docopt/docopt.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const usage = `bqdecode: decode BigQuery JSON result pages into columnar tables.

Usage:
  bqdecode parse <schema> <page>... [--rows=<n>] [--out=<file>] [--config=<file>] [--quiet]
  bqdecode gcs <schema> <bucket> <prefix> --rows=<n> [--out=<file>] [--config=<file>] [--quiet]
  bqdecode serve <schema> <page>... [--rows=<n>] [--name=<table>] [--config=<file>]
  bqdecode (-h | --help)
  bqdecode --version

Options:
  -h --help        Show this screen.
  --version        Show version.
  --rows=<n>       Total rows across all pages. Counted from the pages when omitted.
  --out=<file>     Write the decoded table as an Arrow IPC file.
  --config=<file>  YAML configuration file.
  --quiet          Do not report per-page progress.
  --name=<table>   Name the table is served under [default: results].
`

func main() {
	arguments, err := docopt.ParseArgs(usage, nil, "bqdecode 1.0.0")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	configPath, _ := arguments.String("--config")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.Log.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case isSet(arguments, "parse"):
		err = runParse(arguments, logger)
	case isSet(arguments, "gcs"):
		err = runGCS(ctx, arguments, cfg, logger)
	case isSet(arguments, "serve"):
		err = runServe(ctx, arguments, cfg, logger)
	}
	if err != nil {
		logger.Error("bqdecode failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func isSet(arguments docopt.Opts, key string) bool {
	v, _ := arguments.Bool(key)
	return v
}

// ---------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------

func runParse(arguments docopt.Opts, logger *zap.Logger) error {
	tbl, err := decodeFiles(arguments, logger)
	if err != nil {
		return err
	}
	return finish(arguments, tbl, logger)
}

func runGCS(ctx context.Context, arguments docopt.Opts, cfg config.Config, logger *zap.Logger) error {
	schemaPath, _ := arguments.String("<schema>")
	bucket, _ := arguments.String("<bucket>")
	prefix, _ := arguments.String("<prefix>")
	rows, err := arguments.Int("--rows")
	if err != nil {
		return fmt.Errorf("invalid --rows: %w", err)
	}

	schemaDoc, err := storage.LoadFile(schemaPath)
	if err != nil {
		return err
	}
	gcs, err := storage.DialGCS(ctx, cfg.GCS.Options(), logger)
	if err != nil {
		return err
	}
	defer gcs.Close()

	sources, err := gcs.Sources(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	tbl, err := decode.DecodeMany(schemaDoc, sources, rows, progress(arguments, len(sources), logger), decode.WithLogger(logger))
	if err != nil {
		return err
	}
	return finish(arguments, tbl, logger)
}

func runServe(ctx context.Context, arguments docopt.Opts, cfg config.Config, logger *zap.Logger) error {
	tbl, err := decodeFiles(arguments, logger)
	if err != nil {
		return err
	}
	name, _ := arguments.String("--name")

	mem := memory.NewGoAllocator()
	catalog := db.NewDB(cfg.Catalog.CacheSize, mem, logger)
	defer catalog.Close()
	catalog.Put(name, tbl)

	srv, err := flight.Serve(cfg.Flight.Addr, flight.NewService(catalog, mem, logger))
	if err != nil {
		return fmt.Errorf("failed to start flight server: %w", err)
	}
	defer srv.Shutdown()

	var metrics *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metrics = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("Serving decoded table",
		zap.String("table", name),
		zap.Int("rows", tbl.NumRows()),
		zap.String("flight_addr", srv.Addr().String()),
		zap.String("metrics_addr", cfg.Metrics.Addr))

	<-ctx.Done()
	logger.Info("Received OS signal, shutting down")

	if metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------

func decodeFiles(arguments docopt.Opts, logger *zap.Logger) (*table.Table, error) {
	schemaPath, _ := arguments.String("<schema>")
	pages, _ := arguments["<page>"].([]string)

	schemaDoc, err := storage.LoadFile(schemaPath)
	if err != nil {
		return nil, err
	}

	var rows int
	if arguments["--rows"] != nil {
		if rows, err = arguments.Int("--rows"); err != nil {
			return nil, fmt.Errorf("invalid --rows: %w", err)
		}
	} else if rows, err = countRows(pages); err != nil {
		return nil, err
	}

	return decode.DecodeMany(schemaDoc, storage.FileSources(pages...), rows,
		progress(arguments, len(pages), logger), decode.WithLogger(logger))
}

// countRows reads every page once to size the table.
func countRows(paths []string) (int, error) {
	total := 0
	for _, path := range paths {
		doc, err := storage.LoadFile(path)
		if err != nil {
			return 0, err
		}
		rows, _ := wire.Member(doc, "rows")
		items, _ := wire.Array(rows)
		total += len(items)
	}
	return total, nil
}

func progress(arguments docopt.Opts, pages int, logger *zap.Logger) func(decode.DocumentDone) {
	if isSet(arguments, "--quiet") {
		return nil
	}
	return func(d decode.DocumentDone) {
		logger.Info("Parsed page",
			zap.String("page", d.Name),
			zap.Int("done", d.Index+1),
			zap.Int("total", pages),
			zap.Int("rows", d.Rows))
	}
}

func finish(arguments docopt.Opts, tbl *table.Table, logger *zap.Logger) error {
	logger.Info("Decoded table", zap.Int("rows", tbl.NumRows()), zap.Int("columns", tbl.NumCols()))

	out, _ := arguments.String("--out")
	if out == "" {
		return nil
	}
	mem := memory.NewGoAllocator()
	rec, err := table.ToArrow(tbl, mem)
	if err != nil {
		return err
	}
	defer rec.Release()
	if err := storage.WriteRecord(out, rec, mem); err != nil {
		return err
	}
	logger.Info("Wrote Arrow file", zap.String("path", out))
	return nil
}
