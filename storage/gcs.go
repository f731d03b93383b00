package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/TFMV/bqdecode/decode"
	"github.com/TFMV/bqdecode/wire"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ---------------------------------------------------------------------
// Object store
// ---------------------------------------------------------------------

// ObjectStore is the subset of a blob store the page loader needs.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Open(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

type gcsStore struct {
	client *gcs.Client
}

func (s gcsStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

func (s gcsStore) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return s.client.Bucket(bucket).Object(object).NewReader(ctx)
}

// ---------------------------------------------------------------------
// GCS page loader
// ---------------------------------------------------------------------

// GCSOptions configures the GCS page loader.
type GCSOptions struct {
	// Endpoint overrides the API endpoint, e.g. for an emulator.
	Endpoint string
	// Anonymous disables authentication.
	Anonymous bool
	// MaxFailures is the number of consecutive failed reads that opens the
	// circuit breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// GCS loads result pages stored as objects in a bucket.
type GCS struct {
	store   ObjectStore
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	closer  func() error
}

// DialGCS connects to Cloud Storage.
func DialGCS(ctx context.Context, o GCSOptions, logger *zap.Logger) (*GCS, error) {
	var opts []option.ClientOption
	if o.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.Endpoint))
	}
	if o.Anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	g := NewGCS(gcsStore{client: client}, o, logger)
	g.closer = client.Close
	return g, nil
}

// NewGCS builds a page loader over any object store.
func NewGCS(store ObjectStore, o GCSOptions, logger *zap.Logger) *GCS {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxFailures := o.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := o.OpenTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "GCSReader",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &GCS{store: store, breaker: cb, logger: logger, closer: func() error { return nil }}
}

// Sources lists the objects under bucket/prefix and returns them as pages in
// object-name order. Objects are fetched lazily, one per Load.
func (g *GCS) Sources(ctx context.Context, bucket, prefix string) ([]decode.Source, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.store.List(ctx, bucket, prefix)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
	}
	names := out.([]string)
	sort.Strings(names)
	g.logger.Debug("listed pages",
		zap.String("bucket", bucket),
		zap.String("prefix", prefix),
		zap.Int("objects", len(names)))

	sources := make([]decode.Source, len(names))
	for i, name := range names {
		name := name
		sources[i] = decode.SourceFunc{
			ID: "gs://" + bucket + "/" + name,
			Fn: func() (wire.Node, error) { return g.Load(ctx, bucket, name) },
		}
	}
	return sources, nil
}

// Load fetches and parses one object.
func (g *GCS) Load(ctx context.Context, bucket, object string) (wire.Node, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		r, err := g.store.Open(ctx, bucket, object)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = r.Close()
		}()
		return io.ReadAll(r)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return wire.Decode(bytes.NewReader(out.([]byte)))
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.closer()
}
