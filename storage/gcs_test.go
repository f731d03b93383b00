package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/TFMV/bqdecode/decode"
	"github.com/TFMV/bqdecode/table"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockObjectStore implements ObjectStore for testing
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	args := m.Called(bucket, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockObjectStore) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	args := m.Called(bucket, object)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return io.NopCloser(strings.NewReader(args.String(0))), args.Error(1)
}

var gcsSchema = map[string]any{"schema": map[string]any{"fields": []any{
	map[string]any{"name": "n", "type": "INTEGER", "mode": "NULLABLE"},
}}}

func TestGCSSourcesInNameOrder(t *testing.T) {
	store := new(MockObjectStore)
	store.On("List", "results", "job-1/").Return([]string{"job-1/page-001.json", "job-1/page-000.json"}, nil)
	store.On("Open", "results", "job-1/page-000.json").Return(`{"rows": [{"f": [{"v": "1"}]}]}`, nil)
	store.On("Open", "results", "job-1/page-001.json").Return(`{"rows": [{"f": [{"v": "2"}]}, {"f": [{"v": "3"}]}]}`, nil)

	g := NewGCS(store, GCSOptions{}, nil)
	defer g.Close()

	sources, err := g.Sources(context.Background(), "results", "job-1/")
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "gs://results/job-1/page-000.json", sources[0].Name())

	tbl, err := decode.DecodeMany(gcsSchema, sources, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, tbl.Column(0).(*table.Vector[int64]).Values())
	store.AssertExpectations(t)
}

func TestGCSReadFailureIsSourceError(t *testing.T) {
	store := new(MockObjectStore)
	store.On("List", "results", "").Return([]string{"a.json", "b.json"}, nil)
	store.On("Open", "results", "a.json").Return(nil, errors.New("403 forbidden"))

	g := NewGCS(store, GCSOptions{}, nil)
	sources, err := g.Sources(context.Background(), "results", "")
	require.NoError(t, err)

	_, err = decode.DecodeMany(gcsSchema, sources, 2, nil)
	var se *decode.SourceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 0, se.Index)
	store.AssertNotCalled(t, "Open", "results", "b.json")
}

func TestGCSBreakerOpens(t *testing.T) {
	store := new(MockObjectStore)
	store.On("Open", "results", "x.json").Return(nil, errors.New("unavailable"))

	g := NewGCS(store, GCSOptions{MaxFailures: 2}, nil)
	for i := 0; i < 2; i++ {
		_, err := g.Load(context.Background(), "results", "x.json")
		require.Error(t, err)
	}
	_, err := g.Load(context.Background(), "results", "x.json")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	store.AssertNumberOfCalls(t, "Open", 2)
}
