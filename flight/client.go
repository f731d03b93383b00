package flight

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client reads catalog tables from a Service.
type Client struct {
	client flight.Client
	mem    memory.Allocator
}

// Table describes one served table.
type Table struct {
	Name   string
	Schema *arrow.Schema
	Rows   int64
}

// NewClient connects to the Flight service at addr without TLS.
func NewClient(addr string) (*Client, error) {
	client, err := flight.NewClientWithMiddleware(addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create flight client: %w", err)
	}
	return &Client{client: client, mem: memory.NewGoAllocator()}, nil
}

// Fetch retrieves the record batches of table name. The caller must
// Release every returned record.
func (c *Client) Fetch(ctx context.Context, name string) ([]arrow.Record, error) {
	stream, err := c.client.DoGet(ctx, &flight.Ticket{Ticket: []byte(name)})
	if err != nil {
		return nil, fmt.Errorf("DoGet failed: %w", err)
	}
	reader, err := flight.NewRecordReader(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
		for _, rec := range records {
			rec.Release()
		}
		return nil, fmt.Errorf("error reading from flight stream: %w", err)
	}
	return records, nil
}

// List returns the served tables.
func (c *Client) List(ctx context.Context) ([]Table, error) {
	stream, err := c.client.ListFlights(ctx, &flight.Criteria{})
	if err != nil {
		return nil, fmt.Errorf("ListFlights failed: %w", err)
	}
	var tables []Table
	for {
		info, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return tables, nil
		}
		if err != nil {
			return nil, err
		}
		schema, err := flight.DeserializeSchema(info.GetSchema(), c.mem)
		if err != nil {
			return nil, fmt.Errorf("failed to decode schema: %w", err)
		}
		tables = append(tables, Table{
			Name:   info.GetFlightDescriptor().GetPath()[0],
			Schema: schema,
			Rows:   info.GetTotalRecords(),
		})
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}
