// Package flight serves decoded catalog tables over Arrow Flight.
package flight

import (
	"context"
	"errors"

	"github.com/TFMV/bqdecode/db"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service exposes the tables of a catalog. A ticket is the table name; a
// descriptor is a one-element PATH holding the table name.
type Service struct {
	flight.BaseFlightServer
	db     *db.DB
	mem    memory.Allocator
	logger *zap.Logger
}

// NewService creates a Service over catalog.
func NewService(catalog *db.DB, mem memory.Allocator, logger *zap.Logger) *Service {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: catalog, mem: mem, logger: logger}
}

// Serve starts a Flight server for svc on addr. The server is already
// listening when Serve returns; call Shutdown to stop it.
func Serve(addr string, svc *Service) (flight.Server, error) {
	srv := flight.NewServerWithMiddleware(nil)
	if err := srv.Init(addr); err != nil {
		return nil, err
	}
	srv.RegisterFlightService(svc)
	go func() {
		if err := srv.Serve(); err != nil {
			svc.logger.Error("flight server stopped", zap.Error(err))
		}
	}()
	return srv, nil
}

func (s *Service) record(name string) (arrow.Record, error) {
	rec, err := s.db.Record(name)
	if errors.Is(err, db.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "table %q not found", name)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "table %q: %v", name, err)
	}
	return rec, nil
}

func (s *Service) info(name string, rec arrow.Record) *flight.FlightInfo {
	desc := &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{name}}
	return &flight.FlightInfo{
		FlightDescriptor: desc,
		TotalRecords:     rec.NumRows(),
		TotalBytes:       -1,
		Endpoint:         []*flight.FlightEndpoint{{Ticket: &flight.Ticket{Ticket: []byte(name)}}},
		Schema:           flight.SerializeSchema(rec.Schema(), s.mem),
	}
}

func descriptorName(desc *flight.FlightDescriptor) (string, error) {
	if desc == nil || desc.GetType() != flight.DescriptorPATH || len(desc.GetPath()) != 1 {
		return "", status.Error(codes.InvalidArgument, "descriptor must be a single-element path")
	}
	return desc.GetPath()[0], nil
}

// DoGet streams the table named by the ticket.
func (s *Service) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	name := string(ticket.GetTicket())
	rec, err := s.record(name)
	if err != nil {
		return err
	}
	defer rec.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(s.mem))
	defer writer.Close()

	if err := writer.Write(rec); err != nil {
		return status.Errorf(codes.Internal, "failed to write record: %v", err)
	}
	s.logger.Debug("table streamed", zap.String("table", name), zap.Int64("rows", rec.NumRows()))
	return nil
}

// ListFlights enumerates every catalog table.
func (s *Service) ListFlights(_ *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	for _, name := range s.db.Names() {
		rec, err := s.record(name)
		if status.Code(err) == codes.NotFound {
			// dropped since Names
			continue
		}
		if err != nil {
			return err
		}
		info := s.info(name, rec)
		rec.Release()
		if err := stream.Send(info); err != nil {
			return err
		}
	}
	return nil
}

// GetFlightInfo describes one table.
func (s *Service) GetFlightInfo(_ context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	name, err := descriptorName(desc)
	if err != nil {
		return nil, err
	}
	rec, err := s.record(name)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	return s.info(name, rec), nil
}

// GetSchema returns the Arrow schema of one table.
func (s *Service) GetSchema(_ context.Context, desc *flight.FlightDescriptor) (*flight.SchemaResult, error) {
	name, err := descriptorName(desc)
	if err != nil {
		return nil, err
	}
	rec, err := s.record(name)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	return &flight.SchemaResult{Schema: flight.SerializeSchema(rec.Schema(), s.mem)}, nil
}
