// Package server exposes alignment scans over gRPC.
package server

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/EmmaVellard/SolarConflux/core"
	"github.com/EmmaVellard/SolarConflux/ephem"
	"github.com/EmmaVellard/SolarConflux/internal/logging"
	"github.com/EmmaVellard/SolarConflux/kb"
	"github.com/EmmaVellard/SolarConflux/model"
)

// Fully-qualified names of the alignment service and its methods.
const (
	ServiceName      = "solarconflux.v1.AlignmentService"
	ScanMethod       = "/" + ServiceName + "/Scan"
	ListBodiesMethod = "/" + ServiceName + "/ListBodies"
)

// AlignmentServer is the server API of the alignment service. Payloads are
// google.protobuf.Struct messages holding ScanRequest, ScanResponse and
// ListBodiesResponse.
type AlignmentServer interface {
	Scan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListBodies(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes AlignmentService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlignmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Scan", Handler: unaryHandler(ScanMethod, AlignmentServer.Scan)},
		{MethodName: "ListBodies", Handler: unaryHandler(ListBodiesMethod, AlignmentServer.ListBodies)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "solarconflux/v1/alignment.proto",
}

// RegisterAlignmentServer registers srv on s.
func RegisterAlignmentServer(s grpc.ServiceRegistrar, srv AlignmentServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type methodFunc func(AlignmentServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call methodFunc) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AlignmentServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AlignmentServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client is a typed client for AlignmentService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Scan runs a scan on the server.
func (c *Client) Scan(ctx context.Context, req ScanRequest, opts ...grpc.CallOption) (*ScanResponse, error) {
	in, err := Encode(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ScanMethod, in, out, opts...); err != nil {
		return nil, err
	}
	var resp ScanResponse
	if err := Decode(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListBodies returns the bodies the server can fetch.
func (c *Client) ListBodies(ctx context.Context, opts ...grpc.CallOption) (*ListBodiesResponse, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListBodiesMethod, &structpb.Struct{}, out, opts...); err != nil {
		return nil, err
	}
	var resp ListBodiesResponse
	if err := Decode(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Archiver persists scan results.
type Archiver interface {
	ArchiveScan(ctx context.Context, scanID string, bodies, modes []string, records []model.AlignmentRecord) error
}

// AlignmentService implements AlignmentServer.
type AlignmentService struct {
	fetcher *ephem.Fetcher
	catalog ephem.Catalog
	extra   []string
	archive Archiver
	metrics core.MetricsRecorder
	workers int
	log     logging.Logger
}

// ServiceOption configures an AlignmentService.
type ServiceOption func(*AlignmentService)

// WithFetcher enables catalogue scans.
func WithFetcher(f *ephem.Fetcher) ServiceOption {
	return func(s *AlignmentService) {
		s.fetcher = f
		if f != nil {
			s.catalog = f.Catalog
		}
	}
}

// WithExtraBodies lists bodies served outside the catalogue (TLE spacecraft).
func WithExtraBodies(names ...string) ServiceOption {
	return func(s *AlignmentService) { s.extra = append(s.extra, names...) }
}

// WithArchive stores every successful scan.
func WithArchive(a Archiver) ServiceOption {
	return func(s *AlignmentService) { s.archive = a }
}

// WithMetricsRecorder forwards scan metrics.
func WithMetricsRecorder(m core.MetricsRecorder) ServiceOption {
	return func(s *AlignmentService) { s.metrics = m }
}

// WithWorkers bounds group-building goroutines per scan.
func WithWorkers(n int) ServiceOption {
	return func(s *AlignmentService) { s.workers = n }
}

// NewAlignmentService constructs the service.
func NewAlignmentService(log logging.Logger, opts ...ServiceOption) *AlignmentService {
	if log == nil {
		log = logging.Noop()
	}
	s := &AlignmentService{log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan implements AlignmentServer.
func (s *AlignmentService) Scan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := logging.FromContext(ctx, s.log)

	var req ScanRequest
	if err := Decode(in, &req); err != nil {
		return nil, ToStatusError(fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}
	if len(req.Modes) == 0 {
		return nil, ToStatusError(fmt.Errorf("%w: no alignment modes requested", ErrInvalidRequest))
	}

	trajectories, skipped, err := s.trajectories(ctx, &req)
	if err != nil {
		return nil, ToStatusError(err)
	}

	opts := []core.Option{core.WithLogger(log), core.WithWorkers(s.workers)}
	if s.metrics != nil {
		opts = append(opts, core.WithMetricsRecorder(s.metrics))
	}
	ctx, scanID := logging.EnsureScanID(ctx)
	result, err := core.NewScanner(req.Params(), opts...).Scan(ctx, trajectories, req.Modes)
	if err != nil {
		return nil, ToStatusError(err)
	}

	if s.archive != nil {
		if err := s.archive.ArchiveScan(ctx, scanID, result.Bodies, req.Modes, result.Sorted()); err != nil {
			log.Warn(ctx, "failed to archive scan", logging.String("scan_id", scanID), logging.Err(err))
		}
	}

	out, err := Encode(newScanResponse(scanID, result, skipped))
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

func (s *AlignmentService) trajectories(ctx context.Context, req *ScanRequest) (map[string]model.Trajectory, []string, error) {
	store := kb.NewKnowledgeBase()

	if len(req.Trajectories) > 0 {
		inline, err := req.InlineTrajectories()
		if err != nil {
			return nil, nil, err
		}
		for body, traj := range inline {
			if err := store.AddTrajectory(body, traj); err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
			}
		}
		return store.Snapshot(), nil, nil
	}

	if s.fetcher == nil {
		return nil, nil, fmt.Errorf("%w: catalogue scans need an ephemeris provider; send trajectories inline", ErrUnavailable)
	}
	if len(req.Bodies) == 0 {
		return nil, nil, fmt.Errorf("%w: no bodies requested", ErrInvalidRequest)
	}
	grid, err := req.Grid()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	ctx, span := startChildSpan(ctx, "ephemeris/fetch",
		attribute.Int("ephemeris.bodies", len(req.Bodies)),
		attribute.Int("ephemeris.steps", grid.Len()),
	)
	defer span.End()
	fetched, skipped, err := s.fetcher.Fetch(ctx, req.Bodies, grid)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	if len(fetched) == 0 {
		return nil, skipped, fmt.Errorf("%w: none of %v", ephem.ErrUnknownBody, req.Bodies)
	}
	for body, traj := range fetched {
		if err := store.AddTrajectory(body, traj); err != nil {
			return nil, nil, err
		}
	}
	return store.Snapshot(), skipped, nil
}

// ListBodies implements AlignmentServer.
func (s *AlignmentService) ListBodies(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	resp := ListBodiesResponse{Bodies: []BodyEntry{}}
	for _, info := range s.catalog.Bodies() {
		source := "horizons"
		if info.Name == model.SunBody {
			source = "sun"
		}
		resp.Bodies = append(resp.Bodies, bodyEntry(info, source))
	}
	for _, name := range s.extra {
		resp.Bodies = append(resp.Bodies, BodyEntry{Name: name, Source: "sgp4"})
	}
	out, err := Encode(resp)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}
