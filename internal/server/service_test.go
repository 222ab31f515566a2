package server

import (
	"context"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/EmmaVellard/SolarConflux/ephem"
	"github.com/EmmaVellard/SolarConflux/internal/config"
	"github.com/EmmaVellard/SolarConflux/internal/logging"
	"github.com/EmmaVellard/SolarConflux/model"
	"github.com/EmmaVellard/SolarConflux/timectrl"
)

const auKm = 149597870.7

// fixedProvider places each known body at a constant heliocentric longitude.
// Longitudes stay away from 0 and π so no body lines up with the Sun.
type fixedProvider map[string]float64

func (fixedProvider) Name() string { return "fixed" }

func (p fixedProvider) Trajectory(_ context.Context, body string, grid timectrl.Grid) (model.Trajectory, error) {
	lon, ok := p[body]
	if !ok {
		return nil, ephem.ErrUnknownBody
	}
	traj := make(model.Trajectory, grid.Len())
	for i := range traj {
		traj[i] = model.PositionSample{Time: grid.At(i), Longitude: lon, DistanceKm: auKm}
	}
	return traj, nil
}

type recordingArchive struct {
	mu      sync.Mutex
	scanIDs []string
	records int
}

func (a *recordingArchive) ArchiveScan(_ context.Context, scanID string, _, _ []string, records []model.AlignmentRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scanIDs = append(a.scanIDs, scanID)
	a.records += len(records)
	return nil
}

func inlineRequest() ScanRequest {
	at := "2025-01-01T00:00:00Z"
	return ScanRequest{
		ScanConfig: config.ScanConfig{Modes: []string{"opposition", "bogus"}},
		Trajectories: map[string][]Sample{
			"A": {{Time: at, LonDeg: 0, DistanceKm: auKm}},
			"B": {{Time: at, LonDeg: 180, DistanceKm: auKm}},
			"C": {{Time: at, LonDeg: 90, DistanceKm: auKm}},
		},
	}
}

func TestScanInlineTrajectories(t *testing.T) {
	svc := NewAlignmentService(logging.Noop())
	in, err := Encode(inlineRequest())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := svc.Scan(context.Background(), in)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var resp ScanResponse
	if err := Decode(out, &resp); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(resp.Records) != 1 || resp.Records[0].Mode != "opposition" {
		t.Fatalf("records = %+v, want one opposition", resp.Records)
	}
	if got := resp.Records[0].Bodies; len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("opposition bodies = %v, want [A B]", got)
	}
	if resp.Records[0].Start != "2025-01-01T00:00:00Z" || resp.Records[0].End != resp.Records[0].Start {
		t.Fatalf("unexpected interval %+v", resp.Records[0])
	}
	if resp.Counts["opposition"] != 1 || len(resp.Counts) != 1 {
		t.Fatalf("counts = %v", resp.Counts)
	}
	if _, ok := resp.Failures["bogus"]; !ok {
		t.Fatalf("expected bogus mode in failures, got %v", resp.Failures)
	}
	if resp.ScanID == "" {
		t.Fatalf("scan id should be set")
	}
}

func TestScanRejectsBadRequests(t *testing.T) {
	svc := NewAlignmentService(nil)
	ctx := context.Background()

	cases := map[string]struct {
		req  ScanRequest
		code codes.Code
	}{
		"no modes": {req: ScanRequest{Trajectories: inlineRequest().Trajectories}, code: codes.InvalidArgument},
		"bad time": {req: ScanRequest{
			ScanConfig:   config.ScanConfig{Modes: []string{"cone"}},
			Trajectories: map[string][]Sample{"A": {{Time: "later"}}},
		}, code: codes.InvalidArgument},
		"shape mismatch": {req: ScanRequest{
			ScanConfig: config.ScanConfig{Modes: []string{"cone"}},
			Trajectories: map[string][]Sample{
				"A": {{Time: "2025-01-01"}, {Time: "2025-01-02"}},
				"B": {{Time: "2025-01-01"}},
			},
		}, code: codes.InvalidArgument},
		"no provider": {req: ScanRequest{
			ScanConfig: config.ScanConfig{Modes: []string{"cone"}, Bodies: []string{"Earth"}, Start: "2025-01-01", End: "2025-01-02"},
		}, code: codes.FailedPrecondition},
	}
	for name, tc := range cases {
		in, err := Encode(tc.req)
		if err != nil {
			t.Fatalf("%s: Encode: %v", name, err)
		}
		_, err = svc.Scan(ctx, in)
		if status.Code(err) != tc.code {
			t.Fatalf("%s: code = %v (%v), want %v", name, status.Code(err), err, tc.code)
		}
	}
}

func newCatalogueService(archive Archiver) *AlignmentService {
	router := ephem.NewRouter(fixedProvider{"Earth": 1, "Mars": 1 + math.Pi})
	router.Route(model.SunBody, ephem.SunProvider{})
	fetcher := &ephem.Fetcher{Provider: router, Catalog: ephem.DefaultCatalog()}
	return NewAlignmentService(logging.Noop(),
		WithFetcher(fetcher),
		WithExtraBodies("ISS"),
		WithArchive(archive),
		WithWorkers(2),
	)
}

func startServer(t *testing.T, svc AlignmentServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RequestIDUnaryServerInterceptor(logging.Noop()),
		TracingUnaryServerInterceptor(),
	))
	RegisterAlignmentServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestCatalogueScanOverGRPC(t *testing.T) {
	archive := &recordingArchive{}
	conn := startServer(t, newCatalogueService(archive))
	client := NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, RequestIDMetadataKey, "req-42")

	var header metadata.MD
	resp, err := client.Scan(ctx, ScanRequest{ScanConfig: config.ScanConfig{
		Bodies: []string{"Earth", "Mars", model.SunBody, "Pluto"},
		Start:  "2025-01-01",
		End:    "2025-01-01 03:00",
		Step:   "1h",
		Modes:  []string{"opposition", "cone"},
	}}, grpc.Header(&header))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if got := header.Get(RequestIDMetadataKey); len(got) != 1 || got[0] != "req-42" {
		t.Fatalf("response header request id = %v", got)
	}
	if resp.ScanID != "req-42" {
		t.Fatalf("scan id = %q, want the request id", resp.ScanID)
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0] != "Pluto" {
		t.Fatalf("skipped = %v, want [Pluto]", resp.Skipped)
	}
	if len(resp.Records) != 1 {
		t.Fatalf("records = %+v, want one Earth/Mars opposition", resp.Records)
	}
	rec := resp.Records[0]
	if rec.Mode != "opposition" || rec.Start != "2025-01-01T00:00:00Z" || rec.End != "2025-01-01T03:00:00Z" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if resp.Counts["cone"] != 0 {
		t.Fatalf("cone count = %d, want 0", resp.Counts["cone"])
	}
	if len(archive.scanIDs) != 1 || archive.scanIDs[0] != "req-42" || archive.records != 1 {
		t.Fatalf("archive = %+v", archive)
	}

	_, err = client.Scan(ctx, ScanRequest{ScanConfig: config.ScanConfig{
		Bodies: []string{"Pluto"}, Start: "2025-01-01", End: "2025-01-02", Modes: []string{"cone"},
	}})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("scan of unknown bodies: code = %v, want NotFound", status.Code(err))
	}
}

func TestListBodiesOverGRPC(t *testing.T) {
	conn := startServer(t, newCatalogueService(nil))
	resp, err := NewClient(conn).ListBodies(context.Background())
	if err != nil {
		t.Fatalf("ListBodies: %v", err)
	}
	if len(resp.Bodies) != 16 {
		t.Fatalf("got %d bodies, want 15 catalogue + 1 TLE", len(resp.Bodies))
	}
	first, last := resp.Bodies[0], resp.Bodies[len(resp.Bodies)-1]
	if first.Name != "BepiColombo" || first.CoverageStart != "2018-10-20T02:13:00Z" || first.Source != "horizons" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if last.Name != "ISS" || last.Source != "sgp4" {
		t.Fatalf("unexpected last entry %+v", last)
	}
}
