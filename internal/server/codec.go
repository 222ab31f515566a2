package server

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/EmmaVellard/SolarConflux/core"
	"github.com/EmmaVellard/SolarConflux/ephem"
	"github.com/EmmaVellard/SolarConflux/internal/config"
	"github.com/EmmaVellard/SolarConflux/model"
	"github.com/EmmaVellard/SolarConflux/timectrl"
)

// ScanRequest is the payload of AlignmentService/Scan. Either Trajectories
// is set, or Bodies with Start/End/Step name catalogue bodies to fetch.
type ScanRequest struct {
	config.ScanConfig
	Trajectories map[string][]Sample `json:"trajectories,omitempty"`
}

// Sample is one inline position; angles in degrees.
type Sample struct {
	Time       string  `json:"time"`
	LonDeg     float64 `json:"lon_deg"`
	LatDeg     float64 `json:"lat_deg"`
	DistanceKm float64 `json:"distance_km"`
}

// Record is the wire form of an alignment record.
type Record struct {
	Start  string   `json:"start"`
	End    string   `json:"end"`
	Mode   string   `json:"mode"`
	Bodies []string `json:"bodies"`
}

// ScanResponse is the reply of AlignmentService/Scan. Counts holds one entry
// per mode that ran, zero included.
type ScanResponse struct {
	ScanID   string            `json:"scan_id"`
	Bodies   []string          `json:"bodies"`
	Skipped  []string          `json:"skipped,omitempty"`
	Records  []Record          `json:"records"`
	Counts   map[string]int    `json:"counts"`
	Failures map[string]string `json:"failures,omitempty"`
}

// BodyEntry describes a body available to catalogue scans.
type BodyEntry struct {
	Name          string `json:"name"`
	Source        string `json:"source"`
	HorizonsID    string `json:"horizons_id,omitempty"`
	CoverageStart string `json:"coverage_start,omitempty"`
	CoverageEnd   string `json:"coverage_end,omitempty"`
}

// ListBodiesResponse is the reply of AlignmentService/ListBodies.
type ListBodiesResponse struct {
	Bodies []BodyEntry `json:"bodies"`
}

// Encode converts v into a structpb.Struct through its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode fills v from a structpb.Struct.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// InlineTrajectories converts request samples into model trajectories.
func (r *ScanRequest) InlineTrajectories() (map[string]model.Trajectory, error) {
	out := make(map[string]model.Trajectory, len(r.Trajectories))
	for body, samples := range r.Trajectories {
		traj := make(model.Trajectory, len(samples))
		for i, s := range samples {
			at, err := timectrl.ParseTime(s.Time)
			if err != nil {
				return nil, fmt.Errorf("%w: %s sample %d: %v", ErrInvalidRequest, body, i, err)
			}
			traj[i] = model.PositionSample{
				Time:       at,
				Longitude:  core.Radians(s.LonDeg),
				Latitude:   core.Radians(s.LatDeg),
				DistanceKm: s.DistanceKm,
			}
		}
		out[body] = traj
	}
	return out, nil
}

func newScanResponse(scanID string, result *core.Result, skipped []string) ScanResponse {
	resp := ScanResponse{
		ScanID:   scanID,
		Bodies:   result.Bodies,
		Skipped:  skipped,
		Records:  []Record{},
		Counts:   make(map[string]int, len(result.Records)),
		Failures: make(map[string]string, len(result.Failures)),
	}
	for mode, recs := range result.Records {
		resp.Counts[string(mode)] = len(recs)
	}
	for mode, err := range result.Failures {
		resp.Failures[mode] = err.Error()
	}
	for _, rec := range result.Sorted() {
		resp.Records = append(resp.Records, Record{
			Start:  rec.Start.UTC().Format(time.RFC3339),
			End:    rec.End.UTC().Format(time.RFC3339),
			Mode:   string(rec.Mode),
			Bodies: []string(rec.Group),
		})
	}
	return resp
}

func bodyEntry(info ephem.BodyInfo, source string) BodyEntry {
	e := BodyEntry{Name: info.Name, Source: source, HorizonsID: info.HorizonsID}
	if !info.CoverageStart.IsZero() {
		e.CoverageStart = info.CoverageStart.Format(time.RFC3339)
	}
	if !info.CoverageEnd.IsZero() {
		e.CoverageEnd = info.CoverageEnd.Format(time.RFC3339)
	}
	return e
}
