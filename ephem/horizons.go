package ephem

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/EmmaVellard/SolarConflux/core"
	"github.com/EmmaVellard/SolarConflux/model"
	"github.com/EmmaVellard/SolarConflux/timectrl"
)

// DefaultHorizonsURL is the JPL Horizons API endpoint.
const DefaultHorizonsURL = "https://ssd.jpl.nasa.gov/api/horizons.api"

const (
	soeMarker = "$$SOE"
	eoeMarker = "$$EOE"

	unixEpochJD = 2440587.5
	gridSlack   = time.Second
)

// HorizonsProvider fetches heliocentric ecliptic state vectors from the JPL
// Horizons API for bodies listed in its catalogue and expresses them in the
// Heliocentric Inertial frame.
type HorizonsProvider struct {
	baseURL    string
	httpClient *http.Client
	catalog    Catalog
}

// NewHorizonsProvider creates a provider for the given endpoint; an empty
// baseURL selects DefaultHorizonsURL.
func NewHorizonsProvider(baseURL string, catalog Catalog) *HorizonsProvider {
	if baseURL == "" {
		baseURL = DefaultHorizonsURL
	}
	return &HorizonsProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		catalog: catalog,
	}
}

// Name implements Provider.
func (h *HorizonsProvider) Name() string { return "horizons" }

// Trajectory implements Provider.
func (h *HorizonsProvider) Trajectory(ctx context.Context, body string, grid timectrl.Grid) (model.Trajectory, error) {
	info, ok := h.catalog.Lookup(body)
	if !ok || info.HorizonsID == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBody, body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"?"+horizonsQuery(info.HorizonsID, grid).Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying horizons: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, h.baseURL)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var payload struct {
		Result string `json:"result"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding horizons response: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("horizons: %s", payload.Error)
	}

	traj, err := ParseVectorTable(payload.Result)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", body, err)
	}
	return onGrid(body, traj, grid)
}

func horizonsQuery(id string, grid timectrl.Grid) url.Values {
	quote := func(s string) string { return "'" + s + "'" }
	q := url.Values{}
	q.Set("format", "json")
	q.Set("COMMAND", quote(id))
	q.Set("OBJ_DATA", "NO")
	q.Set("MAKE_EPHEM", "YES")
	q.Set("EPHEM_TYPE", "VECTORS")
	q.Set("CENTER", quote("500@10"))
	q.Set("REF_PLANE", "ECLIPTIC")
	q.Set("REF_SYSTEM", "ICRF")
	q.Set("VEC_TABLE", "1")
	q.Set("OUT_UNITS", "KM-S")
	q.Set("CSV_FORMAT", "YES")
	q.Set("TIME_TYPE", "UT")
	q.Set("START_TIME", quote(grid.Start.Format(timectrl.Layout)))
	q.Set("STOP_TIME", quote(grid.Stop.Format(timectrl.Layout)))
	q.Set("STEP_SIZE", quote(timectrl.FormatStep(grid.Step)))
	return q
}

// ParseVectorTable extracts samples from the text between the $$SOE and
// $$EOE markers of a CSV vector table. Each row starts with the Julian date
// followed by the calendar date and the ecliptic X, Y, Z components in km.
func ParseVectorTable(text string) (model.Trajectory, error) {
	var (
		traj    model.Trajectory
		inTable bool
		done    bool
	)
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == soeMarker:
			inTable = true
			continue
		case line == eoeMarker:
			done = true
		}
		if done {
			break
		}
		if !inTable || line == "" {
			continue
		}
		s, err := parseVectorRow(line)
		if err != nil {
			return nil, err
		}
		traj = append(traj, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !inTable {
		return nil, errors.New("no vector table in response")
	}
	if !done {
		return nil, errors.New("vector table is not terminated")
	}
	return traj, nil
}

func parseVectorRow(line string) (model.PositionSample, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 5 {
		return model.PositionSample{}, fmt.Errorf("malformed vector row %q", line)
	}
	jd, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return model.PositionSample{}, fmt.Errorf("julian date in %q: %w", line, err)
	}
	var xyz [3]float64
	for i := range xyz {
		xyz[i], err = strconv.ParseFloat(strings.TrimSpace(fields[2+i]), 64)
		if err != nil {
			return model.PositionSample{}, fmt.Errorf("component %d in %q: %w", i, line, err)
		}
	}
	v := EclipticToHCI(core.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	return core.SampleFromVec3(v, model.PositionSample{Time: TimeFromJD(jd)}), nil
}

// TimeFromJD converts a Julian date to UTC, rounded to the second.
func TimeFromJD(jd float64) time.Time {
	secs := math.Round((jd - unixEpochJD) * 86400)
	return time.Unix(int64(secs), 0).UTC()
}

// JulianDate converts t to a Julian date.
func JulianDate(t time.Time) float64 {
	return unixEpochJD + float64(t.UnixNano())/float64(24*time.Hour)
}
