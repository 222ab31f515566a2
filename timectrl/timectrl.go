package timectrl

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultStep is the sampling interval used when none is requested.
const DefaultStep = 60 * time.Minute

// Layout is the timestamp format used in exported files and logs.
const Layout = "2006-01-02 15:04:05"

// Grid is the discretised timeline shared by every trajectory of a scan:
// Start, Start+Step, ... up to and including Stop when it falls on the grid.
type Grid struct {
	Start time.Time
	Stop  time.Time
	Step  time.Duration
}

// NewGrid validates and constructs a grid. Times are normalised to UTC.
func NewGrid(start, stop time.Time, step time.Duration) (Grid, error) {
	if err := checkStep(step); err != nil {
		return Grid{}, err
	}
	if stop.Before(start) {
		return Grid{}, fmt.Errorf("stop %s is before start %s", stop.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Grid{Start: start.UTC(), Stop: stop.UTC(), Step: step}, nil
}

// Len returns the number of timesteps on the grid.
func (g Grid) Len() int {
	if g.Step <= 0 || g.Stop.Before(g.Start) {
		return 0
	}
	return int(g.Stop.Sub(g.Start)/g.Step) + 1
}

// At returns the i-th timestamp.
func (g Grid) At(i int) time.Time {
	return g.Start.Add(time.Duration(i) * g.Step)
}

// Times returns every timestamp on the grid in order.
func (g Grid) Times() []time.Time {
	n := g.Len()
	out := make([]time.Time, n)
	for i := range out {
		out[i] = g.At(i)
	}
	return out
}

// Key identifies the grid for caching purposes.
func (g Grid) Key() string {
	return fmt.Sprintf("%s/%s/%s", g.Start.Format(time.RFC3339), g.Stop.Format(time.RFC3339), FormatStep(g.Step))
}

// checkStep requires a positive whole number of minutes, the resolution
// FormatStep and the ephemeris service work in.
func checkStep(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("time step must be positive, got %s", d)
	}
	if d%time.Minute != 0 {
		return fmt.Errorf("time step must be a whole number of minutes, got %s", d)
	}
	return nil
}

// ParseStep parses step sizes in the ephemeris service style: a count
// followed by a unit, e.g. "60m", "1h", "1d". Go duration strings such as
// "1h30m" are accepted too. Steps must be whole minutes.
func ParseStep(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return DefaultStep, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if err := checkStep(d); err != nil {
			return 0, err
		}
		return d, nil
	}

	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9') {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid time step %q", s)
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid time step %q", s)
	}
	var unit time.Duration
	switch strings.TrimSpace(s[i:]) {
	case "s", "sec", "secs":
		unit = time.Second
	case "m", "min", "mins", "minute", "minutes":
		unit = time.Minute
	case "h", "hr", "hour", "hours":
		unit = time.Hour
	case "d", "day", "days":
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid time step unit in %q", s)
	}
	d := time.Duration(n) * unit
	if err := checkStep(d); err != nil {
		return 0, err
	}
	return d, nil
}

// FormatStep renders d in whole minutes ("60m"), the finest unit the
// ephemeris service accepts for vector tables.
func FormatStep(d time.Duration) string {
	return fmt.Sprintf("%dm", int64(d/time.Minute))
}

// ParseTime accepts RFC 3339, "2006-01-02 15:04", "2006-01-02 15:04:05" and
// bare dates, interpreting zone-less values as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{time.RFC3339, Layout, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
