package ephem

import (
	"time"

	"github.com/EmmaVellard/SolarConflux/model"
	"github.com/EmmaVellard/SolarConflux/timectrl"
)

// BodyInfo describes a body the tool knows how to fetch. A zero coverage
// bound means the ephemeris has no limit on that side.
type BodyInfo struct {
	Name          string
	HorizonsID    string
	CoverageStart time.Time
	CoverageEnd   time.Time
}

// Covers reports whether the whole grid lies inside the coverage window.
func (b BodyInfo) Covers(grid timectrl.Grid) bool {
	if !b.CoverageStart.IsZero() && grid.Start.Before(b.CoverageStart) {
		return false
	}
	if !b.CoverageEnd.IsZero() && grid.Stop.After(b.CoverageEnd) {
		return false
	}
	return true
}

// CoverageString renders the window as "start to end", using NA for open bounds.
func (b BodyInfo) CoverageString() string {
	return formatBound(b.CoverageStart) + " to " + formatBound(b.CoverageEnd)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "NA"
	}
	return t.Format("2006-01-02 15:04")
}

// Catalog is an ordered set of known bodies.
type Catalog struct {
	bodies []BodyInfo
	index  map[string]int
}

// NewCatalog builds a catalogue; later entries replace earlier ones with the
// same name while keeping the first position.
func NewCatalog(bodies ...BodyInfo) Catalog {
	c := Catalog{index: make(map[string]int, len(bodies))}
	for _, b := range bodies {
		if i, ok := c.index[b.Name]; ok {
			c.bodies[i] = b
			continue
		}
		c.index[b.Name] = len(c.bodies)
		c.bodies = append(c.bodies, b)
	}
	return c
}

// Lookup returns the entry for name.
func (c Catalog) Lookup(name string) (BodyInfo, bool) {
	i, ok := c.index[name]
	if !ok {
		return BodyInfo{}, false
	}
	return c.bodies[i], true
}

// Bodies returns the entries in catalogue order.
func (c Catalog) Bodies() []BodyInfo {
	return append([]BodyInfo(nil), c.bodies...)
}

// Names returns the body names in catalogue order.
func (c Catalog) Names() []string {
	out := make([]string, len(c.bodies))
	for i, b := range c.bodies {
		out[i] = b.Name
	}
	return out
}

func mustTime(s string) time.Time {
	t, err := timectrl.ParseTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

func window(name, id, start, end string) BodyInfo {
	return BodyInfo{Name: name, HorizonsID: id, CoverageStart: mustTime(start), CoverageEnd: mustTime(end)}
}

// DefaultCatalog lists the spacecraft and planets supported out of the box
// with their ephemeris coverage.
func DefaultCatalog() Catalog {
	return NewCatalog(
		window("BepiColombo", "BepiColombo", "2018-10-20 02:13", "2027-03-13 22:59"),
		window("Solar Orbiter", "Solar Orbiter", "2020-02-10 04:56", "2030-11-20 05:14"),
		window("PSP", "Parker Solar Probe", "2018-08-12 08:30", "2024-10-16 17:58"),
		window("Stereo-A", "Stereo-A", "2010-01-01 00:00", "2024-12-26 23:48"),
		window("Juice", "Juice", "2023-04-14 12:43", "2031-07-21 06:02"),
		window("Maven", "Maven", "2013-11-21 20:01", "2024-09-30 23:58"),
		window("Juno", "Juno", "2013-08-01 01:01", "2020-02-15 00:00"),
		window("SDO", "SDO", "2010-05-22 00:00", "2025-01-26 04:52"),
		window("SOHO", "SOHO", "1995-12-02 00:12", "2018-02-04 23:36"),
		window("ACE", "-92", "1997-08-25 00:00", "2025-01-26 04:52"),
		window("Venus", "299", "1971-01-01 00:00", "2040-12-31 23:58"),
		BodyInfo{Name: "Earth", HorizonsID: "399"},
		window("Mars", "499", "1971-01-01 01:00", "2040-12-31 23:58"),
		window("Jupiter", "599", "1971-01-01 00:00", "2040-12-31 23:58"),
		BodyInfo{Name: model.SunBody, HorizonsID: "10"},
	)
}
