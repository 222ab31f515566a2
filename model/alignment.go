package model

import (
	"sort"
	"strings"
	"time"
)

// AlignmentMode names one geometric condition checked between body pairs.
type AlignmentMode string

const (
	ModeOpposition AlignmentMode = "opposition"
	ModeCone       AlignmentMode = "cone"
	ModeQuadrature AlignmentMode = "quadrature"
	ModeArbitrary  AlignmentMode = "arbitrary"
	ModeParker     AlignmentMode = "parker"
	ModeConeParker AlignmentMode = "coneparker"
)

// Modes lists every recognised alignment mode in a stable order.
var Modes = []AlignmentMode{
	ModeOpposition,
	ModeCone,
	ModeQuadrature,
	ModeArbitrary,
	ModeParker,
	ModeConeParker,
}

// ParseMode maps a user supplied mode string onto an AlignmentMode. Names
// match exactly; "Cone" is not a mode.
func ParseMode(s string) (AlignmentMode, bool) {
	v := AlignmentMode(s)
	for _, m := range Modes {
		if m == v {
			return m, true
		}
	}
	return "", false
}

// UsesParker reports whether the mode compares Parker footpoint longitudes.
func (m AlignmentMode) UsesParker() bool {
	return m == ModeParker || m == ModeConeParker
}

// Group is a canonical, sorted and deduplicated set of body names.
type Group []string

// NewGroup canonicalises names into a Group.
func NewGroup(names ...string) Group {
	cp := append([]string(nil), names...)
	sort.Strings(cp)
	out := cp[:0]
	for _, n := range cp {
		if len(out) > 0 && out[len(out)-1] == n {
			continue
		}
		out = append(out, n)
	}
	return Group(out)
}

// Key returns a string usable as a map key; equal memberships yield equal keys.
func (g Group) Key() string {
	return strings.Join(g, "\x1f")
}

// Contains reports whether name is a member of the group.
func (g Group) Contains(name string) bool {
	i := sort.SearchStrings(g, name)
	return i < len(g) && g[i] == name
}

// Equal reports whether two groups have identical membership.
func (g Group) Equal(other Group) bool {
	if len(g) != len(other) {
		return false
	}
	for i := range g {
		if g[i] != other[i] {
			return false
		}
	}
	return true
}

// ActiveInterval is a group that has been seen in every timestep from Start
// through End and is still open.
type ActiveInterval struct {
	Group Group
	Start time.Time
	End   time.Time
}

// AlignmentRecord is a closed interval during which Group satisfied Mode.
type AlignmentRecord struct {
	Start time.Time
	End   time.Time
	Mode  AlignmentMode
	Group Group
}

// SortRecords orders records by start time, keeping emission order for ties.
func SortRecords(records []AlignmentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Start.Before(records[j].Start)
	})
}
