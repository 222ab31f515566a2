package core

import (
	"testing"

	"github.com/EmmaVellard/SolarConflux/model"
)

func stepProjections(lons map[string]float64) ([]string, Projections) {
	proj := make(Projections, len(lons))
	for name, lon := range lons {
		proj[name] = []Angles{deg(lon)}
	}
	bodies := make([]string, 0, len(lons))
	for name := range lons {
		bodies = append(bodies, name)
	}
	return sortStrings(bodies), proj
}

func sortStrings(s []string) []string {
	return []string(model.NewGroup(s...))
}

func groupKeys(groups []model.Group) map[string]bool {
	out := make(map[string]bool, len(groups))
	for _, g := range groups {
		out[g.Key()] = true
	}
	return out
}

func TestBuildGroupsAnchorCentric(t *testing.T) {
	// A-B and A-C are inside the cone, B-C is not.
	bodies, proj := stepProjections(map[string]float64{"A": 10, "B": 2, "C": 18})
	c := mustClassifier(t, model.ModeCone, DefaultParams())

	groups := BuildGroups(0, bodies, proj, c)
	keys := groupKeys(groups)
	if !keys[model.NewGroup("A", "B", "C").Key()] {
		t.Fatalf("anchor A should produce {A,B,C}, got %v", groups)
	}
	if !keys[model.NewGroup("A", "B").Key()] || !keys[model.NewGroup("A", "C").Key()] {
		t.Fatalf("anchors B and C should produce {A,B} and {A,C}, got %v", groups)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 distinct groups, got %d: %v", len(groups), groups)
	}
}

func TestBuildGroupsDeduplicates(t *testing.T) {
	bodies, proj := stepProjections(map[string]float64{"A": 0, "B": 180, "C": 90})
	c := mustClassifier(t, model.ModeOpposition, DefaultParams())

	groups := BuildGroups(0, bodies, proj, c)
	if len(groups) != 1 || !groups[0].Equal(model.NewGroup("A", "B")) {
		t.Fatalf("expected exactly {A,B}, got %v", groups)
	}
}

func TestBuildGroupsDropsSunPairs(t *testing.T) {
	bodies, proj := stepProjections(map[string]float64{model.SunBody: 0, "Earth": 3, "Mars": 90})
	c := mustClassifier(t, model.ModeCone, DefaultParams())

	if groups := BuildGroups(0, bodies, proj, c); len(groups) != 0 {
		t.Fatalf("a body paired only with the Sun is not an alignment, got %v", groups)
	}

	bodies, proj = stepProjections(map[string]float64{model.SunBody: 0, "Earth": 3, "Venus": 6})
	groups := BuildGroups(0, bodies, proj, c)
	if !groupKeys(groups)[model.NewGroup(model.SunBody, "Earth", "Venus").Key()] {
		t.Fatalf("groups of three that include the Sun are kept, got %v", groups)
	}
}

func TestBuildGroupsNoMatches(t *testing.T) {
	bodies, proj := stepProjections(map[string]float64{"A": 0, "B": 180, "C": 90})
	c := mustClassifier(t, model.ModeCone, DefaultParams())
	if groups := BuildGroups(0, bodies, proj, c); len(groups) != 0 {
		t.Fatalf("expected no groups, got %v", groups)
	}
}
