package core

import "github.com/EmmaVellard/SolarConflux/model"

// BuildGroups returns the distinct co-aligned groups at one timestep.
//
// Groups are anchor-centric: for every anchor body the group is the anchor
// plus every body the classifier pairs it with. If A-B and A-C hold but B-C
// does not, {A,B,C} is still reported. Groups smaller than two bodies and
// pairs involving the Sun are dropped. Output order follows the order of
// bodies, with duplicates collapsed onto their first occurrence.
func BuildGroups(step int, bodies []string, proj Projections, c *Classifier) []model.Group {
	seen := make(map[string]struct{}, len(bodies))
	var out []model.Group

	for _, anchor := range bodies {
		a := proj[anchor][step]
		members := []string{anchor}
		for _, other := range bodies {
			if other == anchor {
				continue
			}
			if c.Aligned(a, proj[other][step]) {
				members = append(members, other)
			}
		}

		group := model.NewGroup(members...)
		if len(group) < 2 {
			continue
		}
		if len(group) == 2 && group.Contains(model.SunBody) {
			continue
		}
		key := group.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, group)
	}
	return out
}
