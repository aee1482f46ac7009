// Package lod implements the LoD Filter: selecting
// which level-of-detail representations survive per top-level object,
// cascading the removal through appearances and city-object groups, and
// optionally dropping objects left with no geometry at all.
package lod

import (
	"sort"

	"citygml-tools/internal/appearance"
	"citygml-tools/internal/model"
)

// Mode selects how the configured LoD set L is applied against the LoDs
// L_o that actually appear on an object.
type Mode int

const (
	Keep Mode = iota
	Remove
	MinimumOrLess
	MaximumOrGreater
	Minimum
	Maximum
)

// Options configures a filtering pass.
type Options struct {
	LoDs             map[int]bool
	Mode             Mode
	KeepEmptyObjects bool
	UpdateExtents    bool
}

// Result reports what a filtering pass did, for the summary the driver
// prints.
type Result struct {
	RemovedGeometryIDs   map[string]bool
	DroppedObjects       []string
	SurvivingGroups      []*model.CityObjectGroup
	SurvivingAppearances []*model.Appearance
}

// retained computes R, the set of LoDs kept on an object whose own LoDs
// are lo.
func retained(l map[int]bool, mode Mode, lo map[int]bool) map[int]bool {
	r := map[int]bool{}
	switch mode {
	case Keep:
		for v := range lo {
			if l[v] {
				r[v] = true
			}
		}
	case Remove:
		for v := range lo {
			if !l[v] {
				r[v] = true
			}
		}
	case Minimum, Maximum:
		inBoth := sortedIntersection(l, lo)
		if len(inBoth) == 0 {
			return r
		}
		if mode == Minimum {
			r[inBoth[0]] = true
		} else {
			r[inBoth[len(inBoth)-1]] = true
		}
	case MinimumOrLess, MaximumOrGreater:
		inBoth := sortedIntersection(l, lo)
		if len(inBoth) == 0 {
			return r
		}
		loSorted := sortedKeys(lo)
		if mode == MinimumOrLess {
			bound := inBoth[0]
			for _, v := range loSorted {
				if v <= bound {
					r[v] = true
				}
			}
		} else {
			bound := inBoth[len(inBoth)-1]
			for _, v := range loSorted {
				if v >= bound {
					r[v] = true
				}
			}
		}
	}
	return r
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func sortedIntersection(a, b map[int]bool) []int {
	var out []int
	for k := range a {
		if b[k] {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

// FilterObject removes, from o, every geometry property whose LoD is not
// in the retained set, and returns the ids of everything removed.
func FilterObject(o *model.Feature, opts Options) map[string]bool {
	lo := o.LoDSet()
	r := retained(opts.LoDs, opts.Mode, lo)

	ids := o.RemoveGeometriesWhere(func(gp *model.GeometryProperty) bool {
		return !r[gp.LoD]
	})
	removed := map[string]bool{}
	for _, id := range ids {
		removed[id] = true
	}
	return removed
}

// PruneGroupsToFixedPoint drops group members/parents referencing a
// removed id, deletes now-empty groups, and repeats until no further
// group becomes empty as a result of a prior deletion.
func PruneGroupsToFixedPoint(groups []*model.CityObjectGroup, removedIDs map[string]bool) []*model.CityObjectGroup {
	removed := map[string]bool{}
	for k := range removedIDs {
		removed[k] = true
	}

	for {
		var kept []*model.CityObjectGroup
		changed := false
		for _, g := range groups {
			if removed[g.ID] {
				changed = true
				continue
			}
			if removed[fragmentOf(g.ParentRef)] {
				g.ParentRef = ""
				changed = true
			}
			if g.RemoveMembers(removed) {
				removed[g.ID] = true
				changed = true
				continue
			}
			kept = append(kept, g)
		}
		groups = kept
		if !changed {
			return groups
		}
	}
}

func fragmentOf(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '#' {
			return uri[i+1:]
		}
	}
	return uri
}

// Apply runs the full filter over every top-level feature plus the
// collection-global appearances and groups.
func Apply(features []*model.Feature, globalAppearances []*model.Appearance, groups []*model.CityObjectGroup, opts Options) (kept []*model.Feature, result Result) {
	result.RemovedGeometryIDs = map[string]bool{}

	for _, f := range features {
		removed := FilterObject(f, opts)
		for id := range removed {
			result.RemovedGeometryIDs[id] = true
		}
	}

	for _, f := range features {
		for _, a := range f.Appearances {
			a.Prune(result.RemovedGeometryIDs)
		}
	}
	result.SurvivingAppearances = appearance.Prune(globalAppearances, result.RemovedGeometryIDs)

	result.SurvivingGroups = PruneGroupsToFixedPoint(groups, result.RemovedGeometryIDs)

	droppedObjectIDs := map[string]bool{}
	for _, f := range features {
		if !opts.KeepEmptyObjects && f.IsEmpty() {
			result.DroppedObjects = append(result.DroppedObjects, f.ID)
			droppedObjectIDs[f.ID] = true
			continue
		}
		kept = append(kept, f)
	}

	if len(droppedObjectIDs) > 0 {
		result.SurvivingGroups = PruneGroupsToFixedPoint(result.SurvivingGroups, droppedObjectIDs)
	}

	if opts.UpdateExtents {
		for _, f := range kept {
			recomputeExtent(f)
		}
	}

	return kept, result
}

// recomputeExtent sets f's envelope to the axis-aligned hull of its
// surviving geometries' points, with no CRS transform applied.
func recomputeExtent(f *model.Feature) {
	var env *model.Envelope
	for _, gp := range f.AllGeometries() {
		if gp.Geometry == nil {
			continue
		}
		gp.Geometry.Walk(func(g *model.Geometry) bool {
			for _, p := range g.Points {
				pe := &model.Envelope{Lower: p, Upper: p}
				env = env.Union(pe)
			}
			return true
		})
	}
	if env != nil {
		f.BoundedBy = env
	}
}
