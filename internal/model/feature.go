package model

// Feature is a city object: a top-level feature when it hangs directly off
// the collection, or a nested feature (BoundarySurface, Room, ...) owned by
// one. Cyclic parent pointers are deliberately not modeled here; callers
// that need "find enclosing top-level object" thread an ancestor stack
// through their own traversal instead.
type Feature struct {
	ID   string
	Type string // qualified element name, e.g. "bldg:Building"

	BoundedBy *Envelope

	Geometries []*GeometryProperty
	Children   []*Feature

	// Appearances owned directly by this feature (as opposed to global
	// appearances owned by the collection).
	Appearances []*Appearance

	// Attributes holds generic/gen:stringAttribute-shaped scalar
	// attributes the pipeline does not otherwise model explicitly.
	Attributes map[string]string

	// Raw preserves the original decoded element tree for round-tripping
	// content the typed model does not (and is not meant to) represent,
	// e.g. exotic ADE extensions. It is opaque to every transformer; only
	// the reader/writer pair touches it.
	Raw any
}

// AllGeometries returns every geometry property across f and its nested
// feature subtree, in document order.
func (f *Feature) AllGeometries() []*GeometryProperty {
	var out []*GeometryProperty
	f.Walk(func(ft *Feature) bool {
		out = append(out, ft.Geometries...)
		return true
	})
	return out
}

// Walk performs a depth-first pre-order traversal over f and its nested
// feature subtree.
func (f *Feature) Walk(fn func(*Feature) bool) {
	if f == nil {
		return
	}
	if !fn(f) {
		return
	}
	for _, c := range f.Children {
		c.Walk(fn)
	}
}

// LoDSet returns the set of LoDs that appear as geometry-carrying
// properties directly on f (not its nested children).
func (f *Feature) LoDSet() map[int]bool {
	set := map[int]bool{}
	for _, gp := range f.Geometries {
		set[gp.LoD] = true
	}
	return set
}

// RemoveGeometriesWhere deletes every geometry property (at every nesting
// level) for which pred returns true, returning the identifiers of the
// geometries removed (the geometry's own ID plus every descendant surface
// ID), for appearance/group pruning downstream.
func (f *Feature) RemoveGeometriesWhere(pred func(*GeometryProperty) bool) []string {
	var removedIDs []string
	f.Walk(func(ft *Feature) bool {
		kept := ft.Geometries[:0]
		for _, gp := range ft.Geometries {
			if pred(gp) {
				removedIDs = append(removedIDs, collectIDs(gp)...)
				continue
			}
			kept = append(kept, gp)
		}
		ft.Geometries = kept
		return true
	})
	return removedIDs
}

func collectIDs(gp *GeometryProperty) []string {
	var ids []string
	if gp.Geometry != nil {
		gp.Geometry.Walk(func(g *Geometry) bool {
			if g.ID != "" {
				ids = append(ids, g.ID)
			}
			return true
		})
	}
	return ids
}

// IsEmpty reports whether f (and its nested subtree) carries no geometry
// at all — the condition filter-lods uses to drop a top-level object when
// keep_empty_objects is false.
func (f *Feature) IsEmpty() bool {
	empty := true
	f.Walk(func(ft *Feature) bool {
		if len(ft.Geometries) > 0 {
			empty = false
			return false
		}
		return true
	})
	return empty
}
