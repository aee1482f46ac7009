// Package refrewrite maintains the bijective old-id -> new-id mapping used
// whenever a pass renames geometries, surfaces, or features, so that every
// xlink-style reference in the document stays consistent.
package refrewrite

import "citygml-tools/internal/model"

// IdentityMode names how identifiers are handled when multiple input
// files are merged into one output. A Rewriter stores it in Mode;
// Register, Resolve and PrefixedID behave the same in every mode.
type IdentityMode int

const (
	KeepAll IdentityMode = iota
	KeepTopLevel
	RegenerateAll
)

// Rewriter tracks old->new identifier renames and rewrites target URIs
// accordingly. It is not safe for concurrent use; the pipeline is
// single-threaded per file.
type Rewriter struct {
	Mode   IdentityMode
	Prefix string // per-source-file prefix applied on merge

	mapping map[string]string
}

func New(mode IdentityMode) *Rewriter {
	return &Rewriter{Mode: mode, mapping: map[string]string{}}
}

// WithPrefix sets the prefix PrefixedID applies and returns r, used when
// merging multiple input files to avoid id collisions. Register records
// ids exactly as given; it does not apply the prefix.
func (r *Rewriter) WithPrefix(prefix string) *Rewriter {
	r.Prefix = prefix
	return r
}

// Register records that oldID now resolves to newID.
func (r *Rewriter) Register(oldID, newID string) {
	if oldID == "" || oldID == newID {
		return
	}
	r.mapping[oldID] = newID
}

// Resolve rewrites uri's fragment through the mapping, preserving any path
// component before "#". URIs whose fragment is unknown are returned
// unchanged.
func (r *Rewriter) Resolve(uri string) string {
	if uri == "" {
		return uri
	}
	idx := -1
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '#' {
			idx = i
			break
		}
	}
	if idx == -1 {
		return uri
	}
	path, frag := uri[:idx+1], uri[idx+1:]
	if newID, ok := r.mapping[frag]; ok {
		return path + newID
	}
	return uri
}

// ResolveInFeature walks f's subtree, rewriting every target URI field:
// appearance targets and any geometry property Href.
func (r *Rewriter) ResolveInFeature(f *model.Feature) {
	f.Walk(func(ft *model.Feature) bool {
		for _, app := range ft.Appearances {
			for _, sd := range app.SurfaceData {
				for _, t := range sd.Targets {
					t.URI = r.Resolve(t.URI)
				}
			}
		}
		for _, gp := range ft.Geometries {
			if gp.Href != "" {
				gp.Href = r.Resolve(gp.Href)
			}
			if gp.Geometry != nil {
				r.resolveInGeometry(gp.Geometry)
			}
		}
		return true
	})
}

// ResolveGroup rewrites a city-object group's member hrefs and parent
// reference through the mapping, used when merging renames group
// members' ids.
func (r *Rewriter) ResolveGroup(g *model.CityObjectGroup) {
	for i, m := range g.Members {
		g.Members[i] = r.Resolve(m)
	}
	if g.ParentRef != "" {
		g.ParentRef = r.Resolve(g.ParentRef)
	}
}

// ResolveAppearance rewrites every surface-data target URI in an
// appearance through the mapping.
func (r *Rewriter) ResolveAppearance(a *model.Appearance) {
	for _, sd := range a.SurfaceData {
		for _, t := range sd.Targets {
			t.URI = r.Resolve(t.URI)
		}
	}
}

func (r *Rewriter) resolveInGeometry(g *model.Geometry) {
	g.Walk(func(n *model.Geometry) bool {
		if n.Href != "" {
			n.Href = r.Resolve(n.Href)
		}
		return true
	})
}

// PrefixedID applies r.Prefix (if any) to id, used when seeding the
// mapping for a merge pass under KeepAll/KeepTopLevel.
func (r *Rewriter) PrefixedID(id string) string {
	if r.Prefix == "" || id == "" {
		return id
	}
	return r.Prefix + "_" + id
}

// Lookup returns the new id for oldID, if one has been registered.
func (r *Rewriter) Lookup(oldID string) (string, bool) {
	v, ok := r.mapping[oldID]
	return v, ok
}
