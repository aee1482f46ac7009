// Package appearance implements the Appearance Engine:
// indexing a global appearance's surface-data targets by geometry id,
// pruning dangling targets once geometries are removed elsewhere in the
// pipeline, and converting a global appearance into per-feature local
// appearances.
package appearance

import (
	"fmt"

	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
)

// OwnerMode selects where a cloned local appearance is attached during
// Global→Local conversion.
type OwnerMode int

const (
	// TopLevel attaches every cloned local appearance to the top-level
	// feature that owns the referenced geometry, even when the geometry
	// itself lives on a nested child feature.
	TopLevel OwnerMode = iota
	// Nested attaches the cloned local appearance to whichever feature
	// (top-level or nested) directly owns the referenced geometry.
	Nested
)

// CandidateIDs walks f's subtree and returns the "#<id>" target URI for
// every surface or multi-surface geometry carrying an identifier (section
// 4.5, "Indexing").
func CandidateIDs(f *model.Feature) map[string]bool {
	ids := map[string]bool{}
	f.Walk(func(ft *model.Feature) bool {
		for _, gp := range ft.Geometries {
			if gp.Geometry == nil {
				continue
			}
			gp.Geometry.Walk(func(g *model.Geometry) bool {
				if g.ID != "" && (g.Kind == model.KindPolygon || g.Kind == model.KindMultiSurface) {
					ids["#"+g.ID] = true
				}
				return true
			})
		}
		return true
	})
	return ids
}

// Prune removes every target naming a geometry id in removedIDs from
// every surface-data of every appearance in appearances, deleting
// surface-data and appearances that become empty. It returns the
// appearances that survive.
func Prune(appearances []*model.Appearance, removedIDs map[string]bool) []*model.Appearance {
	kept := appearances[:0]
	for _, a := range appearances {
		if a.Prune(removedIDs) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// featureOwner locates the feature (top-level or nested, depending on
// mode) that owns the geometry named by id, searching every top-level
// feature's subtree. The returned bool is false if no feature owns it.
func featureOwner(features []*model.Feature, id string, mode OwnerMode) (*model.Feature, bool) {
	for _, top := range features {
		var owner *model.Feature
		top.Walk(func(ft *model.Feature) bool {
			if owner != nil {
				return false
			}
			for _, gp := range ft.Geometries {
				if gp.Geometry == nil {
					continue
				}
				gp.Geometry.Walk(func(g *model.Geometry) bool {
					if g.ID == id {
						owner = ft
						return false
					}
					return true
				})
				if owner != nil {
					break
				}
			}
			return owner == nil
		})
		if owner != nil {
			if mode == TopLevel {
				return top, true
			}
			return owner, true
		}
	}
	return nil, false
}

// isTemplateOwned reports whether id names a geometry living inside one
// of the collection's implicit-geometry templates rather than inside any
// feature — such surfaces are instanced per ImplicitGeometry placement,
// so their appearance must stay global.
func isTemplateOwned(templates []*model.ImplicitTemplate, id string) bool {
	for _, t := range templates {
		found := false
		t.Geometry.Walk(func(g *model.Geometry) bool {
			if g.ID == id {
				found = true
				return false
			}
			return true
		})
		if found {
			return true
		}
	}
	return false
}

// Localize converts every eligible surface-data target of global into
// per-feature local appearances, attached to features in the given
// owner mode, skipping any target whose geometry belongs to an implicit
// template (which must remain global). ids supplies fresh identifiers
// for the cloned appearances and surface-data. Localize mutates global
// in place (removing the targets/surface-data/appearance it converts) and
// returns the set of newly created local appearances, keyed by the
// feature they were attached to.
//
// The critical invariant — two targets of the same global surface-data
// pointing into different features must become exactly one local
// surface-data per owning feature, never a duplicated UV list — is
// maintained by grouping targets per (surface-data, owning feature)
// before cloning.
func Localize(global *model.Appearance, features []*model.Feature, templates []*model.ImplicitTemplate, mode OwnerMode, ids idsource.Source) map[*model.Feature][]*model.Appearance {
	created := map[*model.Feature][]*model.Appearance{}

	var remainingSD []*model.SurfaceData
	for _, sd := range global.SurfaceData {
		byOwner := map[*model.Feature][]*model.Target{}
		var staysGlobal []*model.Target

		for _, t := range sd.Targets {
			id := t.GeometryID()
			if isTemplateOwned(templates, id) {
				staysGlobal = append(staysGlobal, t)
				continue
			}
			owner, ok := featureOwner(features, id, mode)
			if !ok {
				staysGlobal = append(staysGlobal, t)
				continue
			}
			byOwner[owner] = append(byOwner[owner], t)
		}

		for owner, targets := range byOwner {
			clone := &model.SurfaceData{
				ID:       ids.NewID(),
				Kind:     sd.Kind,
				ImageURI: sd.ImageURI,
				Targets:  targets,
				Material: copyMaterial(sd.Material),
			}
			local := findLocalAppearance(created[owner], global.Theme)
			if local == nil {
				local = &model.Appearance{ID: ids.NewID(), Theme: global.Theme, Global: false}
				owner.Appearances = append(owner.Appearances, local)
				created[owner] = append(created[owner], local)
			}
			local.SurfaceData = append(local.SurfaceData, clone)
		}

		if len(staysGlobal) > 0 {
			sd.Targets = staysGlobal
			remainingSD = append(remainingSD, sd)
		}
	}

	global.SurfaceData = remainingSD
	return created
}

func findLocalAppearance(candidates []*model.Appearance, theme string) *model.Appearance {
	for _, a := range candidates {
		if a.Theme == theme {
			return a
		}
	}
	return nil
}

func copyMaterial(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Fragment builds the "#id" target URI form used throughout the pipeline.
func Fragment(id string) string {
	return fmt.Sprintf("#%s", id)
}
