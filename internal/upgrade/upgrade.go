// Package upgrade implements the v2/1->v3 Upgrader:
// promoting LoD1/LoD0 surfaces to explicit thematic surfaces, relabeling
// LoD4 as LoD3, resolving or dropping cross-LoD and cross-top-level
// geometry references, and backfilling missing identifiers.
package upgrade

import (
	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
	"citygml-tools/internal/refrewrite"
)

// Options configures which surface promotions run.
type Options struct {
	MapLoD1MultiSurfaces      bool
	MapLoD0RoofEdge           bool
	UseLoD4AsLoD3             bool
	CreateCityObjectRelations bool
}

// Stats tallies what the upgrader did, for the run summary.
type Stats struct {
	ResolvedCrossLoD      int
	RemovedCrossLoD       int
	ResolvedCrossTopLevel int
	CreatedRelations      int
	AssignedUUIDs         int
}

// crossLoDEdge is a reference discovered during the pre-scan:
// refProp.Href is read fresh at resolution time rather than cached,
// since promotion can redirect it through the rewriter.
type crossLoDEdge struct {
	refOwner *model.Feature
	refProp  *model.GeometryProperty
}

// scan is the pre-scan state built once per document: the geometry-owner
// map and the cross-LoD edge set.
type scan struct {
	geometryOwner map[string]*model.Feature // geometry id -> owning top-level feature (by value)
	edges         []crossLoDEdge
}

func preScan(features []*model.Feature) *scan {
	s := &scan{geometryOwner: map[string]*model.Feature{}}

	for _, top := range features {
		top.Walk(func(ft *model.Feature) bool {
			for _, gp := range ft.Geometries {
				if gp.Geometry == nil {
					continue
				}
				gp.Geometry.Walk(func(g *model.Geometry) bool {
					if g.ID != "" {
						s.geometryOwner[g.ID] = top
					}
					return true
				})
			}
			return true
		})
	}

	for _, top := range features {
		top.Walk(func(ft *model.Feature) bool {
			for _, gp := range ft.Geometries {
				if gp.Href == "" {
					continue
				}
				if _, ok := s.geometryOwner[fragmentOf(gp.Href)]; ok {
					s.edges = append(s.edges, crossLoDEdge{refOwner: ft, refProp: gp})
				}
			}
			return true
		})
	}

	return s
}

func fragmentOf(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '#' {
			return uri[i+1:]
		}
	}
	return uri
}

// Upgrader runs the v2/1->v3 transform over a document's top-level
// features.
type Upgrader struct {
	opts     Options
	rewriter *refrewrite.Rewriter
	ids      idsource.Source
	stats    Stats
}

func New(opts Options, rewriter *refrewrite.Rewriter, ids idsource.Source) *Upgrader {
	return &Upgrader{opts: opts, rewriter: rewriter, ids: ids}
}

// Stats returns the tallies accumulated so far.
func (u *Upgrader) Stats() Stats { return u.stats }

// Run applies the full upgrade pipeline to features.
func (u *Upgrader) Run(features []*model.Feature) {
	s := preScan(features)

	// Collect the features first so children that promote creates are not
	// promoted again.
	var all []*model.Feature
	for _, top := range features {
		top.Walk(func(ft *model.Feature) bool {
			all = append(all, ft)
			return true
		})
	}
	for _, ft := range all {
		u.promote(ft)
	}
	for _, top := range features {
		u.rewriter.ResolveInFeature(top)
	}

	u.resolveCrossLoD(s)
	u.resolveCrossTopLevel(features, s)
	u.backfillUUIDs(features)
}

// promote applies the configured surface promotions to a single feature's
// own geometry properties.
func (u *Upgrader) promote(f *model.Feature) {
	var kept []*model.GeometryProperty
	for _, gp := range f.Geometries {
		switch {
		case u.opts.MapLoD1MultiSurfaces && gp.LoD == 1 && gp.Geometry != nil && gp.Geometry.Kind == model.KindMultiSurface:
			f.Children = append(f.Children, wrapThematicSurface(gp, "bldg:GenericThematicSurface", u.ids))
		case u.opts.MapLoD0RoofEdge && gp.LoD == 0 && gp.Geometry != nil && gp.Geometry.Kind == model.KindMultiSurface:
			f.Children = append(f.Children, wrapThematicSurface(gp, "bldg:RoofSurface", u.ids))
		default:
			kept = append(kept, gp)
		}
	}
	f.Geometries = kept

	if u.opts.UseLoD4AsLoD3 {
		relabelLoD4AsLoD3(f, u.rewriter)
	}
}

// wrapThematicSurface builds the nested thematic-surface feature a
// promoted LoD1/LoD0 MultiSurface is wrapped in, carrying the original
// geometry property unchanged: the surface keeps its one representation
// and is referenced from the object as a bounded-by member.
func wrapThematicSurface(gp *model.GeometryProperty, surfaceType string, ids idsource.Source) *model.Feature {
	return &model.Feature{
		ID:         ids.NewID(),
		Type:       surfaceType,
		Geometries: []*model.GeometryProperty{gp},
	}
}

// relabelLoD4AsLoD3 drops any pre-existing by-value LoD3 geometry and
// relabels every by-value LoD4 property (and its property name) as LoD3.
// Href properties are left alone here
// — they are not representations being promoted, just references that
// happen to carry an LoD number; a reference elsewhere in the document
// that targeted the dropped LoD3 geometry by id is redirected, through
// rewriter, to the promoted LoD4-turned-LoD3 geometry rather than being
// left dangling.
func relabelLoD4AsLoD3(f *model.Feature, rewriter *refrewrite.Rewriter) {
	var dropped, promoted, kept []*model.GeometryProperty
	for _, gp := range f.Geometries {
		if gp.Geometry != nil && gp.LoD == 3 {
			dropped = append(dropped, gp)
			continue
		}
		kept = append(kept, gp)
	}
	for _, gp := range kept {
		if gp.Geometry != nil && gp.LoD == 4 {
			gp.LoD = 3
			gp.Name = relabelPropertyName(gp.Name, 4, 3)
			promoted = append(promoted, gp)
		}
	}
	f.Geometries = kept

	for i, old := range dropped {
		if i >= len(promoted) {
			continue
		}
		rewriter.Register(old.Geometry.ID, promoted[i].Geometry.ID)
	}
}

func relabelPropertyName(name string, from, to int) string {
	prefix := "lod" + itoa(from)
	if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
		return "lod" + itoa(to) + name[len(prefix):]
	}
	return name
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	return string(rune('0' + n))
}

// resolveCrossLoD applies the cross-LoD reference-resolution rule
//: a reference whose source LoD and target LoD are
// both still present in their respective owners after promotion is left
// in place; otherwise it is dropped.
func (u *Upgrader) resolveCrossLoD(s *scan) {
	survivingIDs := map[string]bool{}
	for id, owner := range s.geometryOwner {
		if ownerStillHasInlineGeometry(owner, id) {
			survivingIDs[id] = true
		}
	}

	for _, e := range s.edges {
		targetID := fragmentOf(e.refProp.Href)
		refLoDs := e.refOwner.LoDSet()
		if refLoDs[e.refProp.LoD] && survivingIDs[targetID] {
			u.stats.ResolvedCrossLoD++
			continue
		}
		u.stats.RemovedCrossLoD++
		removeGeometryProperty(e.refOwner, e.refProp)
	}
}

func ownerStillHasInlineGeometry(owner *model.Feature, id string) bool {
	found := false
	owner.Walk(func(ft *model.Feature) bool {
		for _, gp := range ft.Geometries {
			if gp.Geometry == nil {
				continue
			}
			gp.Geometry.Walk(func(g *model.Geometry) bool {
				if g.ID == id {
					found = true
					return false
				}
				return true
			})
			if found {
				return false
			}
		}
		return !found
	})
	return found
}

func removeGeometryProperty(f *model.Feature, target *model.GeometryProperty) {
	target.Href = "" // so a later pass over the same edge treats it as gone
	f.Walk(func(ft *model.Feature) bool {
		kept := ft.Geometries[:0]
		for _, gp := range ft.Geometries {
			if gp == target {
				continue
			}
			kept = append(kept, gp)
		}
		ft.Geometries = kept
		return true
	})
}

// resolveCrossTopLevel leaves cross-top-level hrefs in place (the
// referencing object is never the owner) and, when configured, inserts an
// explicit CityObjectRelation link on both sides of the sharing
// relationship.
func (u *Upgrader) resolveCrossTopLevel(features []*model.Feature, s *scan) {
	seen := map[[2]string]bool{}
	for _, e := range s.edges {
		owner := s.geometryOwner[fragmentOf(e.refProp.Href)]
		if owner == nil || owner == e.refOwner {
			continue
		}
		u.stats.ResolvedCrossTopLevel++

		pair := [2]string{owner.ID, e.refOwner.ID}
		if pair[0] > pair[1] {
			pair[0], pair[1] = pair[1], pair[0]
		}
		if seen[pair] {
			continue
		}
		seen[pair] = true

		if u.opts.CreateCityObjectRelations {
			addRelation(owner, e.refOwner.ID)
			u.stats.CreatedRelations++
			addRelation(e.refOwner, owner.ID)
			u.stats.CreatedRelations++
		}
	}
}

// addRelation appends a minimal CityObjectRelation child, modeled as a
// nested feature carrying the href of the related object.
func addRelation(f *model.Feature, relatedID string) {
	f.Children = append(f.Children, &model.Feature{
		Type:       "core:relatedTo",
		Attributes: map[string]string{"href": "#" + relatedID},
	})
}

// backfillUUIDs assigns a fresh random identifier to every feature in the
// document (top-level or nested) that lacks one.
func (u *Upgrader) backfillUUIDs(features []*model.Feature) {
	for _, top := range features {
		top.Walk(func(ft *model.Feature) bool {
			if ft.ID == "" {
				ft.ID = u.ids.NewID()
				u.stats.AssignedUUIDs++
			}
			return true
		})
	}
}
