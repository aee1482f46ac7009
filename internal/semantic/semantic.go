// Package semantic implements the classify-surfaces subcommand: for a
// feature whose LoD2-or-higher representation is a flat, unthematized
// MultiSurface or Solid (no WallSurface/RoofSurface/GroundSurface
// children), it buckets each member polygon into Roof, Wall, or Ground
// by face-normal orientation and wraps each bucket into a typed boundary
// surface child, the same "wrap a flat representation into typed
// children" move the upgrader uses for LoD1 multi-surfaces.
package semantic

import (
	"math"

	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
)

// Class is a CityGML boundary surface classification.
type Class int

const (
	ClassRoof Class = iota
	ClassWall
	ClassGround
)

func (c Class) surfaceType() string {
	switch c {
	case ClassWall:
		return "bldg:WallSurface"
	case ClassGround:
		return "bldg:GroundSurface"
	default:
		return "bldg:RoofSurface"
	}
}

// Options configures the classification thresholds.
type Options struct {
	// WallNormalZ is the |normal.Z| ceiling below which a face counts as
	// vertical (a wall). Faces at or above it are horizontal candidates.
	WallNormalZ float64 // default 0.1

	// GroundNormalZ is the |normal.Z| floor a near-horizontal face must
	// clear, combined with GroundTolerance against the document's
	// estimated ground height, to classify as ground rather than roof.
	GroundNormalZ float64 // default 0.95

	// GroundTolerance is how close (in the geometry's own units) a
	// near-horizontal face's centroid Z must be to the estimated ground
	// height to count as ground.
	GroundTolerance float64 // default 0.5

	// SkipThematized leaves a feature's geometry alone if it already has
	// at least one WallSurface/RoofSurface/GroundSurface/ClosureSurface
	// child (the usual
	// case — classification only fills in what upstream data omitted).
	SkipThematized bool
}

func (o Options) withDefaults() Options {
	if o.WallNormalZ == 0 {
		o.WallNormalZ = 0.1
	}
	if o.GroundNormalZ == 0 {
		o.GroundNormalZ = 0.95
	}
	if o.GroundTolerance == 0 {
		o.GroundTolerance = 0.5
	}
	return o
}

// Stats tallies what a classification run did.
type Stats struct {
	ClassifiedFeatures int
	RoofSurfaces       int
	WallSurfaces       int
	GroundSurfaces     int
	SkippedThematized  int
}

var thematizedTypes = map[string]bool{
	"bldg:WallSurface":   true,
	"bldg:RoofSurface":   true,
	"bldg:GroundSurface": true,
	"bldg:ClosureSurface": true,
}

// Classify walks every top-level feature's subtree, classifying each
// unthematized LoD2+ MultiSurface or Solid it finds.
func Classify(features []*model.Feature, opts Options, ids idsource.Source) Stats {
	opts = opts.withDefaults()
	var stats Stats
	// Collect the features first so the boundary surfaces that
	// classifyFeature creates are not classified again.
	var all []*model.Feature
	for _, top := range features {
		top.Walk(func(f *model.Feature) bool {
			all = append(all, f)
			return true
		})
	}
	for _, f := range all {
		classifyFeature(f, opts, ids, &stats)
	}
	return stats
}

func classifyFeature(f *model.Feature, opts Options, ids idsource.Source, stats *Stats) {
	if opts.SkipThematized && hasThematizedChild(f) {
		stats.SkippedThematized++
		return
	}

	var kept []*model.GeometryProperty
	for _, gp := range f.Geometries {
		if gp.LoD < 2 || gp.Geometry == nil {
			kept = append(kept, gp)
			continue
		}
		switch gp.Geometry.Kind {
		case model.KindMultiSurface, model.KindSolid:
			polys := memberPolygons(gp.Geometry)
			if len(polys) == 0 {
				kept = append(kept, gp)
				continue
			}
			children := classifyPolygons(polys, gp.Name, gp.LoD, opts, ids, stats)
			f.Children = append(f.Children, children...)
			stats.ClassifiedFeatures++
		default:
			kept = append(kept, gp)
		}
	}
	f.Geometries = kept
}

func hasThematizedChild(f *model.Feature) bool {
	for _, c := range f.Children {
		if thematizedTypes[c.Type] {
			return true
		}
	}
	return false
}

// memberPolygons collects every Polygon geometry directly or indirectly
// owned by g (flattening Solid's shell level, as the CityJSON encoder's
// encodeGeometry does when it writes boundaries).
func memberPolygons(g *model.Geometry) []*model.Geometry {
	var out []*model.Geometry
	g.Walk(func(n *model.Geometry) bool {
		if n.Kind == model.KindPolygon {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// classifyPolygons buckets polys by class and wraps each non-empty bucket
// into a typed boundary-surface feature owning one MultiSurface geometry
// property at lod, mirroring upgrade.wrapThematicSurface.
func classifyPolygons(polys []*model.Geometry, name string, lod int, opts Options, ids idsource.Source, stats *Stats) []*model.Feature {
	groundHeight := estimateGroundHeight(polys)
	buckets := map[Class][]*model.Geometry{}
	for _, poly := range polys {
		class := classifyPolygon(poly, groundHeight, opts)
		buckets[class] = append(buckets[class], poly)
	}

	var children []*model.Feature
	for _, class := range []Class{ClassGround, ClassWall, ClassRoof} {
		members := buckets[class]
		if len(members) == 0 {
			continue
		}
		ms := &model.Geometry{Kind: model.KindMultiSurface, ID: ids.NewID(), Children: members}
		child := &model.Feature{
			ID:   ids.NewID(),
			Type: class.surfaceType(),
			Geometries: []*model.GeometryProperty{
				{Name: name, LoD: lod, Geometry: ms},
			},
		}
		children = append(children, child)
		switch class {
		case ClassRoof:
			stats.RoofSurfaces += len(members)
		case ClassWall:
			stats.WallSurfaces += len(members)
		case ClassGround:
			stats.GroundSurfaces += len(members)
		}
	}
	return children
}

func classifyPolygon(poly *model.Geometry, groundHeight float64, opts Options) Class {
	ring := exteriorRing(poly)
	normal := faceNormal(ring)
	centroid := centroidOf(ring)

	switch {
	case math.Abs(normal.Z) >= opts.GroundNormalZ && math.Abs(centroid.Z-groundHeight) <= opts.GroundTolerance:
		return ClassGround
	case math.Abs(normal.Z) < opts.WallNormalZ:
		return ClassWall
	default:
		return ClassRoof
	}
}

func exteriorRing(poly *model.Geometry) []model.Point3 {
	if len(poly.Children) > 0 {
		return poly.Children[0].Points
	}
	return poly.Points
}

// faceNormal computes a planar polygon's unit normal via Newell's method,
// robust to the exact triangulation and to mild non-planarity, unlike a
// single cross product taken from just one of the ring's triangles.
func faceNormal(ring []model.Point3) model.Point3 {
	var n model.Point3
	count := len(ring)
	if count < 3 {
		return n
	}
	for i := 0; i < count; i++ {
		p0 := ring[i]
		p1 := ring[(i+1)%count]
		n.X += (p0.Y - p1.Y) * (p0.Z + p1.Z)
		n.Y += (p0.Z - p1.Z) * (p0.X + p1.X)
		n.Z += (p0.X - p1.X) * (p0.Y + p1.Y)
	}
	mag := math.Sqrt(n.X*n.X + n.Y*n.Y + n.Z*n.Z)
	if mag == 0 {
		return model.Point3{}
	}
	return model.Point3{X: n.X / mag, Y: n.Y / mag, Z: n.Z / mag}
}

func centroidOf(ring []model.Point3) model.Point3 {
	var c model.Point3
	if len(ring) == 0 {
		return c
	}
	for _, p := range ring {
		c.X += p.X
		c.Y += p.Y
		c.Z += p.Z
	}
	n := float64(len(ring))
	return model.Point3{X: c.X / n, Y: c.Y / n, Z: c.Z / n}
}

// estimateGroundHeight finds the lowest significant Z histogram peak
// across every vertex of polys, separating a building's footprint plane
// from its upper surfaces without assuming Z=0 is the ground.
func estimateGroundHeight(polys []*model.Geometry) float64 {
	var zs []float64
	for _, poly := range polys {
		for _, p := range exteriorRing(poly) {
			zs = append(zs, p.Z)
		}
	}
	if len(zs) == 0 {
		return 0
	}

	minZ, maxZ := zs[0], zs[0]
	for _, z := range zs {
		if z < minZ {
			minZ = z
		}
		if z > maxZ {
			maxZ = z
		}
	}
	const bins = 50
	binWidth := (maxZ - minZ) / bins
	if binWidth == 0 {
		return minZ
	}

	hist := make([]int, bins)
	for _, z := range zs {
		idx := int((z - minZ) / binWidth)
		if idx >= bins {
			idx = bins - 1
		}
		hist[idx]++
	}

	maxCount := 0
	for _, c := range hist {
		if c > maxCount {
			maxCount = c
		}
	}
	threshold := float64(maxCount) * 0.1
	for i, c := range hist {
		if float64(c) > threshold {
			return minZ + float64(i)*binWidth
		}
	}
	return minZ
}


