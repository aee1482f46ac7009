package model

// GeometryKind is the small, fixed set of geometry variants CityGML
// exposes at the level this tool cares about. Kept as a tagged variant
// rather than a type hierarchy: a fixed enum with an exhaustive switch
// is simpler than an open class hierarchy for something this closed.
type GeometryKind int

const (
	KindPoint GeometryKind = iota
	KindLineString
	KindLinearRing
	KindCurve
	KindPolygon
	KindMultiSurface
	KindSolid
	KindImplicitGeometry
)

func (k GeometryKind) String() string {
	switch k {
	case KindPoint:
		return "Point"
	case KindLineString:
		return "LineString"
	case KindLinearRing:
		return "LinearRing"
	case KindCurve:
		return "Curve"
	case KindPolygon:
		return "Polygon"
	case KindMultiSurface:
		return "MultiSurface"
	case KindSolid:
		return "Solid"
	case KindImplicitGeometry:
		return "ImplicitGeometry"
	default:
		return "Unknown"
	}
}

// Geometry is the discriminated union over every geometry variant the
// pipeline rewrites. Children hold nested geometry: for Polygon, index 0
// is the exterior LinearRing and the rest are interior rings; for
// MultiSurface and Solid, children are the member surfaces (or, for Solid,
// the exterior/interior shells, themselves MultiSurface-shaped).
type Geometry struct {
	Kind GeometryKind
	ID   string

	// SRSName is the geometry's own CRS, if explicitly set. An empty
	// value means "inherit from the nearest ancestor that has one."
	SRSName string

	Points   []Point3
	Children []*Geometry

	// ImplicitGeometry-only fields.
	TemplateID     string
	Transform      [16]float64 // row-major 4x4 affine
	ReferencePoint *Point3

	// Href, when non-empty, means this geometry property is merely an
	// xlink reference to a geometry defined elsewhere in the document
	// (cross-LoD or cross-top-level sharing, sections 4.7/4.8). When Href
	// is set the other fields are zero value.
	Href string
}

// IsReference reports whether this geometry slot is an xlink href rather
// than an inline definition.
func (g *Geometry) IsReference() bool {
	return g != nil && g.Href != ""
}

// Walk performs a depth-first pre-order traversal, calling fn for g and
// every descendant. If fn returns false for a node, that node's
// descendants are skipped; its siblings are still visited.
func (g *Geometry) Walk(fn func(*Geometry) bool) {
	if g == nil {
		return
	}
	if !fn(g) {
		return
	}
	for _, c := range g.Children {
		c.Walk(fn)
	}
}

// EffectiveSRS resolves g's CRS by walking up the ancestor chain supplied
// by the caller: an unset CRS is inherited from the nearest ancestor that
// has one, falling back to fallback when nothing in the chain carries one.
func EffectiveSRS(g *Geometry, ancestors []string, fallback string) string {
	if g.SRSName != "" {
		return g.SRSName
	}
	for i := len(ancestors) - 1; i >= 0; i-- {
		if ancestors[i] != "" {
			return ancestors[i]
		}
	}
	return fallback
}

// GeometryProperty is a named slot on a feature that carries an LoD, e.g.
// "lod2Solid" or "lod1MultiSurface". Geometry is nil exactly when Href is
// set (the property is a cross-reference rather than an inline geometry).
type GeometryProperty struct {
	Name     string // e.g. "lod2Solid"
	LoD      int
	Geometry *Geometry
	Href     string
}
