// Package reproject implements the Reprojector:
// transforming every coordinate in a feature's geometry tree from its
// source CRS to a configured target CRS, with memoized CRS and transform
// lookups shared across a whole run.
package reproject

import (
	"sync"

	"github.com/lukeroth/gdal"

	"citygml-tools/internal/errs"
	"citygml-tools/internal/model"
)

// Options configures a reprojection pass.
type Options struct {
	TargetCRS        string // EPSG code, URN, or inline WKT
	FallbackSRS      string // used when a geometry has no srsName and none is inherited
	SwapSourceXY     bool
	KeepHeightValues bool
}

type transformKey struct{ src, dst string }

// Reprojector owns the CRS-name and (src,dst)-transform caches, both
// concurrency-safe under parallel feature workers.
type Reprojector struct {
	opts Options

	crsMu     sync.RWMutex
	crsByName map[string]gdal.SpatialReference

	txMu       sync.RWMutex
	transforms map[transformKey]gdal.CoordinateTransform
}

func New(opts Options) *Reprojector {
	return &Reprojector{
		opts:       opts,
		crsByName:  map[string]gdal.SpatialReference{},
		transforms: map[transformKey]gdal.CoordinateTransform{},
	}
}

// crs resolves name (an EPSG code like "EPSG:25832", a URN, or raw WKT) to
// a gdal.SpatialReference, memoized by name under a put-if-absent lock.
func (r *Reprojector) crs(name string) (gdal.SpatialReference, error) {
	r.crsMu.RLock()
	sr, ok := r.crsByName[name]
	r.crsMu.RUnlock()
	if ok {
		return sr, nil
	}

	sr = gdal.CreateSpatialReference("")
	var err error
	switch {
	case looksLikeWKT(name):
		err = sr.FromWKT(name)
	default:
		code, codeErr := epsgCode(name)
		if codeErr != nil {
			return gdal.SpatialReference{}, errs.Wrap(errs.MissingCRS, "decode CRS "+name, codeErr)
		}
		err = sr.FromEPSG(code)
	}
	if err != nil {
		return gdal.SpatialReference{}, errs.Wrap(errs.MissingCRS, "decode CRS "+name, err)
	}

	r.crsMu.Lock()
	r.crsByName[name] = sr
	r.crsMu.Unlock()
	return sr, nil
}

func looksLikeWKT(name string) bool {
	return len(name) > 0 && (name[0] == '[' || hasPrefix(name, "GEOGCS") || hasPrefix(name, "PROJCS"))
}

func hasPrefix(s, p string) bool {
	return len(s) >= len(p) && s[:len(p)] == p
}

// epsgCode extracts the numeric code from a bare number, an "EPSG:nnnn"
// pair, or a "urn:ogc:def:crs:EPSG::nnnn" URN.
func epsgCode(name string) (int, error) {
	digits := ""
	for i := len(name) - 1; i >= 0 && name[i] >= '0' && name[i] <= '9'; i-- {
		digits = string(name[i]) + digits
	}
	if digits == "" {
		return 0, errs.New(errs.MissingCRS, "no EPSG code in CRS name "+name)
	}
	code := 0
	for _, d := range digits {
		code = code*10 + int(d-'0')
	}
	return code, nil
}

// transform resolves the cached forward transform from src to dst,
// building it on first use.
func (r *Reprojector) transform(src, dst string) (gdal.CoordinateTransform, error) {
	key := transformKey{src, dst}

	r.txMu.RLock()
	t, ok := r.transforms[key]
	r.txMu.RUnlock()
	if ok {
		return t, nil
	}

	srcCRS, err := r.crs(src)
	if err != nil {
		return gdal.CoordinateTransform{}, err
	}
	dstCRS, err := r.crs(dst)
	if err != nil {
		return gdal.CoordinateTransform{}, err
	}

	t = gdal.CreateCoordinateTransform(srcCRS, dstCRS)

	r.txMu.Lock()
	r.transforms[key] = t
	r.txMu.Unlock()
	return t, nil
}

// Apply reprojects every geometry in f from its effective source CRS to
// r.opts.TargetCRS.
func (r *Reprojector) Apply(f *model.Feature) error {
	var walkErr error
	f.Walk(func(ft *model.Feature) bool {
		for _, gp := range ft.Geometries {
			if gp.Geometry == nil {
				continue
			}
			if err := r.applyGeometry(gp.Geometry, ""); err != nil {
				walkErr = err
				return false
			}
		}
		return true
	})
	if walkErr != nil {
		return walkErr
	}

	unsetSRSNames(f)
	r.recomputeBoundedBy(f)
	return nil
}

// applyGeometry transforms g and its descendants, threading the nearest
// ancestor srsName down for inheritance.
func (r *Reprojector) applyGeometry(g *model.Geometry, inheritedSRS string) error {
	srs := g.SRSName
	if srs == "" {
		srs = inheritedSRS
	}
	if srs == "" {
		srs = r.opts.FallbackSRS
	}
	if srs == "" {
		return errs.New(errs.MissingCRS, "geometry "+g.ID+" has no resolvable CRS")
	}

	if g.Kind == model.KindImplicitGeometry {
		return r.applyImplicitGeometry(g, srs)
	}

	t, err := r.transform(srs, r.opts.TargetCRS)
	if err != nil {
		return err
	}
	if err := r.transformPoints(t, g.Points); err != nil {
		return err
	}

	for _, child := range g.Children {
		if err := r.applyGeometry(child, srs); err != nil {
			return err
		}
	}
	return nil
}

// applyImplicitGeometry moves the affine matrix's translation column into
// the reference point, zeroes it, and transforms only the reference point
// — the template geometry stays in its model-local frame.
func (r *Reprojector) applyImplicitGeometry(g *model.Geometry, srs string) error {
	tx, ty, tz := g.Transform[3], g.Transform[7], g.Transform[11]
	g.Transform[3], g.Transform[7], g.Transform[11] = 0, 0, 0

	if g.ReferencePoint == nil {
		g.ReferencePoint = &model.Point3{}
	}
	g.ReferencePoint.X += tx
	g.ReferencePoint.Y += ty
	g.ReferencePoint.Z += tz

	t, err := r.transform(srs, r.opts.TargetCRS)
	if err != nil {
		return err
	}
	ref := (*[1]model.Point3)(g.ReferencePoint)[:]
	return r.transformPoints(t, ref)
}

// transformPoints runs the forward transform over pts in place, honoring
// the swap-xy and keep-height-values policies.
func (r *Reprojector) transformPoints(t gdal.CoordinateTransform, pts []model.Point3) error {
	if len(pts) == 0 {
		return nil
	}
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	zs := make([]float64, len(pts))
	for i, p := range pts {
		if r.opts.SwapSourceXY {
			xs[i], ys[i] = p.Y, p.X
		} else {
			xs[i], ys[i] = p.X, p.Y
		}
		zs[i] = p.Z
	}

	t.Transform(len(pts), xs, ys, zs)

	for i := range pts {
		pts[i].X, pts[i].Y = xs[i], ys[i]
		if !r.opts.KeepHeightValues {
			pts[i].Z = zs[i]
		}
	}
	return nil
}

// unsetSRSNames clears every descendant geometry's own srsName — after
// reprojection the target CRS is recorded once, on the feature's
// bounded-by.
func unsetSRSNames(f *model.Feature) {
	for _, gp := range f.AllGeometries() {
		if gp.Geometry == nil {
			continue
		}
		gp.Geometry.Walk(func(g *model.Geometry) bool {
			g.SRSName = ""
			return true
		})
	}
}

func (r *Reprojector) recomputeBoundedBy(f *model.Feature) {
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
		env.SRSName = r.opts.TargetCRS
		env.SRSDimension = 3
		f.BoundedBy = env
	}
}
