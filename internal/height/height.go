// Package height implements the change-height subcommand's terrain
// adjustment: sampling a digital terrain model raster at each vertex's
// (X, Y) and rewriting its Z, in either absolute (drape-on-DTM) or
// relative (offset-above-DTM) mode.
package height

import (
	"math"

	"github.com/lukeroth/gdal"

	"citygml-tools/internal/errs"
	"citygml-tools/internal/model"
)

// Mode picks how a sampled DTM elevation is combined with a vertex's
// existing Z.
type Mode int

const (
	// Absolute replaces Z with the sampled DTM elevation plus Offset.
	Absolute Mode = iota
	// Relative adds the sampled DTM elevation plus Offset to the vertex's
	// existing Z.
	Relative
)

// Options configures one change-height run.
type Options struct {
	Mode      Mode
	Offset    float64
	Bilinear  bool // interpolate among the 4 nearest DTM cells instead of nearest-cell sampling
}

// Stats tallies what a run did, mirroring the summary line a DTM-driven
// elevation pass reports.
type Stats struct {
	AdjustedVertices int
	SkippedVertices  int // outside the DTM extent or over a NoData cell
	MinAdjustment    float64
	MaxAdjustment    float64
	TotalAdjustment  float64
}

func (s *Stats) record(delta float64) {
	s.AdjustedVertices++
	s.TotalAdjustment += delta
	if s.AdjustedVertices == 1 || delta < s.MinAdjustment {
		s.MinAdjustment = delta
	}
	if s.AdjustedVertices == 1 || delta > s.MaxAdjustment {
		s.MaxAdjustment = delta
	}
}

// Average returns the mean per-vertex adjustment, or 0 if nothing was
// adjusted.
func (s *Stats) Average() float64 {
	if s.AdjustedVertices == 0 {
		return 0
	}
	return s.TotalAdjustment / float64(s.AdjustedVertices)
}

// DTM wraps an open digital terrain model raster and the inverse
// geotransform used to map world (X, Y) to pixel coordinates.
type DTM struct {
	dataset      gdal.Dataset
	band         gdal.RasterBand
	geoTransform [6]float64
	inverse      [6]float64
	width        int
	height       int
	noData       float64
	hasNoData    bool
}

// OpenDTM opens path as a single-band elevation raster.
func OpenDTM(path string) (*DTM, error) {
	ds, ok := gdal.Open(path, gdal.ReadOnly)
	if !ok {
		return nil, errs.New(errs.IO, "open DTM raster "+path)
	}

	gt := ds.GeoTransform()
	inv, ok := invertGeoTransform(gt)
	if !ok {
		return nil, errs.New(errs.IO, "DTM raster "+path+" has a degenerate geotransform")
	}

	band := ds.RasterBand(1)
	noData, hasNoData := band.NoDataValue()

	return &DTM{
		dataset:      ds,
		band:         band,
		geoTransform: gt,
		inverse:      inv,
		width:        ds.RasterXSize(),
		height:       ds.RasterYSize(),
		noData:       noData,
		hasNoData:    hasNoData,
	}, nil
}

// Close releases the underlying raster dataset.
func (d *DTM) Close() {
	d.dataset.Close()
}

// invertGeoTransform inverts the affine pixel->world transform GDAL
// stores per raster, so ElevationAt can go world->pixel.
func invertGeoTransform(gt [6]float64) ([6]float64, bool) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 {
		return [6]float64{}, false
	}
	inv := [6]float64{}
	inv[1] = gt[5] / det
	inv[2] = -gt[2] / det
	inv[4] = -gt[4] / det
	inv[5] = gt[1] / det
	inv[0] = -gt[0]*inv[1] - gt[3]*inv[2]
	inv[3] = -gt[0]*inv[4] - gt[3]*inv[5]
	return inv, true
}

func (d *DTM) worldToPixel(x, y float64) (float64, float64) {
	px := d.inverse[0] + d.inverse[1]*x + d.inverse[2]*y
	py := d.inverse[3] + d.inverse[4]*x + d.inverse[5]*y
	return px, py
}

// ElevationAt samples the DTM at world coordinates (x, y), nearest-cell
// or bilinear depending on bilinear, returning ok=false if the point
// falls outside the raster or lands on a NoData cell. Bilinear sampling
// falls back to the nearest cell, under the same rule, when any of the
// four neighbouring cells is missing.
func (d *DTM) ElevationAt(x, y float64, bilinear bool) (float64, bool) {
	px, py := d.worldToPixel(x, y)
	if bilinear {
		return d.bilinearAt(px, py)
	}
	return d.nearestAt(int(math.Floor(px)), int(math.Floor(py)))
}

func (d *DTM) nearestAt(px, py int) (float64, bool) {
	if px < 0 || px >= d.width || py < 0 || py >= d.height {
		return 0, false
	}
	buf := make([]float64, 1)
	if err := d.band.IO(gdal.Read, px, py, 1, 1, buf, 1, 1, 0, 0); err != nil {
		return 0, false
	}
	v := buf[0]
	if d.hasNoData && v == d.noData {
		return 0, false
	}
	return v, true
}

func (d *DTM) bilinearAt(px, py float64) (float64, bool) {
	x0, y0 := int(math.Floor(px-0.5)), int(math.Floor(py-0.5))
	fx, fy := px-0.5-float64(x0), py-0.5-float64(y0)

	v00, ok00 := d.nearestAt(x0, y0)
	v10, ok10 := d.nearestAt(x0+1, y0)
	v01, ok01 := d.nearestAt(x0, y0+1)
	v11, ok11 := d.nearestAt(x0+1, y0+1)
	if !ok00 || !ok10 || !ok01 || !ok11 {
		return d.nearestAt(int(math.Floor(px)), int(math.Floor(py)))
	}

	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy, true
}

// Adjuster applies a DTM-driven height change to every point in a
// feature's geometry tree.
type Adjuster struct {
	dtm   *DTM
	opts  Options
	stats Stats
}

func NewAdjuster(dtm *DTM, opts Options) *Adjuster {
	return &Adjuster{dtm: dtm, opts: opts}
}

func (a *Adjuster) Stats() Stats { return a.stats }

// Apply rewrites the Z of every point in f's geometry tree, sampling the
// DTM raster at each point's X/Y and adding the constant Offset on top.
// Points the DTM gives no value for are left unchanged.
func (a *Adjuster) Apply(f *model.Feature) {
	for _, gp := range f.AllGeometries() {
		if gp.Geometry == nil {
			continue
		}
		gp.Geometry.Walk(func(g *model.Geometry) bool {
			for i := range g.Points {
				a.adjustPoint(&g.Points[i])
			}
			return true
		})
	}
}

func (a *Adjuster) adjustPoint(p *model.Point3) {
	elevation, ok := a.dtm.ElevationAt(p.X, p.Y, a.opts.Bilinear)
	if !ok {
		a.stats.SkippedVertices++
		return
	}

	before := p.Z
	switch a.opts.Mode {
	case Absolute:
		p.Z = elevation + a.opts.Offset
	case Relative:
		p.Z = p.Z + elevation + a.opts.Offset
	}
	a.stats.record(p.Z - before)
}
