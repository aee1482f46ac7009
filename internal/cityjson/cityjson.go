// Package cityjson converts between internal/model's CityGML-shaped
// feature tree and CityJSON 1.0/1.1/2.0 documents, including the
// JSON-Lines "CityJSONFeature" streaming variant.
package cityjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"citygml-tools/internal/errs"
	"citygml-tools/internal/model"
)

// Document is a full (non-streamed) CityJSON document.
type Document struct {
	Type        string              `json:"type"`
	Version     string              `json:"version"`
	Transform   Transform           `json:"transform"`
	Vertices    [][3]int64          `json:"vertices"`
	CityObjects map[string]Object   `json:"CityObjects"`
	Metadata    *Metadata           `json:"metadata,omitempty"`
}

// Transform is the scale/translate pair CityJSON uses to store vertices
// as quantized integers.
type Transform struct {
	Scale     [3]float64 `json:"scale"`
	Translate [3]float64 `json:"translate"`
}

type Metadata struct {
	GeographicalExtent []float64 `json:"geographicalExtent,omitempty"`
	ReferenceSystem    string    `json:"referenceSystem,omitempty"`
}

// Object is one CityObject entry, keyed by id in Document.CityObjects.
type Object struct {
	Type       string         `json:"type"`
	Geometry   []Geometry     `json:"geometry,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Children   []string       `json:"children,omitempty"`
	Parents    []string       `json:"parents,omitempty"`
}

// Geometry is one representation of an object at a given LoD. Boundaries
// holds the nested index arrays CityJSON's spec defines per geometry
// type (ring -> surface -> shell, one level shallower per type); it is
// built and walked generically since Go has no variable-depth array
// type.
type Geometry struct {
	Type        string `json:"type"`
	LoD         string `json:"lod"`
	Boundaries  any    `json:"boundaries"`
}

// Mode picks which representation wins when more than one geometry
// property shares a CityGML LoD integer.
type Mode int

const (
	Maximum Mode = iota
	Minimum
)

// LoDPolicy maps each CityGML LoD integer to a selection Mode; entries
// not present default to Maximum.
type LoDPolicy map[int]Mode

func (p LoDPolicy) modeFor(lod int) Mode {
	if m, ok := p[lod]; ok {
		return m
	}
	return Maximum
}

// LoDString renders CityGML's integer LoD L as CityJSON's "X.Y" form,
// X = L.
func LoDString(l int) string {
	return fmt.Sprintf("%d.0", l)
}

var kindRank = map[model.GeometryKind]int{
	model.KindPoint:      0,
	model.KindLineString: 1,
	model.KindCurve:      1,
	model.KindLinearRing: 1,
	model.KindPolygon:    2,
	model.KindMultiSurface: 3,
	model.KindSolid:        4,
}

// selectByLoD groups gps by LoD and, for each LoD with more than one
// representation, keeps the one the policy's mode picks (richest
// geometry kind for Maximum, simplest for Minimum).
func selectByLoD(gps []*model.GeometryProperty, policy LoDPolicy) map[int]*model.GeometryProperty {
	out := map[int]*model.GeometryProperty{}
	for _, gp := range gps {
		if gp.Geometry == nil {
			continue
		}
		cur, ok := out[gp.LoD]
		if !ok {
			out[gp.LoD] = gp
			continue
		}
		mode := policy.modeFor(gp.LoD)
		if better(gp, cur, mode) {
			out[gp.LoD] = gp
		}
	}
	return out
}

func better(candidate, incumbent *model.GeometryProperty, mode Mode) bool {
	cr, ir := kindRank[candidate.Geometry.Kind], kindRank[incumbent.Geometry.Kind]
	if mode == Maximum {
		return cr > ir
	}
	return cr < ir
}

// vertexPool deduplicates 3-D points into the shared Document.Vertices
// array, quantizing each coordinate against a scale/translate pair
// (CityJSON's standard lossy-compression convention).
type vertexPool struct {
	transform Transform
	index     map[[3]int64]int
	vertices  [][3]int64
}

func newVertexPool() *vertexPool {
	return &vertexPool{
		transform: Transform{Scale: [3]float64{0.001, 0.001, 0.001}},
		index:     map[[3]int64]int{},
	}
}

func (p *vertexPool) add(pt model.Point3) int {
	key := [3]int64{
		quantize(pt.X, p.transform.Scale[0], p.transform.Translate[0]),
		quantize(pt.Y, p.transform.Scale[1], p.transform.Translate[1]),
		quantize(pt.Z, p.transform.Scale[2], p.transform.Translate[2]),
	}
	if i, ok := p.index[key]; ok {
		return i
	}
	i := len(p.vertices)
	p.vertices = append(p.vertices, key)
	p.index[key] = i
	return i
}

func quantize(v, scale, translate float64) int64 {
	if scale == 0 {
		scale = 1
	}
	return int64((v - translate) / scale)
}

func (p *vertexPool) point(i int) model.Point3 {
	v := p.vertices[i]
	return model.Point3{
		X: float64(v[0])*p.transform.Scale[0] + p.transform.Translate[0],
		Y: float64(v[1])*p.transform.Scale[1] + p.transform.Translate[1],
		Z: float64(v[2])*p.transform.Scale[2] + p.transform.Translate[2],
		Is3D: true,
	}
}

// FromModel builds a full Document from a set of top-level features,
// using policy to collapse each object's set of CityGML LoDs down to the
// single LoD CityJSON represents per geometry.
func FromModel(features []*model.Feature, version string, policy LoDPolicy) (*Document, error) {
	pool := newVertexPool()
	doc := &Document{
		Type:        "CityJSON",
		Version:     version,
		CityObjects: map[string]Object{},
	}

	for _, f := range features {
		if err := encodeFeature(f, "", doc, pool, policy); err != nil {
			return nil, err
		}
	}

	doc.Transform = pool.transform
	doc.Vertices = pool.vertices
	return doc, nil
}

func encodeFeature(f *model.Feature, parentID string, doc *Document, pool *vertexPool, policy LoDPolicy) error {
	id := f.ID
	obj := Object{Type: objectType(f.Type), Attributes: attrsAsAny(f.Attributes)}
	if parentID != "" {
		obj.Parents = []string{parentID}
	}

	for lod, gp := range selectByLoD(f.Geometries, policy) {
		g, err := encodeGeometry(gp.Geometry, pool)
		if err != nil {
			return err
		}
		g.LoD = LoDString(lod)
		obj.Geometry = append(obj.Geometry, g)
	}

	for _, child := range f.Children {
		obj.Children = append(obj.Children, child.ID)
	}

	doc.CityObjects[id] = obj

	for _, child := range f.Children {
		if err := encodeFeature(child, id, doc, pool, policy); err != nil {
			return err
		}
	}
	return nil
}

func objectType(qname string) string {
	if idx := strings.IndexByte(qname, ':'); idx >= 0 {
		return qname[idx+1:]
	}
	return qname
}

func attrsAsAny(attrs map[string]string) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// encodeGeometry walks g into CityJSON's boundary nesting: Solid is an
// array of shells, each shell an array of surfaces, each surface an
// array of rings, each ring an array of vertex indices; MultiSurface
// drops the shell level; a Polygon is written as a MultiSurface with a
// single surface.
func encodeGeometry(g *model.Geometry, pool *vertexPool) (Geometry, error) {
	switch g.Kind {
	case model.KindSolid:
		var shells []any
		for _, shell := range g.Children {
			surfaces, err := encodeSurfaces(shell, pool)
			if err != nil {
				return Geometry{}, err
			}
			shells = append(shells, surfaces)
		}
		return Geometry{Type: "Solid", Boundaries: shells}, nil
	case model.KindMultiSurface:
		surfaces, err := encodeSurfaces(g, pool)
		if err != nil {
			return Geometry{}, err
		}
		return Geometry{Type: "MultiSurface", Boundaries: surfaces}, nil
	case model.KindPolygon:
		rings, err := encodeRings(g, pool)
		if err != nil {
			return Geometry{}, err
		}
		return Geometry{Type: "MultiSurface", Boundaries: []any{rings}}, nil
	default:
		return Geometry{}, errs.New(errs.UnsupportedNamespace, "geometry kind "+g.Kind.String()+" has no CityJSON boundary mapping")
	}
}

func encodeSurfaces(multiSurfaceLike *model.Geometry, pool *vertexPool) ([]any, error) {
	var surfaces []any
	for _, poly := range multiSurfaceLike.Children {
		rings, err := encodeRings(poly, pool)
		if err != nil {
			return nil, err
		}
		surfaces = append(surfaces, rings)
	}
	return surfaces, nil
}

func encodeRings(polygon *model.Geometry, pool *vertexPool) ([]any, error) {
	var rings []any
	for _, ring := range polygon.Children {
		var indices []int
		for _, pt := range ring.Points {
			indices = append(indices, pool.add(pt))
		}
		rings = append(rings, indices)
	}
	return rings, nil
}

// ToModel decodes doc into top-level features (the inverse of FromModel;
// only the geometry kinds FromModel itself produces are supported).
func ToModel(doc *Document) ([]*model.Feature, error) {
	pool := &vertexPool{transform: doc.Transform, vertices: doc.Vertices}
	byID := map[string]*model.Feature{}
	var topLevel []*model.Feature

	for id, obj := range doc.CityObjects {
		f := &model.Feature{ID: id, Type: "core:" + obj.Type, Attributes: attrsFromAny(obj.Attributes)}
		for _, g := range obj.Geometry {
			geom, err := decodeGeometry(g, pool)
			if err != nil {
				return nil, err
			}
			lod, err := lodFromString(g.LoD)
			if err != nil {
				return nil, err
			}
			f.Geometries = append(f.Geometries, &model.GeometryProperty{Name: geom.Kind.String(), LoD: lod, Geometry: geom})
		}
		byID[id] = f
	}

	for id, obj := range doc.CityObjects {
		f := byID[id]
		for _, childID := range obj.Children {
			if child, ok := byID[childID]; ok {
				f.Children = append(f.Children, child)
			}
		}
		if len(obj.Parents) == 0 {
			topLevel = append(topLevel, f)
		}
	}
	return topLevel, nil
}

func attrsFromAny(attrs map[string]any) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func lodFromString(s string) (int, error) {
	idx := strings.IndexByte(s, '.')
	if idx < 0 {
		idx = len(s)
	}
	var l int
	if _, err := fmt.Sscanf(s[:idx], "%d", &l); err != nil {
		return 0, errs.Wrap(errs.MalformedDocument, "parse CityJSON lod "+s, err)
	}
	return l, nil
}

func decodeGeometry(g Geometry, pool *vertexPool) (*model.Geometry, error) {
	switch g.Type {
	case "Solid":
		shells, ok := g.Boundaries.([]any)
		if !ok {
			return nil, errs.New(errs.MalformedDocument, "Solid boundaries not an array")
		}
		solid := &model.Geometry{Kind: model.KindSolid}
		for _, shell := range shells {
			ms, err := decodeMultiSurface(shell, pool)
			if err != nil {
				return nil, err
			}
			solid.Children = append(solid.Children, ms)
		}
		return solid, nil
	case "MultiSurface", "CompositeSurface":
		return decodeMultiSurface(g.Boundaries, pool)
	default:
		return nil, errs.New(errs.UnsupportedNamespace, "CityJSON geometry type "+g.Type+" not supported")
	}
}

func decodeMultiSurface(boundaries any, pool *vertexPool) (*model.Geometry, error) {
	surfaces, ok := boundaries.([]any)
	if !ok {
		return nil, errs.New(errs.MalformedDocument, "MultiSurface boundaries not an array")
	}
	ms := &model.Geometry{Kind: model.KindMultiSurface}
	for _, surface := range surfaces {
		poly, err := decodePolygon(surface, pool)
		if err != nil {
			return nil, err
		}
		ms.Children = append(ms.Children, poly)
	}
	return ms, nil
}

func decodePolygon(surface any, pool *vertexPool) (*model.Geometry, error) {
	rings, ok := surface.([]any)
	if !ok {
		return nil, errs.New(errs.MalformedDocument, "surface boundaries not an array")
	}
	poly := &model.Geometry{Kind: model.KindPolygon}
	for _, ring := range rings {
		idxSlice, ok := ring.([]any)
		if !ok {
			return nil, errs.New(errs.MalformedDocument, "ring boundaries not an array")
		}
		r := &model.Geometry{Kind: model.KindLinearRing}
		for _, idx := range idxSlice {
			n, ok := idx.(float64)
			if !ok {
				return nil, errs.New(errs.MalformedDocument, "vertex index not a number")
			}
			r.Points = append(r.Points, pool.point(int(n)))
		}
		poly.Children = append(poly.Children, r)
	}
	return poly, nil
}

// FeatureReader streams the JSON-Lines "CityJSONFeature" variant: a
// header line (main Document, with empty CityObjects/vertices) followed
// by one CityJSONFeature object per line, each carrying its own
// vertices local to that line.
type FeatureReader struct {
	scanner *bufio.Scanner
	Header  *Document
}

// NewFeatureReader reads and validates the header line, then is ready to
// yield feature lines via Next.
func NewFeatureReader(r io.Reader) (*FeatureReader, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		return nil, errs.New(errs.MalformedDocument, "empty CityJSONFeature stream")
	}
	line := scanner.Bytes()
	if gjson.GetBytes(line, "type").String() != "CityJSON" {
		return nil, errs.New(errs.MalformedDocument, "first line is not a CityJSON header")
	}
	var header Document
	if err := json.Unmarshal(line, &header); err != nil {
		return nil, errs.Wrap(errs.MalformedDocument, "decode CityJSON header", err)
	}
	return &FeatureReader{scanner: scanner, Header: &header}, nil
}

// Next decodes the next CityJSONFeature line, or returns io.EOF.
func (r *FeatureReader) Next() (*Document, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, errs.Wrap(errs.IO, "read CityJSONFeature line", err)
		}
		return nil, io.EOF
	}
	line := r.scanner.Bytes()
	if gjson.GetBytes(line, "type").String() != "CityJSONFeature" {
		return nil, errs.New(errs.MalformedDocument, "line is not a CityJSONFeature")
	}
	feature := *r.Header
	feature.Type = "CityJSONFeature"
	feature.CityObjects = map[string]Object{}
	if err := json.Unmarshal(line, &feature); err != nil {
		return nil, errs.Wrap(errs.MalformedDocument, "decode CityJSONFeature", err)
	}
	return &feature, nil
}

// FeatureWriter writes the JSON-Lines variant: WriteHeader once, then one
// WriteFeature call per top-level object.
type FeatureWriter struct {
	w   io.Writer
	enc *json.Encoder
}

func NewFeatureWriter(w io.Writer) *FeatureWriter {
	return &FeatureWriter{w: w, enc: json.NewEncoder(w)}
}

func (w *FeatureWriter) WriteHeader(version string, metadata *Metadata) error {
	header := Document{Type: "CityJSON", Version: version, Metadata: metadata, CityObjects: map[string]Object{}}
	return w.enc.Encode(header)
}

func (w *FeatureWriter) WriteFeature(doc *Document) error {
	doc.Type = "CityJSONFeature"
	return w.enc.Encode(doc)
}
