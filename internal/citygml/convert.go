package citygml

import (
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"

	"citygml-tools/internal/model"
)

// lodPropertyRe extracts the LoD digit from a geometry property element
// name such as "lod2MultiSurface" or "lod0RoofEdge".
var lodPropertyRe = regexp.MustCompile(`^lod([0-4])`)

// geometryElementNames is the set of element local names convertGeometry
// knows how to interpret as an inline geometry (as opposed to a bare
// xlink:href placeholder).
var geometryElementNames = map[string]model.GeometryKind{
	"Point":            model.KindPoint,
	"LineString":       model.KindLineString,
	"LinearRing":       model.KindLinearRing,
	"Curve":            model.KindCurve,
	"CompositeCurve":   model.KindCurve,
	"Polygon":          model.KindPolygon,
	"MultiSurface":     model.KindMultiSurface,
	"CompositeSurface": model.KindMultiSurface,
	"Solid":            model.KindSolid,
	"ImplicitGeometry": model.KindImplicitGeometry,
}

// featureFromNode converts a decoded top-level or nested element into the
// typed Feature model. Unknown children ride along unexamined inside
// Raw — we still copy the node so the writer can re-serialize ADE content
// we don't otherwise understand, but we do not attempt to interpret it.
func featureFromNode(n *Node) *model.Feature {
	f := &model.Feature{
		Type:       qname(n.XMLName),
		Attributes: map[string]string{},
		Raw:        n,
	}
	if id, ok := n.Attr("id"); ok {
		f.ID = id
	}

	for _, child := range n.Nodes {
		local := child.XMLName.Local

		if local == "boundedBy" {
			if env := child.Child("Envelope"); env != nil {
				f.BoundedBy = envelopeFromNode(env)
			}
			continue
		}

		if lod, ok := lodFromPropertyName(local); ok {
			if gp := geometryPropertyFromNode(local, lod, child); gp != nil {
				f.Geometries = append(f.Geometries, gp)
			}
			continue
		}

		// Nested feature-bearing properties (boundedBySurface, room,
		// consistsOfBuildingPart, ...): a property element wrapping
		// exactly one feature-shaped child.
		if nested := nestedFeatureChild(child); nested != nil {
			f.Children = append(f.Children, featureFromNode(nested))
			continue
		}

		if child.Content != "" && len(child.Nodes) == 0 {
			f.Attributes[local] = strings.TrimSpace(child.Content)
		}
	}

	return f
}

// nestedFeatureChild returns the single feature element wrapped by a
// CityGML property element (e.g. bldg:boundedBySurface wraps exactly one
// bldg:WallSurface/_BoundarySurface), or nil if n is not such a wrapper.
func nestedFeatureChild(n *Node) *Node {
	switch n.XMLName.Local {
	case "boundedBySurface", "outerBuildingInstallation", "room",
		"consistsOfBuildingPart", "address", "interiorRoom":
		if len(n.Nodes) == 1 {
			return n.Nodes[0]
		}
	}
	return nil
}

func lodFromPropertyName(local string) (int, bool) {
	m := lodPropertyRe.FindStringSubmatch(local)
	if m == nil {
		return 0, false
	}
	lod, _ := strconv.Atoi(m[1])
	return lod, true
}

func geometryPropertyFromNode(propName string, lod int, prop *Node) *model.GeometryProperty {
	if href, ok := prop.Attr("href"); ok && href != "" {
		return &model.GeometryProperty{Name: propName, LoD: lod, Href: href}
	}
	for _, gc := range prop.Nodes {
		if kind, ok := geometryElementNames[gc.XMLName.Local]; ok {
			return &model.GeometryProperty{Name: propName, LoD: lod, Geometry: geometryFromNode(gc, kind)}
		}
	}
	return nil
}

func geometryFromNode(n *Node, kind model.GeometryKind) *model.Geometry {
	g := &model.Geometry{Kind: kind}
	if id, ok := n.Attr("id"); ok {
		g.ID = id
	}
	if srs, ok := n.Attr("srsName"); ok {
		g.SRSName = srs
	}

	switch kind {
	case model.KindPoint:
		if pos := n.Child("pos"); pos != nil {
			g.Points = []model.Point3{parsePoint(pos.Text())}
		}
	case model.KindLineString, model.KindLinearRing:
		g.Points = parsePosList(n)
	case model.KindCurve:
		// Flatten segment geometry into a single point list; enough to
		// round-trip coordinates, which is all the pipeline transforms.
		for _, seg := range n.Children("segments") {
			for _, ls := range seg.Nodes {
				g.Points = append(g.Points, parsePosList(ls)...)
			}
		}
	case model.KindPolygon:
		if ext := n.Child("exterior"); ext != nil {
			if ring := ext.Find("LinearRing"); ring != nil {
				g.Children = append(g.Children, geometryFromNode(ring, model.KindLinearRing))
			}
		}
		for _, intr := range n.Children("interior") {
			if ring := intr.Find("LinearRing"); ring != nil {
				g.Children = append(g.Children, geometryFromNode(ring, model.KindLinearRing))
			}
		}
	case model.KindMultiSurface:
		for _, member := range n.Children("surfaceMember") {
			for _, gc := range member.Nodes {
				if mk, ok := geometryElementNames[gc.XMLName.Local]; ok {
					g.Children = append(g.Children, geometryFromNode(gc, mk))
				}
			}
		}
	case model.KindSolid:
		if ext := n.Child("exterior"); ext != nil {
			for _, gc := range ext.Nodes {
				if mk, ok := geometryElementNames[gc.XMLName.Local]; ok {
					g.Children = append(g.Children, geometryFromNode(gc, mk))
				}
			}
		}
	case model.KindImplicitGeometry:
		if ref := n.Child("relativeGMLGeometry"); ref != nil {
			if href, ok := ref.Attr("href"); ok {
				g.TemplateID = strings.TrimPrefix(href, "#")
			}
		}
		if m := n.Child("transformationMatrix"); m != nil {
			g.Transform = parseMatrix(m.Text())
		}
		if rp := n.Find("ReferencePoint"); rp != nil {
			if pos := rp.Child("pos"); pos != nil {
				p := parsePoint(pos.Text())
				g.ReferencePoint = &p
			}
		}
	}

	return g
}

func envelopeFromNode(n *Node) *model.Envelope {
	e := &model.Envelope{}
	if srs, ok := n.Attr("srsName"); ok {
		e.SRSName = srs
	}
	if dim, ok := n.Attr("srsDimension"); ok {
		d, _ := strconv.Atoi(dim)
		e.SRSDimension = d
	}
	if lc := n.Child("lowerCorner"); lc != nil {
		e.Lower = parsePoint(lc.Text())
	}
	if uc := n.Child("upperCorner"); uc != nil {
		e.Upper = parsePoint(uc.Text())
	}
	return e
}

func parsePoint(text string) model.Point3 {
	fields := strings.Fields(text)
	p := model.Point3{}
	if len(fields) > 0 {
		p.X, _ = strconv.ParseFloat(fields[0], 64)
	}
	if len(fields) > 1 {
		p.Y, _ = strconv.ParseFloat(fields[1], 64)
	}
	if len(fields) > 2 {
		p.Z, _ = strconv.ParseFloat(fields[2], 64)
		p.Is3D = true
	}
	return p
}

func parsePosList(n *Node) []model.Point3 {
	var text string
	dim := 3
	if pl := n.Child("posList"); pl != nil {
		text = pl.Text()
		if d, ok := pl.Attr("srsDimension"); ok {
			if v, err := strconv.Atoi(d); err == nil {
				dim = v
			}
		}
	} else {
		var sb strings.Builder
		for _, p := range n.Children("pos") {
			sb.WriteString(p.Text())
			sb.WriteString(" ")
		}
		text = sb.String()
	}

	fields := strings.Fields(text)
	var pts []model.Point3
	for i := 0; i+dim-1 < len(fields); i += dim {
		p := model.Point3{}
		p.X, _ = strconv.ParseFloat(fields[i], 64)
		p.Y, _ = strconv.ParseFloat(fields[i+1], 64)
		if dim >= 3 {
			p.Z, _ = strconv.ParseFloat(fields[i+2], 64)
			p.Is3D = true
		}
		pts = append(pts, p)
	}
	return pts
}

func parseMatrix(text string) [16]float64 {
	var m [16]float64
	fields := strings.Fields(text)
	for i := 0; i < 16 && i < len(fields); i++ {
		m[i], _ = strconv.ParseFloat(fields[i], 64)
	}
	return m
}

// qname reconstructs a prefixed element name from a decoded xml.Name.
// encoding/xml resolves the document's xmlns declarations into n.Space as
// a full namespace URI, discarding whatever prefix the source document
// actually used; uriPrefix maps that URI back to the prefix this tool
// writes elsewhere (defaultNamespaces), so a feature's reconstructed Type
// serializes the way the rest of the writer expects.
func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	if p, ok := uriPrefix[n.Space]; ok {
		return p + ":" + n.Local
	}
	return n.Local
}

// uriPrefix is the reverse of defaultNamespaces, merged across versions
// (module/building namespace URIs differ only by version suffix, and the
// prefix we write is the same regardless of which version we read).
var uriPrefix = buildURIPrefix()

func buildURIPrefix() map[string]string {
	out := map[string]string{}
	for _, table := range defaultNamespaces {
		for prefix, uri := range table {
			out[uri] = prefix
		}
	}
	return out
}
