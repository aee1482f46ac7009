package citygml

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"citygml-tools/internal/model"
)

// nodeFromFeature reconstructs a generic Node tree for f, for
// serialization by the writer. When f still carries its original decoded
// Raw node and nothing about its geometry/attribute shape has been
// invalidated by a transform, callers may prefer to reuse Raw directly;
// nodeFromFeature is used whenever a transform has rewritten the typed
// model and the Raw tree would be stale.
func nodeFromFeature(f *model.Feature) *Node {
	n := &Node{XMLName: splitQName(f.Type)}
	if f.ID != "" {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: "gml:id"}, Value: f.ID})
	}

	if f.BoundedBy != nil {
		n.Nodes = append(n.Nodes, nodeFromEnvelope(f.BoundedBy))
	}

	for _, gp := range f.Geometries {
		n.Nodes = append(n.Nodes, nodeFromGeometryProperty(gp))
	}

	for _, app := range f.Appearances {
		n.Nodes = append(n.Nodes, nodeFromAppearance(app))
	}

	for k, v := range f.Attributes {
		n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: k}, Content: v})
	}

	for _, child := range f.Children {
		n.Nodes = append(n.Nodes, wrapNestedFeature(child))
	}

	return n
}

// wrapNestedFeature re-wraps a nested feature in the property element
// CityGML uses to host it. We lost the original wrapper name during
// decoding in the generic cases handled by nestedFeatureChild, so we
// reconstruct the one CityGML actually uses for boundary surfaces (by far
// the common case the LoD filter and upgrader touch); other nested-feature
// kinds fall back to the feature's own Raw node when present.
func wrapNestedFeature(f *model.Feature) *Node {
	if raw, ok := f.Raw.(*Node); ok {
		return &Node{XMLName: xml.Name{Local: "boundedBySurface"}, Nodes: []*Node{raw}}
	}
	return &Node{XMLName: xml.Name{Local: "boundedBySurface"}, Nodes: []*Node{nodeFromFeature(f)}}
}

func nodeFromGeometryProperty(gp *model.GeometryProperty) *Node {
	n := &Node{XMLName: xml.Name{Local: gp.Name}}
	if gp.Href != "" {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: "xlink:href"}, Value: gp.Href})
		return n
	}
	if gp.Geometry != nil {
		n.Nodes = []*Node{nodeFromGeometry(gp.Geometry)}
	}
	return n
}

func nodeFromGeometry(g *model.Geometry) *Node {
	n := &Node{XMLName: xml.Name{Local: "gml:" + g.Kind.String()}}
	if g.ID != "" {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: "gml:id"}, Value: g.ID})
	}
	if g.SRSName != "" {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: "srsName"}, Value: g.SRSName})
	}
	if g.Href != "" {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: "xlink:href"}, Value: g.Href})
		return n
	}

	switch g.Kind {
	case model.KindPoint:
		if len(g.Points) > 0 {
			n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "gml:pos"}, Content: formatPoint(g.Points[0])})
		}
	case model.KindLineString, model.KindLinearRing:
		n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "gml:posList"}, Content: formatPosList(g.Points)})
	case model.KindCurve:
		seg := &Node{XMLName: xml.Name{Local: "gml:segments"}}
		seg.Nodes = append(seg.Nodes, &Node{XMLName: xml.Name{Local: "gml:LineStringSegment"},
			Nodes: []*Node{{XMLName: xml.Name{Local: "gml:posList"}, Content: formatPosList(g.Points)}}})
		n.Nodes = append(n.Nodes, seg)
	case model.KindPolygon:
		if len(g.Children) > 0 {
			n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "gml:exterior"}, Nodes: []*Node{nodeFromGeometry(g.Children[0])}})
		}
		for _, ring := range g.Children[1:] {
			n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "gml:interior"}, Nodes: []*Node{nodeFromGeometry(ring)}})
		}
	case model.KindMultiSurface:
		for _, member := range g.Children {
			n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "gml:surfaceMember"}, Nodes: []*Node{nodeFromGeometry(member)}})
		}
	case model.KindSolid:
		ext := &Node{XMLName: xml.Name{Local: "gml:exterior"}}
		for _, member := range g.Children {
			ext.Nodes = append(ext.Nodes, nodeFromGeometry(member))
		}
		n.Nodes = append(n.Nodes, ext)
	case model.KindImplicitGeometry:
		if g.TemplateID != "" {
			n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "core:relativeGMLGeometry"},
				Attrs: []xml.Attr{{Name: xml.Name{Local: "xlink:href"}, Value: "#" + g.TemplateID}}})
		}
		n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "core:transformationMatrix"}, Content: formatMatrix(g.Transform)})
		if g.ReferencePoint != nil {
			n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "core:referencePoint"},
				Nodes: []*Node{{XMLName: xml.Name{Local: "gml:Point"},
					Nodes: []*Node{{XMLName: xml.Name{Local: "gml:pos"}, Content: formatPoint(*g.ReferencePoint)}}}}})
		}
	}

	return n
}

func nodeFromEnvelope(e *model.Envelope) *Node {
	n := &Node{XMLName: xml.Name{Local: "gml:boundedBy"}}
	env := &Node{XMLName: xml.Name{Local: "gml:Envelope"}}
	if e.SRSName != "" {
		env.Attrs = append(env.Attrs, xml.Attr{Name: xml.Name{Local: "srsName"}, Value: e.SRSName})
	}
	if e.SRSDimension > 0 {
		env.Attrs = append(env.Attrs, xml.Attr{Name: xml.Name{Local: "srsDimension"}, Value: strconv.Itoa(e.SRSDimension)})
	}
	env.Nodes = append(env.Nodes,
		&Node{XMLName: xml.Name{Local: "gml:lowerCorner"}, Content: formatPoint(e.Lower)},
		&Node{XMLName: xml.Name{Local: "gml:upperCorner"}, Content: formatPoint(e.Upper)},
	)
	n.Nodes = []*Node{env}
	return n
}

func nodeFromAppearance(a *model.Appearance) *Node {
	n := &Node{XMLName: xml.Name{Local: "app:Appearance"}}
	if a.ID != "" {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: "gml:id"}, Value: a.ID})
	}
	if a.Theme != "" {
		n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "app:theme"}, Content: a.Theme})
	}
	for _, sd := range a.SurfaceData {
		n.Nodes = append(n.Nodes, nodeFromSurfaceData(sd))
	}
	return n
}

func nodeFromSurfaceData(sd *model.SurfaceData) *Node {
	var elemName string
	switch sd.Kind {
	case model.KindParameterizedTexture:
		elemName = "app:ParameterizedTexture"
	case model.KindGeoreferencedTexture:
		elemName = "app:GeoreferencedTexture"
	default:
		elemName = "app:X3DMaterial"
	}
	n := &Node{XMLName: xml.Name{Local: elemName}}
	if sd.ID != "" {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: "gml:id"}, Value: sd.ID})
	}
	if sd.ImageURI != "" {
		n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "app:imageURI"}, Content: sd.ImageURI})
	}
	for k, v := range sd.Material {
		n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "app:" + k}, Content: v})
	}
	for _, t := range sd.Targets {
		tn := &Node{XMLName: xml.Name{Local: "app:target"}, Content: t.URI}
		if sd.Kind == model.KindParameterizedTexture {
			tn.Nodes = append(tn.Nodes, &Node{
				XMLName: xml.Name{Local: "app:textureCoordinates"},
				Attrs:   []xml.Attr{{Name: xml.Name{Local: "ring"}, Value: t.URI}},
				Content: formatUVList(t.UV),
			})
		}
		n.Nodes = append(n.Nodes, tn)
	}
	return n
}

func nodeFromGroup(g *model.CityObjectGroup) *Node {
	n := &Node{XMLName: xml.Name{Local: "grp:CityObjectGroup"}}
	if g.ID != "" {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: "gml:id"}, Value: g.ID})
	}
	if g.ParentRef != "" {
		n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "grp:parent"},
			Attrs: []xml.Attr{{Name: xml.Name{Local: "xlink:href"}, Value: g.ParentRef}}})
	}
	for _, m := range g.Members {
		n.Nodes = append(n.Nodes, &Node{XMLName: xml.Name{Local: "grp:groupMember"},
			Attrs: []xml.Attr{{Name: xml.Name{Local: "xlink:href"}, Value: m}}})
	}
	return n
}

func splitQName(qn string) xml.Name {
	return xml.Name{Local: qn}
}

func formatPoint(p model.Point3) string {
	if p.Is3D {
		return fmt.Sprintf("%g %g %g", p.X, p.Y, p.Z)
	}
	return fmt.Sprintf("%g %g", p.X, p.Y)
}

func formatPosList(pts []model.Point3) string {
	var sb strings.Builder
	for i, p := range pts {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(formatPoint(p))
	}
	return sb.String()
}

func formatMatrix(m [16]float64) string {
	parts := make([]string, 16)
	for i, v := range m {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, " ")
}

func formatUVList(uv []float64) string {
	parts := make([]string, len(uv))
	for i, v := range uv {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, " ")
}
