package citygml

import (
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"

	"citygml-tools/internal/errs"
	"citygml-tools/internal/model"
)

// GlobalObjectKind selects which collection-global categories a Registry
// pass should collect.
type GlobalObjectKind int

const (
	Appearances GlobalObjectKind = 1 << iota
	Groups
	Templates
)

// registryWrapperNames maps each global-object member wrapper to the kind
// it belongs to. templateMember is accepted as a wrapper for standalone
// implicit geometry templates (CityGML has no single canonical element for
// a template outside of a referencing ImplicitGeometry), so the registry
// finds one wherever it sits in the document, as with appearanceMember and
// cityObjectGroupMember. The Writer never emits templateMember.
var registryWrapperNames = map[string]GlobalObjectKind{
	"appearanceMember":      Appearances,
	"cityObjectGroupMember": Groups,
	"templateMember":        Templates,
}

// Registry holds the three kinds of collection-global object collected by
// a pre-pass over the document.
type Registry struct {
	Appearances []*model.Appearance
	Groups      []*model.CityObjectGroup
	Templates   []*model.ImplicitTemplate
}

// Scan performs a dedicated reader pass over path, collecting the
// requested kinds. It is independent of the main Reader so that a second,
// skip-filtered pass can stream features without re-materializing globals.
func Scan(path string, kinds GlobalObjectKind) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "open input for registry scan", err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	dec.Strict = false

	reg := &Registry{}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.MalformedDocument, "scanning globals", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		kind, known := registryWrapperNames[se.Name.Local]
		if !known || kinds&kind == 0 {
			if isContainerElement(se.Name.Local) {
				continue
			}
			if err := dec.Skip(); err != nil {
				return nil, errs.Wrap(errs.MalformedDocument, "skipping element", err)
			}
			continue
		}

		var wrapper Node
		if err := dec.DecodeElement(&wrapper, &se); err != nil {
			return nil, errs.Wrap(errs.MalformedDocument, "decoding global object", err)
		}
		if len(wrapper.Nodes) == 0 {
			continue
		}
		child := wrapper.Nodes[0]

		switch kind {
		case Appearances:
			reg.Appearances = append(reg.Appearances, appearanceFromNode(child))
		case Groups:
			reg.Groups = append(reg.Groups, groupFromNode(child))
		case Templates:
			if t := templateFromNode(child); t != nil {
				reg.Templates = append(reg.Templates, t)
			}
		}
	}
	return reg, nil
}

// isContainerElement reports whether local is the root element itself
// (whose children we must still descend into rather than skip).
func isContainerElement(local string) bool {
	return local == "CityModel"
}

func appearanceFromNode(n *Node) *model.Appearance {
	a := &model.Appearance{Global: true}
	if id, ok := n.Attr("id"); ok {
		a.ID = id
	}
	if theme := n.Child("theme"); theme != nil {
		a.Theme = theme.Text()
	}
	for _, child := range n.Nodes {
		switch child.XMLName.Local {
		case "ParameterizedTexture":
			a.SurfaceData = append(a.SurfaceData, surfaceDataFromNode(child, model.KindParameterizedTexture))
		case "GeoreferencedTexture":
			a.SurfaceData = append(a.SurfaceData, surfaceDataFromNode(child, model.KindGeoreferencedTexture))
		case "X3DMaterial":
			a.SurfaceData = append(a.SurfaceData, surfaceDataFromNode(child, model.KindX3DMaterial))
		}
	}
	return a
}

func surfaceDataFromNode(n *Node, kind model.SurfaceDataKind) *model.SurfaceData {
	sd := &model.SurfaceData{Kind: kind, Material: map[string]string{}}
	if id, ok := n.Attr("id"); ok {
		sd.ID = id
	}
	if uri := n.Child("imageURI"); uri != nil {
		sd.ImageURI = uri.Text()
	}
	for _, t := range n.Children("target") {
		target := &model.Target{URI: strings.TrimSpace(t.Text())}
		if href, ok := t.Attr("href"); ok && target.URI == "" {
			target.URI = href
		}
		if kind == model.KindParameterizedTexture {
			if tc := t.Child("textureCoordinates"); tc != nil {
				target.UV = parseUVList(tc.Text())
			}
		}
		sd.Targets = append(sd.Targets, target)
	}
	if kind == model.KindX3DMaterial {
		for _, c := range n.Nodes {
			if c.XMLName.Local != "target" {
				sd.Material[c.XMLName.Local] = c.Text()
			}
		}
	}
	return sd
}

func parseUVList(text string) []float64 {
	fields := strings.Fields(text)
	out := make([]float64, 0, len(fields))
	for _, fld := range fields {
		v, _ := strconv.ParseFloat(fld, 64)
		out = append(out, v)
	}
	return out
}

func groupFromNode(n *Node) *model.CityObjectGroup {
	g := &model.CityObjectGroup{}
	if id, ok := n.Attr("id"); ok {
		g.ID = id
	}
	if parent := n.Child("parent"); parent != nil {
		if href, ok := parent.Attr("href"); ok {
			g.ParentRef = href
		}
	}
	for _, m := range n.Children("groupMember") {
		if href, ok := m.Attr("href"); ok {
			g.Members = append(g.Members, href)
		}
	}
	return g
}

func templateFromNode(n *Node) *model.ImplicitTemplate {
	kind, ok := geometryElementNames[n.XMLName.Local]
	if !ok {
		return nil
	}
	g := geometryFromNode(n, kind)
	if g.ID == "" {
		return nil
	}
	return &model.ImplicitTemplate{ID: g.ID, Geometry: g}
}
