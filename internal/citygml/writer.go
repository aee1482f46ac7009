package citygml

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"os"

	"citygml-tools/internal/errs"
	"citygml-tools/internal/model"
)

// defaultNamespaces is the known table of prefix->URI bindings per
// CityGML version. The header declares every entry under its prefix, the
// CityGML core module included; it declares no default namespace and
// writes no xsi:schemaLocation.
var defaultNamespaces = map[model.CityGMLVersion]map[string]string{
	model.Version2: {
		"core": "http://www.opengis.net/citygml/2.0",
		"gml":  "http://www.opengis.net/gml",
		"bldg": "http://www.opengis.net/citygml/building/2.0",
		"app":  "http://www.opengis.net/citygml/appearance/2.0",
		"gen":  "http://www.opengis.net/citygml/generics/2.0",
		"grp":  "http://www.opengis.net/citygml/cityobjectgroup/2.0",
		"xlink": "http://www.w3.org/1999/xlink",
		"xsi":   "http://www.w3.org/2001/XMLSchema-instance",
	},
	model.Version3: {
		"core": "http://www.opengis.net/citygml/3.0",
		"gml":  "http://www.opengis.net/gml/3.2",
		"bldg": "http://www.opengis.net/citygml/building/3.0",
		"app":  "http://www.opengis.net/citygml/appearance/3.0",
		"gen":  "http://www.opengis.net/citygml/generics/3.0",
		"grp":  "http://www.opengis.net/citygml/cityobjectgroup/3.0",
		"xlink": "http://www.w3.org/1999/xlink",
		"xsi":   "http://www.w3.org/2001/XMLSchema-instance",
	},
}

// Writer mirrors Reader: it writes the collection header once, accepts
// feature writes in document order, and writes the trailer on Close. If
// finalPath differs from the path the caller opened the writer at, the
// caller is expected to move tempPath over finalPath after Close returns
// successfully (atomic replace).
type Writer struct {
	f      *os.File
	bw     *bufio.Writer
	ver    model.CityGMLVersion
	pretty bool

	headerWritten bool
}

// Create opens out for writing and prepares the writer to emit a
// CityModel of the given version.
func Create(path string, ver model.CityGMLVersion, pretty bool) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "create output", err)
	}
	return &Writer{f: f, bw: bufio.NewWriter(f), ver: ver, pretty: pretty}, nil
}

func (w *Writer) writeHeader() error {
	if w.headerWritten {
		return nil
	}
	w.bw.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")

	ns := defaultNamespaces[w.ver]
	if ns == nil {
		ns = defaultNamespaces[model.Version2]
	}
	w.bw.WriteString("<core:CityModel")
	for _, p := range []string{"core", "gml", "bldg", "app", "gen", "grp", "xlink", "xsi"} {
		fmt.Fprintf(w.bw, " xmlns:%s=\"%s\"", p, ns[p])
	}
	w.bw.WriteString(">\n")
	w.headerWritten = true
	return nil
}

// WriteFeature serializes one top-level feature as a cityObjectMember.
func (w *Writer) WriteFeature(f *model.Feature) error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	n := nodeFromFeature(f)
	wrapper := &Node{XMLName: xml.Name{Local: "core:cityObjectMember"}, Nodes: []*Node{n}}
	return w.writeNode(wrapper)
}

// WriteGroup serializes a city-object group as a cityObjectGroupMember.
// Callers write every group before any global appearance, so a group
// member resolves before an appearance target that points at it.
func (w *Writer) WriteGroup(g *model.CityObjectGroup) error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	wrapper := &Node{XMLName: xml.Name{Local: "core:cityObjectGroupMember"}, Nodes: []*Node{nodeFromGroup(g)}}
	return w.writeNode(wrapper)
}

// WriteGlobalAppearance serializes a collection-level appearance as an
// appearanceMember.
func (w *Writer) WriteGlobalAppearance(a *model.Appearance) error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	wrapper := &Node{XMLName: xml.Name{Local: "core:appearanceMember"}, Nodes: []*Node{nodeFromAppearance(a)}}
	return w.writeNode(wrapper)
}

// WriteBoundedBy serializes the collection's own envelope, if any.
func (w *Writer) WriteBoundedBy(e *model.Envelope) error {
	if e == nil {
		return nil
	}
	if err := w.writeHeader(); err != nil {
		return err
	}
	return w.writeNode(nodeFromEnvelope(e))
}

func (w *Writer) writeNode(n *Node) error {
	var (
		out []byte
		err error
	)
	if w.pretty {
		out, err = xml.MarshalIndent(n, "  ", "  ")
	} else {
		out, err = xml.Marshal(n)
	}
	if err != nil {
		return errs.Wrap(errs.IO, "marshal element", err)
	}
	w.bw.Write(out)
	w.bw.WriteByte('\n')
	return nil
}

// Close writes the trailer and flushes/closes the underlying file.
func (w *Writer) Close() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	w.bw.WriteString("</core:CityModel>\n")
	if err := w.bw.Flush(); err != nil {
		return errs.Wrap(errs.IO, "flush output", err)
	}
	return w.f.Close()
}
