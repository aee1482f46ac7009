// Package citygml implements the chunked, event-driven CityGML
// reader/writer pipeline and the global-object registry
// pre-pass that together let every transformer stream
// top-level features one at a time without buffering the whole document.
package citygml

import (
	"encoding/xml"
	"io"
	"os"

	"citygml-tools/internal/errs"
	"citygml-tools/internal/model"
)

// memberWrapperNames are the property elements that each wrap exactly one
// top-level feature, appearance, or group (CityGML's cityObjectMember /
// appearanceMember / cityObjectGroupMember family, any namespace prefix).
var memberWrapperNames = map[string]bool{
	"cityObjectMember":      true,
	"COMember":              true,
	"appearanceMember":      true,
	"cityObjectGroupMember": true,
}

// Reader parses a CityGML document in a single forward pass, handing back
// one top-level feature at a time while the collection header/trailer are
// captured around the stream.
type Reader struct {
	f   *os.File
	dec *xml.Decoder

	model   *model.CityModel
	skip    map[string]bool
	started bool
	done    bool

	// pending holds a start element consumed while scanning past the
	// collection's boundedBy during Open, so Next doesn't lose it.
	pending *xml.StartElement
}

// Open parses the collection header (namespaces, version, boundedBy) and
// returns a Reader positioned to stream features via Next.
func Open(path string, encoding string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "open input", err)
	}
	dec := xml.NewDecoder(f)
	dec.Strict = false

	r := &Reader{f: f, dec: dec, skip: map[string]bool{}}
	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	// Find the root element and capture its namespace declarations.
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			return errs.New(errs.MalformedDocument, "no root element found")
		}
		if err != nil {
			return errs.Wrap(errs.MalformedDocument, "reading header", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		r.model = &model.CityModel{Namespaces: map[string]string{}}
		for _, a := range se.Attr {
			if a.Name.Space == "xmlns" {
				r.model.Namespaces[a.Name.Local] = a.Value
			} else if a.Name.Local == "xmlns" {
				r.model.Namespaces[""] = a.Value
			}
			if a.Name.Local == "schemaLocation" {
				r.model.SchemaLocations = append(r.model.SchemaLocations, a.Value)
			}
		}
		r.model.Version = detectVersion(r.model.Namespaces)
		break
	}

	// The collection's own boundedBy, if present, is conventionally the
	// first child of the root element; capture it here so it is available
	// from Model() without requiring a Next() call first. Whatever
	// non-boundedBy start element we hit instead is buffered for Next.
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			r.done = true
			return nil
		}
		if err != nil {
			return errs.Wrap(errs.MalformedDocument, "reading header", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "boundedBy" {
			r.pending = &se
			return nil
		}
		var n Node
		if err := r.dec.DecodeElement(&n, &se); err != nil {
			return errs.Wrap(errs.MalformedDocument, "decoding boundedBy", err)
		}
		if env := n.Child("Envelope"); env != nil {
			r.model.BoundedBy = envelopeFromNode(env)
		}
	}
}

func detectVersion(ns map[string]string) model.CityGMLVersion {
	for _, uri := range ns {
		switch {
		case contains(uri, "citygml/3.0"):
			return model.Version3
		case contains(uri, "citygml/2.0"):
			return model.Version2
		case contains(uri, "citygml/1.0"):
			return model.Version1
		}
	}
	return model.VersionUnknown
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// WithSkipFilter decorates r so that elements matching localNames (and
// their subtrees) are skipped during iteration but not removed from the
// document — used to bypass appearances/groups during the main pass once
// the global-object registry has already captured them.
func (r *Reader) WithSkipFilter(localNames map[string]bool) *Reader {
	for k := range localNames {
		r.skip[k] = true
	}
	return r
}

// Namespaces returns the prefix->URI map captured from the root element.
func (r *Reader) Namespaces() map[string]string { return r.model.Namespaces }

// Version returns the detected CityGML schema version.
func (r *Reader) Version() model.CityGMLVersion { return r.model.Version }

// Model returns the collection header captured so far (namespaces,
// version, schema locations, and the collection's own boundedBy when it
// precedes the first member); global objects are gathered separately by
// the registry.
func (r *Reader) Model() *model.CityModel { return r.model }

// Next yields the next top-level feature, or (nil, nil) once the
// collection trailer is reached.
func (r *Reader) Next() (*model.Feature, error) {
	if r.done {
		return nil, nil
	}
	for {
		var se xml.StartElement
		if r.pending != nil {
			se = *r.pending
			r.pending = nil
		} else {
			tok, err := r.dec.Token()
			if err == io.EOF {
				r.done = true
				return nil, nil
			}
			if err != nil {
				return nil, errs.Wrap(errs.MalformedDocument, "reading document", err)
			}
			var ok bool
			se, ok = tok.(xml.StartElement)
			if !ok {
				continue
			}
		}

		local := se.Name.Local
		if local == "boundedBy" {
			var n Node
			if err := r.dec.DecodeElement(&n, &se); err != nil {
				return nil, errs.Wrap(errs.MalformedDocument, "decoding boundedBy", err)
			}
			if env := n.Child("Envelope"); env != nil {
				r.model.BoundedBy = envelopeFromNode(env)
			}
			continue
		}

		if r.skip[local] {
			if err := r.dec.Skip(); err != nil {
				return nil, errs.Wrap(errs.MalformedDocument, "skipping element", err)
			}
			continue
		}

		if !memberWrapperNames[local] {
			// Anything else at this depth (gml:name, metadata, ...) is
			// not a feature boundary; consume it and move on.
			if err := r.dec.Skip(); err != nil {
				return nil, errs.Wrap(errs.MalformedDocument, "skipping element", err)
			}
			continue
		}

		var wrapper Node
		if err := r.dec.DecodeElement(&wrapper, &se); err != nil {
			return nil, errs.Wrap(errs.MalformedDocument, "decoding member", err)
		}
		if local == "appearanceMember" || local == "cityObjectGroupMember" {
			// Caller asked to skip-filter these but didn't; treat as not
			// a feature and continue (defensive — registry pass owns
			// these via a different entry point).
			continue
		}
		if len(wrapper.Nodes) == 0 {
			continue
		}
		return featureFromNode(wrapper.Nodes[0]), nil
	}
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
