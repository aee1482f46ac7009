package citygml

import "encoding/xml"

// Node is a generic, schema-agnostic XML element tree: every attribute,
// child element, and text run is preserved without knowledge of CityGML's
// element vocabulary. The typed conversions in convert.go interpret the
// subset of element names this tool understands; everything else rides
// along unexamined in a Feature's Raw field so it round-trips untouched.
type Node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []*Node    `xml:",any"`
}

// Attr returns the value of the first attribute named local (namespace
// ignored), and whether it was present.
func (n *Node) Attr(local string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first direct child whose local name is local, or nil.
func (n *Node) Child(local string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Nodes {
		if c.XMLName.Local == local {
			return c
		}
	}
	return nil
}

// Children returns every direct child whose local name is local.
func (n *Node) Children(local string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Nodes {
		if c.XMLName.Local == local {
			out = append(out, c)
		}
	}
	return out
}

// Find performs a depth-first search for the first descendant (including
// n itself) whose local name is local.
func (n *Node) Find(local string) *Node {
	if n == nil {
		return nil
	}
	if n.XMLName.Local == local {
		return n
	}
	for _, c := range n.Nodes {
		if found := c.Find(local); found != nil {
			return found
		}
	}
	return nil
}

// Text returns n's own chardata with surrounding whitespace left intact;
// most CityGML leaf content is single-child text so this is rarely mixed
// with element children.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return n.Content
}
