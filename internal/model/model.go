// Package model defines the in-memory object model shared by every
// transformer: the collection envelope, top-level features, the geometry
// variant union, appearances, and city-object groups.
package model

import (
	"fmt"

	"github.com/golang/geo/r1"
)

// CityGMLVersion identifies the schema generation a document declares.
type CityGMLVersion int

const (
	VersionUnknown CityGMLVersion = iota
	Version1
	Version2
	Version3
)

func (v CityGMLVersion) String() string {
	switch v {
	case Version1:
		return "1.0"
	case Version2:
		return "2.0"
	case Version3:
		return "3.0"
	default:
		return "unknown"
	}
}

func ParseVersion(s string) (CityGMLVersion, error) {
	switch s {
	case "1.0":
		return Version1, nil
	case "2.0":
		return Version2, nil
	case "3.0":
		return Version3, nil
	default:
		return VersionUnknown, fmt.Errorf("unsupported citygml version %q", s)
	}
}

// Point3 is a single coordinate tuple. Is3D distinguishes a point that
// carried a Z (which may be 0) from a 2-D point, whose Z is left at 0.
type Point3 struct {
	X, Y, Z float64
	Is3D    bool
}

// Envelope is an axis-aligned 3-D bounding box in some CRS.
type Envelope struct {
	Lower, Upper Point3
	SRSName      string
	SRSDimension int
}

// axisIntervals views e's three axes as r1.Intervals, the building block
// golang/geo uses throughout its r2/r3/s2 bounding-box arithmetic.
func (e *Envelope) axisIntervals() (x, y, z r1.Interval) {
	return r1.Interval{Lo: e.Lower.X, Hi: e.Upper.X},
		r1.Interval{Lo: e.Lower.Y, Hi: e.Upper.Y},
		r1.Interval{Lo: e.Lower.Z, Hi: e.Upper.Z}
}

// Union returns the axis-aligned hull of e and o. A nil receiver or
// argument is treated as the identity element.
func (e *Envelope) Union(o *Envelope) *Envelope {
	if e == nil {
		return o
	}
	if o == nil {
		return e
	}
	ex, ey, ez := e.axisIntervals()
	ox, oy, oz := o.axisIntervals()
	x, y, z := ex.Union(ox), ey.Union(oy), ez.Union(oz)
	return &Envelope{
		Lower:        Point3{X: x.Lo, Y: y.Lo, Z: z.Lo},
		Upper:        Point3{X: x.Hi, Y: y.Hi, Z: z.Hi},
		SRSName:      e.SRSName,
		SRSDimension: e.SRSDimension,
	}
}

// Intersects reports whether e and o overlap (touching counts as overlap).
func (e *Envelope) Intersects(o *Envelope) bool {
	if e == nil || o == nil {
		return false
	}
	ex, ey, ez := e.axisIntervals()
	ox, oy, oz := o.axisIntervals()
	return ex.Intersects(ox) && ey.Intersects(oy) && ez.Intersects(oz)
}
