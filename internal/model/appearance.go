package model

// SurfaceDataKind distinguishes the three surface-data shapes a theme can
// hold.
type SurfaceDataKind int

const (
	KindParameterizedTexture SurfaceDataKind = iota
	KindGeoreferencedTexture
	KindX3DMaterial
)

// Target is a reference from a surface-data to the geometry it paints.
// UV is only meaningful for ParameterizedTexture targets and always comes
// in (s, t) pairs (invariant 6).
type Target struct {
	URI string // "#geomId" or "path#geomId"
	UV  []float64
}

// GeometryID extracts the fragment identifier a target URI points at,
// ignoring any path component before "#".
func (t *Target) GeometryID() string {
	for i := len(t.URI) - 1; i >= 0; i-- {
		if t.URI[i] == '#' {
			return t.URI[i+1:]
		}
	}
	return ""
}

// SurfaceData is one material or texture entry inside an Appearance.
type SurfaceData struct {
	ID   string
	Kind SurfaceDataKind

	// ImageURI is set for both texture kinds; unused for X3DMaterial.
	ImageURI string

	// WorldFile is the georeferenced texture's companion world-file path,
	// if one was referenced by the resource processor.
	WorldFile string

	Targets []*Target

	// For X3DMaterial: a handful of scalar channels collapsed into one
	// map for simplicity (ambientIntensity, diffuseColor, ...).
	Material map[string]string
}

// RemoveTargets deletes every target whose geometry id is in removedIDs,
// returning true if the surface-data has zero targets left.
func (sd *SurfaceData) RemoveTargets(removedIDs map[string]bool) bool {
	kept := sd.Targets[:0]
	for _, t := range sd.Targets {
		if removedIDs[t.GeometryID()] {
			continue
		}
		kept = append(kept, t)
	}
	sd.Targets = kept
	return len(sd.Targets) == 0
}

// Appearance is a themed collection of surface-data, either owned by the
// collection (Global) or by a single feature (local).
type Appearance struct {
	ID          string
	Theme       string
	Global      bool
	SurfaceData []*SurfaceData
}

// Prune removes every surface-data with zero targets and reports whether
// the appearance itself should now be deleted.
func (a *Appearance) Prune(removedIDs map[string]bool) bool {
	kept := a.SurfaceData[:0]
	for _, sd := range a.SurfaceData {
		if sd.RemoveTargets(removedIDs) {
			continue
		}
		kept = append(kept, sd)
	}
	a.SurfaceData = kept
	return len(a.SurfaceData) == 0
}

// CityObjectGroup is an ordered list of member references with an
// optional parent reference.
type CityObjectGroup struct {
	ID        string
	ParentRef string // href, empty if none
	Members   []string
}

// RemoveMembers drops every member whose fragment id is in removedIDs,
// returning true if the group is now empty.
func (g *CityObjectGroup) RemoveMembers(removedIDs map[string]bool) bool {
	kept := g.Members[:0]
	for _, m := range g.Members {
		if removedIDs[fragmentOf(m)] {
			continue
		}
		kept = append(kept, m)
	}
	g.Members = kept
	return len(g.Members) == 0
}

func fragmentOf(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '#' {
			return uri[i+1:]
		}
	}
	return uri
}

// ImplicitTemplate is a geometry template shared by many
// ImplicitGeometry instances, owned by the collection.
type ImplicitTemplate struct {
	ID       string
	Geometry *Geometry
}
