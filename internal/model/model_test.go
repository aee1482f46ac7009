package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeUnion(t *testing.T) {
	a := &Envelope{Lower: Point3{X: 0, Y: 0, Z: 0}, Upper: Point3{X: 1, Y: 1, Z: 1}, SRSName: "EPSG:25832"}
	b := &Envelope{Lower: Point3{X: -1, Y: 2, Z: 0.5}, Upper: Point3{X: 5, Y: 3, Z: 2}}

	u := a.Union(b)
	require.Equal(t, Point3{X: -1, Y: 0, Z: 0}, u.Lower)
	require.Equal(t, Point3{X: 5, Y: 3, Z: 2}, u.Upper)
	require.Equal(t, "EPSG:25832", u.SRSName)

	require.Same(t, b, (*Envelope)(nil).Union(b))
}

func TestEnvelopeIntersects(t *testing.T) {
	a := &Envelope{Lower: Point3{X: 0, Y: 0, Z: 0}, Upper: Point3{X: 10, Y: 10, Z: 10}}
	b := &Envelope{Lower: Point3{X: 5, Y: 5, Z: 5}, Upper: Point3{X: 20, Y: 20, Z: 20}}
	c := &Envelope{Lower: Point3{X: 100, Y: 100, Z: 100}, Upper: Point3{X: 200, Y: 200, Z: 200}}

	require.True(t, a.Intersects(b))
	require.False(t, a.Intersects(c))
}

func TestFeatureRemoveGeometriesWhereCascadesToNested(t *testing.T) {
	root := &Feature{
		ID: "b1",
		Geometries: []*GeometryProperty{
			{Name: "lod1Solid", LoD: 1, Geometry: &Geometry{ID: "g1"}},
		},
		Children: []*Feature{
			{
				ID: "wall1",
				Geometries: []*GeometryProperty{
					{Name: "lod2MultiSurface", LoD: 2, Geometry: &Geometry{ID: "g2", Children: []*Geometry{{ID: "g2-ring"}}}},
				},
			},
		},
	}

	removed := root.RemoveGeometriesWhere(func(gp *GeometryProperty) bool { return gp.LoD == 2 })

	require.ElementsMatch(t, []string{"g2", "g2-ring"}, removed)
	require.Len(t, root.Children[0].Geometries, 0)
	require.Len(t, root.Geometries, 1)
}

func TestFeatureIsEmpty(t *testing.T) {
	f := &Feature{ID: "b1"}
	require.True(t, f.IsEmpty())

	f.Children = []*Feature{{ID: "wall", Geometries: []*GeometryProperty{{Name: "lod2MultiSurface", LoD: 2}}}}
	require.False(t, f.IsEmpty())
}

func TestSurfaceDataRemoveTargetsReportsEmpty(t *testing.T) {
	sd := &SurfaceData{
		ID:   "sd1",
		Kind: KindParameterizedTexture,
		Targets: []*Target{
			{URI: "#g1", UV: []float64{0, 0, 1, 1}},
			{URI: "#g2", UV: []float64{0, 0, 1, 1}},
		},
	}
	empty := sd.RemoveTargets(map[string]bool{"g1": true})
	require.False(t, empty)
	require.Len(t, sd.Targets, 1)
	require.Equal(t, "g2", sd.Targets[0].GeometryID())

	empty = sd.RemoveTargets(map[string]bool{"g2": true})
	require.True(t, empty)
}

func TestAppearancePruneDeletesEmptySurfaceData(t *testing.T) {
	app := &Appearance{
		ID: "app1",
		SurfaceData: []*SurfaceData{
			{ID: "sd1", Targets: []*Target{{URI: "#g1"}}},
			{ID: "sd2", Targets: []*Target{{URI: "#g2"}}},
		},
	}
	deleted := app.Prune(map[string]bool{"g1": true})
	require.False(t, deleted)
	require.Len(t, app.SurfaceData, 1)
	require.Equal(t, "sd2", app.SurfaceData[0].ID)

	deleted = app.Prune(map[string]bool{"g2": true})
	require.True(t, deleted)
}

func TestCityObjectGroupRemoveMembers(t *testing.T) {
	g := &CityObjectGroup{ID: "grp1", Members: []string{"#b1", "#b2", "#b3"}}
	empty := g.RemoveMembers(map[string]bool{"b1": true, "b2": true})
	require.False(t, empty)
	require.Equal(t, []string{"#b3"}, g.Members)

	empty = g.RemoveMembers(map[string]bool{"b3": true})
	require.True(t, empty)
}
