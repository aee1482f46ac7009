package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
)

func square(z float64) []model.Point3 {
	return []model.Point3{
		{X: 0, Y: 0, Z: z, Is3D: true},
		{X: 10, Y: 0, Z: z, Is3D: true},
		{X: 10, Y: 10, Z: z, Is3D: true},
		{X: 0, Y: 10, Z: z, Is3D: true},
	}
}

func wall() []model.Point3 {
	return []model.Point3{
		{X: 0, Y: 0, Z: 0, Is3D: true},
		{X: 10, Y: 0, Z: 0, Is3D: true},
		{X: 10, Y: 0, Z: 5, Is3D: true},
		{X: 0, Y: 0, Z: 5, Is3D: true},
	}
}

func polygon(points []model.Point3) *model.Geometry {
	return &model.Geometry{
		Kind:     model.KindPolygon,
		Children: []*model.Geometry{{Kind: model.KindLinearRing, Points: points}},
	}
}

func TestClassifySplitsFlatMultiSurfaceIntoRoofWallGround(t *testing.T) {
	building := &model.Feature{
		ID:   "b1",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod2MultiSurface", LoD: 2, Geometry: &model.Geometry{
				Kind: model.KindMultiSurface,
				Children: []*model.Geometry{
					polygon(square(0)),  // ground: horizontal at the estimated ground plane
					polygon(wall()),     // wall: vertical
					polygon(square(10)), // roof: horizontal, well above ground
				},
			}},
		},
	}

	stats := Classify([]*model.Feature{building}, Options{}, idsource.NewDeterministic("surf"))

	require.Equal(t, 1, stats.ClassifiedFeatures)
	require.Equal(t, 1, stats.GroundSurfaces)
	require.Equal(t, 1, stats.WallSurfaces)
	require.Equal(t, 1, stats.RoofSurfaces)
	require.Empty(t, building.Geometries)
	require.Len(t, building.Children, 3)

	var types []string
	for _, c := range building.Children {
		types = append(types, c.Type)
	}
	require.ElementsMatch(t, []string{"bldg:GroundSurface", "bldg:WallSurface", "bldg:RoofSurface"}, types)
}

func TestClassifySkipsAlreadyThematizedFeature(t *testing.T) {
	building := &model.Feature{
		ID:   "b1",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod2MultiSurface", LoD: 2, Geometry: &model.Geometry{
				Kind:     model.KindMultiSurface,
				Children: []*model.Geometry{polygon(square(10))},
			}},
		},
		Children: []*model.Feature{
			{ID: "w1", Type: "bldg:WallSurface"},
		},
	}

	stats := Classify([]*model.Feature{building}, Options{SkipThematized: true}, idsource.NewDeterministic("surf"))

	require.Equal(t, 1, stats.SkippedThematized)
	require.Equal(t, 0, stats.ClassifiedFeatures)
	require.Len(t, building.Geometries, 1)
	require.Len(t, building.Children, 1)
}

func TestFaceNormalPointsUpForHorizontalSquare(t *testing.T) {
	n := faceNormal(square(5))
	require.InDelta(t, 1.0, n.Z, 0.001)
}
