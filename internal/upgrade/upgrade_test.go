package upgrade

import (
	"testing"

	"github.com/stretchr/testify/require"

	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
	"citygml-tools/internal/refrewrite"
)

func geom(id string, kind model.GeometryKind) *model.Geometry {
	return &model.Geometry{ID: id, Kind: kind}
}

func TestPromoteWrapsLoD1MultiSurfaceIntoGenericThematicSurface(t *testing.T) {
	building := &model.Feature{
		ID:   "b1",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod1MultiSurface", LoD: 1, Geometry: geom("b1-lod1", model.KindMultiSurface)},
		},
	}

	u := New(Options{MapLoD1MultiSurfaces: true}, refrewrite.New(refrewrite.KeepAll), idsource.NewDeterministic("id"))
	u.Run([]*model.Feature{building})

	require.Empty(t, building.Geometries)
	require.Len(t, building.Children, 1)
	require.Equal(t, "bldg:GenericThematicSurface", building.Children[0].Type)
	require.Len(t, building.Children[0].Geometries, 1)
	require.Equal(t, "b1-lod1", building.Children[0].Geometries[0].Geometry.ID)
}

func TestPromoteWrapsLoD0RoofEdgeIntoRoofSurface(t *testing.T) {
	building := &model.Feature{
		ID:   "b1",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod0RoofEdge", LoD: 0, Geometry: geom("b1-lod0", model.KindMultiSurface)},
		},
	}

	u := New(Options{MapLoD0RoofEdge: true}, refrewrite.New(refrewrite.KeepAll), idsource.NewDeterministic("id"))
	u.Run([]*model.Feature{building})

	require.Empty(t, building.Geometries)
	require.Len(t, building.Children, 1)
	require.Equal(t, "bldg:RoofSurface", building.Children[0].Type)
}

func TestUseLoD4AsLoD3DropsOldLoD3AndRedirectsReferences(t *testing.T) {
	a := &model.Feature{
		ID:   "a",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod3Solid", LoD: 3, Geometry: geom("a-lod3", model.KindSolid)},
			{Name: "lod4Solid", LoD: 4, Geometry: geom("a-lod4", model.KindSolid)},
		},
	}
	b := &model.Feature{
		ID:   "b",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod3Solid", LoD: 3, Href: "#a-lod3"},
		},
	}

	u := New(Options{UseLoD4AsLoD3: true}, refrewrite.New(refrewrite.KeepAll), idsource.NewDeterministic("id"))
	u.Run([]*model.Feature{a, b})

	require.Len(t, a.Geometries, 1)
	require.Equal(t, 3, a.Geometries[0].LoD)
	require.Equal(t, "a-lod4", a.Geometries[0].Geometry.ID)

	require.Len(t, b.Geometries, 1)
	require.Equal(t, "#a-lod4", b.Geometries[0].Href)

	stats := u.Stats()
	require.Equal(t, 1, stats.ResolvedCrossLoD)
	require.Equal(t, 0, stats.RemovedCrossLoD)
}

func TestResolveCrossLoDDropsReferenceToGeometryThatDidNotSurvive(t *testing.T) {
	a := &model.Feature{
		ID:   "a",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod3Solid", LoD: 3, Geometry: geom("a-lod3", model.KindSolid)},
		},
	}
	b := &model.Feature{
		ID:   "b",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod2MultiSurface", LoD: 2, Href: "#a-lod3"},
		},
	}

	u := New(Options{UseLoD4AsLoD3: true}, refrewrite.New(refrewrite.KeepAll), idsource.NewDeterministic("id"))
	u.Run([]*model.Feature{a, b})

	require.Empty(t, a.Geometries)
	require.Empty(t, b.Geometries)

	stats := u.Stats()
	require.Equal(t, 0, stats.ResolvedCrossLoD)
	require.Equal(t, 1, stats.RemovedCrossLoD)
}

func TestResolveCrossTopLevelCreatesRelationsOnBothSides(t *testing.T) {
	a := &model.Feature{
		ID:   "a",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod2Solid", LoD: 2, Geometry: geom("shared-wall", model.KindSolid)},
		},
	}
	b := &model.Feature{
		ID:   "b",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod2Solid", LoD: 2, Href: "#shared-wall"},
		},
	}

	u := New(Options{CreateCityObjectRelations: true}, refrewrite.New(refrewrite.KeepAll), idsource.NewDeterministic("id"))
	u.Run([]*model.Feature{a, b})

	require.Len(t, a.Children, 1)
	require.Equal(t, "core:relatedTo", a.Children[0].Type)
	require.Equal(t, "#b", a.Children[0].Attributes["href"])

	require.Len(t, b.Children, 1)
	require.Equal(t, "#a", b.Children[0].Attributes["href"])

	stats := u.Stats()
	require.Equal(t, 1, stats.ResolvedCrossTopLevel)
	require.Equal(t, 2, stats.CreatedRelations)
}

func TestBackfillUUIDsAssignsIdsToFeaturesMissingThem(t *testing.T) {
	child := &model.Feature{Type: "bldg:WallSurface"}
	top := &model.Feature{Type: "bldg:Building", Children: []*model.Feature{child}}

	u := New(Options{}, refrewrite.New(refrewrite.KeepAll), idsource.NewDeterministic("gen"))
	u.Run([]*model.Feature{top})

	require.NotEmpty(t, top.ID)
	require.NotEmpty(t, child.ID)
	require.Equal(t, 2, u.Stats().AssignedUUIDs)
}
