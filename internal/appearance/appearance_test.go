package appearance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
)

func buildingWithSurface(topID, surfaceID string) *model.Feature {
	return &model.Feature{
		ID:   topID,
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{
				Name: "lod2MultiSurface",
				LoD:  2,
				Geometry: &model.Geometry{
					Kind: model.KindMultiSurface,
					Children: []*model.Geometry{
						{Kind: model.KindPolygon, ID: surfaceID},
					},
				},
			},
		},
	}
}

func TestCandidateIDs(t *testing.T) {
	f := buildingWithSurface("b1", "b1-wall1")
	ids := CandidateIDs(f)
	require.True(t, ids["#b1-wall1"])
	require.Len(t, ids, 1)
}

func TestPruneRemovesEmptySurfaceDataAndKeepsAppearance(t *testing.T) {
	a := &model.Appearance{
		ID:    "app1",
		Theme: "rgbTexture",
		SurfaceData: []*model.SurfaceData{
			{ID: "sd1", Targets: []*model.Target{{URI: "#b1-wall1"}}},
			{ID: "sd2", Targets: []*model.Target{{URI: "#b1-wall2"}, {URI: "#b1-wall3"}}},
		},
	}
	kept := Prune([]*model.Appearance{a}, map[string]bool{"b1-wall1": true, "b1-wall2": true})
	require.Len(t, kept, 1)
	require.Len(t, kept[0].SurfaceData, 1)
	require.Equal(t, "sd2", kept[0].SurfaceData[0].ID)
	require.Len(t, kept[0].SurfaceData[0].Targets, 1)
	require.Equal(t, "#b1-wall3", kept[0].SurfaceData[0].Targets[0].URI)
}

func TestPruneDropsAppearanceWhenAllSurfaceDataEmpty(t *testing.T) {
	a := &model.Appearance{
		ID:          "app1",
		SurfaceData: []*model.SurfaceData{{ID: "sd1", Targets: []*model.Target{{URI: "#only"}}}},
	}
	kept := Prune([]*model.Appearance{a}, map[string]bool{"only": true})
	require.Empty(t, kept)
}

func TestLocalizeSplitsTargetsByOwningFeatureWithoutDuplicatingUV(t *testing.T) {
	b1 := buildingWithSurface("b1", "b1-wall1")
	b2 := buildingWithSurface("b2", "b2-wall1")
	features := []*model.Feature{b1, b2}

	global := &model.Appearance{
		ID:    "global-app",
		Theme: "rgbTexture",
		Global: true,
		SurfaceData: []*model.SurfaceData{
			{
				ID:       "sd-shared",
				ImageURI: "textures/tex.jpg",
				Targets: []*model.Target{
					{URI: "#b1-wall1", UV: []float64{0, 0, 1, 0, 1, 1, 0, 1}},
					{URI: "#b2-wall1", UV: []float64{0.2, 0.2, 0.8, 0.2, 0.8, 0.8, 0.2, 0.8}},
				},
			},
		},
	}

	ids := idsource.NewDeterministic("local")
	created := Localize(global, features, nil, TopLevel, ids)

	require.Len(t, created[b1], 1)
	require.Len(t, created[b2], 1)

	require.Len(t, created[b1][0].SurfaceData, 1)
	require.Len(t, created[b1][0].SurfaceData[0].Targets, 1)
	require.Equal(t, "#b1-wall1", created[b1][0].SurfaceData[0].Targets[0].URI)
	require.Equal(t, []float64{0, 0, 1, 0, 1, 1, 0, 1}, created[b1][0].SurfaceData[0].Targets[0].UV)

	require.Len(t, created[b2][0].SurfaceData, 1)
	require.Len(t, created[b2][0].SurfaceData[0].Targets, 1)
	require.Equal(t, "#b2-wall1", created[b2][0].SurfaceData[0].Targets[0].URI)

	// The global surface-data is now fully drained and has been removed.
	require.Empty(t, global.SurfaceData)

	require.Contains(t, b1.Appearances, created[b1][0])
	require.Contains(t, b2.Appearances, created[b2][0])
}

func TestLocalizeKeepsTemplateOwnedTargetsGlobal(t *testing.T) {
	b1 := buildingWithSurface("b1", "b1-wall1")
	template := &model.ImplicitTemplate{
		ID: "tmpl1",
		Geometry: &model.Geometry{
			Kind: model.KindMultiSurface,
			Children: []*model.Geometry{
				{Kind: model.KindPolygon, ID: "tmpl1-face1"},
			},
		},
	}

	global := &model.Appearance{
		ID:    "global-app",
		Theme: "rgbTexture",
		SurfaceData: []*model.SurfaceData{
			{
				ID: "sd-shared",
				Targets: []*model.Target{
					{URI: "#b1-wall1"},
					{URI: "#tmpl1-face1"},
				},
			},
		},
	}

	ids := idsource.NewDeterministic("local")
	created := Localize(global, []*model.Feature{b1}, []*model.ImplicitTemplate{template}, TopLevel, ids)

	require.Len(t, created[b1], 1)
	require.Len(t, created[b1][0].SurfaceData[0].Targets, 1)
	require.Equal(t, "#b1-wall1", created[b1][0].SurfaceData[0].Targets[0].URI)

	require.Len(t, global.SurfaceData, 1)
	require.Len(t, global.SurfaceData[0].Targets, 1)
	require.Equal(t, "#tmpl1-face1", global.SurfaceData[0].Targets[0].URI)
}
