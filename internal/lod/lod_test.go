package lod

import (
	"testing"

	"github.com/stretchr/testify/require"

	"citygml-tools/internal/model"
)

func objectWithLoDs(id string, lods ...int) *model.Feature {
	f := &model.Feature{ID: id}
	for _, l := range lods {
		f.Geometries = append(f.Geometries, &model.GeometryProperty{
			Name: "geom", LoD: l,
			Geometry: &model.Geometry{Kind: model.KindMultiSurface, ID: id + "-lod" + itoa(l)},
		})
	}
	return f
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestFilterObjectKeepMode(t *testing.T) {
	f := objectWithLoDs("b1", 0, 1, 2)
	removed := FilterObject(f, Options{LoDs: map[int]bool{1: true}, Mode: Keep})
	require.Len(t, f.Geometries, 1)
	require.Equal(t, 1, f.Geometries[0].LoD)
	require.True(t, removed["b1-lod0"])
	require.True(t, removed["b1-lod2"])
	require.False(t, removed["b1-lod1"])
}

func TestFilterObjectRemoveMode(t *testing.T) {
	f := objectWithLoDs("b1", 0, 1, 2)
	FilterObject(f, Options{LoDs: map[int]bool{1: true}, Mode: Remove})
	var kept []int
	for _, gp := range f.Geometries {
		kept = append(kept, gp.LoD)
	}
	require.ElementsMatch(t, []int{0, 2}, kept)
}

func TestFilterObjectMinimumMode(t *testing.T) {
	f := objectWithLoDs("b1", 1, 2, 3)
	FilterObject(f, Options{LoDs: map[int]bool{1: true, 2: true, 3: true}, Mode: Minimum})
	require.Len(t, f.Geometries, 1)
	require.Equal(t, 1, f.Geometries[0].LoD)
}

func TestFilterObjectMaximumOrGreaterMode(t *testing.T) {
	f := objectWithLoDs("b1", 0, 1, 2, 3)
	FilterObject(f, Options{LoDs: map[int]bool{2: true}, Mode: MaximumOrGreater})
	var kept []int
	for _, gp := range f.Geometries {
		kept = append(kept, gp.LoD)
	}
	require.ElementsMatch(t, []int{2, 3}, kept)
}

func TestPruneGroupsToFixedPoint(t *testing.T) {
	leaf := &model.CityObjectGroup{ID: "g2", Members: []string{"#removed-id"}}
	parent := &model.CityObjectGroup{ID: "g1", Members: []string{"#g2"}}
	kept := PruneGroupsToFixedPoint([]*model.CityObjectGroup{parent, leaf}, map[string]bool{"removed-id": true})
	require.Empty(t, kept)
}

func TestApplyDropsEmptyObjectsAndCascadesThroughGroups(t *testing.T) {
	b1 := objectWithLoDs("b1", 1)
	group := &model.CityObjectGroup{ID: "grp1", Members: []string{"#b1"}}

	kept, result := Apply([]*model.Feature{b1}, nil, []*model.CityObjectGroup{group},
		Options{LoDs: map[int]bool{2: true}, Mode: Keep, KeepEmptyObjects: false})

	require.Empty(t, kept)
	require.Equal(t, []string{"b1"}, result.DroppedObjects)
	require.Empty(t, result.SurvivingGroups)
}
