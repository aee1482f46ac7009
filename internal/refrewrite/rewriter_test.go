package refrewrite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"citygml-tools/internal/model"
)

func TestResolveRewritesFragmentOnly(t *testing.T) {
	r := New(KeepAll)
	r.Register("old1", "new1")

	require.Equal(t, "#new1", r.Resolve("#old1"))
	require.Equal(t, "other.gml#new1", r.Resolve("other.gml#old1"))
	require.Equal(t, "#unknown", r.Resolve("#unknown"))
	require.Equal(t, "no-fragment", r.Resolve("no-fragment"))
	require.Equal(t, "", r.Resolve(""))
}

func TestPrefixedIDAppliesPrefixOnlyWhenSet(t *testing.T) {
	r := New(KeepAll)
	require.Equal(t, "b1", r.PrefixedID("b1"))

	r.WithPrefix("src0")
	require.Equal(t, "src0_b1", r.PrefixedID("b1"))
	require.Equal(t, "", r.PrefixedID(""))
}

func TestResolveInFeatureRewritesAppearanceTargetsAndGeometryHrefs(t *testing.T) {
	r := New(KeepAll)
	r.Register("g1", "new-g1")
	r.Register("g2", "new-g2")

	f := &model.Feature{
		ID: "b1",
		Appearances: []*model.Appearance{
			{
				ID:    "app1",
				Theme: "rgbTexture",
				SurfaceData: []*model.SurfaceData{
					{ID: "sd1", Targets: []*model.Target{{URI: "#g1"}}},
				},
			},
		},
		Geometries: []*model.GeometryProperty{
			{Name: "lod2Solid", Href: "#g2"},
			{
				Name: "lod2MultiSurface",
				Geometry: &model.Geometry{
					Kind: model.KindMultiSurface,
					ID:   "ms1",
					Children: []*model.Geometry{
						{Kind: model.KindPolygon, Href: "#g1"},
					},
				},
			},
		},
	}

	r.ResolveInFeature(f)

	require.Equal(t, "#new-g1", f.Appearances[0].SurfaceData[0].Targets[0].URI)
	require.Equal(t, "#new-g2", f.Geometries[0].Href)
	require.Equal(t, "#new-g1", f.Geometries[1].Geometry.Children[0].Href)
}

func TestResolveGroupRewritesMembersAndParentRef(t *testing.T) {
	r := New(KeepAll)
	r.Register("b1", "new-b1")
	r.Register("b2", "new-b2")
	r.Register("parent1", "new-parent1")

	g := &model.CityObjectGroup{
		ID:        "group1",
		ParentRef: "#parent1",
		Members:   []string{"#b1", "#b2"},
	}

	r.ResolveGroup(g)

	require.Equal(t, "#new-parent1", g.ParentRef)
	require.Equal(t, []string{"#new-b1", "#new-b2"}, g.Members)
}

func TestResolveAppearanceRewritesEveryTarget(t *testing.T) {
	r := New(KeepAll)
	r.Register("g1", "new-g1")
	r.Register("g2", "new-g2")

	a := &model.Appearance{
		ID:     "app1",
		Global: true,
		SurfaceData: []*model.SurfaceData{
			{ID: "sd1", Targets: []*model.Target{{URI: "#g1"}, {URI: "#g2"}}},
		},
	}

	r.ResolveAppearance(a)

	require.Equal(t, "#new-g1", a.SurfaceData[0].Targets[0].URI)
	require.Equal(t, "#new-g2", a.SurfaceData[0].Targets[1].URI)
}

func TestLookupReportsUnregisteredID(t *testing.T) {
	r := New(KeepAll)
	r.Register("old1", "new1")

	v, ok := r.Lookup("old1")
	require.True(t, ok)
	require.Equal(t, "new1", v)

	_, ok = r.Lookup("missing")
	require.False(t, ok)
}

func TestRegisterIgnoresNoopAndEmptyIDs(t *testing.T) {
	r := New(KeepAll)
	r.Register("", "new1")
	r.Register("same", "same")

	_, ok := r.Lookup("")
	require.False(t, ok)
	_, ok = r.Lookup("same")
	require.False(t, ok)
}
