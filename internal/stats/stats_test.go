package stats

import (
	"testing"

	"github.com/stretchr/testify/require"

	"citygml-tools/internal/model"
)

func TestObserveCountsObjectsLoDsAndCRS(t *testing.T) {
	f := &model.Feature{
		ID:   "b1",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod2MultiSurface", LoD: 2, Geometry: &model.Geometry{Kind: model.KindMultiSurface, SRSName: "EPSG:25832"}},
		},
		Appearances: []*model.Appearance{{Theme: "rgbTexture"}},
	}

	r := NewReport()
	r.Observe(f)

	require.Equal(t, 1, r.ObjectsByType["bldg:Building"])
	require.Equal(t, 1, r.LoDCounts[2])
	require.Equal(t, 1, r.CRSSeen["EPSG:25832"])
	require.Equal(t, 1, r.AppearancesByTheme["rgbTexture"])
	require.Equal(t, 1, r.TotalObjects)
}
