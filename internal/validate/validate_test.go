package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"citygml-tools/internal/model"
)

func TestRunFlagsDanglingReference(t *testing.T) {
	a := &model.Feature{
		ID:   "a",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod2MultiSurface", LoD: 2, Href: "#missing"},
		},
	}

	report := Run([]*model.Feature{a})
	require.False(t, report.Empty())
	require.Len(t, report.Findings, 1)
	require.Equal(t, "a", report.Findings[0].Feature)
	require.Equal(t, "#missing", report.Findings[0].URI)
}

func TestRunAcceptsReferenceThatResolves(t *testing.T) {
	a := &model.Feature{
		ID:   "a",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod2Solid", LoD: 2, Geometry: &model.Geometry{Kind: model.KindSolid, ID: "shared"}},
		},
	}
	b := &model.Feature{
		ID:   "b",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod2Solid", LoD: 2, Href: "#shared"},
		},
	}

	report := Run([]*model.Feature{a, b})
	require.True(t, report.Empty())
}
