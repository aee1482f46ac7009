package cityjson

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"citygml-tools/internal/model"
)

func polygon(points ...model.Point3) *model.Geometry {
	return &model.Geometry{
		Kind: model.KindPolygon,
		Children: []*model.Geometry{
			{Kind: model.KindLinearRing, Points: points},
		},
	}
}

func multiSurface(id string, polys ...*model.Geometry) *model.Geometry {
	return &model.Geometry{Kind: model.KindMultiSurface, ID: id, Children: polys}
}

func TestFromModelEncodesMultiSurfaceAsNestedBoundaries(t *testing.T) {
	f := &model.Feature{
		ID:   "b1",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod2MultiSurface", LoD: 2, Geometry: multiSurface("b1-lod2",
				polygon(
					model.Point3{X: 0, Y: 0, Z: 0, Is3D: true},
					model.Point3{X: 1, Y: 0, Z: 0, Is3D: true},
					model.Point3{X: 1, Y: 1, Z: 0, Is3D: true},
				),
			)},
		},
	}

	doc, err := FromModel([]*model.Feature{f}, "1.1", nil)
	require.NoError(t, err)
	require.Equal(t, "CityJSON", doc.Type)
	require.Len(t, doc.Vertices, 3)

	obj, ok := doc.CityObjects["b1"]
	require.True(t, ok)
	require.Equal(t, "Building", obj.Type)
	require.Len(t, obj.Geometry, 1)
	require.Equal(t, "MultiSurface", obj.Geometry[0].Type)
	require.Equal(t, "2.0", obj.Geometry[0].LoD)

	surfaces, ok := obj.Geometry[0].Boundaries.([]any)
	require.True(t, ok)
	require.Len(t, surfaces, 1)
}

func TestSelectByLoDMaximumPrefersSolidOverMultiSurface(t *testing.T) {
	ms := &model.GeometryProperty{LoD: 2, Geometry: multiSurface("ms", polygon(model.Point3{}))}
	solid := &model.GeometryProperty{LoD: 2, Geometry: &model.Geometry{Kind: model.KindSolid, ID: "solid", Children: []*model.Geometry{multiSurface("shell", polygon(model.Point3{}))}}}

	out := selectByLoD([]*model.GeometryProperty{ms, solid}, nil)
	require.Equal(t, "solid", out[2].Geometry.ID)
}

func TestSelectByLoDMinimumPrefersMultiSurfaceOverSolid(t *testing.T) {
	ms := &model.GeometryProperty{LoD: 2, Geometry: multiSurface("ms", polygon(model.Point3{}))}
	solid := &model.GeometryProperty{LoD: 2, Geometry: &model.Geometry{Kind: model.KindSolid, ID: "solid"}}

	out := selectByLoD([]*model.GeometryProperty{ms, solid}, LoDPolicy{2: Minimum})
	require.Equal(t, "ms", out[2].Geometry.ID)
}

func TestRoundTripFromModelToModel(t *testing.T) {
	f := &model.Feature{
		ID:   "b1",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{Name: "lod2MultiSurface", LoD: 2, Geometry: multiSurface("b1-lod2",
				polygon(
					model.Point3{X: 10, Y: 20, Z: 0, Is3D: true},
					model.Point3{X: 11, Y: 20, Z: 0, Is3D: true},
					model.Point3{X: 11, Y: 21, Z: 0, Is3D: true},
				),
			)},
		},
	}

	doc, err := FromModel([]*model.Feature{f}, "1.1", nil)
	require.NoError(t, err)

	back, err := ToModel(doc)
	require.NoError(t, err)
	require.Len(t, back, 1)
	require.Equal(t, "core:Building", back[0].Type)
	require.Len(t, back[0].Geometries, 1)
	require.Equal(t, 2, back[0].Geometries[0].LoD)
	require.Equal(t, model.KindMultiSurface, back[0].Geometries[0].Geometry.Kind)
}

func TestFeatureReaderRejectsMissingHeader(t *testing.T) {
	_, err := NewFeatureReader(bytes.NewBufferString(`{"type":"CityJSONFeature"}` + "\n"))
	require.Error(t, err)
}

func TestFeatureWriterWritesHeaderThenFeatureLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewFeatureWriter(&buf)
	require.NoError(t, w.WriteHeader("1.1", nil))

	doc, err := FromModel([]*model.Feature{{ID: "b1", Type: "bldg:Building"}}, "1.1", nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteFeature(doc))

	r, err := NewFeatureReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "1.1", r.Header.Version)

	feature, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "CityJSONFeature", feature.Type)
	require.Contains(t, feature.CityObjects, "b1")
}

func TestLoDStringFormatsIntegerLoD(t *testing.T) {
	require.Equal(t, "2.0", LoDString(2))
}
