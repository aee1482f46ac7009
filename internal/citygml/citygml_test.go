package citygml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"citygml-tools/internal/model"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<core:CityModel xmlns:core="http://www.opengis.net/citygml/2.0" xmlns:gml="http://www.opengis.net/gml" xmlns:bldg="http://www.opengis.net/citygml/building/2.0" xmlns:app="http://www.opengis.net/citygml/appearance/2.0" xmlns:xlink="http://www.w3.org/1999/xlink">
  <gml:boundedBy>
    <gml:Envelope srsName="EPSG:25832" srsDimension="3">
      <gml:lowerCorner>0 0 0</gml:lowerCorner>
      <gml:upperCorner>10 10 10</gml:upperCorner>
    </gml:Envelope>
  </gml:boundedBy>
  <core:cityObjectMember>
    <bldg:Building gml:id="b1">
      <bldg:lod1MultiSurface>
        <gml:MultiSurface gml:id="g1">
          <gml:surfaceMember>
            <gml:Polygon gml:id="g1-poly">
              <gml:exterior>
                <gml:LinearRing gml:id="g1-ring">
                  <gml:posList>0 0 0 1 0 0 1 1 0 0 0 0</gml:posList>
                </gml:LinearRing>
              </gml:exterior>
            </gml:Polygon>
          </gml:surfaceMember>
        </gml:MultiSurface>
      </bldg:lod1MultiSurface>
    </bldg:Building>
  </core:cityObjectMember>
  <core:appearanceMember>
    <app:Appearance gml:id="app1">
      <app:theme>rgbTexture</app:theme>
      <app:ParameterizedTexture gml:id="sd1">
        <app:imageURI>textures/tex1.jpg</app:imageURI>
        <app:target>#g1-poly
          <app:textureCoordinates ring="#g1-ring">0 0 1 0 1 1 0 1</app:textureCoordinates>
        </app:target>
      </app:ParameterizedTexture>
    </app:Appearance>
  </core:appearanceMember>
</core:CityModel>
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.gml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0644))
	return path
}

func TestReaderYieldsFeatureAndSkipsGlobals(t *testing.T) {
	path := writeSample(t)
	r, err := Open(path, "")
	require.NoError(t, err)
	defer r.Close()
	r.WithSkipFilter(map[string]bool{"appearanceMember": true})

	require.Equal(t, model.Version2, r.Version())
	require.NotNil(t, r.Model().BoundedBy)
	require.Equal(t, "EPSG:25832", r.Model().BoundedBy.SRSName)

	f, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, f)
	require.Equal(t, "b1", f.ID)
	require.Len(t, f.Geometries, 1)
	require.Equal(t, 1, f.Geometries[0].LoD)
	require.Equal(t, model.KindMultiSurface, f.Geometries[0].Geometry.Kind)
	require.Len(t, f.Geometries[0].Geometry.Children, 1)
	poly := f.Geometries[0].Geometry.Children[0]
	require.Equal(t, model.KindPolygon, poly.Kind)
	require.Len(t, poly.Children[0].Points, 4)

	f2, err := r.Next()
	require.NoError(t, err)
	require.Nil(t, f2)
}

func TestRegistryScanCollectsAppearance(t *testing.T) {
	path := writeSample(t)
	reg, err := Scan(path, Appearances)
	require.NoError(t, err)
	require.Len(t, reg.Appearances, 1)
	app := reg.Appearances[0]
	require.Equal(t, "app1", app.ID)
	require.Equal(t, "rgbTexture", app.Theme)
	require.Len(t, app.SurfaceData, 1)
	require.Equal(t, "textures/tex1.jpg", app.SurfaceData[0].ImageURI)
	require.Len(t, app.SurfaceData[0].Targets, 1)
	require.Equal(t, "g1-poly", app.SurfaceData[0].Targets[0].GeometryID())
}

func TestWriterRoundTripsFeature(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.gml")

	w, err := Create(out, model.Version2, true)
	require.NoError(t, err)

	f := &model.Feature{
		ID:   "b2",
		Type: "bldg:Building",
		Geometries: []*model.GeometryProperty{
			{
				Name: "lod1MultiSurface",
				LoD:  1,
				Geometry: &model.Geometry{
					Kind: model.KindMultiSurface,
					ID:   "g9",
					Children: []*model.Geometry{
						{
							Kind: model.KindPolygon,
							ID:   "g9-poly",
							Children: []*model.Geometry{
								{Kind: model.KindLinearRing, Points: []model.Point3{
									{X: 0, Y: 0, Z: 0, Is3D: true},
									{X: 1, Y: 0, Z: 0, Is3D: true},
									{X: 1, Y: 1, Z: 0, Is3D: true},
									{X: 0, Y: 0, Z: 0, Is3D: true},
								}},
							},
						},
					},
				},
			},
		},
	}
	require.NoError(t, w.WriteFeature(f))
	require.NoError(t, w.Close())

	r, err := Open(out, "")
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "b2", got.ID)
	require.Len(t, got.Geometries, 1)
	require.Equal(t, model.KindMultiSurface, got.Geometries[0].Geometry.Kind)
}
