package merge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"citygml-tools/internal/citygml"
	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
)

func writeDoc(t *testing.T, dir, name, lower, upper string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" +
		"<core:CityModel xmlns:core=\"http://www.opengis.net/citygml/2.0\" xmlns:gml=\"http://www.opengis.net/gml\" xmlns:bldg=\"http://www.opengis.net/citygml/building/2.0\">\n" +
		"  <gml:boundedBy><gml:Envelope srsName=\"EPSG:25832\" srsDimension=\"3\"><gml:lowerCorner>" + lower + "</gml:lowerCorner><gml:upperCorner>" + upper + "</gml:upperCorner></gml:Envelope></gml:boundedBy>\n" +
		"  <core:cityObjectMember><bldg:Building gml:id=\"b1\"><bldg:lod1MultiSurface><gml:MultiSurface gml:id=\"g1\"><gml:surfaceMember><gml:Polygon gml:id=\"g1-poly\"><gml:exterior><gml:LinearRing gml:id=\"g1-ring\"><gml:posList>0 0 0 1 0 0 1 1 0 0 0 0</gml:posList></gml:LinearRing></gml:exterior></gml:Polygon></gml:surfaceMember></gml:MultiSurface></bldg:lod1MultiSurface></bldg:Building></core:cityObjectMember>\n" +
		"</core:CityModel>\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestMergePrefixesIDsAndUnionsBounds(t *testing.T) {
	dir := t.TempDir()
	a := writeDoc(t, dir, "a.gml", "0 0 0", "10 10 10")
	b := writeDoc(t, dir, "b.gml", "5 5 0", "20 20 10")

	out := filepath.Join(dir, "merged.gml")
	w, err := citygml.Create(out, model.Version2, false)
	require.NoError(t, err)

	result, err := Merge([]string{a, b}, Options{PrefixIDs: true}, w, idsource.NewDeterministic("id"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.Equal(t, 2, result.MergedFiles)
	require.Equal(t, 2, result.MergedObjects)
	require.NotNil(t, result.BoundedBy)
	require.Equal(t, 0.0, result.BoundedBy.Lower.X)
	require.Equal(t, 20.0, result.BoundedBy.Upper.X)

	merged, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(merged), "src0_b1")
	require.Contains(t, string(merged), "src1_b1")
}
