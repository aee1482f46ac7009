package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestClipCropsAndRewritesUVToUnitSquare(t *testing.T) {
	raw := solidPNG(t, 10, 10, color.NRGBA{R: 200, G: 0, B: 0, A: 255})
	clipper := New(Options{Precision: 6, Prefix: "tex", TextureDir: "appearance", Buckets: 0}, idsource.NewDeterministic("sd"),
		func(uri string) ([]byte, error) { return raw, nil })

	sd := &model.SurfaceData{
		ID:       "sd-orig",
		Kind:     model.KindParameterizedTexture,
		ImageURI: "textures/wall.png",
		Targets: []*model.Target{
			{URI: "#wall1", UV: []float64{0.2, 0.3, 0.6, 0.3, 0.6, 0.7, 0.2, 0.7}},
		},
	}

	clones, results, err := clipper.Clip(sd)
	require.NoError(t, err)
	require.Len(t, clones, 1)
	require.Len(t, results, 1)

	require.Len(t, clones[0].Targets, 1)
	require.Equal(t, []float64{0, 0, 1, 0, 1, 1, 0, 1}, clones[0].Targets[0].UV)
	require.Equal(t, "appearance/tex1.jpg", clones[0].ImageURI)
	require.Equal(t, "appearance/tex1.jpg", results[0].RelPath)

	img, _, err := image.Decode(bytes.NewReader(results[0].Data))
	require.NoError(t, err)
	require.Equal(t, 4, img.Bounds().Dx())
	require.Equal(t, 4, img.Bounds().Dy())
}

func TestClipFallsBackToVerbatimWhenTargetFillsUnitSquare(t *testing.T) {
	raw := solidPNG(t, 8, 8, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	clipper := New(Options{Precision: 4}, idsource.NewDeterministic("sd"),
		func(uri string) ([]byte, error) { return raw, nil })

	sd := &model.SurfaceData{
		Kind:     model.KindParameterizedTexture,
		ImageURI: "textures/full.png",
		Targets: []*model.Target{
			{URI: "#wholewall", UV: []float64{0, 0, 1, 0, 1, 1, 0, 1}},
		},
	}

	clones, results, err := clipper.Clip(sd)
	require.NoError(t, err)
	require.Len(t, clones, 1)
	require.Empty(t, results)
	require.Equal(t, "textures/full.png", clones[0].ImageURI)
}

func TestClipRejectsOddUVCount(t *testing.T) {
	raw := solidPNG(t, 4, 4, color.NRGBA{A: 255})
	clipper := New(Options{Precision: 2}, idsource.NewDeterministic("sd"),
		func(uri string) ([]byte, error) { return raw, nil })

	sd := &model.SurfaceData{
		Kind:     model.KindParameterizedTexture,
		ImageURI: "t.png",
		Targets:  []*model.Target{{URI: "#x", UV: []float64{0, 0, 1}}},
	}
	_, _, err := clipper.Clip(sd)
	require.Error(t, err)
}

func TestBucketOf(t *testing.T) {
	require.Equal(t, 0, bucketOf(1, 0))
	require.Equal(t, 1, bucketOf(1, 3))
	require.Equal(t, 2, bucketOf(2, 3))
	require.Equal(t, 3, bucketOf(3, 3))
	require.Equal(t, 1, bucketOf(4, 3))
}
