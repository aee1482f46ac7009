// Package texture implements the Texture Clipper:
// for each ParameterizedTexture target, it crops the source image to the
// axis-aligned bounding region the target's UV coordinates cover, rewrites
// the UVs against the cropped image, and writes the result under a
// bucketed output path. GeoreferencedTexture targets are copied verbatim.
package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/hhrutter/tiff"

	"citygml-tools/internal/errs"
	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
)

// Format is the detected/target image codec.
type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
	FormatTIFF
)

// Options configures the clipping pass.
type Options struct {
	Precision   int     // decimal places UV coordinates are rounded to
	Clamp       bool    // clamp out-of-range UVs instead of falling back to verbatim
	ForceJPEG   bool    // never emit TIFF, even if the source was TIFF
	Quality     float64 // JPEG quality in [0,1]
	Prefix      string  // output file name prefix
	Buckets     int     // N in "bucket = ((counter-1) mod N) + 1"; 0 = flat
	TextureDir  string  // output texture folder, relative to the output document's directory
}

// Clipper holds per-run counters and loaded-image cache while clipping a
// single document's textures.
type Clipper struct {
	opts    Options
	counter int
	ids     idsource.Source

	// LoadImage resolves an imageURI to decoded bytes; injected so callers
	// can source images from an already-extracted archive or from disk via
	// the resource processor's copy of the original.
	LoadImage func(uri string) ([]byte, error)
}

// New builds a Clipper. ids mints fresh surface-data identifiers for the
// per-target clones.
func New(opts Options, ids idsource.Source, loadImage func(uri string) ([]byte, error)) *Clipper {
	return &Clipper{opts: opts, ids: ids, LoadImage: loadImage}
}

// ClipResult is one cropped image ready to be written to disk.
type ClipResult struct {
	RelPath string
	Data    []byte
}

// Clip processes every ParameterizedTexture in sd and returns the clones
// that replace it in the owning appearance's SurfaceData slice: one clone
// per clippable target (or, for an unsupported/verbatim target, the
// original target attached to a passthrough clone). Clip does not modify
// the slice itself. It also returns the cropped images to write
// alongside the document.
func (c *Clipper) Clip(sd *model.SurfaceData) ([]*model.SurfaceData, []ClipResult, error) {
	if sd.Kind == model.KindGeoreferencedTexture {
		return c.copyGeoreferenced(sd)
	}
	if sd.Kind != model.KindParameterizedTexture {
		return []*model.SurfaceData{sd}, nil, nil
	}

	raw, err := c.LoadImage(sd.ImageURI)
	if err != nil {
		return nil, nil, errs.Wrap(errs.TextureClippingFailed, "load texture "+sd.ImageURI, err)
	}
	img, format, err := decode(raw)
	if err != nil {
		return nil, nil, errs.Wrap(errs.TextureClippingFailed, "decode texture "+sd.ImageURI, err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	transparent := format == FormatPNG && hasAlpha(img)

	var clones []*model.SurfaceData
	var results []ClipResult

	for _, target := range sd.Targets {
		if len(target.UV)%2 != 0 {
			return nil, nil, errs.New(errs.TextureClippingFailed, "odd number of UV coordinates on target "+target.URI)
		}

		uv := roundAll(target.UV, c.opts.Precision)
		verbatim := false
		if outOfRange(uv) {
			if c.opts.Clamp {
				uv = clampAll(uv)
			} else {
				verbatim = true
			}
		}

		sMin, tMin, sMax, tMax := bbox(uv)
		if !verbatim && sMin <= 0 && tMin <= 0 && sMax >= 1 && tMax >= 1 {
			verbatim = true
		}

		if verbatim {
			clone := &model.SurfaceData{ID: c.ids.NewID(), Kind: sd.Kind, ImageURI: sd.ImageURI, Targets: []*model.Target{{URI: target.URI, UV: uv}}}
			clones = append(clones, clone)
			continue
		}

		y := float64(h) * (1 - tMax)
		cropH := float64(h)*(1-tMin) - y
		x := sMin * float64(w)
		cropW := (sMax - sMin) * float64(w)
		if cropW <= 0 || cropH <= 0 {
			clone := &model.SurfaceData{ID: c.ids.NewID(), Kind: sd.Kind, ImageURI: sd.ImageURI, Targets: []*model.Target{{URI: target.URI, UV: uv}}}
			clones = append(clones, clone)
			continue
		}

		cropRect := image.Rect(int(math.Floor(x)), int(math.Floor(y)), int(math.Ceil(x+cropW)), int(math.Ceil(y+cropH)))
		cropped := cropImage(img, cropRect)

		newUV := rewriteUV(uv, float64(w), float64(h), x, tMin, cropW, cropH, c.opts.Precision)

		c.counter++
		outFormat := chooseFormat(format, transparent, c.opts.ForceJPEG)
		ext := extensionFor(outFormat)
		bucket := bucketOf(c.counter, c.opts.Buckets)
		relPath := bucketedPath(c.opts.TextureDir, bucket, c.opts.Prefix, c.counter, ext)

		encoded, err := encode(cropped, outFormat, c.opts.Quality)
		if err != nil {
			return nil, nil, errs.Wrap(errs.TextureClippingFailed, "encode cropped texture", err)
		}

		clone := &model.SurfaceData{
			ID:       c.ids.NewID(),
			Kind:     sd.Kind,
			ImageURI: relPath,
			Targets:  []*model.Target{{URI: target.URI, UV: newUV}},
		}
		clones = append(clones, clone)
		results = append(results, ClipResult{RelPath: relPath, Data: encoded})
	}

	return clones, results, nil
}

// copyGeoreferenced relocates a GeoreferencedTexture's image, and its
// world-file companion if it has one, under the bucketed output directory,
// rewriting ImageURI/WorldFile to match. The pixel data is never decoded or
// altered, only copied.
func (c *Clipper) copyGeoreferenced(sd *model.SurfaceData) ([]*model.SurfaceData, []ClipResult, error) {
	raw, err := c.LoadImage(sd.ImageURI)
	if err != nil {
		return nil, nil, errs.Wrap(errs.TextureClippingFailed, "load texture "+sd.ImageURI, err)
	}

	c.counter++
	bucket := bucketOf(c.counter, c.opts.Buckets)
	relPath := bucketedPath(c.opts.TextureDir, bucket, c.opts.Prefix, c.counter, extOf(sd.ImageURI))

	clone := &model.SurfaceData{ID: c.ids.NewID(), Kind: sd.Kind, ImageURI: relPath, Targets: sd.Targets}
	results := []ClipResult{{RelPath: relPath, Data: raw}}

	if sd.WorldFile != "" {
		wf, err := c.LoadImage(sd.WorldFile)
		if err != nil {
			return nil, nil, errs.Wrap(errs.TextureClippingFailed, "load world file "+sd.WorldFile, err)
		}
		wfRelPath := bucketedPath(c.opts.TextureDir, bucket, c.opts.Prefix, c.counter, extOf(sd.WorldFile))
		clone.WorldFile = wfRelPath
		results = append(results, ClipResult{RelPath: wfRelPath, Data: wf})
	}

	return []*model.SurfaceData{clone}, results, nil
}

// extOf returns uri's file extension, without the dot.
func extOf(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		switch uri[i] {
		case '.':
			return uri[i+1:]
		case '/':
			return ""
		}
	}
	return ""
}

func decode(raw []byte) (image.Image, Format, error) {
	if img, err := png.Decode(bytes.NewReader(raw)); err == nil {
		return img, FormatPNG, nil
	}
	if img, err := jpeg.Decode(bytes.NewReader(raw)); err == nil {
		return img, FormatJPEG, nil
	}
	if img, err := tiff.Decode(bytes.NewReader(raw)); err == nil {
		return img, FormatTIFF, nil
	}
	return nil, 0, fmt.Errorf("unrecognized image format")
}

func hasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA:
		for i := 3; i < len(m.Pix); i += 4 {
			if m.Pix[i] != 255 {
				return true
			}
		}
		return false
	case *image.RGBA:
		for i := 3; i < len(m.Pix); i += 4 {
			if m.Pix[i] != 255 {
				return true
			}
		}
		return false
	default:
		_, _, _, a := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
		return a != 0xffff
	}
}

func roundAll(vs []float64, precision int) []float64 {
	mult := math.Pow(10, float64(precision))
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = math.Round(v*mult) / mult
	}
	return out
}

func clampAll(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = math.Min(1, math.Max(0, v))
	}
	return out
}

func outOfRange(vs []float64) bool {
	for _, v := range vs {
		if v < 0 || v > 1 {
			return true
		}
	}
	return false
}

// bbox computes the texture-space axis-aligned bounding region over UV
// pairs (s0, t0, s1, t1, ...).
func bbox(uv []float64) (sMin, tMin, sMax, tMax float64) {
	sMin, tMin = math.Inf(1), math.Inf(1)
	sMax, tMax = math.Inf(-1), math.Inf(-1)
	for i := 0; i+1 < len(uv); i += 2 {
		s, t := uv[i], uv[i+1]
		sMin, sMax = math.Min(sMin, s), math.Max(sMax, s)
		tMin, tMax = math.Min(tMin, t), math.Max(tMax, t)
	}
	return
}

func cropImage(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	out := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			out.Set(x-r.Min.X, y-r.Min.Y, img.At(x, y))
		}
	}
	return out
}

// rewriteUV recomputes each (s, t) pair against the cropped image:
// s' = (s*W - x)/width. t keeps the t=0-at-bottom convention across the
// crop, so it rescales against tMin rather than against the pixel-space
// y the s-axis uses directly: t' = (t - tMin)*H/height.
func rewriteUV(uv []float64, imgW, imgH, x, tMin, cropW, cropH float64, precision int) []float64 {
	out := make([]float64, len(uv))
	mult := math.Pow(10, float64(precision))
	for i := 0; i+1 < len(uv); i += 2 {
		s, t := uv[i], uv[i+1]
		sp := (s*imgW - x) / cropW
		tp := (t - tMin) * imgH / cropH
		out[i] = math.Round(sp*mult) / mult
		out[i+1] = math.Round(tp*mult) / mult
	}
	return out
}

func chooseFormat(source Format, transparent bool, forceJPEG bool) Format {
	if source == FormatTIFF && !forceJPEG {
		return FormatTIFF
	}
	if transparent {
		return FormatPNG
	}
	return FormatJPEG
}

func extensionFor(f Format) string {
	switch f {
	case FormatTIFF:
		return "tif"
	case FormatPNG:
		return "png"
	default:
		return "jpg"
	}
}

func bucketOf(counter, buckets int) int {
	if buckets <= 0 {
		return 0
	}
	return ((counter - 1) % buckets) + 1
}

func bucketedPath(dir string, bucket int, prefix string, counter int, ext string) string {
	name := fmt.Sprintf("%s%d.%s", prefix, counter, ext)
	if bucket == 0 {
		return dir + "/" + name
	}
	return fmt.Sprintf("%s/%d/%s", dir, bucket, name)
}

func encode(img image.Image, f Format, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	switch f {
	case FormatTIFF:
		if err := tiff.Encode(&buf, img, nil); err != nil {
			return nil, err
		}
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	default:
		q := int(quality * 100)
		if q <= 0 {
			q = 1
		}
		if q > 100 {
			q = 100
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
