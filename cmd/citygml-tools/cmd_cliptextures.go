package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"citygml-tools/internal/citygml"
	"citygml-tools/internal/driver"
	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
	"citygml-tools/internal/texture"
)

func newClipTexturesCmd() *cobra.Command {
	var common commonFlags
	var precision int
	var clamp, forceJPEG bool
	var quality float64
	var prefix string
	var buckets int
	var textureDir string

	cmd := &cobra.Command{
		Use:   "clip-textures [files...]",
		Short: "Crop parameterized textures to the UV region each surface actually uses",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("__clipped_textures")
			if err != nil {
				return err
			}

			fatal := false
			for _, path := range mustExpand(args, log, &fatal) {
				features, reg, ver, err := driver.ReadAll(path, citygml.Appearances)
				if err != nil {
					log.Errorw("read", "file", path, "error", err)
					fatal = true
					continue
				}
				fileOpts := opts
				if fileOpts.CityGMLVersion == model.VersionUnknown {
					fileOpts.CityGMLVersion = ver
				}

				outDir := filepath.Dir(fileOpts.OutputPath(path))
				inputDir := filepath.Dir(path)

				clipper := texture.New(texture.Options{
					Precision:  precision,
					Clamp:      clamp,
					ForceJPEG:  forceJPEG,
					Quality:    quality,
					Prefix:     prefix,
					Buckets:    buckets,
					TextureDir: textureDir,
				}, idsource.NewUUIDSource(), func(uri string) ([]byte, error) {
					return os.ReadFile(filepath.Join(inputDir, uri))
				})

				clipped := 0
				for _, f := range features {
					f.Walk(func(ft *model.Feature) bool {
						clipped += clipLocalAppearances(clipper, ft.Appearances, outDir)
						return true
					})
				}
				clipped += clipLocalAppearances(clipper, reg.Appearances, outDir)

				if err := driver.WriteAll(path, fileOpts, features, reg.Groups, reg.Appearances, nil); err != nil {
					log.Errorw("write", "file", path, "error", err)
					fatal = true
				}
				log.Infow("clip-textures", "file", path, "clipped", clipped)
			}

			os.Exit(driver.ExitCode(fatal, log.Counters))
			return nil
		},
	}

	addCommonFlags(cmd, &common)
	cmd.Flags().IntVar(&precision, "uv-precision", 7, "decimal places UV coordinates are rounded to")
	cmd.Flags().BoolVar(&clamp, "clamp", false, "clamp out-of-range UVs instead of copying the texture verbatim")
	cmd.Flags().BoolVar(&forceJPEG, "force-jpeg", false, "never emit a cropped TIFF, even if the source was TIFF")
	cmd.Flags().Float64Var(&quality, "jpeg-quality", 0.75, "JPEG quality in [0,1]")
	cmd.Flags().StringVar(&prefix, "prefix", "tex", "output texture file name prefix")
	cmd.Flags().IntVar(&buckets, "buckets", 10, "number of bucket subfolders for clipped textures (0 = flat)")
	cmd.Flags().StringVar(&textureDir, "texture-dir", "clipped_textures", "output directory cropped textures are written under")
	return cmd
}

// clipLocalAppearances clips every ParameterizedTexture surface-data in
// appearances in place and writes the cropped images to disk under
// outDir, returning the number of images written (targets copied
// verbatim are not counted).
func clipLocalAppearances(clipper *texture.Clipper, appearances []*model.Appearance, outDir string) int {
	clipped := 0
	for _, app := range appearances {
		var rewritten []*model.SurfaceData
		for _, sd := range app.SurfaceData {
			clones, results, err := clipper.Clip(sd)
			if err != nil {
				rewritten = append(rewritten, sd)
				continue
			}
			rewritten = append(rewritten, clones...)
			for _, r := range results {
				writeClippedImage(outDir, r)
				clipped++
			}
		}
		app.SurfaceData = rewritten
	}
	return clipped
}

func writeClippedImage(outDir string, r texture.ClipResult) {
	full := filepath.Join(outDir, r.RelPath)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return
	}
	_ = os.WriteFile(full, r.Data, 0644)
}
