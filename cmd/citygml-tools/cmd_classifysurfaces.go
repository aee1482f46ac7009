package main

import (
	"os"

	"github.com/spf13/cobra"

	"citygml-tools/internal/citygml"
	"citygml-tools/internal/driver"
	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
	"citygml-tools/internal/semantic"
)

func newClassifySurfacesCmd() *cobra.Command {
	var common commonFlags
	var wallNormalZ, groundNormalZ, groundTolerance float64
	var skipThematized bool

	cmd := &cobra.Command{
		Use:   "classify-surfaces [files...]",
		Short: "Classify unthematized LoD2+ geometry into Roof/Wall/GroundSurface children by face orientation",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("__classified")
			if err != nil {
				return err
			}

			fatal := false
			for _, path := range mustExpand(args, log, &fatal) {
				features, reg, ver, err := driver.ReadAll(path, citygml.Appearances|citygml.Groups)
				if err != nil {
					log.Errorw("read", "file", path, "error", err)
					fatal = true
					continue
				}
				fileOpts := opts
				if fileOpts.CityGMLVersion == model.VersionUnknown {
					fileOpts.CityGMLVersion = ver
				}

				stats := semantic.Classify(features, semantic.Options{
					WallNormalZ:     wallNormalZ,
					GroundNormalZ:   groundNormalZ,
					GroundTolerance: groundTolerance,
					SkipThematized:  skipThematized,
				}, idsource.NewUUIDSource())

				log.Infow("classify-surfaces", "file", path,
					"classified_features", stats.ClassifiedFeatures,
					"roof_surfaces", stats.RoofSurfaces,
					"wall_surfaces", stats.WallSurfaces,
					"ground_surfaces", stats.GroundSurfaces,
					"skipped_thematized", stats.SkippedThematized)

				if err := driver.WriteAll(path, fileOpts, features, reg.Groups, reg.Appearances, nil); err != nil {
					log.Errorw("write", "file", path, "error", err)
					fatal = true
				}
			}

			os.Exit(driver.ExitCode(fatal, log.Counters))
			return nil
		},
	}

	addCommonFlags(cmd, &common)
	cmd.Flags().Float64Var(&wallNormalZ, "wall-normal-z", 0.1, "|normal.Z| ceiling below which a face counts as vertical")
	cmd.Flags().Float64Var(&groundNormalZ, "ground-normal-z", 0.95, "|normal.Z| floor a horizontal face must clear to be a ground candidate")
	cmd.Flags().Float64Var(&groundTolerance, "ground-tolerance", 0.5, "how close to the estimated ground height a horizontal face's centroid must be")
	cmd.Flags().BoolVar(&skipThematized, "skip-thematized", true, "leave features with an existing WallSurface/RoofSurface/GroundSurface/ClosureSurface child untouched")
	return cmd
}
