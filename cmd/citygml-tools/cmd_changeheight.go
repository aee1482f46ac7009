package main

import (
	"os"

	"github.com/spf13/cobra"

	"citygml-tools/internal/driver"
	"citygml-tools/internal/height"
	"citygml-tools/internal/model"
)

func newChangeHeightCmd() *cobra.Command {
	var common commonFlags
	var dtmPath string
	var offset float64
	var relative, bilinear bool

	cmd := &cobra.Command{
		Use:   "change-height [files...]",
		Short: "Drape or offset geometry against a digital terrain model",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("__changed_height")
			if err != nil {
				return err
			}

			dtm, err := height.OpenDTM(dtmPath)
			if err != nil {
				return err
			}
			defer dtm.Close()

			mode := height.Absolute
			if relative {
				mode = height.Relative
			}
			adjuster := height.NewAdjuster(dtm, height.Options{Mode: mode, Offset: offset, Bilinear: bilinear})

			code := driver.RunFiles(args, driver.FilePipeline{
				Opts: opts,
				Transform: func(f *model.Feature) (*model.Feature, error) {
					adjuster.Apply(f)
					return f, nil
				},
			}, log)

			stats := adjuster.Stats()
			log.Infow("change-height finished", "adjusted", stats.AdjustedVertices, "skipped", stats.SkippedVertices, "avg", stats.Average())
			os.Exit(code)
			return nil
		},
	}

	addCommonFlags(cmd, &common)
	cmd.Flags().StringVar(&dtmPath, "dtm", "", "path to a single-band elevation raster")
	cmd.Flags().Float64Var(&offset, "offset", 0, "constant added after sampling the DTM")
	cmd.Flags().BoolVar(&relative, "relative", false, "add the DTM elevation to existing Z instead of replacing it")
	cmd.Flags().BoolVar(&bilinear, "bilinear", false, "interpolate among the 4 nearest DTM cells")
	cmd.MarkFlagRequired("dtm")
	return cmd
}
