package main

import (
	"os"

	"github.com/spf13/cobra"

	"citygml-tools/internal/driver"
	"citygml-tools/internal/model"
	"citygml-tools/internal/reproject"
)

func newReprojectCmd() *cobra.Command {
	var common commonFlags
	var targetCRS, fallbackSRS string
	var targetLongitudeFirst, keepHeightValues bool

	cmd := &cobra.Command{
		Use:   "reproject [files...]",
		Short: "Transform every coordinate to a target CRS",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("__reprojected")
			if err != nil {
				return err
			}

			rp := reproject.New(reproject.Options{
				TargetCRS:        targetCRS,
				FallbackSRS:      fallbackSRS,
				SwapSourceXY:     targetLongitudeFirst,
				KeepHeightValues: keepHeightValues,
			})

			code := driver.RunFiles(args, driver.FilePipeline{
				Opts: opts,
				Transform: func(f *model.Feature) (*model.Feature, error) {
					if err := rp.Apply(f); err != nil {
						return nil, err
					}
					return f, nil
				},
			}, log)

			log.Infow("reproject finished", "warnings", log.Counters.Warnings(), "errors", log.Counters.Errors())
			os.Exit(code)
			return nil
		},
	}

	addCommonFlags(cmd, &common)
	cmd.Flags().StringVar(&targetCRS, "target-crs", "", "EPSG code, URN, or WKT of the destination CRS")
	cmd.Flags().StringVar(&fallbackSRS, "fallback-srs", "", "CRS assumed when a geometry has none and none is inherited")
	cmd.Flags().BoolVar(&targetLongitudeFirst, "target-longitude-first", false, "swap source X/Y before transforming")
	cmd.Flags().BoolVar(&keepHeightValues, "keep-height-values", false, "leave Z unchanged after transforming")
	cmd.MarkFlagRequired("target-crs")
	return cmd
}
