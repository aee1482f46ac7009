package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"citygml-tools/internal/citygml"
	"citygml-tools/internal/driver"
	"citygml-tools/internal/lod"
	"citygml-tools/internal/model"
)

var filterModeByName = map[string]lod.Mode{
	"keep":             lod.Keep,
	"remove":           lod.Remove,
	"minimum-or-less":  lod.MinimumOrLess,
	"maximum-or-greater": lod.MaximumOrGreater,
	"minimum":          lod.Minimum,
	"maximum":          lod.Maximum,
}

func newFilterLoDsCmd() *cobra.Command {
	var common commonFlags
	var lodsCSV, modeName string
	var keepEmpty, updateExtents bool

	cmd := &cobra.Command{
		Use:   "filter-lods [files...]",
		Short: "Keep or remove level-of-detail representations, cascading through appearances and groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("__filtered_lods")
			if err != nil {
				return err
			}
			mode, ok := filterModeByName[modeName]
			if !ok {
				return errInvalidMode(modeName)
			}
			lods, err := parseIntSet(lodsCSV)
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

				kept, result := lod.Apply(features, reg.Appearances, reg.Groups, lod.Options{
					LoDs: lods, Mode: mode, KeepEmptyObjects: keepEmpty, UpdateExtents: updateExtents,
				})
				log.Infow("filter-lods", "file", path, "dropped_objects", len(result.DroppedObjects), "surviving_groups", len(result.SurvivingGroups))

				if err := driver.WriteAll(path, fileOpts, kept, result.SurvivingGroups, result.SurvivingAppearances, nil); err != nil {
					log.Errorw("write", "file", path, "error", err)
					fatal = true
				}
			}

			os.Exit(driver.ExitCode(fatal, log.Counters))
			return nil
		},
	}

	addCommonFlags(cmd, &common)
	cmd.Flags().StringVar(&lodsCSV, "lod", "", "comma-separated LoD integers, e.g. \"1,2\"")
	cmd.Flags().StringVar(&modeName, "mode", "keep", "keep|remove|minimum-or-less|maximum-or-greater|minimum|maximum")
	cmd.Flags().BoolVar(&keepEmpty, "keep-empty-objects", false, "keep objects left with no geometry")
	cmd.Flags().BoolVar(&updateExtents, "update-extents", false, "recompute bounded-by after filtering")
	return cmd
}

func parseIntSet(csv string) (map[int]bool, error) {
	out := map[int]bool{}
	if strings.TrimSpace(csv) == "" {
		return out, nil
	}
	for _, part := range strings.Split(csv, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out[n] = true
	}
	return out, nil
}
