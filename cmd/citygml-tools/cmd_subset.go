package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"citygml-tools/internal/appearance"
	"citygml-tools/internal/citygml"
	"citygml-tools/internal/driver"
	"citygml-tools/internal/lod"
	"citygml-tools/internal/model"
)

func newSubsetCmd() *cobra.Command {
	var common commonFlags
	var bboxCSV, srsName, typesCSV, idsCSV string
	var noRemoveGroupMembers bool

	cmd := &cobra.Command{
		Use:   "subset [files...]",
		Short: "Keep only features matching a bounding box, type, or id",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("__subset")
			if err != nil {
				return err
			}

			var bbox *model.Envelope
			if bboxCSV != "" {
				bbox, err = parseBBox(bboxCSV, srsName)
				if err != nil {
					return err
				}
			}
			types := splitNonEmpty(typesCSV)
			ids := splitNonEmpty(idsCSV)

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

				var kept []*model.Feature
				removedIDs := map[string]bool{}
				for _, f := range features {
					if matchesSubset(f, bbox, types, ids) {
						kept = append(kept, f)
						continue
					}
					if f.ID != "" {
						removedIDs[f.ID] = true
					}
					for _, gid := range f.RemoveGeometriesWhere(func(*model.GeometryProperty) bool { return true }) {
						removedIDs[gid] = true
					}
				}

				survivingGlobal := appearance.Prune(reg.Appearances, removedIDs)
				var groups []*model.CityObjectGroup
				if noRemoveGroupMembers {
					groups = reg.Groups
				} else {
					groups = lod.PruneGroupsToFixedPoint(reg.Groups, removedIDs)
				}

				log.Infow("subset", "file", path, "kept", len(kept), "dropped", len(features)-len(kept))
				if err := driver.WriteAll(path, fileOpts, kept, groups, survivingGlobal, nil); err != nil {
					log.Errorw("write", "file", path, "error", err)
					fatal = true
				}
			}

			os.Exit(driver.ExitCode(fatal, log.Counters))
			return nil
		},
	}

	addCommonFlags(cmd, &common)
	cmd.Flags().StringVar(&bboxCSV, "bbox", "", "lowerX,lowerY,lowerZ,upperX,upperY,upperZ")
	cmd.Flags().StringVar(&srsName, "bbox-srs", "", "CRS the bbox coordinates are given in")
	cmd.Flags().StringVar(&typesCSV, "types", "", "comma-separated qualified type names to keep")
	cmd.Flags().StringVar(&idsCSV, "ids", "", "comma-separated feature ids to keep")
	cmd.Flags().BoolVar(&noRemoveGroupMembers, "no-remove-group-members", false, "keep group members that no longer resolve")
	return cmd
}

func matchesSubset(f *model.Feature, bbox *model.Envelope, types, ids []string) bool {
	if len(ids) > 0 && !contains(ids, f.ID) {
		return false
	}
	if len(types) > 0 && !contains(types, f.Type) {
		return false
	}
	if bbox != nil && !bbox.Intersects(f.BoundedBy) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func splitNonEmpty(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBBox(csv, srsName string) (*model.Envelope, error) {
	parts := strings.Split(csv, ",")
	if len(parts) != 6 {
		return nil, errInvalidMode("bbox must have 6 comma-separated numbers")
	}
	vals := make([]float64, 6)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return &model.Envelope{
		Lower:   model.Point3{X: vals[0], Y: vals[1], Z: vals[2], Is3D: true},
		Upper:   model.Point3{X: vals[3], Y: vals[4], Z: vals[5], Is3D: true},
		SRSName: srsName,
	}, nil
}
