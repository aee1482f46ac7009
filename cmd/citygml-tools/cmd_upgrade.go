package main

import (
	"os"

	"github.com/spf13/cobra"

	"citygml-tools/internal/citygml"
	"citygml-tools/internal/driver"
	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
	"citygml-tools/internal/refrewrite"
	"citygml-tools/internal/upgrade"
)

func newUpgradeCmd() *cobra.Command {
	var common commonFlags
	var mapLoD1, mapLoD0RoofEdge, useLoD4AsLoD3, addObjectRelations bool

	cmd := &cobra.Command{
		Use:   "upgrade [files...]",
		Short: "Upgrade CityGML 1.0/2.0 documents to version 3.0 semantics",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("__v3")
			if err != nil {
				return err
			}
			opts.CityGMLVersion = model.Version3

			fatal := false
			for _, path := range mustExpand(args, log, &fatal) {
				features, reg, _, err := driver.ReadAll(path, citygml.Appearances|citygml.Groups|citygml.Templates)
				if err != nil {
					log.Errorw("read", "file", path, "error", err)
					fatal = true
					continue
				}

				u := upgrade.New(upgrade.Options{
					MapLoD1MultiSurfaces:      mapLoD1,
					MapLoD0RoofEdge:           mapLoD0RoofEdge,
					UseLoD4AsLoD3:             useLoD4AsLoD3,
					CreateCityObjectRelations: addObjectRelations,
				}, refrewrite.New(refrewrite.KeepAll), idsource.NewUUIDSource())
				u.Run(features)
				stats := u.Stats()

				log.Infow("upgrade", "file", path,
					"resolved_cross_lod", stats.ResolvedCrossLoD,
					"removed_cross_lod", stats.RemovedCrossLoD,
					"resolved_cross_top_level", stats.ResolvedCrossTopLevel,
					"created_object_relations", stats.CreatedRelations,
					"assigned_uuids", stats.AssignedUUIDs)

				if err := driver.WriteAll(path, opts, features, reg.Groups, reg.Appearances, nil); err != nil {
					log.Errorw("write", "file", path, "error", err)
					fatal = true
				}
			}

			os.Exit(driver.ExitCode(fatal, log.Counters))
			return nil
		},
	}

	addCommonFlags(cmd, &common)
	cmd.Flags().BoolVar(&mapLoD1, "map-lod1-multi-surfaces", false, "wrap LoD1 MultiSurfaces into GenericThematicSurface children")
	cmd.Flags().BoolVar(&mapLoD0RoofEdge, "map-lod0-roof-edge", false, "wrap LoD0 MultiSurfaces into RoofSurface children")
	cmd.Flags().BoolVar(&useLoD4AsLoD3, "use-lod4-as-lod3", false, "drop LoD3 and relabel LoD4 representations as LoD3")
	cmd.Flags().BoolVarP(&addObjectRelations, "add-object-relations", "a", false, "insert CityObjectRelation links for resolved cross-top-level references")
	return cmd
}
