package main

import (
	"os"

	"github.com/spf13/cobra"

	"citygml-tools/internal/appearance"
	"citygml-tools/internal/citygml"
	"citygml-tools/internal/driver"
	"citygml-tools/internal/idsource"
	"citygml-tools/internal/model"
)

func newToLocalAppsCmd() *cobra.Command {
	var common commonFlags
	var nested bool

	cmd := &cobra.Command{
		Use:   "to-local-apps [files...]",
		Short: "Convert global appearances into per-feature local ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("__local_apps")
			if err != nil {
				return err
			}

			mode := appearance.TopLevel
			if nested {
				mode = appearance.Nested
			}
			ids := idsource.NewUUIDSource()

			fatal := false
			for _, path := range mustExpand(args, log, &fatal) {
				features, reg, ver, err := driver.ReadAll(path, citygml.Appearances|citygml.Groups|citygml.Templates)
				if err != nil {
					log.Errorw("read", "file", path, "error", err)
					fatal = true
					continue
				}
				fileOpts := opts
				if fileOpts.CityGMLVersion == model.VersionUnknown {
					fileOpts.CityGMLVersion = ver
				}

				var survivingGlobal []*model.Appearance
				for _, global := range reg.Appearances {
					appearance.Localize(global, features, reg.Templates, mode, ids)
					if len(global.SurfaceData) > 0 {
						survivingGlobal = append(survivingGlobal, global)
					}
				}

				if err := driver.WriteAll(path, fileOpts, features, reg.Groups, survivingGlobal, nil); err != nil {
					log.Errorw("write", "file", path, "error", err)
					fatal = true
				}
			}

			log.Infow("to-local-apps finished")
			os.Exit(driver.ExitCode(fatal, log.Counters))
			return nil
		},
	}

	addCommonFlags(cmd, &common)
	cmd.Flags().BoolVar(&nested, "nested", false, "attach local appearances to the nested owner instead of the top-level feature")
	return cmd
}
