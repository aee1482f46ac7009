package main

import (
	"os"

	"github.com/spf13/cobra"

	"citygml-tools/internal/driver"
	"citygml-tools/internal/model"
)

// newRemoveAppsCmd strips every appearance, local and global, from the
// output (the reader never yields appearanceMember entries as features
// and no global appearances are passed to the writer; local ones are
// cleared here).
func newRemoveAppsCmd() *cobra.Command {
	var common commonFlags

	cmd := &cobra.Command{
		Use:   "remove-apps [files...]",
		Short: "Strip all appearances (local and global) from the input",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("__removed_apps")
			if err != nil {
				return err
			}

			code := driver.RunFiles(args, driver.FilePipeline{
				Opts: opts,
				Transform: func(f *model.Feature) (*model.Feature, error) {
					f.Walk(func(ft *model.Feature) bool {
						ft.Appearances = nil
						return true
					})
					return f, nil
				},
			}, log)

			log.Infow("remove-apps finished", "warnings", log.Counters.Warnings())
			os.Exit(code)
			return nil
		},
	}
	addCommonFlags(cmd, &common)
	return cmd
}
