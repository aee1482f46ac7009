package main

import (
	"os"

	"github.com/spf13/cobra"

	"citygml-tools/internal/citygml"
	"citygml-tools/internal/driver"
	"citygml-tools/internal/validate"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Check for dangling geometry references without writing any output",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}

			fatal := false
			for _, path := range mustExpand(args, log, &fatal) {
				features, _, _, err := driver.ReadAll(path, citygml.GlobalObjectKind(0))
				if err != nil {
					log.Errorw("read", "file", path, "error", err)
					fatal = true
					continue
				}

				report := validate.Run(features)
				for _, finding := range report.Findings {
					log.Warnw("dangling geometry reference", "file", path, "feature", finding.Feature, "uri", finding.URI)
				}
				if report.Empty() {
					log.Infow("validate", "file", path, "status", "ok")
				}
			}

			os.Exit(driver.ExitCode(fatal, log.Counters))
			return nil
		},
	}

	return cmd
}
