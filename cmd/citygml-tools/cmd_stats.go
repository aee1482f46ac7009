package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"citygml-tools/internal/citygml"
	"citygml-tools/internal/driver"
	"citygml-tools/internal/stats"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [files...]",
		Short: "Report object, LoD, appearance, and CRS counts without writing any output",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}

			fatal := false
			report := stats.NewReport()
			for _, path := range mustExpand(args, log, &fatal) {
				features, reg, _, err := driver.ReadAll(path, citygml.Appearances|citygml.Groups)
				if err != nil {
					log.Errorw("read", "file", path, "error", err)
					fatal = true
					continue
				}
				for _, f := range features {
					report.Observe(f)
				}
				for _, a := range reg.Appearances {
					report.ObserveGlobalAppearance(a)
				}
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				log.Errorw("encode report", "error", err)
				fatal = true
			}

			os.Exit(driver.ExitCode(fatal, log.Counters))
			return nil
		},
	}

	return cmd
}
