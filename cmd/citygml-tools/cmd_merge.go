package main

import (
	"os"

	"github.com/spf13/cobra"

	"citygml-tools/internal/citygml"
	"citygml-tools/internal/driver"
	"citygml-tools/internal/idsource"
	"citygml-tools/internal/merge"
	"citygml-tools/internal/model"
)

func newMergeCmd() *cobra.Command {
	var common commonFlags
	var noPrefixIDs bool
	var buckets int

	cmd := &cobra.Command{
		Use:   "merge [files...]",
		Short: "Merge several CityGML documents into one",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("")
			if err != nil {
				return err
			}

			paths, err := driver.ExpandInputs(args)
			if err != nil {
				log.Errorw("expand inputs", "error", err)
				os.Exit(driver.ExitCode(true, log.Counters))
			}

			out := common.output
			if out == "" {
				out = "merged.gml"
			}

			ver := opts.CityGMLVersion
			if ver == model.VersionUnknown {
				ver = model.Version2
			}

			tmp := driver.TempPath(out)
			w, err := citygml.Create(tmp, ver, opts.PrettyPrint)
			if err != nil {
				log.Errorw("create", "file", out, "error", err)
				os.Exit(driver.ExitCode(true, log.Counters))
			}

			result, mergeErr := merge.Merge(paths, merge.Options{
				PrefixIDs: !noPrefixIDs,
				Buckets:   buckets,
			}, w, idsource.NewUUIDSource())

			closeErr := w.Close()

			fatal := false
			if err := firstErr(mergeErr, closeErr); err != nil {
				os.Remove(tmp)
				log.Errorw("merge", "error", err)
				fatal = true
			} else if err := driver.Finalize(tmp, out); err != nil {
				log.Errorw("finalize", "file", out, "error", err)
				fatal = true
			}

			log.Infow("merge finished", "files", result.MergedFiles, "objects", result.MergedObjects)
			os.Exit(driver.ExitCode(fatal, log.Counters))
			return nil
		},
	}

	addCommonFlags(cmd, &common)
	cmd.Flags().BoolVar(&noPrefixIDs, "no-prefix-ids", false, "don't prefix ids with a per-source-file tag")
	cmd.Flags().IntVar(&buckets, "buckets", 0, "bucket count for merged external resource directories; has no effect, as merge copies no external resource files")
	return cmd
}
