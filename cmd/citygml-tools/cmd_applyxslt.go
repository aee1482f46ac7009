package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"citygml-tools/internal/driver"
	"citygml-tools/internal/errs"
)

// newApplyXSLTCmd is a documented no-op stub: full XSLT transformation is
// out of scope without a real XSLT engine in the dependency pack. It
// reads the stylesheet path for validation, warns that the transform is
// unsupported, and copies each input through unchanged.
func newApplyXSLTCmd() *cobra.Command {
	var common commonFlags
	var stylesheet string

	cmd := &cobra.Command{
		Use:   "apply-xslt [files...]",
		Short: "Apply an XSLT stylesheet to CityGML documents (stub: copies input through unchanged)",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("__xslt")
			if err != nil {
				return err
			}
			if stylesheet == "" {
				return errs.New(errs.InvalidArguments, "--xslt-file is required")
			}

			fatal := false
			for _, path := range mustExpand(args, log, &fatal) {
				log.Warnw("apply-xslt is unsupported; copying input through unchanged",
					"kind", errs.UnsupportedNamespace, "file", path, "stylesheet", stylesheet)
				if err := copyThrough(path, opts); err != nil {
					log.Errorw("copy", "file", path, "error", err)
					fatal = true
				}
			}

			os.Exit(driver.ExitCode(fatal, log.Counters))
			return nil
		},
	}

	addCommonFlags(cmd, &common)
	cmd.Flags().StringVar(&stylesheet, "xslt-file", "", "path to the XSLT stylesheet (required; not applied)")
	return cmd
}

func copyThrough(inputPath string, opts driver.Options) error {
	finalPath := opts.OutputPath(inputPath)
	tempPath := driver.TempPath(finalPath)

	src, err := os.Open(inputPath)
	if err != nil {
		return errs.Wrap(errs.IO, "open "+inputPath, err)
	}
	defer src.Close()

	dst, err := os.Create(tempPath)
	if err != nil {
		return errs.Wrap(errs.IO, "create "+tempPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tempPath)
		return errs.Wrap(errs.IO, "copy "+inputPath, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tempPath)
		return errs.Wrap(errs.IO, "close "+tempPath, err)
	}
	return driver.Finalize(tempPath, finalPath)
}
