package main

import (
	"github.com/spf13/cobra"

	"citygml-tools/internal/driver"
	"citygml-tools/internal/errs"
	"citygml-tools/internal/logging"
	"citygml-tools/internal/model"
)

func errInvalidMode(name string) error {
	return errs.New(errs.InvalidArguments, "unknown mode "+name)
}

// commonFlags holds the options shared across subcommands that read and
// write CityGML files.
type commonFlags struct {
	inputEncoding  string
	outputEncoding string
	citygmlVersion string
	prettyPrint    bool
	overwrite      bool
	output         string
}

func addCommonFlags(cmd *cobra.Command, f *commonFlags) {
	cmd.Flags().StringVar(&f.inputEncoding, "input-encoding", "", "input character encoding")
	cmd.Flags().StringVar(&f.outputEncoding, "output-encoding", "UTF-8", "output character encoding")
	cmd.Flags().StringVar(&f.citygmlVersion, "citygml-version", "", "1.0|2.0|3.0 (default: inherit from input)")
	cmd.Flags().BoolVar(&f.prettyPrint, "pretty-print", false, "indent the written XML")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "replace the input file instead of writing a suffixed copy")
	cmd.Flags().StringVar(&f.output, "output", "", "output directory (default: alongside each input)")
}

// driverOptions builds a driver.Options from the parsed common flags and
// the subcommand's own on-disk suffix.
func (f commonFlags) driverOptions(suffix string) (driver.Options, error) {
	ver := model.VersionUnknown
	if f.citygmlVersion != "" {
		var err error
		ver, err = model.ParseVersion(f.citygmlVersion)
		if err != nil {
			return driver.Options{}, err
		}
	}
	return driver.Options{
		InputEncoding:  f.inputEncoding,
		OutputEncoding: f.outputEncoding,
		CityGMLVersion: ver,
		PrettyPrint:    f.prettyPrint,
		Overwrite:      f.overwrite,
		OutputDir:      f.output,
		Suffix:         suffix,
	}, nil
}

// mustExpand glob-expands args for subcommands that process each input
// file with their own loop instead of driver.RunFiles, flagging fatal on
// failure rather than aborting immediately so the caller can still report
// a summary line.
func mustExpand(args []string, log *logging.Logger, fatal *bool) []string {
	inputs, err := driver.ExpandInputs(args)
	if err != nil {
		log.Errorw("expand inputs", "error", err)
		*fatal = true
		return nil
	}
	return inputs
}
