package main

import (
	"os"

	"github.com/spf13/cobra"

	"citygml-tools/internal/logging"
)

// globalFlags holds the options every subcommand inherits from the root
// command.
type globalFlags struct {
	logLevel   string
	logFile    string
	pidFile    string
	extensions string
}

var flags globalFlags

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "citygml-tools",
		Short: "Batch-process CityGML and CityJSON files",
	}

	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "error|warn|info|debug")
	root.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "write logs here instead of stderr")
	root.PersistentFlags().StringVar(&flags.pidFile, "pid-file", "", "write the process id to this file at startup")
	root.PersistentFlags().StringVar(&flags.extensions, "extensions", "", "directory of ADE extension schemas")

	root.AddCommand(
		newStatsCmd(),
		newChangeHeightCmd(),
		newRemoveAppsCmd(),
		newToLocalAppsCmd(),
		newClipTexturesCmd(),
		newMergeCmd(),
		newSubsetCmd(),
		newFilterLoDsCmd(),
		newReprojectCmd(),
		newFromCityJSONCmd(),
		newToCityJSONCmd(),
		newUpgradeCmd(),
		newApplyXSLTCmd(),
		newValidateCmd(),
		newClassifySurfacesCmd(),
	)
	return root
}

// newLogger builds the run's logger from the global flags and writes the
// pid file, if requested.
func newLogger() (*logging.Logger, error) {
	if flags.pidFile != "" {
		_ = os.WriteFile(flags.pidFile, []byte(pidString()), 0644)
	}
	return logging.New(flags.logLevel, flags.logFile)
}

func pidString() string {
	return itoa(os.Getpid())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
