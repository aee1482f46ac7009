// Command citygml-tools batch-processes CityGML (and CityJSON) files: one
// subcommand per transformation, sharing a single reader/writer pipeline.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
