package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"citygml-tools/internal/citygml"
	"citygml-tools/internal/cityjson"
	"citygml-tools/internal/driver"
	"citygml-tools/internal/errs"
	"citygml-tools/internal/model"
)

func newToCityJSONCmd() *cobra.Command {
	var common commonFlags
	var version string
	var jsonLines bool

	cmd := &cobra.Command{
		Use:   "to-cityjson [files...]",
		Short: "Convert CityGML documents to CityJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("__cityjson")
			if err != nil {
				return err
			}

			fatal := false
			for _, path := range mustExpand(args, log, &fatal) {
				features, _, _, err := driver.ReadAll(path, citygml.Appearances|citygml.Groups|citygml.Templates)
				if err != nil {
					log.Errorw("read", "file", path, "error", err)
					fatal = true
					continue
				}

				outPath := cityJSONOutputPath(path, opts, jsonLines)
				if jsonLines {
					err = writeCityJSONLines(outPath, features, version)
				} else {
					err = writeCityJSONDoc(outPath, features, version)
				}
				if err != nil {
					log.Errorw("write", "file", path, "error", err)
					fatal = true
				}
			}

			log.Infow("to-cityjson finished")
			os.Exit(driver.ExitCode(fatal, log.Counters))
			return nil
		},
	}

	addCommonFlags(cmd, &common)
	cmd.Flags().StringVar(&version, "cityjson-version", "1.1", "1.0|1.1|2.0")
	cmd.Flags().BoolVar(&jsonLines, "json-lines", false, "write the streaming CityJSONFeature variant")
	return cmd
}

func cityJSONOutputPath(inputPath string, opts driver.Options, jsonLines bool) string {
	dir := filepath.Dir(inputPath)
	if opts.OutputDir != "" {
		dir = opts.OutputDir
	}
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ext := ".json"
	if jsonLines {
		ext = ".jsonl"
	}
	return filepath.Join(dir, stem+opts.Suffix+ext)
}

func writeCityJSONDoc(path string, features []*model.Feature, version string) error {
	doc, err := cityjson.FromModel(features, version, nil)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.IO, "create "+path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if err := enc.Encode(doc); err != nil {
		return errs.Wrap(errs.IO, "encode CityJSON", err)
	}
	return nil
}

func writeCityJSONLines(path string, features []*model.Feature, version string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.IO, "create "+path, err)
	}
	defer f.Close()

	w := cityjson.NewFeatureWriter(f)
	if err := w.WriteHeader(version, nil); err != nil {
		return err
	}
	for _, feature := range features {
		doc, err := cityjson.FromModel([]*model.Feature{feature}, version, nil)
		if err != nil {
			return err
		}
		if err := w.WriteFeature(doc); err != nil {
			return err
		}
	}
	return nil
}
