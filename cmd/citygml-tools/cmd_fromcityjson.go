package main

import (
	"encoding/json"
	"io"
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

func newFromCityJSONCmd() *cobra.Command {
	var common commonFlags

	cmd := &cobra.Command{
		Use:   "from-cityjson [files...]",
		Short: "Convert CityJSON or CityJSONFeature documents to CityGML",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			opts, err := common.driverOptions("__citygml")
			if err != nil {
				return err
			}
			ver := opts.CityGMLVersion
			if ver == model.VersionUnknown {
				ver = model.Version2
			}

			fatal := false
			for _, path := range mustExpand(args, log, &fatal) {
				features, err := readCityJSONFile(path)
				if err != nil {
					log.Errorw("read", "file", path, "error", err)
					fatal = true
					continue
				}

				outPath := citygmlOutputPath(path, opts)
				tmp := driver.TempPath(outPath)
				w, err := citygml.Create(tmp, ver, opts.PrettyPrint)
				if err != nil {
					log.Errorw("create", "file", path, "error", err)
					fatal = true
					continue
				}
				writeErr := writeAllFeatures(w, features)
				if writeErr == nil {
					writeErr = w.WriteBoundedBy(unionBounds(features))
				}
				closeErr := w.Close()
				if err := firstErr(writeErr, closeErr); err != nil {
					os.Remove(tmp)
					log.Errorw("write", "file", path, "error", err)
					fatal = true
					continue
				}
				if err := driver.Finalize(tmp, outPath); err != nil {
					log.Errorw("finalize", "file", path, "error", err)
					fatal = true
				}
			}

			log.Infow("from-cityjson finished")
			os.Exit(driver.ExitCode(fatal, log.Counters))
			return nil
		},
	}

	addCommonFlags(cmd, &common)
	return cmd
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func unionBounds(features []*model.Feature) *model.Envelope {
	var bounded *model.Envelope
	for _, f := range features {
		bounded = bounded.Union(f.BoundedBy)
	}
	return bounded
}

func writeAllFeatures(w *citygml.Writer, features []*model.Feature) error {
	for _, f := range features {
		if err := w.WriteFeature(f); err != nil {
			return err
		}
	}
	return nil
}

func citygmlOutputPath(inputPath string, opts driver.Options) string {
	dir := filepath.Dir(inputPath)
	if opts.OutputDir != "" {
		dir = opts.OutputDir
	}
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if opts.Overwrite {
		return filepath.Join(dir, stem+".gml")
	}
	return filepath.Join(dir, stem+opts.Suffix+".gml")
}

// readCityJSONFile reads either a plain CityJSON document or a
// CityJSONFeature JSON-Lines stream; a path with the .jsonl extension
// (any case) is read as JSON Lines, anything else as a plain document.
func readCityJSONFile(path string) ([]*model.Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "open "+path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return readCityJSONLines(f)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "read "+path, err)
	}
	var doc cityjson.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.MalformedDocument, "decode CityJSON", err)
	}
	return cityjson.ToModel(&doc)
}

func readCityJSONLines(r io.Reader) ([]*model.Feature, error) {
	reader, err := cityjson.NewFeatureReader(r)
	if err != nil {
		return nil, err
	}
	var all []*model.Feature
	for {
		doc, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		features, err := cityjson.ToModel(doc)
		if err != nil {
			return nil, err
		}
		all = append(all, features...)
	}
	return all, nil
}
