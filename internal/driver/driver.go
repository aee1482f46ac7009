// Package driver wires a subcommand's options into the read -> transform
// -> write pipeline shared by every subcommand: glob
// expand the input list, and for each file open a reader, run the
// configured per-feature transform, stream through an optional resource
// processor, write to a temp path, then atomically replace or place the
// result alongside the input under its derived suffix.
package driver

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"citygml-tools/internal/citygml"
	"citygml-tools/internal/errs"
	"citygml-tools/internal/logging"
	"citygml-tools/internal/model"
	"citygml-tools/internal/resource"
)

// Options are the flags common to every subcommand that reads and writes
// CityGML files.
type Options struct {
	InputEncoding  string
	OutputEncoding string
	CityGMLVersion model.CityGMLVersion // 0 (VersionUnknown) means "inherit from input"
	PrettyPrint    bool
	Overwrite      bool
	OutputDir      string
	Suffix         string // e.g. "__filtered_lods"; ignored when Overwrite is set
}

// OutputPath derives the path a transformed copy of inputPath is written
// to: inputPath's own directory (or Options.OutputDir, if set) with
// Options.Suffix inserted before the extension, unless Overwrite is set,
// in which case the output replaces inputPath in place via a temp file.
func (o Options) OutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	if o.OutputDir != "" {
		dir = o.OutputDir
	}
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	if o.Overwrite {
		return filepath.Join(dir, stem+ext)
	}
	return filepath.Join(dir, stem+o.Suffix+ext)
}

// TempPath returns the scratch path a file is built at before being moved
// to its final location (always distinct from both input and final path,
// so a same-directory overwrite never truncates the file it's reading
// from).
func TempPath(finalPath string) string {
	return finalPath + ".tmp"
}

// Finalize moves tempPath to finalPath, replacing any existing file.
func Finalize(tempPath, finalPath string) error {
	if err := os.Rename(tempPath, finalPath); err != nil {
		return errs.Wrap(errs.IO, "replace "+finalPath, err)
	}
	return nil
}

// ExpandInputs glob-expands each pattern in patterns, deduplicating
// matches and erroring if nothing on the whole list resolves to a file.
func ExpandInputs(patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, pat := range patterns {
		matches, err := filepath.Glob(pat)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArguments, "expand input pattern "+pat, err)
		}
		if len(matches) == 0 {
			if _, statErr := os.Stat(pat); statErr == nil {
				matches = []string{pat}
			}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	if len(out) == 0 {
		return nil, errs.New(errs.InvalidArguments, "no input files matched")
	}
	return out, nil
}

// ExitCode derives the process exit code from what happened during a run:
// 1 if a process-fatal error occurred, 3 if only warnings were
// accumulated (the validation-warning surface), 0 otherwise.
func ExitCode(fatal bool, counters *logging.Counters) int {
	if fatal {
		return 1
	}
	if counters != nil && counters.Warnings() > 0 {
		return 3
	}
	return 0
}

// FeatureTransform mutates or replaces a single top-level feature in
// place; returning a non-nil error drops the feature (logged, warning
// counter incremented) without aborting the rest of the file.
type FeatureTransform func(f *model.Feature) (*model.Feature, error)

// Epilogue runs once per file after every feature has streamed through,
// with access to the reader's pre-scanned globals and the writer, so a
// transformer can prune or rewrite groups/appearances before the trailer
// is written.
type Epilogue func(reg *citygml.Registry, w *citygml.Writer) error

// FilePipeline bundles everything RunFiles needs to process one input
// file end to end.
type FilePipeline struct {
	Opts      Options
	Registry  citygml.GlobalObjectKind // globals to pre-scan; 0 to skip the registry pass
	Transform FeatureTransform
	Resources func(ctx context.Context, inputDir, outputDir string, log *logging.Logger) *resource.Processor // nil to skip resource copying
	Epilogue  Epilogue
}

// RunFiles applies p to every file matched by patterns, in order,
// aborting the current file but not subsequent ones on a per-file error.
// It returns the process exit code.
func RunFiles(patterns []string, p FilePipeline, log *logging.Logger) int {
	inputs, err := ExpandInputs(patterns)
	if err != nil {
		log.Errorw("expand inputs", "error", err)
		return ExitCode(true, log.Counters)
	}

	fatal := false
	for _, in := range inputs {
		if err := runOneFile(in, p, log); err != nil {
			log.Errorw("processing file failed", "file", in, "error", err)
			fatal = true
		}
	}
	return ExitCode(fatal, log.Counters)
}

func runOneFile(inputPath string, p FilePipeline, log *logging.Logger) error {
	var reg *citygml.Registry
	if p.Registry != 0 {
		var err error
		reg, err = citygml.Scan(inputPath, p.Registry)
		if err != nil {
			return err
		}
	}

	r, err := citygml.Open(inputPath, p.Opts.InputEncoding)
	if err != nil {
		return err
	}
	defer r.Close()

	skip := map[string]bool{}
	if p.Registry&citygml.Appearances != 0 {
		skip["appearanceMember"] = true
	}
	if p.Registry&citygml.Groups != 0 {
		skip["cityObjectGroupMember"] = true
	}
	if len(skip) > 0 {
		r.WithSkipFilter(skip)
	}

	outVersion := p.Opts.CityGMLVersion
	if outVersion == model.VersionUnknown {
		outVersion = r.Version()
	}

	finalPath := p.Opts.OutputPath(inputPath)
	tempPath := TempPath(finalPath)

	w, err := citygml.Create(tempPath, outVersion, p.Opts.PrettyPrint)
	if err != nil {
		return err
	}

	var resources *resource.Processor
	if p.Resources != nil {
		outDir := filepath.Dir(finalPath)
		ctx := context.Background()
		resources = p.Resources(ctx, filepath.Dir(inputPath), outDir, log)
	}

	if err := streamFeatures(r, w, p.Transform, log); err != nil {
		w.Close()
		os.Remove(tempPath)
		return err
	}

	if p.Epilogue != nil {
		if err := p.Epilogue(reg, w); err != nil {
			w.Close()
			os.Remove(tempPath)
			return err
		}
	}

	if resources != nil {
		if err := resources.Close(); err != nil {
			w.Close()
			os.Remove(tempPath)
			return errs.Wrap(errs.Aborted, "resource copy", err)
		}
	}

	if err := w.Close(); err != nil {
		return err
	}
	return Finalize(tempPath, finalPath)
}

// ReadAll opens path, pre-scans the requested globals, and buffers every
// top-level feature into memory. Used by subcommands whose transform
// needs whole-document context (filter-lods' group cascade, subset's
// bbox test, upgrade's cross-reference resolution, to-local-apps'
// ownership resolution) rather than the single-feature streaming
// pipeline RunFiles uses.
func ReadAll(path string, kinds citygml.GlobalObjectKind) ([]*model.Feature, *citygml.Registry, model.CityGMLVersion, error) {
	var reg *citygml.Registry
	if kinds != 0 {
		var err error
		reg, err = citygml.Scan(path, kinds)
		if err != nil {
			return nil, nil, model.VersionUnknown, err
		}
	}

	r, err := citygml.Open(path, "")
	if err != nil {
		return nil, nil, model.VersionUnknown, err
	}
	defer r.Close()

	skip := map[string]bool{}
	if kinds&citygml.Appearances != 0 {
		skip["appearanceMember"] = true
	}
	if kinds&citygml.Groups != 0 {
		skip["cityObjectGroupMember"] = true
	}
	if len(skip) > 0 {
		r.WithSkipFilter(skip)
	}

	var features []*model.Feature
	for {
		f, err := r.Next()
		if err != nil {
			return nil, nil, model.VersionUnknown, err
		}
		if f == nil {
			break
		}
		features = append(features, f)
	}
	return features, reg, r.Version(), nil
}

// WriteAll writes features, groups, and global appearances (in that
// order, so group members resolve before any appearance that targets
// one) plus the collection envelope to a fresh writer at the derived
// output path, then finalizes it.
func WriteAll(inputPath string, opts Options, features []*model.Feature, groups []*model.CityObjectGroup, appearances []*model.Appearance, bounded *model.Envelope) error {
	finalPath := opts.OutputPath(inputPath)
	tempPath := TempPath(finalPath)

	w, err := citygml.Create(tempPath, opts.CityGMLVersion, opts.PrettyPrint)
	if err != nil {
		return err
	}

	for _, f := range features {
		if err := w.WriteFeature(f); err != nil {
			w.Close()
			os.Remove(tempPath)
			return err
		}
	}
	for _, g := range groups {
		if err := w.WriteGroup(g); err != nil {
			w.Close()
			os.Remove(tempPath)
			return err
		}
	}
	for _, a := range appearances {
		if err := w.WriteGlobalAppearance(a); err != nil {
			w.Close()
			os.Remove(tempPath)
			return err
		}
	}
	if err := w.WriteBoundedBy(bounded); err != nil {
		w.Close()
		os.Remove(tempPath)
		return err
	}

	if err := w.Close(); err != nil {
		return err
	}
	return Finalize(tempPath, finalPath)
}

func streamFeatures(r *citygml.Reader, w *citygml.Writer, transform FeatureTransform, log *logging.Logger) error {
	for {
		f, err := r.Next()
		if err != nil {
			return err
		}
		if f == nil {
			return nil
		}

		if transform != nil {
			out, terr := transform(f)
			if terr != nil {
				log.Warnw("dropping feature", "feature", f.ID, "error", terr)
				continue
			}
			f = out
		}
		if f == nil || f.IsEmpty() {
			continue
		}
		if err := w.WriteFeature(f); err != nil {
			return err
		}
	}
}
