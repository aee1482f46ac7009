// Package resource implements the Resource Processor:
// as features stream through a transformer, any file they reference on
// disk (textures, library objects for implicit templates, point-cloud
// files, time-series files) is copied to the corresponding relative path
// under the output directory. Copies run on a bounded worker pool fed by
// a bounded queue, so a flood of references applies backpressure to the
// feature pipeline instead of buffering unboundedly in memory (section
// 5, "Concurrency & Resource Model").
package resource

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"citygml-tools/internal/errs"
	"citygml-tools/internal/logging"
)

// Type identifies the kind of external resource a reference names, so a
// subcommand can suppress one category via Skip.
type Type int

const (
	Texture Type = iota
	LibraryObject
	PointFile
	TimeSeriesFile
)

func (t Type) String() string {
	switch t {
	case Texture:
		return "texture"
	case LibraryObject:
		return "library-object"
	case PointFile:
		return "point-file"
	case TimeSeriesFile:
		return "time-series-file"
	default:
		return "unknown"
	}
}

// Processor copies referenced resource files from an input directory to
// an output directory on a bounded worker pool.
type Processor struct {
	inputDir  string
	outputDir string
	log       *logging.Logger

	group *errgroup.Group
	queue chan job

	mu          sync.Mutex
	createdDirs map[string]bool
	skip        map[Type]bool

	copied int
}

type job struct {
	typ  Type
	from string
	to   string
}

// New starts a Processor with a bounded worker pool of size workers
// (default max(2, NumCPU) when workers <= 0) and a queue of the given
// capacity. Submit blocks once the queue is full, providing backpressure
// to whatever loop is feeding it.
func New(ctx context.Context, inputDir, outputDir string, workers, queueCapacity int, log *logging.Logger) *Processor {
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 2 {
			workers = 2
		}
	}
	if queueCapacity <= 0 {
		queueCapacity = workers * 4
	}

	g, ctx := errgroup.WithContext(ctx)
	p := &Processor{
		inputDir:    inputDir,
		outputDir:   outputDir,
		log:         log,
		group:       g,
		queue:       make(chan job, queueCapacity),
		createdDirs: map[string]bool{},
		skip:        map[Type]bool{},
	}

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return p.work(ctx)
		})
	}
	return p
}

// Skip suppresses copies of the given resource type for the lifetime of
// this processor.
func (p *Processor) Skip(t Type) {
	p.mu.Lock()
	p.skip[t] = true
	p.mu.Unlock()
}

func (p *Processor) skipped(t Type) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skip[t]
}

// Submit schedules a copy of relPath (resolved against the input
// directory) to the same relative path under the output directory. It
// blocks if the worker pool's queue is full. A no-op if the resource type
// has been suppressed via Skip, or relPath is empty.
func (p *Processor) Submit(t Type, relPath string) {
	if relPath == "" || p.skipped(t) {
		return
	}
	from := filepath.Join(p.inputDir, relPath)
	to := filepath.Join(p.outputDir, relPath)
	p.queue <- job{typ: t, from: from, to: to}

	if t == Texture {
		p.submitWorldFile(from, to)
	}
}

// submitWorldFile schedules the companion world file alongside a
// georeferenced texture, if one exists under either naming convention
//: "<stem>.<ext>w" or "<stem>.<x_w>w" where x_w is the
// first and last letter of a three-letter extension.
func (p *Processor) submitWorldFile(from, to string) {
	for _, candidate := range worldFileCandidates(from) {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		rel, err := filepath.Rel(filepath.Dir(from), candidate)
		if err != nil {
			continue
		}
		dst := filepath.Join(filepath.Dir(to), rel)
		p.queue <- job{typ: Texture, from: candidate, to: dst}
	}
}

func worldFileCandidates(imagePath string) []string {
	ext := filepath.Ext(imagePath)
	if ext == "" {
		return nil
	}
	stem := imagePath[:len(imagePath)-len(ext)]
	bare := ext[1:] // drop leading dot

	var out []string
	out = append(out, stem+"."+bare+"w")
	if len(bare) == 3 {
		out = append(out, stem+"."+string(bare[0])+string(bare[2])+"w")
	}
	return out
}

func (p *Processor) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j, ok := <-p.queue:
			if !ok {
				return nil
			}
			if err := p.copyFile(j); err != nil {
				if p.log != nil {
					p.log.Errorw("resource copy failed", "type", j.typ.String(), "from", j.from, "error", err)
				}
				return err
			}
		}
	}
}

func (p *Processor) copyFile(j job) error {
	if err := p.ensureDir(filepath.Dir(j.to)); err != nil {
		return err
	}

	src, err := os.Open(j.from)
	if err != nil {
		return errs.Wrap(errs.IO, "open resource "+j.from, err)
	}
	defer src.Close()

	dst, err := os.Create(j.to)
	if err != nil {
		return errs.Wrap(errs.IO, "create resource "+j.to, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errs.Wrap(errs.IO, "copy resource "+j.from, err)
	}

	p.mu.Lock()
	p.copied++
	p.mu.Unlock()
	return nil
}

// ensureDir creates dir (and parents) if it has not already been created
// by this processor, guarded by a single coarse mutex over the set of
// already-created output subdirectories.
func (p *Processor) ensureDir(dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createdDirs[dir] {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Wrap(errs.IO, "create output directory "+dir, err)
	}
	p.createdDirs[dir] = true
	return nil
}

// Close awaits every outstanding submission (the count-latch) and returns
// the first copy failure encountered across the whole batch, if any.
func (p *Processor) Close() error {
	close(p.queue)
	return p.group.Wait()
}

// Copied reports how many files this processor has successfully copied
// so far; used by subcommands that print a resource-count summary.
func (p *Processor) Copied() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copied
}
