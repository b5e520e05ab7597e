// Package aggregator merges the scanner result files of a directory into the single
// document consumed by the visualizer.
//
// An aggregation is all or nothing: every result file of the directory is read and
// parsed before anything is written, and any failure aborts the run leaving a
// previously written document untouched.
package aggregator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/scanviz/merge-results/internal/fileutils"
	"github.com/scanviz/merge-results/internal/results"
	"github.com/ubuntu/decorate"
)

// Aggregator merges scanner results.
type Aggregator struct {
	dryRun io.Writer
	perm   os.FileMode

	log *slog.Logger
}

// Result describes a successful aggregation.
type Result struct {
	Scanners   int    // Scanners is the number of top-level keys merged.
	Files      int    // Files is the number of result files read.
	OutputPath string // OutputPath is where the document was written, empty on dry runs.
}

type options struct {
	Logger *slog.Logger
	DryRun io.Writer
	Perm   os.FileMode
}

// Options represents an optional function to override Aggregator default values.
type Options func(*options)

// WithLogger sets the logger used by the aggregator.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.Logger = l
	}
}

// WithDryRun writes the aggregated document to w instead of the output path.
func WithDryRun(w io.Writer) Options {
	return func(o *options) {
		o.DryRun = w
	}
}

// WithPermissions sets the permissions of the written document.
func WithPermissions(perm os.FileMode) Options {
	return func(o *options) {
		o.Perm = perm
	}
}

// New returns a new Aggregator.
func New(args ...Options) Aggregator {
	opts := options{
		Logger: slog.Default(),
		Perm:   0644,
	}

	for _, opt := range args {
		opt(&opts)
	}

	return Aggregator{
		dryRun: opts.DryRun,
		perm:   opts.Perm,
		log:    opts.Logger,
	}
}

// Aggregate reads every scanner result file of inputDir, in file name order, and folds them into a registry.
// A scanner found in several files keeps the payload of the last one.
// outputPath is never read as a scanner result, so a document written inside inputDir is not folded back in.
func (a Aggregator) Aggregate(ctx context.Context, inputDir, outputPath string) (reg *Registry, files []results.File, err error) {
	defer decorate.OnError(&err, "could not aggregate scanner results from %q", inputDir)

	all, err := results.List(inputDir)
	if err != nil {
		return nil, nil, err
	}

	files = make([]results.File, 0, len(all))
	for _, f := range all {
		if outputPath != "" && fileutils.SamePath(f.Path, outputPath) {
			a.log.Debug("Skipping aggregated document", "file", f.Name)
			continue
		}
		files = append(files, f)
	}

	reg = NewRegistry()
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		obj, err := f.Read()
		if err != nil {
			return nil, nil, err
		}

		for _, s := range reg.Merge(obj) {
			a.log.Debug("Scanner result overwritten", "scanner", s, "file", f.Name)
		}
		a.log.Debug("Merged scanner result file", "file", f.Name, "scanners", len(obj))
	}

	return reg, files, nil
}

// Run aggregates inputDir and writes the resulting envelope to outputPath, replacing any existing file.
// Nothing is written if any step fails.
func (a Aggregator) Run(ctx context.Context, inputDir, outputPath string) (res Result, err error) {
	reg, files, err := a.Aggregate(ctx, inputDir, outputPath)
	if err != nil {
		return Result{}, err
	}

	data, err := Envelope{RecordedTests: reg}.Marshal()
	if err != nil {
		return Result{}, err
	}

	res = Result{Scanners: reg.Len(), Files: len(files)}

	if a.dryRun != nil {
		a.log.Info("Dry run, not writing aggregated results", "output", outputPath)
		if _, err := fmt.Fprintf(a.dryRun, "%s\n", data); err != nil {
			return Result{}, fmt.Errorf("could not print aggregated results: %v", err)
		}
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if err := fileutils.AtomicWrite(outputPath, data, a.perm); err != nil {
		return Result{}, fmt.Errorf("could not write aggregated results to %q: %w", outputPath, err)
	}

	if abs, err := filepath.Abs(outputPath); err == nil {
		outputPath = abs
	}
	res.OutputPath = outputPath

	a.log.Info("Aggregated scanner results", "files", res.Files, "scanners", res.Scanners, "output", res.OutputPath)
	return res, nil
}
