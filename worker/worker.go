// Package worker runs one staging job end to end: resolve the input, build
// it, ship the output.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/franksops/gostage/location"
	"github.com/franksops/gostage/stage"
	"github.com/franksops/gostage/staging"
	"github.com/franksops/gostage/store"
)

// Builder produces output from a resolved input. The output must be written
// into outputDir.
type Builder interface {
	Build(ctx context.Context, input, outputDir string, args []string) error
}

// Request describes one run.
type Request struct {
	Source      string
	Destination string
	// Args are passed through to the builder.
	Args []string
}

// Phase names a step of a run.
type Phase string

const (
	PhaseResolve Phase = "resolve"
	PhaseBuild   Phase = "build"
	PhaseStage   Phase = "stage"
	PhaseDone    Phase = "done"
	PhaseFailed  Phase = "failed"
)

// Worker wires the resolver, the builder and the staging area of a run.
type Worker struct {
	Resolver *stage.Resolver
	Area     *staging.Area
	Builder  Builder
	// Journal, when set, is read back into the run summary.
	Journal store.Store
	RunID   string
	// SummaryPath, when set, receives the YAML run summary.
	SummaryPath string
	Logger      *log.Logger
	// OnPhase is called as the run enters each phase.
	OnPhase func(phase Phase, detail string)
}

// Run resolves req.Source, builds it into a fresh outbound directory, stages
// that directory to req.Destination and cleans up according to the area's
// policy. The returned summary is filled in as far as the run got, even on
// failure.
func (w *Worker) Run(ctx context.Context, req Request) (*Summary, error) {
	logger := w.Logger
	if logger == nil {
		logger = log.Default()
	}
	sum := &Summary{
		RunID:       w.RunID,
		Source:      req.Source,
		Destination: req.Destination,
		Args:        req.Args,
		Started:     time.Now(),
	}

	err := w.run(ctx, req, sum, logger)

	sum.Finished = time.Now()
	if err != nil {
		sum.Error = err.Error()
		w.phase(PhaseFailed, err.Error())
	}

	kept, cleanupErr := w.Area.Cleanup(err == nil)
	sum.Kept = kept
	if cleanupErr != nil {
		logger.Warn("cleanup failed", "err", cleanupErr)
	}
	if len(kept) > 0 {
		logger.Info("staging directories kept", "dirs", kept)
	}

	if w.Journal != nil {
		if records, jerr := w.Journal.ListJobs(w.journalPrefix()); jerr == nil {
			sum.addTransfers(records)
		} else {
			logger.Warn("failed to read journal", "err", jerr)
		}
	}

	if w.SummaryPath != "" {
		if werr := sum.WriteFile(w.SummaryPath); werr != nil {
			err = errors.Join(err, werr)
		}
	}

	if err == nil {
		w.phase(PhaseDone, req.Destination)
	}
	return sum, err
}

func (w *Worker) run(ctx context.Context, req Request, sum *Summary, logger *log.Logger) error {
	if w.Builder == nil {
		return errors.New("no builder configured")
	}

	// Both locations are parsed before anything is fetched.
	src, err := location.Parse(req.Source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dst, err := location.Parse(req.Destination)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	w.phase(PhaseResolve, req.Source)
	phaseStart := time.Now()
	input, err := w.Resolver.Resolve(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", req.Source, err)
	}
	sum.Input = input
	sum.record(PhaseResolve, phaseStart)
	logger.Info("resolved input", "source", req.Source, "path", input)

	outDir, err := w.Area.OutboundDir("build-*")
	if err != nil {
		return &stage.FilesystemError{Op: "mkdir", Path: "outbound staging area", Err: err}
	}
	sum.Output = outDir

	w.phase(PhaseBuild, input)
	phaseStart = time.Now()
	if err := w.Builder.Build(ctx, input, outDir, req.Args); err != nil {
		return fmt.Errorf("failed to build %s: %w", input, err)
	}
	sum.record(PhaseBuild, phaseStart)

	w.phase(PhaseStage, req.Destination)
	phaseStart = time.Now()
	if err := w.Resolver.Stage(ctx, outDir, dst); err != nil {
		return fmt.Errorf("failed to stage output to %s: %w", req.Destination, err)
	}
	sum.record(PhaseStage, phaseStart)
	logger.Info("staged output", "destination", req.Destination)
	return nil
}

func (w *Worker) phase(p Phase, detail string) {
	if w.OnPhase != nil {
		w.OnPhase(p, detail)
	}
}

func (w *Worker) journalPrefix() string {
	if w.RunID == "" {
		return ""
	}
	return w.RunID + "/"
}
