package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/franksops/gostage/engine"
	"github.com/franksops/gostage/ui"
	"github.com/franksops/gostage/worker"
)

func newRunCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run [flags] [-- build args...]",
		Short: "Resolve the input, build it and stage the output",
		Long: `Run resolves --source (default $input) to a local path, runs the configured
build tool with it and an empty output directory, then stages that directory
to --dest (default $output). Arguments after -- are passed to the build tool.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, *cfgFile, args)
		},
	}
}

func runBuild(cmd *cobra.Command, cfgFile string, args []string) error {
	cfg, err := loadConfig(cmd, cfgFile)
	if err != nil {
		return err
	}
	if cfg.Source == "" || cfg.Destination == "" {
		return errors.New("a source and a destination are required (--source/--dest or $input/$output)")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var (
		progress *ui.Progress
		logs     *ui.LogBuffer
		bar      *ui.BarObserver
		observer engine.Observer = engine.NopObserver{}
		logOut   io.Writer       = cmd.ErrOrStderr()
		toolOut  io.Writer       = cmd.ErrOrStderr()
	)
	switch {
	case cfg.TUI:
		progress = ui.NewProgress(cfg.Workers)
		logs = ui.NewLogBuffer(0)
		observer, logOut, toolOut = progress, logs, logs
	case isatty.IsTerminal(os.Stderr.Fd()):
		bar = ui.NewBarObserver(cmd.ErrOrStderr())
		observer = bar
	}

	logger := newLogger(logOut, cfg)
	a, err := newApp(ctx, cfg, logger, observer, "")
	if err != nil {
		return err
	}
	defer a.Close()

	builder, err := a.builder(toolOut)
	if err != nil {
		return err
	}

	w := &worker.Worker{
		Resolver:    a.resolver,
		Area:        a.area,
		Builder:     builder,
		Journal:     a.journal,
		RunID:       a.runID,
		SummaryPath: cfg.SummaryPath,
		Logger:      logger,
		OnPhase: func(p worker.Phase, detail string) {
			logger.Debug("phase", "phase", p, "detail", detail)
			switch {
			case progress != nil:
				progress.SetPhase(string(p), detail)
			case bar != nil:
				bar.SetPhase(string(p), detail)
			}
		},
	}
	req := worker.Request{Source: cfg.Source, Destination: cfg.Destination, Args: args}
	logger.Info("starting run", "run", a.runID, "source", req.Source, "destination", req.Destination)

	var sum *worker.Summary
	if progress != nil {
		done := make(chan error, 1)
		go func() {
			var runErr error
			sum, runErr = w.Run(ctx, req)
			progress.Finish(runErr)
			done <- runErr
		}()
		dash := ui.NewDashboard(progress, logs, cancel)
		if uiErr := dash.Run(); uiErr != nil {
			// Without a terminal the run carries on headless.
			fmt.Fprintf(cmd.ErrOrStderr(), "dashboard unavailable: %v\n", uiErr)
		}
		err = <-done
		// The alternate screen is gone; replay the tail of the log.
		for _, line := range logs.Lines(20) {
			fmt.Fprintln(cmd.ErrOrStderr(), line)
		}
	} else {
		sum, err = w.Run(ctx, req)
		if bar != nil {
			_ = bar.Finish()
		}
	}

	for _, t := range sum.Failed() {
		logger.Error("transfer failed", "source", t.Source, "destination", t.Destination, "err", t.Error)
	}
	if err != nil {
		logger.Error("run failed", "run", a.runID, "err", err)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "staged %s to %s\n", cfg.Source, cfg.Destination)
	return nil
}
