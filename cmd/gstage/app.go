package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/charmbracelet/log"

	"github.com/franksops/gostage/archive"
	"github.com/franksops/gostage/build"
	"github.com/franksops/gostage/config"
	"github.com/franksops/gostage/engine"
	"github.com/franksops/gostage/provider"
	"github.com/franksops/gostage/stage"
	"github.com/franksops/gostage/staging"
	"github.com/franksops/gostage/store"
	"github.com/franksops/gostage/transfer"
	"github.com/franksops/gostage/worker"
)

const journalFile = "journal.db"

// app holds the collaborators shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	journal  store.Store
	runID    string
	area     *staging.Area
	resolver *stage.Resolver
}

func newLogger(w io.Writer, cfg *config.Config) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           cfg.Level(),
	})
}

// openJournal opens the bbolt journal in the state directory, or an
// in-memory one when no state directory is configured.
func openJournal(cfg *config.Config) (store.Store, error) {
	if cfg.StateDir == "" {
		return store.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	s, err := store.NewBoltStore(filepath.Join(cfg.StateDir, journalFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return s, nil
}

func newRunID() string {
	return fmt.Sprintf("%s-%d", time.Now().UTC().Format("20060102T150405Z"), os.Getpid())
}

// newApp wires the journal, transfer clients and resolver. policy overrides
// the configured cleanup policy when not empty.
func newApp(ctx context.Context, cfg *config.Config, logger *log.Logger, observer engine.Observer, policy staging.Policy) (*app, error) {
	journal, err := openJournal(cfg)
	if err != nil {
		return nil, err
	}

	if policy == "" {
		policy = cfg.Staging.Cleanup
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		journal: journal,
		runID:   newRunID(),
		area:    staging.New(cfg.Staging.Root, policy),
	}

	buffers := engine.NewBufferPool(0)
	opts := transfer.Options{
		Workers:  cfg.Workers,
		Store:    journal,
		RunID:    a.runID,
		Buffers:  buffers,
		Observer: observer,
		Logger:   logger,
	}

	// A missing AWS configuration only matters once an s3:// location is
	// used, so it is reported then.
	var objectStore transfer.Client
	s3Client, err := provider.NewS3Client(ctx, provider.S3ClientOptions{
		Region:    cfg.S3.Region,
		Endpoint:  cfg.S3.Endpoint,
		PathStyle: cfg.S3.PathStyle,
	})
	if err != nil {
		logger.Warn("S3 client unavailable", "err", err)
	} else {
		var uploaderOpts []func(*manager.Uploader)
		if n := cfg.S3.PartSizeMiB; n > 0 {
			uploaderOpts = append(uploaderOpts, func(u *manager.Uploader) { u.PartSize = n << 20 })
		}
		objectStore = transfer.NewObjectStoreClient(s3Client, opts, uploaderOpts...)
	}

	a.resolver = stage.NewResolver(stage.Config{
		Area:        a.area,
		Codec:       archive.NewCodec(cfg.Archive.Compression, buffers),
		ObjectStore: objectStore,
		HTTP:        transfer.NewHTTPClient(provider.NewHTTPClient(cfg.HTTP.Timeout), opts),
		Logger:      logger,
	})
	return a, nil
}

func (a *app) Close() error {
	return a.journal.Close()
}

// builder returns the configured build tool writing its output to w.
func (a *app) builder(w io.Writer) (worker.Builder, error) {
	switch {
	case len(a.cfg.Build.Command) > 0:
		return &build.CommandRunner{Command: a.cfg.Build.Command, Stdout: w, Stderr: w, Logger: a.logger}, nil
	case a.cfg.Build.AntHome != "":
		return &build.AntRunner{Home: a.cfg.Build.AntHome, Java: a.cfg.Build.Java, Stdout: w, Stderr: w, Logger: a.logger}, nil
	default:
		return nil, errors.New("no build tool configured (set --build-command or --ant-home)")
	}
}
