// Package transfer moves files between the local filesystem and remote
// stores: single objects on fetch, single files or whole trees on push.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/franksops/gostage/engine"
	"github.com/franksops/gostage/location"
	"github.com/franksops/gostage/provider"
	"github.com/franksops/gostage/store"
)

// Client fetches remote content into local files and pushes local files or
// trees to remote locations.
type Client interface {
	// Fetch downloads loc into dir and returns the path of the new file.
	Fetch(ctx context.Context, loc location.Location, dir string) (string, error)
	// Push uploads src, a file or a directory, to loc.
	Push(ctx context.Context, src string, loc location.Location) error
}

// Options configures the shared transfer machinery of a client.
type Options struct {
	// Workers bounds the concurrent uploads of a directory push.
	// Zero means engine.DefaultWorkers.
	Workers int
	// Store journals every job. Nil keeps the journal in memory.
	Store store.Store
	// RunID scopes journal records.
	RunID string
	// Buffers provides copy buffers. Nil allocates a default pool.
	Buffers *engine.BufferPool
	// Observer receives per-job progress. Nil means no reporting.
	Observer engine.Observer
	// Logger receives operation logs. Nil uses the default logger.
	Logger *log.Logger
}

// mover holds what the clients share: the local side and one copier per
// direction.
type mover struct {
	local   *provider.LocalProvider
	fetcher *engine.Copier
	pusher  *engine.Copier
	workers int
	logger  *log.Logger
}

func newMover(opts Options) *mover {
	s := opts.Store
	if s == nil {
		s = store.NewMemoryStore()
	}
	if opts.Buffers == nil {
		opts.Buffers = engine.NewBufferPool(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = engine.DefaultWorkers
	}

	return &mover{
		local: provider.NewLocalProvider(""),
		fetcher: engine.NewCopier(
			engine.NewJobTracker(s, engine.DefaultCheckpointConfig, opts.RunID, store.DirectionFetch),
			opts.Buffers, opts.Observer),
		pusher: engine.NewCopier(
			engine.NewJobTracker(s, engine.DefaultCheckpointConfig, opts.RunID, store.DirectionPush),
			opts.Buffers, opts.Observer),
		workers: opts.Workers,
		logger:  opts.Logger,
	}
}

// remote describes one side of a transfer on a remote store.
type remote struct {
	provider provider.Provider
	// path addresses the object or URL on provider.
	path string
	// ref is the identifier used in logs and errors.
	ref string
	// target maps the slash-separated path of a file inside a pushed tree to
	// its remote path.
	target func(rel string) string
	// refOf maps a remote path back to an identifier.
	refOf func(remotePath string) string
}

func (m *mover) fetch(ctx context.Context, r remote, name, dir string) (string, error) {
	if name == "" || name == "." || name == "/" {
		name = "download"
	}
	dest := filepath.Join(dir, name)

	m.logger.Info("fetching", "from", r.ref, "to", dest)
	job := engine.TransferJob{
		ID:              "fetch:" + r.ref,
		SourcePath:      r.path,
		DestinationPath: dest,
		RelPath:         name,
	}
	res, err := m.fetcher.Copy(ctx, job, r.provider, m.local)
	if err != nil {
		return "", &provider.TransferError{Op: "fetch", Ref: r.ref, Err: err}
	}
	m.logger.Debug("fetched", "from", r.ref, "bytes", res.Written, "blake3", res.Digest)
	return dest, nil
}

func (m *mover) push(ctx context.Context, src string, r remote) error {
	info, err := m.local.Stat(ctx, src)
	if err != nil {
		return &provider.TransferError{Op: "push", Ref: r.ref, Err: err}
	}

	if !info.IsDir() {
		m.logger.Info("pushing", "from", src, "to", r.ref)
		return m.pushOne(ctx, engine.TransferJob{
			ID:              "push:" + src,
			SourcePath:      src,
			DestinationPath: r.path,
			RelPath:         info.Name(),
			FileInfo:        info,
		}, r)
	}

	m.logger.Info("pushing directory", "from", src, "to", r.ref, "workers", m.workers)
	var files atomic.Int64
	err = engine.Run(ctx, m.workers,
		func(ctx context.Context, job engine.TransferJob) error {
			files.Add(1)
			job.ID = "push:" + job.SourcePath
			job.DestinationPath = r.target(job.RelPath)
			return m.pushOne(ctx, job, r)
		},
		func(ctx context.Context, jobs engine.JobChannel) error {
			return engine.NewWalker(m.local, jobs).Walk(ctx, src, "")
		},
	)
	if err != nil {
		if !errors.Is(err, provider.ErrTransfer) {
			err = &provider.TransferError{Op: "push", Ref: r.ref, Err: err}
		}
		return err
	}
	m.logger.Info("pushed directory", "from", src, "to", r.ref, "files", files.Load())
	return nil
}

func (m *mover) pushOne(ctx context.Context, job engine.TransferJob, r remote) error {
	ref := r.refOf(job.DestinationPath)
	res, err := m.pusher.Copy(ctx, job, m.local, r.provider)
	if err != nil {
		return &provider.TransferError{Op: "push", Ref: ref, Err: err}
	}
	m.logger.Debug("pushed", "from", job.SourcePath, "to", ref, "bytes", res.Written, "blake3", res.Digest)
	return nil
}

func unsupported(op string, loc location.Location, want string) error {
	return fmt.Errorf("%w: %s cannot %s %s", location.ErrInvalidLocation, want, op, loc)
}
