package engine

import (
	"context"
	"fmt"

	"github.com/franksops/gostage/provider"
)

// CopyResult describes a completed job.
type CopyResult struct {
	Job     TransferJob
	Written int64
	Digest  string
}

// Copier streams single jobs from one provider to another, journaling each
// one and reporting progress to an Observer.
type Copier struct {
	Tracker  *JobTracker
	Buffers  *BufferPool
	Observer Observer
}

// NewCopier returns a Copier. A nil observer is replaced by NopObserver.
func NewCopier(tracker *JobTracker, buffers *BufferPool, observer Observer) *Copier {
	if buffers == nil {
		buffers = NewBufferPool(0)
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Copier{Tracker: tracker, Buffers: buffers, Observer: observer}
}

// Copy reads job.SourcePath from src and writes job.DestinationPath on dst.
// The destination is aborted, never committed, when reading or writing fails.
func (c *Copier) Copy(ctx context.Context, job TransferJob, src, dst provider.Provider) (res CopyResult, err error) {
	res.Job = job
	total := int64(-1)
	if job.FileInfo != nil {
		total = job.FileInfo.Size()
	}

	if err := c.Tracker.InitJob(job); err != nil {
		return res, fmt.Errorf("failed to init job: %w", err)
	}
	if err := c.Tracker.MarkInProgress(job.ID); err != nil {
		return res, fmt.Errorf("failed to mark job in progress: %w", err)
	}

	c.Observer.JobStarted(job, total)
	defer func() {
		if err != nil {
			_ = c.Tracker.MarkFailed(job.ID, err)
		}
		c.Observer.JobFinished(job, err)
	}()

	srcReader, err := src.OpenRead(ctx, job.SourcePath)
	if err != nil {
		return res, err
	}
	defer srcReader.Close()

	dstWriter, err := dst.OpenWrite(ctx, job.DestinationPath, job.FileInfo)
	if err != nil {
		return res, err
	}

	digest := NewDigestWriter(dstWriter)
	tracked := c.Tracker.NewTrackedWriter(digest, job, c.Observer)

	if _, err = c.Buffers.Copy(tracked, srcReader); err != nil {
		abort(dstWriter, err)
		return res, err
	}

	// Close commits the destination.
	if err = dstWriter.Close(); err != nil {
		return res, err
	}

	res.Written = digest.BytesWritten()
	res.Digest = digest.Digest()

	if err := c.Tracker.MarkCompleted(job.ID, res.Written, res.Digest); err != nil {
		return res, fmt.Errorf("failed to mark job completed: %w", err)
	}
	return res, nil
}

func abort(w interface{ Close() error }, cause error) {
	if a, ok := w.(provider.Aborter); ok {
		_ = a.Abort(cause)
		return
	}
	_ = w.Close()
}
