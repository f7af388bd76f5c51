package engine

import (
	"io"
	"sync"
	"time"

	"github.com/franksops/gostage/store"
)

// CheckpointConfig defines the criteria for when to save a job's progress.
type CheckpointConfig struct {
	// BytesInterval triggers a save after this many bytes have been transferred
	BytesInterval int64
	// TimeInterval triggers a save after this much time has passed
	TimeInterval time.Duration
}

// DefaultCheckpointConfig provides reasonable defaults for checkpointing
var DefaultCheckpointConfig = CheckpointConfig{
	BytesInterval: 10 * 1024 * 1024, // 10 MB
	TimeInterval:  5 * time.Second,
}

// Observer receives job lifecycle events. Implementations must be safe for
// concurrent use since workers report independently.
type Observer interface {
	JobStarted(job TransferJob, total int64)
	JobProgress(job TransferJob, written int64)
	JobFinished(job TransferJob, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) JobStarted(TransferJob, int64)  {}
func (NopObserver) JobProgress(TransferJob, int64) {}
func (NopObserver) JobFinished(TransferJob, error) {}

// JobTracker journals the state of every job of one run.
type JobTracker struct {
	store     store.Store
	config    CheckpointConfig
	runID     string
	direction store.Direction
}

// NewJobTracker creates a JobTracker. Records are keyed "<runID>/<job ID>" so
// several runs can share one journal.
func NewJobTracker(s store.Store, config CheckpointConfig, runID string, direction store.Direction) *JobTracker {
	return &JobTracker{
		store:     s,
		config:    config,
		runID:     runID,
		direction: direction,
	}
}

// RunID returns the run the tracker journals for.
func (jt *JobTracker) RunID() string {
	return jt.runID
}

func (jt *JobTracker) key(jobID string) string {
	if jt.runID == "" {
		return jobID
	}
	return jt.runID + "/" + jobID
}

// InitJob records a job as pending.
func (jt *JobTracker) InitJob(job TransferJob) error {
	totalBytes := int64(0)
	if job.FileInfo != nil {
		totalBytes = job.FileInfo.Size()
	}

	record := &store.JobRecord{
		ID:              jt.key(job.ID),
		RunID:           jt.runID,
		Direction:       jt.direction,
		SourcePath:      job.SourcePath,
		DestinationPath: job.DestinationPath,
		State:           store.StatePending,
		TotalBytes:      totalBytes,
		UpdatedAt:       time.Now(),
	}

	return jt.store.SaveJob(record)
}

func (jt *JobTracker) update(jobID string, fn func(*store.JobRecord)) error {
	record, err := jt.store.GetJob(jt.key(jobID))
	if err != nil {
		return err
	}
	fn(record)
	record.UpdatedAt = time.Now()
	return jt.store.SaveJob(record)
}

// MarkInProgress updates a job's state to InProgress
func (jt *JobTracker) MarkInProgress(jobID string) error {
	return jt.update(jobID, func(r *store.JobRecord) {
		r.State = store.StateInProgress
	})
}

// MarkCompleted records a finished job with the number of bytes moved and
// the digest of its content.
func (jt *JobTracker) MarkCompleted(jobID string, written int64, digest string) error {
	return jt.update(jobID, func(r *store.JobRecord) {
		r.State = store.StateCompleted
		r.BytesTransferred = written
		if r.TotalBytes < written {
			r.TotalBytes = written
		}
		r.Digest = digest
		r.Error = ""
	})
}

// MarkFailed updates a job's state to Failed with an error message
func (jt *JobTracker) MarkFailed(jobID string, err error) error {
	return jt.update(jobID, func(r *store.JobRecord) {
		r.State = store.StateFailed
		if err != nil {
			r.Error = err.Error()
		}
	})
}

// Jobs returns every journaled record of the tracker's run.
func (jt *JobTracker) Jobs() ([]*store.JobRecord, error) {
	prefix := ""
	if jt.runID != "" {
		prefix = jt.runID + "/"
	}
	return jt.store.ListJobs(prefix)
}

// TrackedWriter wraps an io.Writer to track bytes written and checkpoint progress
type TrackedWriter struct {
	io.Writer
	tracker  *JobTracker
	job      TransferJob
	observer Observer

	mu              sync.Mutex
	bytesWritten    int64
	lastCheckpoint  int64
	lastCheckpointT time.Time
}

// NewTrackedWriter creates a new TrackedWriter. A nil observer is allowed.
func (jt *JobTracker) NewTrackedWriter(w io.Writer, job TransferJob, observer Observer) *TrackedWriter {
	if observer == nil {
		observer = NopObserver{}
	}
	return &TrackedWriter{
		Writer:          w,
		tracker:         jt,
		job:             job,
		observer:        observer,
		lastCheckpointT: time.Now(),
	}
}

// Write implements io.Writer and checkpoints progress
func (tw *TrackedWriter) Write(p []byte) (int, error) {
	n, err := tw.Writer.Write(p)
	if n > 0 {
		tw.mu.Lock()
		tw.bytesWritten += int64(n)

		needsCheckpoint := false
		if tw.bytesWritten-tw.lastCheckpoint >= tw.tracker.config.BytesInterval {
			needsCheckpoint = true
		} else if time.Since(tw.lastCheckpointT) >= tw.tracker.config.TimeInterval {
			needsCheckpoint = true
		}

		currentBytes := tw.bytesWritten
		tw.mu.Unlock()

		tw.observer.JobProgress(tw.job, currentBytes)
		if needsCheckpoint {
			tw.checkpoint(currentBytes)
		}
	}
	return n, err
}

func (tw *TrackedWriter) checkpoint(bytes int64) {
	// A failed checkpoint only loses progress information.
	err := tw.tracker.update(tw.job.ID, func(r *store.JobRecord) {
		r.BytesTransferred = bytes
	})
	if err == nil {
		tw.mu.Lock()
		tw.lastCheckpoint = bytes
		tw.lastCheckpointT = time.Now()
		tw.mu.Unlock()
	}
}

// BytesWritten returns the total number of bytes written
func (tw *TrackedWriter) BytesWritten() int64 {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten
}
