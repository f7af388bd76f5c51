package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franksops/gostage/engine"
)

// BarObserver renders transfer progress as a single terminal progress bar,
// for runs without the dashboard.
type BarObserver struct {
	bar *progressbar.ProgressBar

	mu      sync.Mutex
	seen    map[string]int64
	total   int64
	written int64
	failed  int
}

var _ engine.Observer = (*BarObserver)(nil)

// NewBarObserver writes the bar to w.
func NewBarObserver(w io.Writer) *BarObserver {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription("Transferring"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSpinnerType(14),
	)
	return &BarObserver{bar: bar, seen: make(map[string]int64)}
}

// SetPhase shows the step the run is in as the bar description.
func (b *BarObserver) SetPhase(phase, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bar.Describe(phase)
}

func (b *BarObserver) JobStarted(job engine.TransferJob, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seen[job.ID] = 0
	if total > 0 {
		b.total += total
		b.bar.ChangeMax64(b.total)
	}
}

func (b *BarObserver) JobProgress(job engine.TransferJob, written int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delta := written - b.seen[job.ID]
	if delta <= 0 {
		return
	}
	b.seen[job.ID] = written
	b.written += delta
	_ = b.bar.Add64(delta)
}

func (b *BarObserver) JobFinished(job engine.TransferJob, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.seen, job.ID)
	if err != nil {
		b.failed++
	}
}

// Written returns the bytes reported so far.
func (b *BarObserver) Written() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}

// Failed returns the number of jobs that finished with an error.
func (b *BarObserver) Failed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed
}

// Finish completes the bar.
func (b *BarObserver) Finish() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bar.Finish()
}
