package ui

import (
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/franksops/gostage/engine"
)

// UIState is a point-in-time view of a run, rendered by the dashboard.
type UIState struct {
	Phase          string
	Detail         string
	TotalFiles     int64
	TotalBytes     int64
	CompletedFiles int64
	FailedFiles    int64
	CompletedBytes int64
	ActiveStreams  []*ActiveStream
	ActiveWorkers  int
	MaxWorkers     int
	ThroughputBPms float64 // bytes per millisecond
	Done           bool
	Err            string
}

// ActiveStream represents a current running transfer
type ActiveStream struct {
	JobID    string
	FilePath string
	Progress float64 // 0.0 to 1.0, or -1 when the size is unknown
	BytesSec float64 // bytes per second for this stream
}

type stream struct {
	path    string
	total   int64
	written int64
	started time.Time
}

// Progress aggregates transfer events into UIState snapshots. It implements
// engine.Observer and is safe for concurrent use.
type Progress struct {
	mu       sync.Mutex
	start    time.Time
	now      func() time.Time
	state    UIState
	finished int64 // bytes of finished jobs
	active   map[string]*stream
}

var _ engine.Observer = (*Progress)(nil)

// NewProgress returns an empty Progress for a run with maxWorkers
// concurrent transfers.
func NewProgress(maxWorkers int) *Progress {
	return &Progress{
		start:  time.Now(),
		now:    time.Now,
		state:  UIState{MaxWorkers: maxWorkers},
		active: make(map[string]*stream),
	}
}

// SetPhase records the step the run is in.
func (p *Progress) SetPhase(phase, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Phase = phase
	p.state.Detail = detail
}

// Finish marks the run as over.
func (p *Progress) Finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Done = true
	if err != nil {
		p.state.Err = err.Error()
	}
}

func (p *Progress) JobStarted(job engine.TransferJob, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.TotalFiles++
	if total > 0 {
		p.state.TotalBytes += total
	}
	p.active[job.ID] = &stream{path: displayPath(job), total: total, started: p.now()}
}

func (p *Progress) JobProgress(job engine.TransferJob, written int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.active[job.ID]; ok {
		s.written = written
	}
}

func (p *Progress) JobFinished(job engine.TransferJob, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.active[job.ID]
	if !ok {
		return
	}
	delete(p.active, job.ID)
	if err != nil {
		p.state.FailedFiles++
		return
	}
	p.state.CompletedFiles++
	p.finished += s.written
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() *UIState {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	snap := p.state
	snap.CompletedBytes = p.finished
	snap.ActiveStreams = make([]*ActiveStream, 0, len(p.active))
	for id, s := range p.active {
		snap.CompletedBytes += s.written
		as := &ActiveStream{JobID: id, FilePath: s.path, Progress: -1}
		if s.total > 0 {
			as.Progress = min(float64(s.written)/float64(s.total), 1)
		}
		if secs := now.Sub(s.started).Seconds(); secs > 0 {
			as.BytesSec = float64(s.written) / secs
		}
		snap.ActiveStreams = append(snap.ActiveStreams, as)
	}
	sort.Slice(snap.ActiveStreams, func(i, j int) bool {
		return snap.ActiveStreams[i].JobID < snap.ActiveStreams[j].JobID
	})
	snap.ActiveWorkers = len(snap.ActiveStreams)
	if ms := now.Sub(p.start).Milliseconds(); ms > 0 {
		snap.ThroughputBPms = float64(snap.CompletedBytes) / float64(ms)
	}
	return &snap
}

func displayPath(job engine.TransferJob) string {
	for _, p := range []string{job.RelPath, job.DestinationPath, job.SourcePath} {
		if p != "" {
			if strings.Contains(p, "://") {
				return p
			}
			return path.Clean(strings.ReplaceAll(p, `\`, "/"))
		}
	}
	return job.ID
}
