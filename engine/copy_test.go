package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/franksops/gostage/provider"
	"github.com/franksops/gostage/store"
)

type eventObserver struct {
	mu       sync.Mutex
	started  int
	finished []error
}

func (o *eventObserver) JobStarted(TransferJob, int64)  { o.mu.Lock(); o.started++; o.mu.Unlock() }
func (o *eventObserver) JobProgress(TransferJob, int64) {}
func (o *eventObserver) JobFinished(_ TransferJob, err error) {
	o.mu.Lock()
	o.finished = append(o.finished, err)
	o.mu.Unlock()
}

func TestCopier_Copy(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	content := "streamed through the copier"
	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	local := provider.NewLocalProvider("")
	info, err := local.Stat(context.Background(), filepath.Join(srcDir, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}

	s := store.NewMemoryStore()
	obs := &eventObserver{}
	copier := NewCopier(NewJobTracker(s, DefaultCheckpointConfig, "run", store.DirectionFetch), nil, obs)

	job := TransferJob{
		ID:              "a",
		SourcePath:      filepath.Join(srcDir, "a.txt"),
		DestinationPath: filepath.Join(dstDir, "nested", "a.txt"),
		FileInfo:        info,
	}
	res, err := copier.Copy(context.Background(), job, local, local)
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	got, err := os.ReadFile(job.DestinationPath)
	if err != nil || string(got) != content {
		t.Fatalf("Unexpected destination content %q (err %v)", got, err)
	}

	want, _ := DigestOf(strings.NewReader(content))
	if res.Digest != want || res.Written != int64(len(content)) {
		t.Errorf("Unexpected result: %+v", res)
	}

	record, err := s.GetJob("run/a")
	if err != nil {
		t.Fatal(err)
	}
	if record.State != store.StateCompleted || record.Digest != want {
		t.Errorf("Unexpected journal record: %+v", record)
	}
	if obs.started != 1 || len(obs.finished) != 1 || obs.finished[0] != nil {
		t.Errorf("Unexpected observer events: started=%d finished=%v", obs.started, obs.finished)
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }
func (f failingReader) Close() error             { return nil }

type failingSource struct {
	*mockProvider
	err error
}

func (f failingSource) OpenRead(context.Context, string) (io.ReadCloser, error) {
	return failingReader{err: f.err}, nil
}

func TestCopier_CopyFailureAbortsDestination(t *testing.T) {
	dstDir := t.TempDir()
	errRead := errors.New("read exploded")

	s := store.NewMemoryStore()
	copier := NewCopier(NewJobTracker(s, DefaultCheckpointConfig, "", store.DirectionPush), NewBufferPool(16), nil)

	job := TransferJob{ID: "x", SourcePath: "x", DestinationPath: filepath.Join(dstDir, "x.txt")}
	_, err := copier.Copy(context.Background(), job, failingSource{newMockProvider(), errRead}, provider.NewLocalProvider(""))
	if !errors.Is(err, errRead) {
		t.Fatalf("Expected read error, got %v", err)
	}

	if _, statErr := os.Stat(job.DestinationPath); !os.IsNotExist(statErr) {
		t.Errorf("Expected no destination file after abort, stat err = %v", statErr)
	}
	entries, _ := os.ReadDir(dstDir)
	if len(entries) != 0 {
		t.Errorf("Expected aborted write to leave no pending files, found %d", len(entries))
	}

	record, _ := s.GetJob("x")
	if record == nil || record.State != store.StateFailed {
		t.Errorf("Expected failed journal record, got %+v", record)
	}
}
