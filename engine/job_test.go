package engine_test

import (
	"testing"

	"github.com/franksops/gostage/engine"
)

func TestJobChannel(t *testing.T) {
	ch := make(engine.JobChannel, 1)

	job := engine.TransferJob{
		ID:         "push:/tmp/foo.txt",
		SourcePath: "/tmp/foo.txt",
		RelPath:    "foo.txt",
	}

	ch <- job
	received := <-ch

	if received.SourcePath != "/tmp/foo.txt" {
		t.Errorf("Expected /tmp/foo.txt, got %s", received.SourcePath)
	}
	if received.RelPath != "foo.txt" {
		t.Errorf("Expected foo.txt, got %s", received.RelPath)
	}
}
