package provider

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWrapFileInfo(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(filePath, []byte("hello"), 0640); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	if err := os.Chmod(filePath, 0640); err != nil {
		t.Fatal(err)
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		t.Fatalf("failed to stat file: %v", err)
	}

	info := WrapFileInfo(stat)
	if info.Name() != "test.txt" {
		t.Errorf("expected name test.txt, got %s", info.Name())
	}
	if info.Size() != 5 {
		t.Errorf("expected size 5, got %d", info.Size())
	}
	if info.Mode() != 0640 {
		t.Errorf("expected mode 0640, got %o", info.Mode())
	}
}

func TestFileMode(t *testing.T) {
	tests := []struct {
		name     string
		metadata FileInfo
		want     os.FileMode
	}{
		{"nil metadata", nil, 0644},
		{"no mode", NewFileInfo("a", 1, time.Time{}), 0644},
		{"explicit mode", WithMode(NewFileInfo("a", 1, time.Time{}), 0755), 0755},
		{"zero mode", WithMode(NewFileInfo("a", 1, time.Time{}), 0), 0644},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fileMode(tt.metadata); got != tt.want {
				t.Errorf("fileMode() = %o; want %o", got, tt.want)
			}
		})
	}
}

func TestApplyMetadata(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "stamp.txt")
	if err := os.WriteFile(filePath, nil, 0644); err != nil {
		t.Fatal(err)
	}

	modTime := time.Date(2020, 6, 1, 8, 30, 0, 0, time.UTC)
	if err := ApplyMetadata(filePath, NewFileInfo("stamp.txt", 0, modTime)); err != nil {
		t.Fatalf("ApplyMetadata failed: %v", err)
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		t.Fatal(err)
	}
	if !stat.ModTime().Equal(modTime) {
		t.Errorf("expected mod time %v, got %v", modTime, stat.ModTime())
	}

	if err := ApplyMetadata(filePath, nil); err != nil {
		t.Errorf("nil metadata should be a no-op, got %v", err)
	}
}
