package provider

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLocalProvider_Stat(t *testing.T) {
	tempBase := t.TempDir()

	p := NewLocalProvider(tempBase)
	ctx := context.Background()

	testFile := "test-stat.txt"
	testContent := []byte("hello stat")

	if err := os.WriteFile(filepath.Join(tempBase, testFile), testContent, 0644); err != nil {
		t.Fatal(err)
	}

	info, err := p.Stat(ctx, testFile)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	if info.Name() != testFile {
		t.Errorf("expected %q, got %q", testFile, info.Name())
	}
	if info.Size() != int64(len(testContent)) {
		t.Errorf("expected size %d, got %d", len(testContent), info.Size())
	}
	if info.IsDir() {
		t.Errorf("expected isDir to be false")
	}
	if m, ok := info.(ModeFileInfo); !ok || m.Mode() == 0 {
		t.Errorf("expected local stat to carry permission bits")
	}
}

func TestLocalProvider_List(t *testing.T) {
	tempBase := t.TempDir()

	testDir := "subdir"
	if err := os.MkdirAll(filepath.Join(tempBase, testDir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"file1.txt", "file2.txt"} {
		if err := os.WriteFile(filepath.Join(tempBase, testDir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink("file1.txt", filepath.Join(tempBase, testDir, "link.txt")); err != nil {
		t.Fatal(err)
	}

	p := NewLocalProvider(tempBase)
	infos, err := p.List(context.Background(), testDir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	found := map[string]bool{}
	for _, info := range infos {
		found[info.Name()] = info.IsDir()
	}
	if len(found) != 3 {
		t.Errorf("expected 3 entries (symlink skipped), got %v", found)
	}
	if isDir, ok := found["nested"]; !ok || !isDir {
		t.Errorf("expected nested directory in listing, got %v", found)
	}
	if _, ok := found["link.txt"]; ok {
		t.Errorf("expected symlink to be skipped")
	}
}

func TestLocalProvider_OpenRead(t *testing.T) {
	tempBase := t.TempDir()

	testFile := "test-read.txt"
	testContent := []byte("hello read")
	if err := os.WriteFile(filepath.Join(tempBase, testFile), testContent, 0644); err != nil {
		t.Fatal(err)
	}

	p := NewLocalProvider(tempBase)

	rc, err := p.OpenRead(context.Background(), testFile)
	if err != nil {
		t.Fatalf("OpenRead failed: %v", err)
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Errorf("ReadAll failed: %v", err)
	}

	if string(content) != string(testContent) {
		t.Errorf("expected content %q, got %q", testContent, content)
	}
}

func TestLocalProvider_OpenWrite(t *testing.T) {
	tempBase := t.TempDir()

	p := NewLocalProvider(tempBase)
	ctx := context.Background()

	testFile := "nested/test-write.txt"
	testContent := []byte("hello write")
	testModTime := time.Date(2022, 1, 1, 12, 0, 0, 0, time.UTC)

	metadata := WithMode(NewFileInfo("test-write.txt", int64(len(testContent)), testModTime), 0600)

	wc, err := p.OpenWrite(ctx, testFile, metadata)
	if err != nil {
		t.Fatalf("OpenWrite failed: %v", err)
	}

	fullPath := filepath.Join(tempBase, testFile)

	n, err := wc.Write(testContent)
	if err != nil {
		t.Errorf("Write failed: %v", err)
	}
	if n != len(testContent) {
		t.Errorf("expected to write %d bytes, wrote %d", len(testContent), n)
	}

	if _, err := os.Stat(fullPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected file to be invisible before Close, stat err = %v", err)
	}

	if err := wc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	readContent, err := os.ReadFile(fullPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(readContent) != string(testContent) {
		t.Errorf("expected content %q, got %q", testContent, readContent)
	}

	stat, err := os.Stat(fullPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !stat.ModTime().Equal(testModTime) {
		t.Errorf("expected mod time %v, got %v", testModTime, stat.ModTime())
	}
	if stat.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %o", stat.Mode().Perm())
	}
}

func TestLocalProvider_OpenWriteAbort(t *testing.T) {
	tempBase := t.TempDir()
	p := NewLocalProvider(tempBase)

	wc, err := p.OpenWrite(context.Background(), "partial.bin", nil)
	if err != nil {
		t.Fatalf("OpenWrite failed: %v", err)
	}
	if _, err := wc.Write([]byte("half a file")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	aborter, ok := wc.(Aborter)
	if !ok {
		t.Fatalf("expected local writer to implement Aborter")
	}
	if err := aborter.Abort(errors.New("source failed")); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if err := wc.Close(); err != nil {
		t.Errorf("Close after Abort should be a no-op, got %v", err)
	}

	entries, err := os.ReadDir(tempBase)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files after abort, found %d", len(entries))
	}
}

func TestLocalProvider_CancelledContext(t *testing.T) {
	p := NewLocalProvider(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.OpenRead(ctx, "any"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := p.OpenWrite(ctx, "any", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
