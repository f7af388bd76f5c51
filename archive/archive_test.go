package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func entryNames(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Path
	}
	sort.Strings(names)
	return names
}

func TestCodec_RoundTrip(t *testing.T) {
	files := map[string]string{
		"index.html":           "<html></html>",
		"topics/a.html":        "A",
		"topics/deep/er/b.xml": "<b/>",
		"empty.txt":            "",
	}

	for _, method := range []Method{MethodDeflate, MethodStore, MethodZstd} {
		t.Run(string(method), func(t *testing.T) {
			src := t.TempDir()
			writeTree(t, src, files)

			codec := NewCodec(method, nil)
			archiveFile := filepath.Join(t.TempDir(), "out.zip")

			entries, err := codec.Pack(context.Background(), src, archiveFile, "")
			if err != nil {
				t.Fatalf("Pack failed: %v", err)
			}
			if len(entries) != len(files) {
				t.Fatalf("Expected %d entries, got %d: %v", len(files), len(entries), entryNames(entries))
			}

			dst := t.TempDir()
			// Unpacking uses a default codec: every method must be readable.
			if err := NewCodec("", nil).Unpack(context.Background(), archiveFile, dst); err != nil {
				t.Fatalf("Unpack failed: %v", err)
			}

			for name, want := range files {
				got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
				if err != nil {
					t.Errorf("Missing %s after round trip: %v", name, err)
					continue
				}
				if string(got) != want {
					t.Errorf("Content mismatch for %s: got %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestCodec_PackUsesMethod(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "aaaa"})
	archiveFile := filepath.Join(t.TempDir(), "a.zip")

	if _, err := NewCodec(MethodStore, nil).Pack(context.Background(), src, archiveFile, ""); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.OpenReader(archiveFile)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if len(zr.File) != 1 || zr.File[0].Method != zip.Store {
		t.Errorf("Expected one stored entry, got %+v", zr.File)
	}
}

func TestCodec_PackSingleFileWithPrefix(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(file, []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}
	archiveFile := filepath.Join(t.TempDir(), "r.zip")

	codec := NewCodec(MethodDeflate, nil)

	entries, err := codec.Pack(context.Background(), file, archiveFile, "")
	if err != nil {
		t.Fatal(err)
	}
	if names := entryNames(entries); len(names) != 1 || names[0] != "report.pdf" {
		t.Errorf("Expected single entry report.pdf, got %v", names)
	}

	entries, err = codec.Pack(context.Background(), file, archiveFile, "docs/final.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if names := entryNames(entries); len(names) != 1 || names[0] != "docs/final.pdf" {
		t.Errorf("Expected entry renamed to docs/final.pdf, got %v", names)
	}

	entries, err = codec.Pack(context.Background(), dir, archiveFile, "/out/pdf/")
	if err != nil {
		t.Fatal(err)
	}
	if names := entryNames(entries); len(names) != 1 || names[0] != "out/pdf/report.pdf" {
		t.Errorf("Expected prefixed entry, got %v", names)
	}
}

func TestCodec_UnpackPreservesMetadata(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not preserved on windows")
	}

	archiveFile := filepath.Join(t.TempDir(), "meta.zip")
	mtime := time.Date(2020, 5, 6, 7, 8, 10, 0, time.UTC)

	f, err := os.Create(archiveFile)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	hdr := &zip.FileHeader{Name: "bin/run.sh", Method: zip.Deflate, Modified: mtime}
	hdr.SetMode(0o755)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprint(w, "#!/bin/sh\n")
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	dst := t.TempDir()
	if err := NewCodec("", nil).Unpack(context.Background(), archiveFile, dst); err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dst, "bin", "run.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("Expected mode 0755, got %v", info.Mode().Perm())
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("Expected mtime %v, got %v", mtime, info.ModTime())
	}
}

func TestCodec_UnpackRejectsUnsafeNames(t *testing.T) {
	for _, name := range []string{"../evil.txt", "a/../../evil.txt", "/etc/evil", `..\evil.txt`} {
		t.Run(name, func(t *testing.T) {
			archiveFile := filepath.Join(t.TempDir(), "slip.zip")
			f, err := os.Create(archiveFile)
			if err != nil {
				t.Fatal(err)
			}
			zw := zip.NewWriter(f)
			w, err := zw.Create(name)
			if err != nil {
				t.Fatal(err)
			}
			fmt.Fprint(w, "pwned")
			zw.Close()
			f.Close()

			parent := t.TempDir()
			dst := filepath.Join(parent, "dst")
			err = NewCodec("", nil).Unpack(context.Background(), archiveFile, dst)
			if !errors.Is(err, ErrArchive) {
				t.Fatalf("Expected ErrArchive, got %v", err)
			}
			var aerr *Error
			if !errors.As(err, &aerr) {
				t.Errorf("Expected *Error, got %T", err)
			}
			if _, err := os.Stat(filepath.Join(parent, "evil.txt")); !os.IsNotExist(err) {
				t.Errorf("Unsafe entry escaped the target directory")
			}
		})
	}
}

func TestCodec_UnpackCorruptArchive(t *testing.T) {
	archiveFile := filepath.Join(t.TempDir(), "bad.zip")
	if err := os.WriteFile(archiveFile, []byte("this is not a zip file at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := NewCodec("", nil).Unpack(context.Background(), archiveFile, t.TempDir())
	if !errors.Is(err, ErrArchive) {
		t.Fatalf("Expected ErrArchive, got %v", err)
	}
}

func TestCodec_PackMissingSource(t *testing.T) {
	_, err := NewCodec("", nil).Pack(context.Background(), filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "x.zip"), "")
	if !errors.Is(err, ErrArchive) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Expected ErrArchive wrapping ErrNotExist, got %v", err)
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"", MethodDeflate, false},
		{"deflate", MethodDeflate, false},
		{"STORE", MethodStore, false},
		{"zstd", MethodZstd, false},
		{"lzma", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMethod(%q) = %q, %v", tt.in, got, err)
		}
	}
}
