package engine

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDigestWriter(t *testing.T) {
	data := []byte("hello world")

	var buf bytes.Buffer
	dw := NewDigestWriter(&buf)

	n, err := dw.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, got %d", len(data), n)
	}
	if buf.String() != string(data) {
		t.Errorf("Expected buffer to contain %q, got %q", data, buf.String())
	}
	if dw.BytesWritten() != int64(len(data)) {
		t.Errorf("Expected %d bytes written, got %d", len(data), dw.BytesWritten())
	}
	if len(dw.Digest()) != 64 {
		t.Errorf("Expected 32-byte hex digest, got %q", dw.Digest())
	}
}

func TestDigestConsistency(t *testing.T) {
	parts := []string{"hello", " ", "world", "!"}

	dw := NewDigestWriter(&bytes.Buffer{})
	for _, part := range parts {
		if _, err := dw.Write([]byte(part)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	whole, err := DigestOf(strings.NewReader(strings.Join(parts, "")))
	if err != nil {
		t.Fatalf("DigestOf failed: %v", err)
	}
	if dw.Digest() != whole {
		t.Errorf("Digest mismatch: streamed=%s whole=%s", dw.Digest(), whole)
	}

	other, _ := DigestOf(strings.NewReader("hello world?"))
	if other == whole {
		t.Error("Expected different content to produce a different digest")
	}
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return len(p) / 2, errors.New("disk full")
}

func TestDigestWriter_ShortWrite(t *testing.T) {
	dw := NewDigestWriter(shortWriter{})
	n, err := dw.Write([]byte("abcdef"))
	if err == nil {
		t.Fatal("Expected error from short write")
	}
	if n != 3 || dw.BytesWritten() != 3 {
		t.Errorf("Expected 3 bytes accounted, got n=%d total=%d", n, dw.BytesWritten())
	}

	partial, _ := DigestOf(strings.NewReader("abc"))
	if dw.Digest() != partial {
		t.Errorf("Expected digest to cover only the written prefix")
	}
}
