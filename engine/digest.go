package engine

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
)

// DigestWriter wraps an io.Writer and computes a BLAKE3 digest of everything
// written through it.
type DigestWriter struct {
	w    io.Writer
	hash *blake3.Hasher
	n    int64
}

// NewDigestWriter creates a new DigestWriter that wraps the given writer.
func NewDigestWriter(w io.Writer) *DigestWriter {
	return &DigestWriter{
		w:    w,
		hash: blake3.New(),
	}
}

// Write writes data to the underlying writer and updates the digest with the
// bytes actually written.
func (dw *DigestWriter) Write(p []byte) (int, error) {
	n, err := dw.w.Write(p)
	if n > 0 {
		dw.n += int64(n)
		dw.hash.Write(p[:n])
	}
	return n, err
}

// Digest returns the hex-encoded digest of the data written so far.
func (dw *DigestWriter) Digest() string {
	return hex.EncodeToString(dw.hash.Sum(nil))
}

// BytesWritten returns the total number of bytes written.
func (dw *DigestWriter) BytesWritten() int64 {
	return dw.n
}

// DigestOf returns the hex-encoded BLAKE3 digest of everything read from r.
func DigestOf(r io.Reader) (string, error) {
	dw := NewDigestWriter(io.Discard)
	if _, err := io.Copy(dw, r); err != nil {
		return "", err
	}
	return dw.Digest(), nil
}
