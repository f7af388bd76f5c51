package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrTransfer classifies every failure raised while moving bytes to or from a
// remote store.
var ErrTransfer = errors.New("transfer failed")

// ErrUnsupported is returned by providers that cannot perform an operation,
// such as listing an HTTP endpoint.
var ErrUnsupported = errors.New("operation not supported by provider")

// FileInfo represents the standard metadata for a file or a directory
// across different storage abstractions.
type FileInfo interface {
	Name() string
	Size() int64
	IsDir() bool
	ModTime() time.Time
}

// Provider represents a storage backend abstraction: the local filesystem,
// an S3 bucket or an HTTP endpoint.
type Provider interface {
	// Stat returns the FileInfo for the given path.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns the contents of the given directory.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// OpenRead opens a file for streaming reads.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)

	// OpenWrite opens a file for streaming writes, applying metadata if supported.
	// The write is only committed by a successful Close.
	OpenWrite(ctx context.Context, path string, metadata FileInfo) (io.WriteCloser, error)
}

// Aborter is implemented by writers that can discard a write in progress
// instead of committing it on Close.
type Aborter interface {
	Abort(err error) error
}

// TransferError records a failed remote operation together with the remote
// reference it was aimed at.
type TransferError struct {
	Op  string
	Ref string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Is reports ErrTransfer as a match so callers can classify with errors.Is.
func (e *TransferError) Is(target error) bool { return target == ErrTransfer }

// staticInfo is a FileInfo built from known values.
type staticInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
}

func (f *staticInfo) Name() string       { return f.name }
func (f *staticInfo) Size() int64        { return f.size }
func (f *staticInfo) IsDir() bool        { return f.isDir }
func (f *staticInfo) ModTime() time.Time { return f.modTime }

// NewFileInfo returns a FileInfo describing a regular file.
func NewFileInfo(name string, size int64, modTime time.Time) FileInfo {
	return &staticInfo{name: name, size: size, modTime: modTime}
}
