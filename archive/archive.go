// Package archive packs directory trees into zip files and unpacks them again.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/franksops/gostage/engine"
	"github.com/franksops/gostage/provider"
)

// ErrArchive classifies malformed containers, unsafe entry names and I/O
// failures while packing or unpacking.
var ErrArchive = errors.New("archive error")

// Error describes a failed pack or unpack. Entry is empty when the failure
// concerns the container as a whole.
type Error struct {
	Op    string
	Path  string
	Entry string
	Err   error
}

func (e *Error) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("%s %s: entry %q: %v", e.Op, e.Path, e.Entry, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrArchive }

// Method selects how packed entries are compressed.
type Method string

const (
	MethodDeflate Method = "deflate"
	MethodStore   Method = "store"
	MethodZstd    Method = "zstd"
)

// ParseMethod validates a method name. The empty string means deflate.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(s)); m {
	case "":
		return MethodDeflate, nil
	case MethodDeflate, MethodStore, MethodZstd:
		return m, nil
	default:
		return "", fmt.Errorf("unknown compression method %q (want deflate, store or zstd)", s)
	}
}

func (m Method) zipMethod() uint16 {
	switch m {
	case MethodStore:
		return zip.Store
	case MethodZstd:
		return zstd.ZipMethodWinZip
	default:
		return zip.Deflate
	}
}

// Entry is one file inside an archive.
type Entry struct {
	Path string
	Size int64
}

// Codec packs and unpacks zip archives. It is safe for concurrent use.
type Codec struct {
	method  Method
	local   *provider.LocalProvider
	buffers *engine.BufferPool
}

// NewCodec returns a Codec that packs with method. Unpacking understands
// every supported method regardless.
func NewCodec(method Method, buffers *engine.BufferPool) *Codec {
	if method == "" {
		method = MethodDeflate
	}
	if buffers == nil {
		buffers = engine.NewBufferPool(0)
	}
	return &Codec{
		method:  method,
		local:   provider.NewLocalProvider(""),
		buffers: buffers,
	}
}

// Method returns the compression method used by Pack.
func (c *Codec) Method() Method { return c.method }

// Unpack extracts every entry of archiveFile below targetDir, one entry at a
// time. Entry permissions and modification times are preserved.
func (c *Codec) Unpack(ctx context.Context, archiveFile, targetDir string) (err error) {
	fail := func(entry string, err error) error {
		return &Error{Op: "unpack", Path: archiveFile, Entry: entry, Err: err}
	}

	zr, err := zip.OpenReader(archiveFile)
	if err != nil {
		return fail("", err)
	}
	defer func() {
		if closeErr := zr.Close(); closeErr != nil && err == nil {
			err = fail("", closeErr)
		}
	}()
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	zr.RegisterDecompressor(zstd.ZipMethodPKWare, zstd.ZipDecompressor())

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		name, err := safeName(f.Name)
		if err != nil {
			return fail(f.Name, err)
		}
		dest := filepath.Join(targetDir, filepath.FromSlash(name))

		if f.FileInfo().IsDir() {
			if err := c.local.MkdirAll(ctx, dest); err != nil {
				return fail(f.Name, err)
			}
			continue
		}

		if err := c.extract(ctx, f, dest); err != nil {
			return fail(f.Name, err)
		}
	}
	return nil
}

func (c *Codec) extract(ctx context.Context, f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := c.local.OpenWrite(ctx, dest, provider.WrapFileInfo(f.FileInfo()))
	if err != nil {
		return err
	}
	if _, err := c.buffers.Copy(w, rc); err != nil {
		abort(w, err)
		return err
	}
	return w.Close()
}

// Pack writes every regular file below source into archiveFile, one entry per
// file named by its slash-separated path relative to source. A non-empty
// entry is used as a prefix for those names. A source that is a single file
// produces one entry named entry, or the file's base name when entry is empty.
func (c *Codec) Pack(ctx context.Context, source, archiveFile, entry string) ([]Entry, error) {
	fail := func(name string, err error) error {
		return &Error{Op: "pack", Path: archiveFile, Entry: name, Err: err}
	}

	entry = strings.Trim(path.Clean("/"+filepath.ToSlash(entry)), "/")
	if entry != "" {
		if _, err := safeName(entry); err != nil {
			return nil, fail(entry, err)
		}
	}

	jobs, err := engine.Collect(ctx, c.local, source, "")
	if err != nil {
		return nil, fail("", err)
	}

	nameOf := func(job engine.TransferJob) string { return path.Join(entry, job.RelPath) }
	if len(jobs) == 1 && jobs[0].SourcePath == source && entry != "" {
		nameOf = func(engine.TransferJob) string { return entry }
	}

	out, err := c.local.OpenWrite(ctx, archiveFile, nil)
	if err != nil {
		return nil, fail("", err)
	}

	zw := zip.NewWriter(out)
	if c.method == MethodZstd {
		zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	}

	entries := make([]Entry, 0, len(jobs))
	for _, job := range jobs {
		name := nameOf(job)
		n, err := c.writeEntry(ctx, zw, job, name)
		if err != nil {
			abort(out, err)
			return nil, fail(name, err)
		}
		entries = append(entries, Entry{Path: name, Size: n})
	}

	if err := zw.Close(); err != nil {
		abort(out, err)
		return nil, fail("", err)
	}
	if err := out.Close(); err != nil {
		return nil, fail("", err)
	}
	return entries, nil
}

func (c *Codec) writeEntry(ctx context.Context, zw *zip.Writer, job engine.TransferJob, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	hdr := &zip.FileHeader{
		Name:   name,
		Method: c.method.zipMethod(),
	}
	if job.FileInfo != nil {
		hdr.Modified = job.FileInfo.ModTime()
		if m, ok := job.FileInfo.(provider.ModeFileInfo); ok {
			hdr.SetMode(m.Mode())
		}
	}

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, err
	}

	rc, err := c.local.OpenRead(ctx, job.SourcePath)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	return c.buffers.Copy(w, rc)
}

// safeName normalizes an entry name and rejects names that would land
// outside the target directory.
func safeName(name string) (string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if slashed == "" || strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("unsafe entry name %q", name)
	}
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", fmt.Errorf("unsafe entry name %q", name)
		}
	}
	return path.Clean(slashed), nil
}

func abort(w io.WriteCloser, cause error) {
	if a, ok := w.(provider.Aborter); ok {
		_ = a.Abort(cause)
		return
	}
	_ = w.Close()
}
