package provider

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// LocalProvider implements the Provider interface for posix-compliant local filesystems.
type LocalProvider struct {
	basePath string
}

// NewLocalProvider creates a new LocalProvider rooted at basePath.
// If basePath is empty, it acts upon absolute or relative paths directly.
func NewLocalProvider(basePath string) *LocalProvider {
	return &LocalProvider{basePath: basePath}
}

func (p *LocalProvider) resolve(path string) string {
	if p.basePath == "" {
		return path
	}
	return filepath.Join(p.basePath, filepath.Clean(path))
}

func (p *LocalProvider) Stat(ctx context.Context, path string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(p.resolve(path))
	if err != nil {
		return nil, err
	}
	return WrapFileInfo(info), nil
}

func (p *LocalProvider) List(ctx context.Context, path string) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(p.resolve(path))
	if err != nil {
		return nil, err
	}

	var infos []FileInfo
	for _, entry := range entries {
		// Symlinks, sockets and devices are not transferable content.
		if !entry.Type().IsRegular() && !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // skip files that disappeared between ReadDir and Info
		}
		infos = append(infos, WrapFileInfo(info))
	}
	return infos, nil
}

func (p *LocalProvider) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(p.resolve(path))
}

// MkdirAll creates the directory path and any missing parents.
func (p *LocalProvider) MkdirAll(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(p.resolve(path), 0o755)
}

// OpenWrite stages the content in a pending file next to path. Close renames
// it into place atomically, so readers never observe a partial file.
func (p *LocalProvider) OpenWrite(ctx context.Context, path string, metadata FileInfo) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath := p.resolve(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, err
	}

	pending, err := renameio.NewPendingFile(fullPath, renameio.WithPermissions(fileMode(metadata)))
	if err != nil {
		return nil, err
	}

	return &localWriteCloser{
		pending:  pending,
		fullPath: fullPath,
		metadata: metadata,
	}, nil
}

// localWriteCloser commits a pending file and applies metadata (such as
// timestamps) upon close. Writing to the file updates its mtime, so the
// timestamp has to be restored afterwards.
type localWriteCloser struct {
	pending  *renameio.PendingFile
	fullPath string
	metadata FileInfo
	done     bool
}

func (l *localWriteCloser) Write(b []byte) (int, error) {
	return l.pending.Write(b)
}

func (l *localWriteCloser) Close() error {
	if l.done {
		return nil
	}
	l.done = true

	if err := l.pending.CloseAtomicallyReplace(); err != nil {
		_ = l.pending.Cleanup()
		return err
	}

	// A timestamp that cannot be restored does not invalidate the content.
	_ = ApplyMetadata(l.fullPath, l.metadata)
	return nil
}

// Abort discards the pending file; the destination path is left untouched.
func (l *localWriteCloser) Abort(error) error {
	if l.done {
		return nil
	}
	l.done = true
	return l.pending.Cleanup()
}
