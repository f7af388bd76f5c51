package engine

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/franksops/gostage/provider"
)

// Walker traverses a directory iteratively to push TransferJobs to a channel.
// It avoids deep recursion to prevent stack overflows on very deep directory structures.
type Walker struct {
	SourceProvider provider.Provider
	JobChan        JobChannel
}

// NewWalker creates a new iterative directory walker.
func NewWalker(src provider.Provider, jobChan JobChannel) *Walker {
	return &Walker{
		SourceProvider: src,
		JobChan:        jobChan,
	}
}

// Walk starts an iterative (stack-based) walk of sourcePath and emits one job
// per regular file. Destination paths are slash-joined under destPath, since
// they address remote keys, URLs or archive entries. When the root itself is
// a file, a single job is emitted whose destination is destPath unchanged.
func (w *Walker) Walk(ctx context.Context, sourcePath string, destPath string) error {
	stat, err := w.SourceProvider.Stat(ctx, sourcePath)
	if err != nil {
		return fmt.Errorf("failed to stat source %s: %w", sourcePath, err)
	}

	if !stat.IsDir() {
		return w.emit(ctx, TransferJob{
			SourcePath:      sourcePath,
			DestinationPath: destPath,
			RelPath:         stat.Name(),
			FileInfo:        stat,
		})
	}

	// Relative paths are kept slash-separated so they can be reused as
	// destination names directly.
	stack := []string{""}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		relDir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		currentSourcePath := sourcePath
		if relDir != "" {
			currentSourcePath = filepath.Join(sourcePath, filepath.FromSlash(relDir))
		}

		entries, err := w.SourceProvider.List(ctx, currentSourcePath)
		if err != nil {
			return fmt.Errorf("failed to list directory %s: %w", currentSourcePath, err)
		}

		for _, entry := range entries {
			entryRelPath := path.Join(relDir, entry.Name())

			if entry.IsDir() {
				stack = append(stack, entryRelPath)
				continue
			}

			err := w.emit(ctx, TransferJob{
				SourcePath:      filepath.Join(sourcePath, filepath.FromSlash(entryRelPath)),
				DestinationPath: path.Join(destPath, entryRelPath),
				RelPath:         entryRelPath,
				FileInfo:        entry,
			})
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (w *Walker) emit(ctx context.Context, job TransferJob) error {
	if job.ID == "" {
		job.ID = job.SourcePath
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.JobChan <- job:
		return nil
	}
}

// Collect walks sourcePath and returns every job in traversal order. It is a
// convenience for sequential consumers such as the archive packer.
func Collect(ctx context.Context, src provider.Provider, sourcePath, destPath string) ([]TransferJob, error) {
	jobChan := make(JobChannel)
	errCh := make(chan error, 1)

	go func() {
		defer close(jobChan)
		errCh <- NewWalker(src, jobChan).Walk(ctx, sourcePath, destPath)
	}()

	var jobs []TransferJob
	for job := range jobChan {
		jobs = append(jobs, job)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return jobs, nil
}
