package engine

import (
	"github.com/franksops/gostage/provider"
)

// TransferJob represents a single file transfer operation from a source
// provider to a destination provider.
type TransferJob struct {
	// ID identifies the job in the journal.
	ID string

	// SourcePath is the file path to read from the source provider.
	SourcePath string

	// DestinationPath is the file path to write to the destination provider.
	DestinationPath string

	// RelPath is the slash-separated path of the file relative to the root
	// that was walked. For a single-file walk it is the file's base name.
	RelPath string

	// FileInfo holds the metadata of the source file to be preserved or
	// checked at the destination. It may be nil when the size is unknown.
	FileInfo provider.FileInfo
}

// JobChannel is a channel used to queue and dispatch TransferJobs to workers
// in the worker pool.
type JobChannel chan TransferJob
