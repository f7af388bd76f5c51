// Package stage turns locations into local files and ships local files back
// out to locations, peeling archive layers in both directions.
package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/franksops/gostage/archive"
	"github.com/franksops/gostage/location"
	"github.com/franksops/gostage/staging"
	"github.com/franksops/gostage/transfer"
)

// ErrFilesystem classifies local filesystem failures outside of archive and
// transfer operations, such as removing an intermediate archive.
var ErrFilesystem = errors.New("filesystem error")

// ErrNoClient is returned when a location needs a transfer client that was
// not configured.
var ErrNoClient = errors.New("no transfer client configured")

// FilesystemError records a failed local filesystem operation.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

func (e *FilesystemError) Is(target error) bool { return target == ErrFilesystem }

// Config wires a Resolver to its collaborators.
type Config struct {
	// Area receives every fetched, unpacked and packed file.
	Area *staging.Area
	// Codec packs and unpacks archive layers. Nil uses deflate.
	Codec *archive.Codec
	// ObjectStore serves location.Object. Nil rejects such locations.
	ObjectStore transfer.Client
	// HTTP serves location.HTTP. Nil rejects such locations.
	HTTP transfer.Client
	// Logger receives one line per operation. Nil uses the default logger.
	Logger *log.Logger
}

// Resolver materializes locations as local paths and stages local paths to
// locations.
type Resolver struct {
	area        *staging.Area
	codec       *archive.Codec
	objectStore transfer.Client
	http        transfer.Client
	logger      *log.Logger
}

// NewResolver creates a Resolver. cfg.Area must be set.
func NewResolver(cfg Config) *Resolver {
	if cfg.Codec == nil {
		cfg.Codec = archive.NewCodec(archive.MethodDeflate, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Resolver{
		area:        cfg.Area,
		codec:       cfg.Codec,
		objectStore: cfg.ObjectStore,
		http:        cfg.HTTP,
		logger:      cfg.Logger,
	}
}

// Resolve returns a local path holding the content loc refers to.
//
// Plain locations are returned unchanged. Remote locations are fetched into
// the inbound staging area. Archive locations are resolved to a local
// archive, unpacked whole into a fresh directory and the path of the entry
// inside it is returned, or the directory itself when no entry is named.
// Whether the entry exists is not checked: a missing entry surfaces when the
// returned path is opened.
func (r *Resolver) Resolve(ctx context.Context, loc location.Location) (string, error) {
	return r.resolve(ctx, loc, 0)
}

func (r *Resolver) resolve(ctx context.Context, loc location.Location, depth int) (string, error) {
	if depth > location.MaxDepth {
		return "", fmt.Errorf("%w: %s: archive nesting exceeds %d levels", location.ErrInvalidLocation, loc, location.MaxDepth)
	}

	switch loc := loc.(type) {
	case location.Plain:
		return loc.Path, nil

	case location.Object:
		return r.fetch(ctx, r.objectStore, loc)

	case location.HTTP:
		return r.fetch(ctx, r.http, loc)

	case location.Archive:
		entry, err := entryPath(loc)
		if err != nil {
			return "", err
		}

		archiveFile, err := r.resolve(ctx, loc.Inner, depth+1)
		if err != nil {
			return "", err
		}

		dir, err := r.area.InboundDir("unpack-*")
		if err != nil {
			return "", &FilesystemError{Op: "mkdir", Path: "inbound staging area", Err: err}
		}

		r.logger.Info("unpacking", "archive", archiveFile, "to", dir)
		if err := r.codec.Unpack(ctx, archiveFile, dir); err != nil {
			return "", err
		}

		// Only archives this run materialized are removed; a caller's own
		// file is left alone.
		if r.area.Contains(archiveFile) {
			if err := os.Remove(archiveFile); err != nil {
				return "", &FilesystemError{Op: "remove", Path: archiveFile, Err: err}
			}
		}

		if entry == "" {
			return dir, nil
		}
		return filepath.Join(dir, filepath.FromSlash(entry)), nil

	default:
		return "", fmt.Errorf("%w: unsupported location type %T", location.ErrInvalidLocation, loc)
	}
}

func (r *Resolver) fetch(ctx context.Context, client transfer.Client, loc location.Location) (string, error) {
	if client == nil {
		return "", fmt.Errorf("%w for %s", ErrNoClient, loc)
	}
	dir, err := r.area.InboundDir("fetch-*")
	if err != nil {
		return "", &FilesystemError{Op: "mkdir", Path: "inbound staging area", Err: err}
	}
	return client.Fetch(ctx, loc, dir)
}

// Stage ships src, a file or a directory, to dest.
//
// Archive destinations pack src into a temporary archive in the outbound
// staging area, stage that archive to the inner location and remove it.
// Remote destinations are pushed directly. Plain destinations are rejected.
func (r *Resolver) Stage(ctx context.Context, src string, dest location.Location) error {
	return r.stage(ctx, src, dest, 0)
}

func (r *Resolver) stage(ctx context.Context, src string, dest location.Location, depth int) error {
	if depth > location.MaxDepth {
		return fmt.Errorf("%w: %s: archive nesting exceeds %d levels", location.ErrInvalidLocation, dest, location.MaxDepth)
	}

	switch dest := dest.(type) {
	case location.Archive:
		entry, err := entryPath(dest)
		if err != nil {
			return err
		}

		archiveFile, err := r.area.TempFile("pack-*.zip")
		if err != nil {
			return &FilesystemError{Op: "create", Path: "outbound staging area", Err: err}
		}
		defer os.Remove(archiveFile)

		r.logger.Info("packing", "from", src, "archive", archiveFile, "entry", entry, "method", r.codec.Method())
		entries, err := r.codec.Pack(ctx, src, archiveFile, entry)
		if err != nil {
			return err
		}
		r.logger.Debug("packed", "archive", archiveFile, "entries", len(entries))

		if err := r.stage(ctx, archiveFile, dest.Inner, depth+1); err != nil {
			return err
		}
		if err := os.Remove(archiveFile); err != nil {
			return &FilesystemError{Op: "remove", Path: archiveFile, Err: err}
		}
		return nil

	case location.Object:
		return r.push(ctx, r.objectStore, src, dest)

	case location.HTTP:
		return r.push(ctx, r.http, src, dest)

	default:
		return fmt.Errorf("%w: cannot stage to %s", location.ErrInvalidLocation, dest)
	}
}

func (r *Resolver) push(ctx context.Context, client transfer.Client, src string, dest location.Location) error {
	if client == nil {
		return fmt.Errorf("%w for %s", ErrNoClient, dest)
	}
	return client.Push(ctx, src, dest)
}

// entryPath validates the entry of an archive location. The entry must stay
// inside the unpack directory.
func entryPath(a location.Archive) (string, error) {
	if a.Entry == "" {
		return "", nil
	}
	entry := strings.ReplaceAll(a.Entry, `\`, "/")
	for _, seg := range strings.Split(entry, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s: entry escapes the archive", location.ErrInvalidLocation, a)
		}
	}
	entry = strings.Trim(path.Clean("/"+entry), "/")
	return entry, nil
}
