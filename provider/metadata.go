package provider

import (
	"io/fs"
	"os"
	"time"
)

// ModeFileInfo extends FileInfo with permission bits.
type ModeFileInfo interface {
	FileInfo
	Mode() os.FileMode
}

type modeFileInfo struct {
	FileInfo
	mode os.FileMode
}

func (m *modeFileInfo) Mode() os.FileMode { return m.mode }

// WrapFileInfo converts an fs.FileInfo, such as one taken from os.Stat or
// from a zip header, into a ModeFileInfo.
func WrapFileInfo(info fs.FileInfo) ModeFileInfo {
	return &modeFileInfo{
		FileInfo: &staticInfo{
			name:    info.Name(),
			size:    info.Size(),
			isDir:   info.IsDir(),
			modTime: info.ModTime(),
		},
		mode: info.Mode().Perm(),
	}
}

// WithMode attaches permission bits to info.
func WithMode(info FileInfo, mode os.FileMode) ModeFileInfo {
	return &modeFileInfo{FileInfo: info, mode: mode.Perm()}
}

// fileMode picks the creation mode for a file described by metadata.
func fileMode(metadata FileInfo) os.FileMode {
	if m, ok := metadata.(ModeFileInfo); ok && m.Mode() != 0 {
		return m.Mode()
	}
	return 0o644
}

// ApplyMetadata applies modification time from metadata to the file at path.
// Zero values are skipped.
func ApplyMetadata(path string, metadata FileInfo) error {
	if metadata == nil || metadata.ModTime().IsZero() {
		return nil
	}
	return os.Chtimes(path, time.Now(), metadata.ModTime())
}
