package models

import (
	"sync"
	"time"
)

// SnapshotFile is one entry of a SourceSnapshot: metadata plus a lazy
// content accessor. Content is read at most once and memoized; the
// classifier gates which files ever get read in full.
type SnapshotFile struct {
	Path    string // relative, slash-separated
	Size    int64
	ModTime time.Time

	open    func() ([]byte, error)
	once    sync.Once
	content []byte
	readErr error
}

// NewSnapshotFile builds a snapshot entry around a content accessor.
func NewSnapshotFile(path string, size int64, modTime time.Time, open func() ([]byte, error)) *SnapshotFile {
	return &SnapshotFile{Path: path, Size: size, ModTime: modTime, open: open}
}

// Content returns the file bytes, reading them on first use.
func (f *SnapshotFile) Content() ([]byte, error) {
	f.once.Do(func() {
		f.content, f.readErr = f.open()
	})
	return f.content, f.readErr
}

// SourceSnapshot is an immutable, path-ordered view of a staged file tree.
// Detectors never mutate it; all of them read the same instance.
type SourceSnapshot struct {
	Root  string
	Files []*SnapshotFile
}

// ClassifiedFile is a snapshot entry plus non-exclusive hint labels. A
// file may be a candidate for any number of protocol families.
type ClassifiedFile struct {
	File       *SnapshotFile
	Language   string // matcher language id ("python", "javascript", ...), "" if unknown
	Candidates map[APIType]bool
}

// IsCandidate reports whether the file was hinted for the given family.
func (c ClassifiedFile) IsCandidate(t APIType) bool {
	return c.Candidates[t]
}
