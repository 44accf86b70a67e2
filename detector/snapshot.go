package detector

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"apiscope/detector/models"
)

// NewSnapshotFromDir builds an immutable snapshot of a staged directory
// tree. Entries are ordered by path and carry lazy content accessors, so
// building the snapshot costs one walk and no file reads.
func NewSnapshotFromDir(root string) (*models.SourceSnapshot, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("snapshot root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot root %s is not a directory", root)
	}

	snapshot := &models.SourceSnapshot{Root: root}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		abs := path
		snapshot.Files = append(snapshot.Files, models.NewSnapshotFile(
			filepath.ToSlash(rel), fi.Size(), fi.ModTime(),
			func() ([]byte, error) { return os.ReadFile(abs) },
		))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot walk: %w", err)
	}

	sort.Slice(snapshot.Files, func(i, j int) bool {
		return snapshot.Files[i].Path < snapshot.Files[j].Path
	})
	return snapshot, nil
}
