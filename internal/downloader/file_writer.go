package downloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileWriter stages every download in a .part file next to its target and renames it
// once complete, so a file left behind by an interrupted run never looks finished.
type FileWriter struct {
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func NewFileWriter() *FileWriter {
	return &FileWriter{dirPerm: 0755, filePerm: 0644}
}

func (fw *FileWriter) PartPath(finalPath string) string {
	return finalPath + ".part"
}

// Exists reports whether a finished file is present at finalPath.
func (fw *FileWriter) Exists(finalPath string) bool {
	info, err := os.Stat(finalPath)
	return err == nil && info.Mode().IsRegular()
}

// MkdirAll creates dir and its parents.
func (fw *FileWriter) MkdirAll(dir string) error {
	if err := os.MkdirAll(dir, fw.dirPerm); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// Open truncates (or creates) the .part file for finalPath.
func (fw *FileWriter) Open(finalPath string) (*os.File, error) {
	if err := fw.MkdirAll(filepath.Dir(finalPath)); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(fw.PartPath(finalPath), os.O_RDWR|os.O_CREATE|os.O_TRUNC, fw.filePerm)
	if err != nil {
		return nil, fmt.Errorf("could not open part file: %w", err)
	}
	return f, nil
}

// Finalize syncs and closes f, checks it holds at least minSize bytes and renames it into place.
func (fw *FileWriter) Finalize(f *os.File, finalPath string, minSize int64) error {
	syncErr := f.Sync()
	if err := errors.Join(syncErr, f.Close()); err != nil {
		return fmt.Errorf("failed to close %s: %w", f.Name(), err)
	}

	info, err := os.Stat(f.Name())
	if err != nil {
		return fmt.Errorf("could not stat %s: %w", f.Name(), err)
	}
	if info.Size() < minSize {
		return fmt.Errorf("file incomplete (size %d, expected %d): %s", info.Size(), minSize, f.Name())
	}

	if err := os.Rename(f.Name(), finalPath); err != nil {
		return fmt.Errorf("finalize failed for %s: %w", finalPath, err)
	}
	return nil
}

// Abort closes f and removes the .part file.
func (fw *FileWriter) Abort(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}
