package store

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// writeFileAtomic replaces path with data so that a crash leaves either the
// previous file or the new one, never a mix. The data and the rename are both
// on disk before it returns.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	staged, err := stage(dir, filepath.Base(path), data, perm)
	if err != nil {
		return err
	}
	if err := os.Rename(staged, path); err != nil {
		os.Remove(staged)
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}
	return syncDir(dir)
}

// stage writes data to a flushed sibling file and returns its name. The
// sibling is removed again if anything fails.
func stage(dir, base string, data []byte, perm os.FileMode) (string, error) {
	f, err := os.CreateTemp(dir, base+".partial-*")
	if err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", base, err)
	}
	name := f.Name()

	steps := []struct {
		what string
		do   func() error
	}{
		{"set permissions on", func() error { return f.Chmod(perm) }},
		{"write", func() error { _, err := f.Write(data); return err }},
		{"flush", f.Sync},
	}
	for _, s := range steps {
		if err := s.do(); err != nil {
			f.Close()
			os.Remove(name)
			return "", fmt.Errorf("failed to %s staged %s: %w", s.what, base, err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("failed to close staged %s: %w", base, err)
	}
	return name, nil
}

// syncDir makes the rename itself durable. Windows cannot fsync a directory.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open state directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to flush state directory: %w", err)
	}
	return nil
}
