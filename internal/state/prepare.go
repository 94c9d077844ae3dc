package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrResumeMissing reports a --resume table that does not exist.
var ErrResumeMissing = errors.New("resume state file not found")

// RequireExisting checks that a table named by --resume is present.
func RequireExisting(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrResumeMissing, path)
		}
		return fmt.Errorf("stat resume state file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("resume state file %s is a directory", path)
	}
	return nil
}

// SetAside moves an existing table at path to path+".bak" so a fresh run
// starts empty. It returns the backup path, or "" when nothing was moved.
func SetAside(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat state file: %w", err)
	}
	backup := path + ".bak"
	if err := os.Rename(path, backup); err != nil {
		return "", fmt.Errorf("move state file aside: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return backup, fmt.Errorf("remove %s: %w", path+suffix, err)
		}
	}
	return backup, nil
}
