package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/alexiswl/poreduck/internal/queue"
)

// ErrMissingArchive reports an extracted folder whose source archive is gone.
// The folder is left in place.
var ErrMissingArchive = errors.New("source archive missing")

// RemoveExtracted deletes the extracted reads folder, leaving the original
// archive as the only copy. It refuses to delete when the archive is absent.
func RemoveExtracted(paths queue.Paths) error {
	if _, err := os.Stat(paths.ArchivePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingArchive, paths.ArchivePath)
		}
		return fmt.Errorf("stat archive: %w", err)
	}
	if err := os.RemoveAll(paths.ExtractPath); err != nil {
		return fmt.Errorf("remove extracted folder %s: %w", paths.ExtractPath, err)
	}
	return nil
}
