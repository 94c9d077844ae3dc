package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alexiswl/poreduck/internal/config"
)

// WriteFile creates path with size filler bytes, making parent directories.
// A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteArchive drops a placeholder read archive for name into the reads
// directory and returns its path. Discovery only looks at names, so the
// content is not a real tarball.
func WriteArchive(t testing.TB, cfg *config.Config, name string) string {
	t.Helper()
	path := filepath.Join(cfg.Paths.ReadsDir, name+cfg.ArchiveSuffix())
	WriteFile(t, path, 16)
	return path
}
