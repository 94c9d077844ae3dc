// Package discovery finds new input archives in the reads directory.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/alexiswl/poreduck/internal/queue"
)

// Discover lists archives in inputDir matching pattern and returns the item
// names that are neither known nor finished. A name is finished when the
// finished callback reports true, normally because an earlier run already
// delivered its output archive. The result is sorted and has no duplicates.
func Discover(inputDir, pattern string, known map[string]struct{}, finished func(name string) bool) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid archive pattern %q", pattern)
	}
	suffix, ok := queue.ArchiveSuffix(pattern)
	if !ok {
		return nil, fmt.Errorf("archive pattern %q must end in one of %v", pattern, queue.ArchiveSuffixes)
	}
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("read reads directory: %w", err)
	}

	seen := make(map[string]struct{})
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, err := doublestar.Match(pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", entry.Name(), err)
		}
		if !matched {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), suffix)
		if name == "" || name == entry.Name() {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, tracked := known[name]; tracked {
			continue
		}
		if finished != nil && finished(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Scanner binds the directories and pattern used by a run.
type Scanner struct {
	ReadsDir  string
	OutputDir string
	Pattern   string
}

// Scan returns untracked archive names, skipping any whose output archive
// already exists in the output directory.
func (s Scanner) Scan(known map[string]struct{}) ([]string, error) {
	return Discover(s.ReadsDir, s.Pattern, known, s.Finished)
}

// Finished reports whether the item's output archive is already present.
func (s Scanner) Finished(name string) bool {
	_, err := os.Stat(queue.OutputArchivePath(s.OutputDir, name))
	if err == nil {
		return true
	}
	return !errors.Is(err, fs.ErrNotExist)
}
