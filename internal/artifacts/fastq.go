package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/alexiswl/poreduck/internal/fileutil"
	"github.com/alexiswl/poreduck/internal/queue"
)

// Fastq groups used when reads are not split by barcode.
const (
	GroupUnbarcoded  = ""
	GroupOneD        = "1d"
	GroupOneDSquared = "1dsq"
)

// SummarySuffix names the per-item copy of the sequencing summary.
const SummarySuffix = ".sequencing_summary.txt"

// MoveResult counts what MoveFastq relocated.
type MoveResult struct {
	Files   int
	Summary bool
}

// MoveFastq relocates the passed reads of one item into fastqDir. Files are
// renamed <name>[.<group>].<index>.fastq, with the index bumped past any
// existing file. The sequencing summary is copied beside them.
func MoveFastq(paths queue.Paths, fastqDir string, barcoding bool) (MoveResult, error) {
	var result MoveResult
	if err := os.MkdirAll(fastqDir, 0o755); err != nil {
		return result, fmt.Errorf("create fastq directory: %w", err)
	}
	groups, err := fastqGroups(paths, barcoding)
	if err != nil {
		return result, err
	}

	groupNames := make([]string, 0, len(groups))
	for group := range groups {
		groupNames = append(groupNames, group)
	}
	sort.Strings(groupNames)

	for _, group := range groupNames {
		index := 0
		for _, src := range groups[group] {
			var dst string
			dst, index = nextFastqName(fastqDir, paths.Name, group, index)
			if err := fileutil.MoveFile(src, dst); err != nil {
				return result, fmt.Errorf("move %s: %w", src, err)
			}
			result.Files++
			index++
		}
	}

	summaryDst := filepath.Join(fastqDir, paths.Name+SummarySuffix)
	if _, err := os.Stat(paths.SummaryPath); err == nil {
		if err := fileutil.CopyFile(paths.SummaryPath, summaryDst); err != nil {
			return result, fmt.Errorf("copy sequencing summary: %w", err)
		}
		result.Summary = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return result, fmt.Errorf("stat sequencing summary: %w", err)
	}
	return result, nil
}

func fastqGroups(paths queue.Paths, barcoding bool) (map[string][]string, error) {
	groups := make(map[string][]string)
	pass := filepath.Join(paths.WorkspacePath, "pass")
	switch {
	case barcoding:
		entries, err := readDirIfExists(pass)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			files, err := listFastq(filepath.Join(pass, entry.Name()))
			if err != nil {
				return nil, err
			}
			if len(files) > 0 {
				groups[entry.Name()] = files
			}
		}
	case paths.OneDSquaredPath != "":
		oneD, err := listFastq(pass)
		if err != nil {
			return nil, err
		}
		oneDSquared, err := listFastq(filepath.Join(paths.OneDSquaredPath, "pass"))
		if err != nil {
			return nil, err
		}
		if len(oneD) > 0 {
			groups[GroupOneD] = oneD
		}
		if len(oneDSquared) > 0 {
			groups[GroupOneDSquared] = oneDSquared
		}
	default:
		files, err := listFastq(pass)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			groups[GroupUnbarcoded] = files
		}
	}
	return groups, nil
}

func listFastq(dir string) ([]string, error) {
	entries, err := readDirIfExists(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), ".fastq") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

func readDirIfExists(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	return entries, nil
}

func nextFastqName(dir, name, group string, index int) (string, int) {
	for {
		parts := []string{name}
		if group != GroupUnbarcoded {
			parts = append(parts, group)
		}
		parts = append(parts, strconv.Itoa(index), "fastq")
		candidate := filepath.Join(dir, strings.Join(parts, "."))
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate, index
		}
		index++
	}
}
