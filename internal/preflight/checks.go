package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"github.com/alexiswl/poreduck/internal/config"
	"github.com/alexiswl/poreduck/internal/deps"
)

// MinFreeBytes is the free space below which the output volume check fails.
// A single basecalled run folder is routinely several gigabytes.
const MinFreeBytes uint64 = 10 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCreatableDirectory passes when the directory is usable or can be
// created under its nearest existing ancestor.
func CheckCreatableDirectory(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return CheckDirectoryAccess(name, path)
	}
	ancestor, err := existingAncestor(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if err := unix.Access(ancestor, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, ancestor, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckFreeSpace reports the space available to unprivileged writers on the
// volume holding path. The result is advisory.
func CheckFreeSpace(name, path string, minimum uint64) Result {
	result := Result{Name: name, Advisory: true}
	target, err := existingAncestor(path)
	if err != nil {
		result.Detail = fmt.Sprintf("%s (error: %v)", path, err)
		return result
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(target, &stat); err != nil {
		result.Detail = fmt.Sprintf("%s (error: statfs: %v)", target, err)
		return result
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minimum {
		result.Detail = fmt.Sprintf("%s free on %s (need %s)", humanize.IBytes(free), target, humanize.IBytes(minimum))
		return result
	}
	result.Passed = true
	result.Detail = fmt.Sprintf("%s free on %s", humanize.IBytes(free), target)
	return result
}

// CheckSystemDeps evaluates the scheduler CLIs and the job binaries for the
// given config.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := deps.SchedulerRequirements(cfg.Scheduler.Type)
	requirements = append(requirements, deps.ComputeRequirements(cfg.BasecallerBinary())...)
	return deps.CheckBinaries(requirements)
}

func existingAncestor(path string) (string, error) {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", errors.New("no existing ancestor")
		}
		current = parent
	}
}
