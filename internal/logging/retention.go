package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	runLogPrefix = "poreduck-"
	runLogSuffix = ".log"
	runLogStamp  = "20060102-150405"
)

// RunLogStarted parses the start time encoded in a run log file name.
func RunLogStarted(name string) (time.Time, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, runLogPrefix) || !strings.HasSuffix(base, runLogSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(base, runLogPrefix), runLogSuffix)
	started, err := time.ParseInLocation(runLogStamp, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return started, true
}

// PruneRunLogs deletes run logs in dir whose run started more than
// retentionDays ago. keep is never removed. Zero retention keeps everything.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, keep string) int {
	if retentionDays <= 0 {
		return 0
	}
	return pruneRunLogs(logger, dir, time.Now().AddDate(0, 0, -retentionDays), keep)
}

func pruneRunLogs(logger *slog.Logger, dir string, cutoff time.Time, keep string) int {
	if logger == nil {
		logger = NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	keep = filepath.Clean(keep)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if path == keep {
			continue
		}
		started, ok := RunLogStarted(entry.Name())
		if !ok || !started.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "could not prune old run log", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on logging.log_dir"),
			)
			continue
		}
		removed++
		logger.Debug("run log pruned",
			String("path", path),
			String("started", started.Format(time.RFC3339)),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}
