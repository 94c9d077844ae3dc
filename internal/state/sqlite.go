package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alexiswl/poreduck/internal/queue"
)

// SQLiteStore keeps the item table in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const itemColumns = `name, extraction_submitted, extraction_jobid, extraction_commenced,
	extraction_complete, extraction_attempts, basecall_submitted, basecall_jobid,
	basecall_commenced, basecall_complete, basecall_attempts, folder_removed,
	fastq_moved, output_archived, failed, failure_reason`

const upsertItem = `INSERT INTO items (` + itemColumns + `, position, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		extraction_submitted = excluded.extraction_submitted,
		extraction_jobid = excluded.extraction_jobid,
		extraction_commenced = excluded.extraction_commenced,
		extraction_complete = excluded.extraction_complete,
		extraction_attempts = excluded.extraction_attempts,
		basecall_submitted = excluded.basecall_submitted,
		basecall_jobid = excluded.basecall_jobid,
		basecall_commenced = excluded.basecall_commenced,
		basecall_complete = excluded.basecall_complete,
		basecall_attempts = excluded.basecall_attempts,
		folder_removed = excluded.folder_removed,
		fastq_moved = excluded.fastq_moved,
		output_archived = excluded.output_archived,
		failed = excluded.failed,
		failure_reason = excluded.failure_reason,
		position = excluded.position,
		updated_at = excluded.updated_at`

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the items in the order they were first saved.
func (s *SQLiteStore) Load(ctx context.Context) ([]*queue.Item, error) {
	var items []*queue.Item
	err := retryOnBusy(ctx, func() error {
		items = items[:0]
		rows, err := s.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM items ORDER BY position, name")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				return corrupt(s.path, "%v", err)
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		if errors.Is(err, ErrCorruptState) {
			return nil, err
		}
		return nil, fmt.Errorf("load items: %w", err)
	}
	if err := validateLoaded(s.path, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Save upserts every item and drops rows no longer tracked, in one
// transaction.
func (s *SQLiteStore) Save(ctx context.Context, items []*queue.Item) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin save: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "CREATE TEMP TABLE IF NOT EXISTS keep (name TEXT PRIMARY KEY)"); err != nil {
			return fmt.Errorf("prepare save: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM keep"); err != nil {
			return fmt.Errorf("prepare save: %w", err)
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		for position, item := range items {
			if _, err := tx.ExecContext(ctx, upsertItem, itemArgs(item, position, now)...); err != nil {
				return fmt.Errorf("save item %s: %w", item.Name, err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO keep (name) VALUES (?)", item.Name); err != nil {
				return fmt.Errorf("save item %s: %w", item.Name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM items WHERE name NOT IN (SELECT name FROM keep)"); err != nil {
			return fmt.Errorf("prune items: %w", err)
		}
		return tx.Commit()
	})
}

func itemArgs(item *queue.Item, position int, now string) []any {
	return []any{
		item.Name,
		item.Extraction.Submitted,
		int64(item.Extraction.JobID),
		item.Extraction.Commenced,
		item.Extraction.Complete,
		item.Extraction.Attempts,
		item.Basecall.Submitted,
		int64(item.Basecall.JobID),
		item.Basecall.Commenced,
		item.Basecall.Complete,
		item.Basecall.Attempts,
		item.FolderRemoved,
		item.FastqMoved,
		item.OutputArchived,
		item.Failed,
		item.FailureReason,
		position,
		now,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*queue.Item, error) {
	var (
		item          queue.Item
		extractionJob int64
		basecallJob   int64
	)
	err := row.Scan(
		&item.Name,
		&item.Extraction.Submitted,
		&extractionJob,
		&item.Extraction.Commenced,
		&item.Extraction.Complete,
		&item.Extraction.Attempts,
		&item.Basecall.Submitted,
		&basecallJob,
		&item.Basecall.Commenced,
		&item.Basecall.Complete,
		&item.Basecall.Attempts,
		&item.FolderRemoved,
		&item.FastqMoved,
		&item.OutputArchived,
		&item.Failed,
		&item.FailureReason,
	)
	if err != nil {
		return nil, err
	}
	item.Extraction.JobID = normalizeJobID(extractionJob)
	item.Basecall.JobID = normalizeJobID(basecallJob)
	return &item, nil
}

func normalizeJobID(id int64) queue.JobID {
	if id <= 0 {
		return queue.NoJob
	}
	return queue.JobID(id)
}
