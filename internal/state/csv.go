package state

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alexiswl/poreduck/internal/queue"
)

// RequiredColumns is the legacy column set, in order.
var RequiredColumns = []string{
	"name",
	"extraction_submitted",
	"extraction_jobid",
	"extraction_commenced",
	"extraction_complete",
	"basecall_submitted",
	"basecall_jobid",
	"basecall_commenced",
	"basecall_complete",
	"folder_removed",
	"fastq_moved",
}

// ExtensionColumns follow the required set. Tables written by older runs
// omit them and load with zero values.
var ExtensionColumns = []string{
	"output_archived",
	"extraction_attempts",
	"basecall_attempts",
	"failed",
	"failure_reason",
}

// CSVStore keeps the item table in a CSV file.
type CSVStore struct {
	path string
}

// NewCSVStore returns a store for path. The file need not exist.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Close() error { return nil }

// Load parses the table. A missing file yields no items.
func (s *CSVStore) Load(ctx context.Context) ([]*queue.Item, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open state table: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, corrupt(s.path, "empty file")
		}
		return nil, corrupt(s.path, "read header: %v", err)
	}
	extended, err := checkHeader(header)
	if err != nil {
		return nil, corrupt(s.path, "%v", err)
	}

	var items []*queue.Item
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, corrupt(s.path, "line %d: %v", line, err)
		}
		if len(record) != len(header) {
			return nil, corrupt(s.path, "line %d: %d fields, header has %d", line, len(record), len(header))
		}
		item, err := decodeRow(record, extended)
		if err != nil {
			return nil, corrupt(s.path, "line %d: %v", line, err)
		}
		items = append(items, item)
	}
	if err := validateLoaded(s.path, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Save rewrites the whole table through a temporary file and rename.
func (s *CSVStore) Save(ctx context.Context, items []*queue.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	writer := csv.NewWriter(tmp)
	header := append(append([]string(nil), RequiredColumns...), ExtensionColumns...)
	if err := writer.Write(header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state header: %w", err)
	}
	for _, item := range items {
		if err := writer.Write(encodeRow(item)); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write state row %s: %w", item.Name, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush state table: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync state table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state table: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod state table: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace state table: %w", err)
	}
	return nil
}

func checkHeader(header []string) (bool, error) {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	full := len(RequiredColumns) + len(ExtensionColumns)
	if len(header) != len(RequiredColumns) && len(header) != full {
		return false, fmt.Errorf("header has %d columns, want %d or %d", len(header), len(RequiredColumns), full)
	}
	expected := append(append([]string(nil), RequiredColumns...), ExtensionColumns...)
	for i, column := range header {
		if strings.TrimSpace(column) != expected[i] {
			return false, fmt.Errorf("column %d is %q, want %q", i+1, column, expected[i])
		}
	}
	return len(header) == full, nil
}

func encodeRow(item *queue.Item) []string {
	return []string{
		item.Name,
		formatBool(item.Extraction.Submitted),
		item.Extraction.JobID.String(),
		formatBool(item.Extraction.Commenced),
		formatBool(item.Extraction.Complete),
		formatBool(item.Basecall.Submitted),
		item.Basecall.JobID.String(),
		formatBool(item.Basecall.Commenced),
		formatBool(item.Basecall.Complete),
		formatBool(item.FolderRemoved),
		formatBool(item.FastqMoved),
		formatBool(item.OutputArchived),
		strconv.Itoa(item.Extraction.Attempts),
		strconv.Itoa(item.Basecall.Attempts),
		formatBool(item.Failed),
		item.FailureReason,
	}
}

func decodeRow(record []string, extended bool) (*queue.Item, error) {
	item := queue.NewItem(record[0])
	if item.Name == "" {
		return nil, errors.New("empty name")
	}
	fields := []columnParser{
		{"extraction_submitted", boolInto(&item.Extraction.Submitted)},
		{"extraction_jobid", jobIDInto(&item.Extraction.JobID)},
		{"extraction_commenced", boolInto(&item.Extraction.Commenced)},
		{"extraction_complete", boolInto(&item.Extraction.Complete)},
		{"basecall_submitted", boolInto(&item.Basecall.Submitted)},
		{"basecall_jobid", jobIDInto(&item.Basecall.JobID)},
		{"basecall_commenced", boolInto(&item.Basecall.Commenced)},
		{"basecall_complete", boolInto(&item.Basecall.Complete)},
		{"folder_removed", boolInto(&item.FolderRemoved)},
		{"fastq_moved", boolInto(&item.FastqMoved)},
	}
	if extended {
		fields = append(fields,
			columnParser{"output_archived", boolInto(&item.OutputArchived)},
			columnParser{"extraction_attempts", intInto(&item.Extraction.Attempts)},
			columnParser{"basecall_attempts", intInto(&item.Basecall.Attempts)},
			columnParser{"failed", boolInto(&item.Failed)},
		)
	}
	for i, field := range fields {
		if err := field.parse(strings.TrimSpace(record[i+1])); err != nil {
			return nil, fmt.Errorf("%s: %w", field.column, err)
		}
	}
	if extended {
		item.FailureReason = record[len(record)-1]
	} else if item.FastqMoved {
		// Older tables never recorded re-archiving; a moved fastq set means
		// the run had already moved past that step.
		item.OutputArchived = true
	}
	return item, nil
}

type columnParser struct {
	column string
	parse  func(string) error
}

func formatBool(value bool) string {
	if value {
		return "True"
	}
	return "False"
}

func boolInto(dst *bool) func(string) error {
	return func(value string) error {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		*dst = parsed
		return nil
	}
}

// jobIDInto accepts integers and the float spelling ("123.0") pandas writes
// for numeric columns.
func jobIDInto(dst *queue.JobID) func(string) error {
	return func(value string) error {
		if value == "" {
			*dst = queue.NoJob
			return nil
		}
		value = strings.TrimSuffix(value, ".0")
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job id %q", value)
		}
		if n <= 0 {
			*dst = queue.NoJob
			return nil
		}
		*dst = queue.JobID(n)
		return nil
	}
}

func intInto(dst *int) func(string) error {
	return func(value string) error {
		if value == "" {
			*dst = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid count %q", value)
		}
		*dst = n
		return nil
	}
}
