package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexiswl/poreduck/internal/queue"
)

// ErrCorruptState marks a persisted table that cannot be trusted.
var ErrCorruptState = errors.New("corrupt state table")

// Store loads and saves the full item set.
type Store interface {
	Load(ctx context.Context) ([]*queue.Item, error)
	Save(ctx context.Context, items []*queue.Item) error
	Path() string
	Close() error
}

// Backend names accepted by Open.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendCSV, "":
		return NewCSVStore(path), nil
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unsupported state backend %q", backend)
	}
}

func corrupt(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrCorruptState, path, fmt.Sprintf(format, args...))
}

func validateLoaded(path string, items []*queue.Item) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.Name]; dup {
			return corrupt(path, "duplicate item %q", item.Name)
		}
		seen[item.Name] = struct{}{}
		if err := item.Validate(); err != nil {
			return corrupt(path, "%v", err)
		}
	}
	return nil
}
