package testsupport

import (
	"testing"

	"github.com/alexiswl/poreduck/internal/config"
	"github.com/alexiswl/poreduck/internal/state"
)

// MustOpenStore opens the configured status store and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) state.Store {
	t.Helper()

	store, err := state.Open(cfg.State.Backend, cfg.StatusFile())
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
