package testsupport

import (
	"testing"

	"pomo/internal/config"
	"pomo/internal/history"
)

// MustOpenStore opens a history.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...history.Option) *history.Store {
	t.Helper()

	store, err := history.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
