package testsupport

import (
	"testing"

	"mcpanel/internal/config"
	"mcpanel/internal/snapshots"
)

// MustOpenStore opens the snapshot cache for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *snapshots.Store {
	t.Helper()
	store, err := snapshots.Open(cfg)
	if err != nil {
		t.Fatalf("snapshots.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
