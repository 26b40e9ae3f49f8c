package testsupport

import (
	"context"
	"testing"

	"tubecraft/internal/config"
	"tubecraft/internal/episode"
)

// MustOpenStore opens an episode.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *episode.Store {
	t.Helper()

	store, err := episode.Open(cfg)
	if err != nil {
		t.Fatalf("episode.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewEpisode creates a draft episode for tests using the provided store.
func NewEpisode(t testing.TB, store *episode.Store, title string) *episode.Episode {
	t.Helper()

	ep, err := store.NewEpisode(context.Background(), title, "test topic", episode.StyleEducational, 0)
	if err != nil {
		t.Fatalf("store.NewEpisode: %v", err)
	}
	return ep
}
