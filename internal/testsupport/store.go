package testsupport

import (
	"context"
	"testing"

	"fragmenter/internal/config"
	"fragmenter/internal/sink"
)

// MustOpenSink opens a sink store for tests and registers cleanup.
func MustOpenSink(t testing.TB, cfg config.Sink) *sink.SQLStore {
	t.Helper()

	store, err := sink.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("sink.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
