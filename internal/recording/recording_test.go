package recording

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/tsunami-security-scanner-callback-server/internal/monitoring"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/storage"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const fakeCbid = "b0f3dc043a9c5c05f67651a8c9108b4c2b98e7246b2eea14cb204295"

var testNow = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	s, err := storage.NewMemory(storage.MemoryConfig{
		InteractionTTL:  time.Hour,
		CleanupInterval: time.Hour,
	}, clockwork.NewFakeClockAt(testNow))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type failingStore struct{}

func (failingStore) Add(context.Context, string, storage.Kind) error {
	return errors.New("store unavailable")
}

func (failingStore) Get(context.Context, string) ([]storage.Interaction, error) {
	return nil, errors.New("store unavailable")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("store unavailable")
}

type recordedKinds struct {
	monitoring.NoOp
	kinds []storage.Kind
}

func (r *recordedKinds) InteractionRecorded(kind storage.Kind) {
	r.kinds = append(r.kinds, kind)
}
