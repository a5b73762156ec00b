package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	assert.Equal(t, "http", KindHTTP.String())
	assert.Equal(t, "dns", KindDNS.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestNew_BackendSelection(t *testing.T) {
	clock := clockwork.NewFakeClock()

	_, _, err := New(Options{}, clock)
	assert.ErrorIs(t, err, ErrBackendSelection)

	_, _, err = New(Options{
		Memory: &MemoryConfig{InteractionTTL: time.Minute, CleanupInterval: time.Minute},
		Valkey: &ValkeyConfig{InteractionTTL: time.Minute, ReadAddress: "r:6379", WriteAddress: "w:6379"},
	}, clock)
	assert.ErrorIs(t, err, ErrBackendSelection)
}

func TestNew_Memory(t *testing.T) {
	s, closer, err := New(Options{
		Memory: &MemoryConfig{InteractionTTL: time.Minute, CleanupInterval: time.Minute},
	}, clockwork.NewFakeClock())
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer() })
	assert.IsType(t, &MemoryStore{}, s)

	_, _, err = New(Options{Memory: &MemoryConfig{}}, clockwork.NewFakeClock())
	assert.Error(t, err)
}

func TestNew_Valkey(t *testing.T) {
	mr := miniredis.RunT(t)
	s, closer, err := New(Options{
		Valkey: &ValkeyConfig{InteractionTTL: time.Minute, ReadAddress: mr.Addr(), WriteAddress: mr.Addr()},
	}, clockwork.NewFakeClockAt(testNow))
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer() })
	assert.IsType(t, &ValkeyStore{}, s)

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, cbidA, KindDNS))
	got, err := s.Get(ctx, cbidA)
	require.NoError(t, err)
	assert.Equal(t, []Interaction{{IsDNS: true, RecordTime: testNow}}, got)
}
