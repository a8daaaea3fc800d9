package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryRegistryExpiresAndRevokes(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	require.NoError(t, reg.Register(ctx, "a", Record{Username: "user", IssuedAt: now}, time.Minute))
	require.NoError(t, reg.Register(ctx, "b", Record{Username: "test", IssuedAt: now}, time.Hour))

	rec, ok, err := reg.Lookup(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "user", rec.Username)

	now = now.Add(2 * time.Minute)
	_, ok, err = reg.Lookup(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, reg.Revoke(ctx, "b"))
	_, ok, err = reg.Lookup(ctx, "b")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisRegistryRoundTrip(t *testing.T) {
	addr := os.Getenv("STORELEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set STORELEDGER_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	reg := NewRedisRegistry(addr, "", 0)
	t.Cleanup(func() { _ = reg.Close() })
	require.NoError(t, reg.Ping(ctx))

	id := "it-" + time.Now().Format("150405.000000000")
	require.NoError(t, reg.Register(ctx, id, Record{Username: "user", IssuedAt: time.Now().UTC()}, time.Minute))

	rec, ok, err := reg.Lookup(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "user", rec.Username)

	require.NoError(t, reg.Revoke(ctx, id))
	_, ok, err = reg.Lookup(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}
