package logincache_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modl-gg/minecraft-sub001/modl/logincache"
	"github.com/modl-gg/minecraft-sub001/modl/panel"
)

func setupTest(t *testing.T, ttl time.Duration) *logincache.Cache {
	t.Helper()
	c := logincache.NewCache(slog.Default(), ttl)
	t.Cleanup(c.Stop)
	return c
}

func TestCachedLoginResultWithinTTL(t *testing.T) {
	t.Parallel()
	c := setupTest(t, time.Minute)
	player := uuid.New()

	result := &panel.LoginResult{Request: panel.LoginRequest{PlayerUUID: player}}
	c.CacheLoginResult(player, result)

	got, ok := c.CachedLoginResult(player)
	require.True(t, ok)
	assert.Same(t, result, got)
}

func TestCachedLoginResultExpires(t *testing.T) {
	t.Parallel()
	c := setupTest(t, 20*time.Millisecond)
	player := uuid.New()

	c.CacheLoginResult(player, &panel.LoginResult{})
	time.Sleep(40 * time.Millisecond)

	// Expired entries report absent even before the sweep runs; stale
	// verdicts must never be reused.
	_, ok := c.CachedLoginResult(player)
	assert.False(t, ok)
}

func TestPreLoginResultConsumedExactlyOnce(t *testing.T) {
	t.Parallel()
	c := setupTest(t, time.Minute)
	player := uuid.New()

	c.StorePreLoginResult(player, logincache.PreLoginResult{Result: &panel.LoginResult{}})

	_, ok := c.TakePreLoginResult(player)
	require.True(t, ok)

	_, ok = c.TakePreLoginResult(player)
	assert.False(t, ok, "second read must find nothing")
}

func TestPreLoginResultAbsentBeforeStore(t *testing.T) {
	t.Parallel()
	c := setupTest(t, time.Minute)

	// Reading before the asynchronous stage wrote anything is absence,
	// which the gate treats as "unverified", never as "no punishment".
	_, ok := c.TakePreLoginResult(uuid.New())
	assert.False(t, ok)
}

func TestPreLoginResultCarriesError(t *testing.T) {
	t.Parallel()
	c := setupTest(t, time.Minute)
	player := uuid.New()

	checkErr := errors.New("panel down")
	c.StorePreLoginResult(player, logincache.PreLoginResult{Err: checkErr})

	result, ok := c.TakePreLoginResult(player)
	require.True(t, ok)
	assert.ErrorIs(t, result.Err, checkErr)
	assert.Nil(t, result.Result)
}
