package gate_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modl-gg/minecraft-sub001/modl/cache"
	"github.com/modl-gg/minecraft-sub001/modl/executor"
	"github.com/modl-gg/minecraft-sub001/modl/gate"
	"github.com/modl-gg/minecraft-sub001/modl/logincache"
	"github.com/modl-gg/minecraft-sub001/modl/panel"
	"github.com/modl-gg/minecraft-sub001/modl/punishment"
)

type fakeChecker struct {
	mu     sync.Mutex
	calls  int
	result *panel.LoginResult
	err    error
}

func (c *fakeChecker) CheckLogin(_ context.Context, req *panel.LoginRequest) (*panel.LoginResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	result := *c.result
	result.Request = *req
	return &result, nil
}

func (c *fakeChecker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func setupTest(t *testing.T, checker *fakeChecker) (*gate.Gate, *cache.StateCache) {
	t.Helper()

	log := slog.Default()
	logins := logincache.NewCache(log, logincache.DefaultResultTTL)
	t.Cleanup(logins.Stop)

	exec := executor.New(log, 2)
	t.Cleanup(func() { exec.Stop(time.Second) })

	states := cache.NewStateCache(log, punishment.NewTypeRegistry())

	g := gate.NewGate(log, checker, logins, states, exec)
	g.Timeout = 500 * time.Millisecond
	return g, states
}

func request(player uuid.UUID) panel.LoginRequest {
	return panel.LoginRequest{PlayerUUID: player, Name: "Steve", IP: "203.0.113.9"}
}

func TestAllowCleanPlayer(t *testing.T) {
	t.Parallel()
	g, _ := setupTest(t, &fakeChecker{result: &panel.LoginResult{}})
	player := uuid.New()

	g.Begin(request(player))
	decision := g.Decide(player)

	assert.True(t, decision.Allow)
	assert.Empty(t, decision.Message)
}

func TestDenyBannedPlayer(t *testing.T) {
	t.Parallel()
	g, _ := setupTest(t, &fakeChecker{result: &panel.LoginResult{
		Banned: &punishment.SimplePunishment{ID: "B1", Category: punishment.CategoryBan, Started: true, Reason: "cheating"},
	}})
	player := uuid.New()

	g.Begin(request(player))
	decision := g.Decide(player)

	require.False(t, decision.Allow)
	assert.Contains(t, decision.Message, "cheating")
}

func TestMuteCachedBeforeFirstChatMessage(t *testing.T) {
	t.Parallel()
	g, states := setupTest(t, &fakeChecker{result: &panel.LoginResult{
		Muted: &punishment.SimplePunishment{ID: "M1", Category: punishment.CategoryMute, Started: true},
	}})
	player := uuid.New()

	g.Begin(request(player))
	decision := g.Decide(player)

	assert.True(t, decision.Allow, "a mute never blocks entry")
	assert.True(t, states.IsMuted(player), "mute in force before the player can chat")
}

func TestFailClosedOnCheckerError(t *testing.T) {
	t.Parallel()
	g, _ := setupTest(t, &fakeChecker{err: errors.New("panel down")})
	player := uuid.New()

	g.Begin(request(player))
	decision := g.Decide(player)

	assert.False(t, decision.Allow, "unverifiable login is denied, not waved through")
	assert.NotEmpty(t, decision.Message)
}

func TestFailClosedWhenCheckNeverCompletes(t *testing.T) {
	t.Parallel()
	g, _ := setupTest(t, &fakeChecker{result: &panel.LoginResult{}})
	g.Timeout = 150 * time.Millisecond

	// Decide without Begin: nothing ever reaches the bridge.
	decision := g.Decide(uuid.New())
	assert.False(t, decision.Allow)
}

func TestRapidReconnectReusesCachedVerdict(t *testing.T) {
	t.Parallel()
	checker := &fakeChecker{result: &panel.LoginResult{}}
	g, _ := setupTest(t, checker)
	player := uuid.New()

	g.Begin(request(player))
	require.True(t, g.Decide(player).Allow)

	g.Begin(request(player))
	require.True(t, g.Decide(player).Allow)

	assert.Equal(t, 1, checker.callCount(), "second attempt within the window skips the panel")
}
