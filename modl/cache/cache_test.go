package cache_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modl-gg/minecraft-sub001/modl/cache"
	"github.com/modl-gg/minecraft-sub001/modl/notify"
	"github.com/modl-gg/minecraft-sub001/modl/punishment"
)

func setupTest(t *testing.T) *cache.StateCache {
	t.Helper()
	return cache.NewStateCache(slog.Default(), punishment.NewTypeRegistry())
}

func activeBan(id string) punishment.Record {
	return punishment.Record{Simple: &punishment.SimplePunishment{
		ID: id, Category: punishment.CategoryBan, Started: true,
	}}
}

func TestCacheBanAndMute(t *testing.T) {
	t.Parallel()
	c := setupTest(t)
	player := uuid.New()

	c.CacheBan(player, activeBan("B1"))
	assert.True(t, c.IsBanned(player))
	assert.False(t, c.IsMuted(player))

	c.CacheMute(player, punishment.Record{Simple: &punishment.SimplePunishment{
		ID: "M1", Category: punishment.CategoryMute, Started: true,
	}})
	assert.True(t, c.IsMuted(player))
}

func TestReadRepairPurgesExpired(t *testing.T) {
	t.Parallel()
	c := setupTest(t)
	player := uuid.New()

	c.CacheMute(player, punishment.Record{Simple: &punishment.SimplePunishment{
		ID: "M2", Category: punishment.CategoryMute, Started: true,
		Expiration: time.Now().Add(-time.Minute).UnixMilli(),
	}})

	// First read discovers the expiry, purges the record and, with nothing
	// else cached, evicts the whole entry.
	assert.False(t, c.IsMuted(player))
	assert.Equal(t, 0, c.PlayerCount())
}

func TestNoEmptyEntriesSurvive(t *testing.T) {
	t.Parallel()
	c := setupTest(t)
	player := uuid.New()

	c.CacheBan(player, activeBan("B2"))
	c.CacheStaffPermissions(player, cache.StaffMember{Role: "mod", Permissions: map[string]struct{}{"punish": {}}})
	require.Equal(t, 1, c.PlayerCount())

	c.RemoveBan(player)
	require.Equal(t, 1, c.PlayerCount(), "staff descriptor still cached")

	c.ClearStaffPermissions(player)
	assert.Equal(t, 0, c.PlayerCount(), "empty entry must be evicted")
}

func TestRemovePunishmentIdempotent(t *testing.T) {
	t.Parallel()
	c := setupTest(t)
	player := uuid.New()

	c.CacheBan(player, activeBan("B3"))
	assert.True(t, c.RemovePunishment(player, "B3"))
	assert.False(t, c.RemovePunishment(player, "B3"))
	assert.False(t, c.IsBanned(player))
	assert.Equal(t, 0, c.PlayerCount())
}

func TestStaffPermissionsReplacedNotMerged(t *testing.T) {
	t.Parallel()
	c := setupTest(t)
	player := uuid.New()

	c.CacheStaffPermissions(player, cache.StaffMember{
		Role:        "admin",
		Permissions: map[string]struct{}{"punish": {}, "unban": {}},
	})
	require.True(t, c.HasPermission(player, "unban"))

	c.CacheStaffPermissions(player, cache.StaffMember{
		Role:        "helper",
		Permissions: map[string]struct{}{"punish": {}},
	})
	assert.True(t, c.HasPermission(player, "punish"))
	assert.False(t, c.HasPermission(player, "unban"), "revoked permission must not linger")
}

func TestReplaceStaffDropsStalePlayers(t *testing.T) {
	t.Parallel()
	c := setupTest(t)
	former, current := uuid.New(), uuid.New()

	c.CacheStaffPermissions(former, cache.StaffMember{Role: "mod", Permissions: map[string]struct{}{"punish": {}}})

	c.ReplaceStaff(map[uuid.UUID]cache.StaffMember{
		current: {Role: "mod", Permissions: map[string]struct{}{"punish": {}}},
	})

	assert.False(t, c.HasPermission(former, "punish"))
	assert.True(t, c.HasPermission(current, "punish"))
}

func TestNotificationQueue(t *testing.T) {
	t.Parallel()
	c := setupTest(t)
	player := uuid.New()

	now := time.Now().UnixMilli()
	c.EnqueueNotification(player, notify.Notification{ID: "N1", Message: "first", Queued: now})
	c.EnqueueNotification(player, notify.Notification{ID: "N2", Message: "second", Queued: now})
	require.Equal(t, 2, c.NotificationCount(player))

	queued := c.Notifications(player)
	require.Len(t, queued, 2)
	assert.Equal(t, "N1", queued[0].ID, "enqueue order preserved")

	c.RemoveNotifications(player, "N1")
	assert.Equal(t, 1, c.NotificationCount(player))

	c.ClearNotifications(player)
	assert.Equal(t, 0, c.PlayerCount())
}

func TestExpiredNotificationPurgedOnRead(t *testing.T) {
	t.Parallel()
	c := setupTest(t)
	player := uuid.New()

	c.EnqueueNotification(player, notify.Notification{
		ID: "N3", Message: "stale",
		Queued: time.Now().Add(-26 * time.Hour).UnixMilli(),
	})

	assert.Empty(t, c.Notifications(player))
	assert.Equal(t, 0, c.PlayerCount(), "purge of last notification evicts the entry")
}

func TestRemovePlayer(t *testing.T) {
	t.Parallel()
	c := setupTest(t)
	player := uuid.New()

	c.CacheBan(player, activeBan("B4"))
	c.EnqueueNotification(player, notify.Notification{ID: "N4", Queued: time.Now().UnixMilli()})

	c.RemovePlayer(player)
	assert.False(t, c.IsBanned(player))
	assert.Empty(t, c.Notifications(player))
	assert.Equal(t, 0, c.PlayerCount())
}
