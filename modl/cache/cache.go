// Package cache holds the server's local approximation of the panel's
// enforcement state: active mutes and bans, staff membership, and queued
// notifications, all keyed by player UUID.
package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/modl-gg/minecraft-sub001/modl/notify"
	"github.com/modl-gg/minecraft-sub001/modl/punishment"
)

// StaffMember describes a player's cached staff membership: their panel
// role and the permission strings attached to it.
type StaffMember struct {
	Name        string
	Role        string
	Permissions map[string]struct{}
}

// HasPermission ...
func (m StaffMember) HasPermission(permission string) bool {
	_, ok := m.Permissions[permission]
	return ok
}

// StateCache is a concurrent store of per-player enforcement state. It is
// read and written simultaneously by the sync tick, async HTTP completion
// callbacks and game event threads, so entries live in a sync.Map with a
// per-player lock; unrelated players never contend.
//
// A player entry with no mute, no ban, no staff descriptor and no queued
// notifications is removed immediately. The server runs for weeks at a
// time, so empty husks must not accumulate.
type StateCache struct {
	log *slog.Logger
	reg *punishment.TypeRegistry

	players sync.Map // uuid.UUID -> *playerEntry
}

// playerEntry holds everything cached for a single player. evicted flips
// once the entry has been removed from the map; writers that raced the
// eviction retry against a fresh entry.
type playerEntry struct {
	mu      sync.Mutex
	evicted bool

	mute  punishment.Record
	ban   punishment.Record
	staff *StaffMember

	notifications []notify.Notification
}

func (e *playerEntry) empty() bool {
	return e.mute.Empty() && e.ban.Empty() && e.staff == nil && len(e.notifications) == 0
}

// NewStateCache ...
func NewStateCache(log *slog.Logger, reg *punishment.TypeRegistry) *StateCache {
	return &StateCache{log: log, reg: reg}
}

// update runs f against the player's entry under its lock, creating the
// entry if needed, and evicts the entry afterwards if f left it empty.
func (c *StateCache) update(id uuid.UUID, f func(e *playerEntry)) {
	for {
		v, _ := c.players.LoadOrStore(id, &playerEntry{})
		e := v.(*playerEntry)

		e.mu.Lock()
		if e.evicted {
			e.mu.Unlock()
			continue
		}
		f(e)
		if e.empty() {
			e.evicted = true
			c.players.Delete(id)
		}
		e.mu.Unlock()
		return
	}
}

// read runs f against the player's entry under its lock, if one exists.
// f may mutate the entry (read repair); emptiness is re-checked after.
func (c *StateCache) read(id uuid.UUID, f func(e *playerEntry)) bool {
	v, ok := c.players.Load(id)
	if !ok {
		return false
	}
	e := v.(*playerEntry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return false
	}
	f(e)
	if e.empty() {
		e.evicted = true
		c.players.Delete(id)
	}
	return true
}

// CacheMute stores an active mute for the player.
func (c *StateCache) CacheMute(id uuid.UUID, record punishment.Record) {
	c.update(id, func(e *playerEntry) { e.mute = record })
}

// CacheBan stores an active ban for the player.
func (c *StateCache) CacheBan(id uuid.UUID, record punishment.Record) {
	c.update(id, func(e *playerEntry) { e.ban = record })
}

// IsMuted reports whether the player has an active mute. A mute found to be
// expired is purged on the spot before false is returned.
func (c *StateCache) IsMuted(id uuid.UUID) bool {
	return c.activeRecord(id, func(e *playerEntry) *punishment.Record { return &e.mute })
}

// IsBanned reports whether the player has an active ban, with the same
// read-repair behaviour as IsMuted.
func (c *StateCache) IsBanned(id uuid.UUID) bool {
	return c.activeRecord(id, func(e *playerEntry) *punishment.Record { return &e.ban })
}

// Mute returns the player's cached mute record, if any.
func (c *StateCache) Mute(id uuid.UUID) (punishment.Record, bool) {
	var record punishment.Record
	c.read(id, func(e *playerEntry) { record = e.mute })
	return record, !record.Empty()
}

// Ban returns the player's cached ban record, if any.
func (c *StateCache) Ban(id uuid.UUID) (punishment.Record, bool) {
	var record punishment.Record
	c.read(id, func(e *playerEntry) { record = e.ban })
	return record, !record.Empty()
}

func (c *StateCache) activeRecord(id uuid.UUID, field func(e *playerEntry) *punishment.Record) bool {
	now, active := time.Now(), false
	c.read(id, func(e *playerEntry) {
		record := field(e)
		if record.Empty() {
			return
		}
		if !record.ActiveAt(c.reg, now) {
			c.log.Debug("purging expired punishment", "player", id, "punishment", record.ID())
			*record = punishment.Record{}
			return
		}
		active = true
	})
	return active
}

// RemoveMute drops the player's cached mute.
func (c *StateCache) RemoveMute(id uuid.UUID) {
	c.update(id, func(e *playerEntry) { e.mute = punishment.Record{} })
}

// RemoveBan drops the player's cached ban.
func (c *StateCache) RemoveBan(id uuid.UUID) {
	c.update(id, func(e *playerEntry) { e.ban = punishment.Record{} })
}

// RemovePunishment drops whichever cached punishment of the player carries
// the given id. It reports whether anything was removed, and is safe to
// call twice with the same id.
func (c *StateCache) RemovePunishment(id uuid.UUID, punishmentID string) bool {
	removed := false
	c.read(id, func(e *playerEntry) {
		if e.mute.ID() == punishmentID {
			e.mute = punishment.Record{}
			removed = true
		}
		if e.ban.ID() == punishmentID {
			e.ban = punishment.Record{}
			removed = true
		}
	})
	return removed
}

// RemovePlayer drops the player's entry entirely, punishments, staff
// descriptor and queued notifications included.
func (c *StateCache) RemovePlayer(id uuid.UUID) {
	if v, ok := c.players.LoadAndDelete(id); ok {
		e := v.(*playerEntry)
		e.mu.Lock()
		e.evicted = true
		e.mu.Unlock()
	}
}

// CacheStaffPermissions replaces the player's staff descriptor wholesale.
// Permissions are never merged, so a permission revoked on the panel cannot
// survive a refresh.
func (c *StateCache) CacheStaffPermissions(id uuid.UUID, member StaffMember) {
	c.update(id, func(e *playerEntry) { e.staff = &member })
}

// ClearStaffPermissions removes the player's staff descriptor.
func (c *StateCache) ClearStaffPermissions(id uuid.UUID) {
	c.update(id, func(e *playerEntry) { e.staff = nil })
}

// StaffMember returns the player's cached staff descriptor, if any.
func (c *StateCache) StaffMember(id uuid.UUID) (StaffMember, bool) {
	var member *StaffMember
	c.read(id, func(e *playerEntry) { member = e.staff })
	if member == nil {
		return StaffMember{}, false
	}
	return *member, true
}

// HasPermission reports whether the player is cached staff holding the
// given permission string.
func (c *StateCache) HasPermission(id uuid.UUID, permission string) bool {
	member, ok := c.StaffMember(id)
	return ok && member.HasPermission(permission)
}

// ReplaceStaff swaps the entire staff roster: players in the given map get
// their descriptor replaced, everyone else's descriptor is cleared. Used
// for the wholesale refresh after a staff-permissions version change.
func (c *StateCache) ReplaceStaff(staff map[uuid.UUID]StaffMember) {
	var stale []uuid.UUID
	c.players.Range(func(key, _ any) bool {
		id := key.(uuid.UUID)
		if _, ok := staff[id]; !ok {
			stale = append(stale, id)
		}
		return true
	})
	for _, id := range stale {
		c.ClearStaffPermissions(id)
	}
	for id, member := range staff {
		c.CacheStaffPermissions(id, member)
	}
}

// EnqueueNotification appends a notification to the player's queue.
func (c *StateCache) EnqueueNotification(id uuid.UUID, n notify.Notification) {
	c.update(id, func(e *playerEntry) { e.notifications = append(e.notifications, n) })
}

// Notifications returns the player's queued notifications in enqueue order.
// Expired notifications are dropped from the queue as a side effect and
// never returned.
func (c *StateCache) Notifications(id uuid.UUID) []notify.Notification {
	now := time.Now()
	var out []notify.Notification
	c.read(id, func(e *playerEntry) {
		e.notifications = lo.Filter(e.notifications, func(n notify.Notification, _ int) bool {
			return !n.Expired(now)
		})
		out = append(out, e.notifications...)
	})
	return out
}

// RemoveNotifications drops the queued notifications with the given ids.
func (c *StateCache) RemoveNotifications(id uuid.UUID, ids ...string) {
	if len(ids) == 0 {
		return
	}
	c.update(id, func(e *playerEntry) {
		e.notifications = lo.Filter(e.notifications, func(n notify.Notification, _ int) bool {
			return !lo.Contains(ids, n.ID)
		})
	})
}

// ClearNotifications empties the player's notification queue.
func (c *StateCache) ClearNotifications(id uuid.UUID) {
	c.update(id, func(e *playerEntry) { e.notifications = nil })
}

// NotificationCount ...
func (c *StateCache) NotificationCount(id uuid.UUID) int {
	count := 0
	c.read(id, func(e *playerEntry) { count = len(e.notifications) })
	return count
}

// PlayerCount returns the number of players with any cached state, for
// diagnostics.
func (c *StateCache) PlayerCount() int {
	count := 0
	c.players.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
