// Package sync implements the periodic reconciliation loop between the
// server's local enforcement state and the panel.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/df-mc/atomic"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sandertv/gophertunnel/minecraft/text"

	"github.com/modl-gg/minecraft-sub001/modl/cache"
	"github.com/modl-gg/minecraft-sub001/modl/executor"
	"github.com/modl-gg/minecraft-sub001/modl/locale"
	"github.com/modl-gg/minecraft-sub001/modl/notify"
	"github.com/modl-gg/minecraft-sub001/modl/panel"
	"github.com/modl-gg/minecraft-sub001/modl/platform"
	"github.com/modl-gg/minecraft-sub001/modl/punishment"
	"github.com/modl-gg/minecraft-sub001/modl/util"
)

const (
	// DefaultInterval is the tick interval when none is configured.
	DefaultInterval = 2 * time.Second

	// MinInterval is the floor the configured interval is clamped to.
	MinInterval = time.Second

	// startupDelay is waited before the first tick so the server finishes
	// coming up before the panel hears from it.
	startupDelay = 5 * time.Second
)

// Panel is the slice of the panel API the engine consumes.
type Panel interface {
	Sync(ctx context.Context, req *panel.SyncRequest) (*panel.SyncResponse, error)
	AcknowledgePunishment(ctx context.Context, ack *panel.PunishmentAck) error
	AcknowledgeNotifications(ctx context.Context, ack *panel.NotificationAck) error
	StaffPermissions(ctx context.Context) (*panel.StaffPermissionsResponse, error)
	PunishmentTypes(ctx context.Context) (*panel.PunishmentTypesResponse, error)
}

// Notifier attempts immediate delivery of panel notifications; satisfied
// by the notification pipeline. The staggered on-join delivery path runs
// outside the engine.
type Notifier interface {
	DeliverNow(id uuid.UUID, n notify.Notification) bool
}

// Migrator is the external migration collaborator. The engine triggers it
// at most once per directive and stays out of its retry and upload logic.
type Migrator interface {
	Trigger(taskID, taskType string)
}

// Cursor tracks where reconciliation is up to. The sync timestamp is
// opaque: it is whatever the panel last sent, echoed back verbatim, and is
// never advanced locally. Version stamps likewise only ever hold
// server-supplied values.
type Cursor struct {
	lastSync      atomic.Int64
	staffVersion  atomic.Int64
	typesVersion  atomic.Int64
}

// LastSync ...
func (c *Cursor) LastSync() int64 { return c.lastSync.Load() }

// StaffVersion ...
func (c *Cursor) StaffVersion() int64 { return c.staffVersion.Load() }

// TypesVersion ...
func (c *Cursor) TypesVersion() int64 { return c.typesVersion.Load() }

// Engine drives the reconciliation loop. One dedicated goroutine runs the
// fixed-rate ticker, so ticks never overlap.
type Engine struct {
	log      *slog.Logger
	panel    Panel
	platform platform.Platform
	cache    *cache.StateCache
	registry *punishment.TypeRegistry
	notifier Notifier
	migrator Migrator
	exec     *executor.Executor

	interval time.Duration
	cursor   Cursor

	// Touched by the tick goroutine only.
	migrationsSeen map[string]struct{}

	closed  atomic.Bool
	closeCh chan struct{}
	done    chan struct{}
}

// NewEngine creates the engine. A nil migrator disables migration-task
// handoff. The interval is clamped to MinInterval; zero or less selects
// DefaultInterval.
func NewEngine(log *slog.Logger, pn Panel, pf platform.Platform, c *cache.StateCache,
	reg *punishment.TypeRegistry, n Notifier, m Migrator, exec *executor.Executor,
	interval time.Duration) *Engine {

	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		interval = MinInterval
	}

	return &Engine{
		log:            log,
		panel:          pn,
		platform:       pf,
		cache:          c,
		registry:       reg,
		notifier:       n,
		migrator:       m,
		exec:           exec,
		interval:       interval,
		migrationsSeen: make(map[string]struct{}),
		closeCh:        make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start launches the tick loop. The cursor starts at "now"; the first
// response overwrites it with the panel's own timestamp.
func (e *Engine) Start() {
	e.cursor.lastSync.Store(time.Now().UnixMilli())
	go e.loop()
}

func (e *Engine) loop() {
	defer close(e.done)

	select {
	case <-e.closeCh:
		return
	case <-time.After(startupDelay):
	}

	t := time.NewTicker(e.interval)
	defer t.Stop()

	e.tick()
	for {
		select {
		case <-e.closeCh:
			return
		case <-t.C:
			e.tick()
		}
	}
}

// tick runs one reconciliation cycle. Panics are contained here so a bad
// tick can never kill the loop.
func (e *Engine) tick() {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			e.log.Error("panic during sync tick", "panic", r)
		}
	}()

	resp, err := e.panel.Sync(context.Background(), e.buildRequest())
	if err != nil {
		if errors.Is(err, panel.ErrUnavailable) {
			// Expected during panel maintenance; the next tick retries.
			e.log.Debug("panel unavailable, skipping tick")
		} else {
			e.log.Warn("sync request failed", "error", err)
		}
		return
	}

	e.apply(resp)
}

// buildRequest snapshots the online sessions and server status.
func (e *Engine) buildRequest() *panel.SyncRequest {
	now := time.Now()
	players := e.platform.OnlinePlayers()

	return &panel.SyncRequest{
		LastSyncTimestamp: e.cursor.LastSync(),
		OnlinePlayers: lo.Map(players, func(p platform.PlayerInfo, _ int) panel.OnlinePlayer {
			return panel.OnlinePlayer{
				UUID:            p.UUID,
				Name:            p.Name,
				IP:              p.IP,
				SessionDuration: p.SessionDuration(now),
			}
		}),
		ServerStatus: panel.ServerStatus{
			OnlineCount: len(players),
			MaxPlayers:  e.platform.MaxPlayers(),
			Version:     e.platform.Version(),
			Timestamp:   now.UnixMilli(),
		},
	}
}

// apply folds one sync response into local state. Modifications are applied
// before pending punishments; a pardon arriving in the same tick as a new
// punishment for the same player must not be undone by re-caching, whatever
// order the panel listed them in.
func (e *Engine) apply(resp *panel.SyncResponse) {
	for _, m := range resp.RecentlyModifiedPunishments {
		e.applyModification(m)
	}
	for _, p := range resp.PendingPunishments {
		e.enforce(p)
	}

	e.refreshOnlineStaff(resp.ActiveStaffMembers)
	e.routeNotifications(resp)
	e.checkVersions(resp)

	if resp.MigrationTask != nil {
		e.handleMigration(*resp.MigrationTask)
	}

	if resp.Timestamp != 0 {
		e.cursor.lastSync.Store(resp.Timestamp)
	}
}

// applyModification clears the cached entry for a punishment the panel
// modified. A pardoned or expired punishment stays gone; one that is still
// active comes back through the pending list with its new state. Removal is
// idempotent, so replayed deltas are harmless.
func (e *Engine) applyModification(m panel.ModifiedPunishment) {
	if !e.cache.RemovePunishment(m.PlayerUUID, m.PunishmentID) {
		return
	}
	e.log.Debug("cleared modified punishment", "player", m.PlayerUUID,
		"punishment", m.PunishmentID, "pardoned", m.Pardoned, "stillActive", m.StillActive)

	if m.Pardoned {
		if session, online := e.platform.Player(m.PlayerUUID); online {
			session.Message(locale.Translate("punishment.pardoned"))
		}
	}
}

// enforce applies one pending punishment to the live server and reports
// the outcome back. Local enforcement is authoritative: once it has taken
// effect it is never rolled back, even if the acknowledgment call fails.
func (e *Engine) enforce(p panel.PendingPunishment) {
	record := p.Record()
	if record.Empty() {
		return
	}

	now := time.Now()
	startRecord(record, now)

	var execErr error
	switch e.categoryOf(record) {
	case punishment.CategoryBan:
		e.cache.CacheBan(p.PlayerUUID, record)
		execErr = e.kick(p.PlayerUUID, banMessage(record))
	case punishment.CategoryKick:
		execErr = e.kick(p.PlayerUUID, locale.Translate("punishment.kicked", reasonOf(record)))
	case punishment.CategoryMute:
		e.cache.CacheMute(p.PlayerUUID, record)
		if session, online := e.platform.Player(p.PlayerUUID); online {
			session.Message(locale.Translate("punishment.muted", reasonOf(record)))
		}
	}

	ack := &panel.PunishmentAck{
		PunishmentID: record.ID(),
		PlayerUUID:   p.PlayerUUID,
		ExecutedAt:   now.UnixMilli(),
		Success:      execErr == nil,
	}
	if execErr != nil {
		ack.ErrorMessage = execErr.Error()
		e.log.Warn("punishment enforcement failed",
			"player", p.PlayerUUID, "punishment", record.ID(), "error", execErr)
	} else {
		e.log.Info("enforced punishment",
			"player", p.PlayerUUID, "punishment", record.ID(), "type", e.categoryOf(record).String())
	}

	e.exec.Execute(func() {
		if err := e.panel.AcknowledgePunishment(context.Background(), ack); err != nil {
			e.log.Warn("failed to acknowledge punishment", "punishment", ack.PunishmentID, "error", err)
		}
	})
}

// kick removes the player's session if they are online. An offline target
// is not an error; the cached ban keeps them out at the login gate.
func (e *Engine) kick(id uuid.UUID, reason string) (err error) {
	session, online := e.platform.Player(id)
	if !online {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kick failed: %v", r)
		}
	}()
	session.Kick(reason)
	return nil
}

func (e *Engine) categoryOf(record punishment.Record) punishment.Category {
	if record.Simple != nil {
		return record.Simple.Category
	}
	return e.registry.CategoryOf(record.Full.TypeOrdinal)
}

// refreshOnlineStaff replaces the staff descriptors of currently online
// players from the roster carried by the response. Replacement is
// wholesale per player, so revoked permissions disappear immediately.
func (e *Engine) refreshOnlineStaff(members []panel.ActiveStaffMember) {
	if members == nil {
		return
	}

	roster := make(map[uuid.UUID]cache.StaffMember, len(members))
	for _, m := range members {
		roster[m.PlayerUUID] = staffMember(m)
	}

	for _, p := range e.platform.OnlinePlayers() {
		if member, ok := roster[p.UUID]; ok {
			e.cache.CacheStaffPermissions(p.UUID, member)
		} else if _, cached := e.cache.StaffMember(p.UUID); cached {
			e.cache.ClearStaffPermissions(p.UUID)
		}
	}
}

// routeNotifications attempts immediate delivery of targeted notifications
// and queues whatever could not be delivered. Expired notifications are
// discarded outright, never queued. Staff notifications go out as a
// broadcast to online staff.
func (e *Engine) routeNotifications(resp *panel.SyncResponse) {
	now := time.Now()
	for _, pn := range resp.PlayerNotifications {
		if pn.Notification.Expired(now) {
			continue
		}
		if !e.notifier.DeliverNow(pn.PlayerUUID, pn.Notification) {
			e.cache.EnqueueNotification(pn.PlayerUUID, pn.Notification)
			e.log.Debug("queued notification for offline player",
				"player", pn.PlayerUUID, "notification", pn.Notification.ID)
		}
	}

	for _, n := range resp.StaffNotifications {
		if n.Expired(now) {
			continue
		}
		e.platform.BroadcastStaff(text.Colourf("<aqua>[Staff]</aqua> <yellow>%s</yellow>", n.Message))
	}
}

// checkVersions compares the response's version stamps against the cursor
// and triggers a wholesale refresh of the corresponding cache on change.
// Change detection is by stamp only; content is never diffed. The cursor is
// updated after the refresh succeeds, so a failed refresh retries on the
// next version comparison.
func (e *Engine) checkVersions(resp *panel.SyncResponse) {
	if v := resp.StaffPermissionsVersion; v != nil && *v != e.cursor.StaffVersion() {
		version := *v
		e.exec.Execute(func() { e.refreshStaffPermissions(version) })
	}
	if v := resp.PunishmentTypesVersion; v != nil && *v != e.cursor.TypesVersion() {
		version := *v
		e.exec.Execute(func() { e.refreshPunishmentTypes(version) })
	}
}

func (e *Engine) refreshStaffPermissions(version int64) {
	resp, err := e.panel.StaffPermissions(context.Background())
	if err != nil {
		e.log.Warn("failed to refresh staff permissions", "error", err)
		return
	}

	staff := make(map[uuid.UUID]cache.StaffMember, len(resp.Staff))
	for _, m := range resp.Staff {
		staff[m.PlayerUUID] = staffMember(m)
	}
	e.cache.ReplaceStaff(staff)
	e.cursor.staffVersion.Store(version)
	e.log.Info("refreshed staff permissions", "version", version, "staff", len(staff))
}

func (e *Engine) refreshPunishmentTypes(version int64) {
	resp, err := e.panel.PunishmentTypes(context.Background())
	if err != nil {
		e.log.Warn("failed to refresh punishment types", "error", err)
		return
	}

	e.registry.ApplyCatalog(resp.Types)
	e.cursor.typesVersion.Store(version)
	e.log.Info("refreshed punishment type catalog", "version", version, "types", len(resp.Types))
}

// handleMigration hands a migration directive to the collaborator, once.
func (e *Engine) handleMigration(task panel.MigrationTask) {
	if e.migrator == nil {
		return
	}
	if _, seen := e.migrationsSeen[task.TaskID]; seen {
		return
	}
	e.migrationsSeen[task.TaskID] = struct{}{}

	e.log.Info("triggering migration task", "task", task.TaskID, "type", task.Type)
	e.migrator.Trigger(task.TaskID, task.Type)
}

// Cursor returns the engine's reconciliation cursor, for diagnostics.
func (e *Engine) Cursor() *Cursor {
	return &e.cursor
}

// Stop stops the tick loop and waits briefly for an in-flight tick to
// finish. In-flight acknowledgment futures are not cancelled; the executor
// drains them on its own shutdown.
func (e *Engine) Stop() {
	if !e.closed.CAS(false, true) {
		return
	}
	close(e.closeCh)

	select {
	case <-e.done:
	case <-time.After(5 * time.Second):
		e.log.Warn("sync loop did not stop in time")
	}
}

// startRecord marks a queued punishment as started locally, so the cache
// treats it as in force from the moment of enforcement.
func startRecord(record punishment.Record, now time.Time) {
	if record.Simple != nil && !record.Simple.Started {
		record.Simple.Started = true
	}
	if record.Full != nil && record.Full.Started == nil {
		millis := now.UnixMilli()
		record.Full.Started = &millis
	}
}

func staffMember(m panel.ActiveStaffMember) cache.StaffMember {
	return cache.StaffMember{
		Name:        m.Name,
		Role:        m.Role,
		Permissions: lo.SliceToMap(m.Permissions, func(p string) (string, struct{}) { return p, struct{}{} }),
	}
}

func reasonOf(record punishment.Record) string {
	reason := ""
	if record.Simple != nil {
		reason = record.Simple.Reason
	} else if record.Full != nil {
		reason = record.Full.Reason
	}
	if reason == "" {
		reason = locale.Translate("punishment.no.reason")
	}
	return reason
}

// banMessage builds the kick screen text for a ban, including when it
// expires.
func banMessage(record punishment.Record) string {
	expiry := int64(0)
	if record.Simple != nil {
		expiry = record.Simple.Expiration
	} else if record.Full != nil {
		if duration, permanent := punishment.EffectiveDuration(record.Full); !permanent {
			started := record.Full.Issued
			if record.Full.Started != nil {
				started = *record.Full.Started
			}
			expiry = time.UnixMilli(started).Add(duration).UnixMilli()
		}
	}
	return locale.Translate("punishment.banned", reasonOf(record), util.FormatExpiry(expiry))
}
