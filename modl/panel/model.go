package panel

import (
	"github.com/google/uuid"

	"github.com/modl-gg/minecraft-sub001/modl/notify"
	"github.com/modl-gg/minecraft-sub001/modl/punishment"
)

// OnlinePlayer is one row of the online-session snapshot sent with every
// sync request.
type OnlinePlayer struct {
	UUID            uuid.UUID `json:"uuid"`
	Name            string    `json:"username"`
	IP              string    `json:"ipAddress"`
	SessionDuration int64     `json:"sessionDurationMs"`
}

// ServerStatus aggregates the server's health numbers for the panel.
type ServerStatus struct {
	OnlineCount int    `json:"onlinePlayerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	Version     string `json:"serverVersion"`
	Timestamp   int64  `json:"timestamp"`
}

// SyncRequest is the outbound half of one sync tick. LastSyncTimestamp is
// opaque to the client; it echoes back whatever the previous response
// carried.
type SyncRequest struct {
	LastSyncTimestamp int64          `json:"lastSyncTimestamp"`
	OnlinePlayers     []OnlinePlayer `json:"onlinePlayers"`
	ServerStatus      ServerStatus   `json:"serverStatus"`
}

// PendingPunishment pairs a punishment awaiting enforcement with its
// target. The panel may send either representation; both are carried.
type PendingPunishment struct {
	PlayerUUID uuid.UUID                    `json:"minecraftUuid"`
	PlayerName string                       `json:"username,omitempty"`
	Simple     *punishment.SimplePunishment `json:"punishment,omitempty"`
	Full       *punishment.Punishment       `json:"fullPunishment,omitempty"`
}

// Record returns the pending punishment as a cacheable record.
func (p PendingPunishment) Record() punishment.Record {
	return punishment.Record{Simple: p.Simple, Full: p.Full}
}

// ModifiedPunishment describes a punishment whose state changed on the
// panel since the last tick: a pardon, a duration change, or a restart.
type ModifiedPunishment struct {
	PlayerUUID   uuid.UUID `json:"minecraftUuid"`
	PunishmentID string    `json:"punishmentId"`
	Pardoned     bool      `json:"pardoned"`
	StillActive  bool      `json:"stillActive"`
}

// PlayerNotification targets a queued notification at a player.
type PlayerNotification struct {
	PlayerUUID   uuid.UUID           `json:"minecraftUuid"`
	Notification notify.Notification `json:"notification"`
}

// ActiveStaffMember is one row of the panel's staff roster.
type ActiveStaffMember struct {
	PlayerUUID  uuid.UUID `json:"minecraftUuid"`
	Name        string    `json:"username"`
	Role        string    `json:"staffRole"`
	Permissions []string  `json:"permissions"`
}

// MigrationTask directs the client to start a data migration. The sync
// engine only triggers the external migration collaborator once per
// directive; retries and uploads are the collaborator's business.
type MigrationTask struct {
	TaskID string `json:"taskId"`
	Type   string `json:"type"`
}

// SyncResponse is the inbound half of one sync tick.
type SyncResponse struct {
	Timestamp                    int64                `json:"timestamp"`
	PendingPunishments           []PendingPunishment  `json:"pendingPunishments"`
	RecentlyModifiedPunishments  []ModifiedPunishment `json:"recentlyModifiedPunishments"`
	PlayerNotifications          []PlayerNotification `json:"playerNotifications"`
	StaffNotifications           []notify.Notification `json:"staffNotifications,omitempty"`
	ActiveStaffMembers           []ActiveStaffMember  `json:"activeStaffMembers,omitempty"`
	MigrationTask                *MigrationTask       `json:"migrationTask,omitempty"`
	StaffPermissionsVersion      *int64               `json:"staffPermissionsVersion,omitempty"`
	PunishmentTypesVersion       *int64               `json:"punishmentTypesVersion,omitempty"`
}

// PunishmentAck reports the outcome of enforcing one punishment.
type PunishmentAck struct {
	PunishmentID string    `json:"punishmentId"`
	PlayerUUID   uuid.UUID `json:"playerUuid"`
	ExecutedAt   int64     `json:"executedAt"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// NotificationAck acknowledges a batch of delivered notifications for one
// player in a single call.
type NotificationAck struct {
	PlayerUUID      uuid.UUID `json:"playerUuid"`
	NotificationIDs []string  `json:"notificationIds"`
	AcknowledgedAt  int64     `json:"acknowledgedAt"`
}

// StaffPermissionsResponse is the panel's full staff permission dump.
type StaffPermissionsResponse struct {
	Version int64               `json:"version"`
	Staff   []ActiveStaffMember `json:"staff"`
}

// PunishmentTypesResponse is the panel's punishment type catalog.
type PunishmentTypesResponse struct {
	Version int64                  `json:"version"`
	Types   []punishment.TypeEntry `json:"types"`
}

// LoginRequest carries everything the panel needs to vet a joining player.
type LoginRequest struct {
	PlayerUUID uuid.UUID `json:"minecraftUuid"`
	Name       string    `json:"username"`
	IP         string    `json:"ipAddress"`
	SkinHash   string    `json:"skinHash,omitempty"`
}

// LoginResult is the panel's verdict on a joining player, together with
// the inputs that produced it.
type LoginResult struct {
	Request LoginRequest                 `json:"request"`
	Banned  *punishment.SimplePunishment `json:"activeBan,omitempty"`
	Muted   *punishment.SimplePunishment `json:"activeMute,omitempty"`
}

// Denied reports whether the verdict keeps the player out.
func (r *LoginResult) Denied() bool {
	return r.Banned != nil
}
