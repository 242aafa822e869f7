// Package platform abstracts the hosting game server: session enumeration
// and lookup, enforcement actions and message delivery. The sync engine and
// notification pipeline only ever touch players through these interfaces.
package platform

import (
	"time"

	"github.com/google/uuid"
)

// PlayerInfo is a snapshot of one online session.
type PlayerInfo struct {
	UUID   uuid.UUID
	Name   string
	IP     string
	Joined time.Time
}

// SessionDuration returns how long the session has been online, for the
// panel's sync snapshot.
func (i PlayerInfo) SessionDuration(now time.Time) int64 {
	return now.Sub(i.Joined).Milliseconds()
}

// Session is a live player session. Implementations must dispatch any
// session mutation onto the execution context the hosting server requires;
// callers may invoke these methods from arbitrary goroutines.
type Session interface {
	UUID() uuid.UUID
	Name() string

	// Message delivers a plain chat message to the player.
	Message(message string)
	// Kick removes the player from the server with a formatted reason.
	Kick(reason string)
}

// Platform is the hosting server the enforcement client is embedded in.
type Platform interface {
	// OnlinePlayers snapshots every online session.
	OnlinePlayers() []PlayerInfo
	// Player looks up a live session by UUID. The second return value is
	// false when the player is not online.
	Player(id uuid.UUID) (Session, bool)

	// Broadcast sends a message to every online player.
	Broadcast(message string)
	// BroadcastStaff sends a message to online staff only.
	BroadcastStaff(message string)

	// Version returns the server software version reported to the panel.
	Version() string
	// MaxPlayers returns the configured player cap.
	MaxPlayers() int
}
