// Package dragonfly adapts a Dragonfly server to the platform interfaces
// the enforcement client is written against.
package dragonfly

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/google/uuid"

	"github.com/modl-gg/minecraft-sub001/modl/platform"
)

// Platform implements platform.Platform over a running Dragonfly server.
// Sessions are tracked on accept and forgotten on quit; lookups never walk
// the world.
type Platform struct {
	log *slog.Logger

	version    string
	maxPlayers int
	staff      func(id uuid.UUID) bool

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// New creates the adapter. staff tells broadcasts who counts as staff;
// it is consulted per delivery so roster changes apply immediately.
func New(log *slog.Logger, version string, maxPlayers int, staff func(id uuid.UUID) bool) *Platform {
	return &Platform{
		log:        log,
		version:    version,
		maxPlayers: maxPlayers,
		staff:      staff,
		sessions:   make(map[uuid.UUID]*Session),
	}
}

// Track registers a freshly accepted player session.
func (d *Platform) Track(p *player.Player) {
	ip := p.Addr().String()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	s := &Session{
		id:     p.UUID(),
		name:   p.Name(),
		ip:     ip,
		joined: time.Now(),
		handle: p.H(),
	}

	d.mu.Lock()
	d.sessions[p.UUID()] = s
	d.mu.Unlock()
}

// Forget drops a session after the player quits.
func (d *Platform) Forget(id uuid.UUID) {
	d.mu.Lock()
	delete(d.sessions, id)
	d.mu.Unlock()
}

// OnlinePlayers ...
func (d *Platform) OnlinePlayers() []platform.PlayerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	infos := make([]platform.PlayerInfo, 0, len(d.sessions))
	for _, s := range d.sessions {
		infos = append(infos, platform.PlayerInfo{
			UUID:   s.id,
			Name:   s.name,
			IP:     s.ip,
			Joined: s.joined,
		})
	}
	return infos
}

// Player ...
func (d *Platform) Player(id uuid.UUID) (platform.Session, bool) {
	d.mu.RLock()
	s, ok := d.sessions[id]
	d.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s, true
}

// Broadcast ...
func (d *Platform) Broadcast(message string) {
	for _, s := range d.snapshot() {
		s.Message(message)
	}
}

// BroadcastStaff ...
func (d *Platform) BroadcastStaff(message string) {
	for _, s := range d.snapshot() {
		if d.staff != nil && d.staff(s.id) {
			s.Message(message)
		}
	}
}

func (d *Platform) snapshot() []*Session {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, s)
	}
	return out
}

// Version ...
func (d *Platform) Version() string { return d.version }

// MaxPlayers ...
func (d *Platform) MaxPlayers() int { return d.maxPlayers }

// Session wraps one tracked Dragonfly player. Message and Kick dispatch
// through the entity handle, so they are safe from any goroutine.
type Session struct {
	id     uuid.UUID
	name   string
	ip     string
	joined time.Time
	handle *world.EntityHandle
}

// UUID ...
func (s *Session) UUID() uuid.UUID { return s.id }

// Name ...
func (s *Session) Name() string { return s.name }

// Message ...
func (s *Session) Message(message string) {
	s.handle.ExecWorld(func(_ *world.Tx, e world.Entity) {
		if p, ok := e.(*player.Player); ok {
			p.Message(message)
		}
	})
}

// Kick ...
func (s *Session) Kick(reason string) {
	s.handle.ExecWorld(func(_ *world.Tx, e world.Entity) {
		if p, ok := e.(*player.Player); ok {
			p.Disconnect(reason)
		}
	})
}
