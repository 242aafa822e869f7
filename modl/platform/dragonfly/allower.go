package dragonfly

import (
	"log/slog"
	"net"

	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/protocol/login"

	"github.com/modl-gg/minecraft-sub001/modl/gate"
	"github.com/modl-gg/minecraft-sub001/modl/locale"
	"github.com/modl-gg/minecraft-sub001/modl/panel"
)

// Allower gates joins through the panel login check.
type Allower struct {
	log  *slog.Logger
	gate *gate.Gate
}

// NewAllower ...
func NewAllower(log *slog.Logger, g *gate.Gate) *Allower {
	return &Allower{log: log, gate: g}
}

// Allow starts the asynchronous panel check for the joining player and
// blocks on the gate's verdict. The hook itself is synchronous, so this is
// the one place the client waits on a remote call, bounded by the gate's
// timeout.
func (a *Allower) Allow(addr net.Addr, d login.IdentityData, c login.ClientData) (string, bool) {
	id, err := uuid.Parse(d.Identity)
	if err != nil {
		a.log.Warn("rejecting join with malformed identity", "identity", d.Identity)
		return locale.Translate("login.denied.error"), false
	}

	ip := addr.String()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	a.gate.Begin(panel.LoginRequest{
		PlayerUUID: id,
		Name:       d.DisplayName,
		IP:         ip,
		SkinHash:   c.SkinID,
	})

	decision := a.gate.Decide(id)
	return decision.Message, decision.Allow
}
