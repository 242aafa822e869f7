package dragonfly

import (
	"github.com/df-mc/dragonfly/server/player"
	"github.com/google/uuid"

	"github.com/modl-gg/minecraft-sub001/modl/locale"
)

// MuteChecker answers whether a player currently has an active mute;
// satisfied by the state cache.
type MuteChecker interface {
	IsMuted(id uuid.UUID) bool
}

// PlayerHandler enforces mutes at the chat dispatch point and keeps the
// adapter's session table in step with quits.
type PlayerHandler struct {
	platform *Platform
	mutes    MuteChecker

	player.NopHandler
}

// NewPlayerHandler ...
func NewPlayerHandler(pf *Platform, mutes MuteChecker) *PlayerHandler {
	return &PlayerHandler{platform: pf, mutes: mutes}
}

// HandleChat cancels chat from muted players. The mute check runs against
// the local cache only; the game's chat path never waits on the panel.
func (h *PlayerHandler) HandleChat(ctx *player.Context, _ *string) {
	p := ctx.Val()
	if h.mutes.IsMuted(p.UUID()) {
		ctx.Cancel()
		p.Message(locale.Translate("chat.muted"))
	}
}

// HandleQuit ...
func (h *PlayerHandler) HandleQuit(p *player.Player) {
	h.platform.Forget(p.UUID())
}
