// Package gate decides whether a connecting player may enter. The hosting
// server's login hook is synchronous, but the panel check is a network
// call, so the two run as separate stages bridged by the login cache: an
// asynchronous stage performs the check and parks the outcome, and the
// synchronous stage collects it with a bounded wait.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/modl-gg/minecraft-sub001/modl/executor"
	"github.com/modl-gg/minecraft-sub001/modl/locale"
	"github.com/modl-gg/minecraft-sub001/modl/logincache"
	"github.com/modl-gg/minecraft-sub001/modl/panel"
	"github.com/modl-gg/minecraft-sub001/modl/punishment"
	"github.com/modl-gg/minecraft-sub001/modl/util"
)

const (
	// decideTimeout bounds how long the synchronous stage waits for the
	// asynchronous check before denying entry.
	decideTimeout = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

// Checker performs the remote login check; satisfied by the panel client.
type Checker interface {
	CheckLogin(ctx context.Context, req *panel.LoginRequest) (*panel.LoginResult, error)
}

// MuteCache receives mutes discovered during login so chat enforcement
// holds from the first message; satisfied by the state cache.
type MuteCache interface {
	CacheMute(id uuid.UUID, record punishment.Record)
}

// Decision is the gate's verdict on a join attempt.
type Decision struct {
	Allow   bool
	Message string
}

// Gate runs the two login-check stages.
type Gate struct {
	log     *slog.Logger
	checker Checker
	cache   *logincache.Cache
	mutes   MuteCache
	exec    *executor.Executor

	// Timeout is a field so tests can shrink the bounded wait.
	Timeout time.Duration
}

// NewGate ...
func NewGate(log *slog.Logger, checker Checker, cache *logincache.Cache, mutes MuteCache, exec *executor.Executor) *Gate {
	return &Gate{
		log:     log,
		checker: checker,
		cache:   cache,
		mutes:   mutes,
		exec:    exec,
		Timeout: decideTimeout,
	}
}

// Begin starts the asynchronous login check for a connecting player and
// parks the outcome, or the error that prevented one, on the pre-login
// bridge. A check completed within the dedupe window is reused instead of
// asking the panel again.
func (g *Gate) Begin(req panel.LoginRequest) {
	g.exec.Execute(func() {
		if cached, ok := g.cache.CachedLoginResult(req.PlayerUUID); ok {
			g.cache.StorePreLoginResult(req.PlayerUUID, logincache.PreLoginResult{Result: cached})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), g.Timeout)
		defer cancel()

		result, err := g.checker.CheckLogin(ctx, &req)
		if err != nil {
			g.log.Warn("login check failed", "player", req.PlayerUUID, "error", err)
			g.cache.StorePreLoginResult(req.PlayerUUID, logincache.PreLoginResult{Err: err})
			return
		}

		g.cache.CacheLoginResult(req.PlayerUUID, result)
		g.cache.StorePreLoginResult(req.PlayerUUID, logincache.PreLoginResult{Result: result})
	})
}

// Decide collects the parked outcome for the player, waiting up to the
// bounded timeout for the asynchronous stage to finish. No outcome within
// the window means the panel could not be consulted, and an unverifiable
// login is denied rather than waved through: absence is not "no
// punishment".
func (g *Gate) Decide(id uuid.UUID) Decision {
	deadline := time.Now().Add(g.Timeout)
	t := time.NewTicker(pollInterval)
	defer t.Stop()

	for {
		if result, ok := g.cache.TakePreLoginResult(id); ok {
			return g.verdict(id, result)
		}
		if time.Now().After(deadline) {
			g.log.Warn("login check did not complete in time, denying entry", "player", id)
			return Decision{Message: locale.Translate("login.denied.error")}
		}
		<-t.C
	}
}

// verdict turns a completed check into a decision. Errors fail closed.
func (g *Gate) verdict(id uuid.UUID, result logincache.PreLoginResult) Decision {
	if result.Err != nil || result.Result == nil {
		return Decision{Message: locale.Translate("login.denied.error")}
	}

	if mute := result.Result.Muted; mute != nil && g.mutes != nil {
		g.mutes.CacheMute(id, punishment.Record{Simple: mute})
	}

	if ban := result.Result.Banned; ban != nil {
		reason := ban.Reason
		if reason == "" {
			reason = locale.Translate("punishment.no.reason")
		}
		g.log.Info("denied banned player", "player", id, "punishment", ban.ID)
		return Decision{Message: locale.Translate("login.denied.banned", reason, util.FormatExpiry(ban.Expiration))}
	}

	return Decision{Allow: true}
}
