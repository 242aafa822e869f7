// Package modl embeds the panel enforcement client into a Dragonfly
// server: it wires the caches, the sync engine, the login gate and the
// notification pipeline together and owns their lifecycle.
package modl

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/df-mc/dragonfly/server"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/protocol"
	"golang.org/x/text/language"

	"github.com/modl-gg/minecraft-sub001/modl/cache"
	"github.com/modl-gg/minecraft-sub001/modl/executor"
	"github.com/modl-gg/minecraft-sub001/modl/gate"
	"github.com/modl-gg/minecraft-sub001/modl/locale"
	"github.com/modl-gg/minecraft-sub001/modl/logincache"
	"github.com/modl-gg/minecraft-sub001/modl/notify"
	"github.com/modl-gg/minecraft-sub001/modl/panel"
	"github.com/modl-gg/minecraft-sub001/modl/platform/dragonfly"
	"github.com/modl-gg/minecraft-sub001/modl/punishment"
	msync "github.com/modl-gg/minecraft-sub001/modl/sync"
)

// Modl represents the main server struct. It holds configuration, logging,
// and manages the enforcement client's components.
type Modl struct {
	log  *slog.Logger
	conf Config

	srv      *server.Server
	platform *dragonfly.Platform

	registry *punishment.TypeRegistry
	states   *cache.StateCache
	logins   *logincache.Cache
	exec     *executor.Executor
	pipeline *notify.Pipeline
	engine   *msync.Engine
}

// NewModl creates a new instance of Modl.
func NewModl(log *slog.Logger, conf Config) (*Modl, error) {
	if conf.Modl.SentryDsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: conf.Modl.SentryDsn}); err != nil {
			log.Warn("failed to initialise sentry", "error", err)
		}
	}

	if conf.Modl.LocalePath != "" {
		if err := locale.Register(language.English, conf.Modl.LocalePath); err != nil {
			// Built-in messages cover everything; overrides are optional.
			log.Debug("no locale overrides loaded", "error", err)
		}
	}

	m := &Modl{
		log:  log,
		conf: conf,
	}

	m.registry = punishment.NewTypeRegistry()
	m.states = cache.NewStateCache(log, m.registry)
	m.logins = logincache.NewCache(log, time.Duration(conf.Panel.LoginCacheTTL))
	m.exec = executor.New(log, executor.DefaultWorkers)

	client := panel.NewClient(log, conf.Panel.URL, conf.Panel.APIKey)

	m.platform = dragonfly.New(log, protocol.CurrentVersion, conf.UserConfig.Players.MaxCount,
		func(id uuid.UUID) bool {
			_, ok := m.states.StaffMember(id)
			return ok
		})

	m.pipeline = notify.NewPipeline(log, m.states, m.platform, &panelAcknowledger{
		log:    log,
		client: client,
		exec:   m.exec,
	})

	loginGate := gate.NewGate(log, client, m.logins, m.states, m.exec)

	m.engine = msync.NewEngine(log, client, m.platform, m.states, m.registry,
		m.pipeline, &migrationHandoff{log: log}, m.exec,
		time.Duration(conf.Panel.PollingRate)*time.Second)

	c, err := conf.UserConfig.Config(log)
	if err != nil {
		return nil, err
	}
	c.Allower = dragonfly.NewAllower(log, loginGate)

	m.srv = c.New()
	m.srv.CloseOnProgramEnd()

	m.setupDiagnostics()

	return m, nil
}

// Start begins the server's main loop, accepting connections and handling
// players. It blocks until the server is closed.
func (m *Modl) Start() {
	m.srv.Listen()
	m.engine.Start()

	for p := range m.srv.Accept() {
		m.accept(p)
	}

	m.Close()
}

// accept handles a new player joining the server.
func (m *Modl) accept(p *player.Player) {
	m.platform.Track(p)
	p.Handle(dragonfly.NewPlayerHandler(m.platform, m.states))

	// Anything the panel queued while the player was away goes out now,
	// staggered so it does not collide with the join screen.
	m.pipeline.Deliver(p.UUID())
}

// setupDiagnostics exposes the sync cursor and cache counters on an
// authenticated local endpoint.
func (m *Modl) setupDiagnostics() {
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()
	router.Use(func(c *gin.Context) {
		if c.GetHeader("authorization") != m.conf.Service.DiagnosticsKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	})
	router.GET("/sync/status", func(c *gin.Context) {
		cursor := m.engine.Cursor()
		c.JSON(http.StatusOK, gin.H{
			"lastSyncTimestamp":       cursor.LastSync(),
			"staffPermissionsVersion": cursor.StaffVersion(),
			"punishmentTypesVersion":  cursor.TypesVersion(),
			"cachedPlayers":           m.states.PlayerCount(),
			"onlinePlayers":           len(m.platform.OnlinePlayers()),
		})
	})

	go func() {
		if err := router.Run(m.conf.Service.GinAddress); err != nil {
			m.log.Error("diagnostics endpoint failed", "error", err)
		}
	}()
}

// Close closes the server and all its associated services.
func (m *Modl) Close() {
	m.log.Debug("Stopping Sync Engine...")
	m.engine.Stop()
	m.log.Debug("Stopping Notification Pipeline...")
	m.pipeline.Stop()
	m.log.Debug("Stopping Login Cache...")
	m.logins.Stop()
	m.log.Debug("Stopping Executor...")
	m.exec.Stop(5 * time.Second)

	sentry.Flush(2 * time.Second)
}

// panelAcknowledger forwards batched notification acknowledgments to the
// panel off the delivery goroutine.
type panelAcknowledger struct {
	log    *slog.Logger
	client *panel.Client
	exec   *executor.Executor
}

// AcknowledgeDelivered ...
func (a *panelAcknowledger) AcknowledgeDelivered(id uuid.UUID, notificationIDs []string) {
	ack := &panel.NotificationAck{
		PlayerUUID:      id,
		NotificationIDs: notificationIDs,
		AcknowledgedAt:  time.Now().UnixMilli(),
	}
	a.exec.Execute(func() {
		if err := a.client.AcknowledgeNotifications(context.Background(), ack); err != nil {
			a.log.Warn("failed to acknowledge notifications", "player", id, "error", err)
		}
	})
}

// migrationHandoff receives migration directives from the sync engine. The
// export and upload mechanics live outside this client; the handoff only
// records that the directive arrived.
type migrationHandoff struct {
	log *slog.Logger
}

// Trigger ...
func (h *migrationHandoff) Trigger(taskID, taskType string) {
	h.log.Info("migration task received", "task", taskID, "type", taskType)
}
