package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/text"

	"github.com/modl-gg/minecraft-sub001/modl/platform"
)

const (
	// initialDelay is waited before the first item of a sequence so the
	// messages do not collide with the join screen.
	initialDelay = 2 * time.Second

	// itemDelay spaces out consecutive notifications of one sequence.
	itemDelay = 1500 * time.Millisecond
)

// Store is the notification queue the pipeline drains, satisfied by the
// state cache.
type Store interface {
	Notifications(id uuid.UUID) []Notification
	RemoveNotifications(id uuid.UUID, ids ...string)
}

// Acknowledger receives the ids of delivered notifications, batched per
// sequence. The composition root points this at the panel.
type Acknowledger interface {
	AcknowledgeDelivered(id uuid.UUID, notificationIDs []string)
}

// Pipeline delivers queued notifications to online players, staggered so a
// reconnecting player is not flooded. One sequence runs per player at a
// time; a disconnect aborts the rest of the sequence and leaves the
// undelivered items queued for the next trigger.
type Pipeline struct {
	log      *slog.Logger
	store    Store
	platform platform.Platform
	ack      Acknowledger

	// Delays are fields so tests can shrink them.
	InitialDelay time.Duration
	ItemDelay    time.Duration

	mu     sync.Mutex
	active map[uuid.UUID]struct{}

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// NewPipeline ...
func NewPipeline(log *slog.Logger, store Store, pf platform.Platform, ack Acknowledger) *Pipeline {
	return &Pipeline{
		log:          log,
		store:        store,
		platform:     pf,
		ack:          ack,
		InitialDelay: initialDelay,
		ItemDelay:    itemDelay,
		active:       make(map[uuid.UUID]struct{}),
		closed:       make(chan struct{}),
	}
}

// Deliver starts a staggered delivery sequence for the player's queued
// notifications. It returns immediately; the sequence runs on its own
// goroutine. A player with a sequence already running is left alone.
func (pl *Pipeline) Deliver(id uuid.UUID) {
	pl.mu.Lock()
	if _, running := pl.active[id]; running {
		pl.mu.Unlock()
		return
	}
	pl.active[id] = struct{}{}
	pl.mu.Unlock()

	pl.wg.Add(1)
	go func() {
		defer pl.wg.Done()
		defer func() {
			pl.mu.Lock()
			delete(pl.active, id)
			pl.mu.Unlock()
		}()
		pl.sequence(id)
	}()
}

// DeliverNow attempts immediate delivery of a single notification,
// skipping the stagger but keeping the online-check, removal and
// acknowledgment steps. It reports whether the notification reached the
// player; an undeliverable notification is left for the caller to queue.
func (pl *Pipeline) DeliverNow(id uuid.UUID, n Notification) bool {
	if n.Expired(time.Now()) {
		return false
	}
	session, online := pl.platform.Player(id)
	if !online {
		return false
	}

	pl.send(session, n)
	pl.store.RemoveNotifications(id, n.ID)
	pl.ack.AcknowledgeDelivered(id, []string{n.ID})
	return true
}

// sequence runs one staggered delivery pass for the player.
func (pl *Pipeline) sequence(id uuid.UUID) {
	if !pl.wait(pl.InitialDelay) {
		return
	}

	queued := pl.store.Notifications(id)
	if len(queued) == 0 {
		return
	}

	var delivered, expired []string
	defer func() {
		// One batch removal and one batched acknowledgment per pass,
		// whether the pass completed or aborted.
		pl.store.RemoveNotifications(id, append(delivered, expired...)...)
		if len(delivered) > 0 {
			pl.ack.AcknowledgeDelivered(id, delivered)
		}
	}()

	for i, n := range queued {
		if n.Expired(time.Now()) {
			expired = append(expired, n.ID)
			continue
		}

		// The player may disconnect mid-sequence, so the session is
		// looked up again for every item. Anything not yet delivered
		// stays queued for the next trigger.
		session, online := pl.platform.Player(id)
		if !online {
			pl.log.Debug("aborting notification sequence, player went offline",
				"player", id, "remaining", len(queued)-i)
			return
		}

		pl.send(session, n)
		delivered = append(delivered, n.ID)

		if i < len(queued)-1 && !pl.wait(pl.ItemDelay) {
			return
		}
	}
}

// send formats and delivers one notification.
func (pl *Pipeline) send(session platform.Session, n Notification) {
	colour := "yellow"
	switch n.Type {
	case "warning", "appeal_rejected":
		colour = "red"
	case "appeal_accepted":
		colour = "green"
	}

	session.Message(text.Colourf("<%s>%s</%s>", colour, n.Message, colour))
	if link, ok := n.Link(); ok {
		session.Message(text.Colourf("<grey>%s</grey>", link))
	}
}

// wait sleeps for d unless the pipeline is stopped first.
func (pl *Pipeline) wait(d time.Duration) bool {
	select {
	case <-pl.closed:
		return false
	case <-time.After(d):
		return true
	}
}

// Stop aborts running sequences and waits briefly for them to wind down.
func (pl *Pipeline) Stop() {
	pl.closeOnce.Do(func() { close(pl.closed) })

	done := make(chan struct{})
	go func() {
		pl.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}
