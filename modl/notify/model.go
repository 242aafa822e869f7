package notify

import "time"

// TTL is how long a queued notification stays deliverable. Anything older
// is discarded instead of delivered.
const TTL = 24 * time.Hour

// Notification is a player-facing message queued by the panel for delivery
// the next time the target is reachable.
type Notification struct {
	ID      string         `json:"id"`
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Data    map[string]any `json:"data,omitempty"`
	Queued  int64          `json:"timestamp"`
}

// Expired reports whether the notification is past its delivery window at
// the given time.
func (n Notification) Expired(now time.Time) bool {
	return now.Sub(time.UnixMilli(n.Queued)) > TTL
}

// Link returns the deep link attached to the notification, if any.
func (n Notification) Link() (string, bool) {
	if n.Data == nil {
		return "", false
	}
	s, ok := n.Data["link"].(string)
	return s, ok && s != ""
}
