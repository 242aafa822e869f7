package punishment

// ModificationType ...
type ModificationType string

const (
	ModificationDurationChange ModificationType = "DURATION_CHANGE"
	ModificationPardon         ModificationType = "PARDON"
)

// Modification is an append-only amendment to a punishment issued by the
// panel. A punishment is never edited in place; its effective state is
// resolved from the base fields plus the modification history.
type Modification struct {
	Type              ModificationType `json:"type"`
	Issued            int64            `json:"issued"`
	EffectiveDuration *int64           `json:"effectiveDuration,omitempty"`
}

// Punishment is the full punishment record as the panel stores it.
// Duration is in milliseconds; values <= 0 mean permanent. Started is nil
// while the punishment is queued and has not been enforced anywhere yet.
type Punishment struct {
	ID            string         `json:"id"`
	Issued        int64          `json:"issued"`
	Started       *int64         `json:"started,omitempty"`
	TypeOrdinal   int            `json:"type_ordinal"`
	Duration      int64          `json:"duration"`
	Reason        string         `json:"reason,omitempty"`
	Issuer        string         `json:"issuerName,omitempty"`
	Modifications []Modification `json:"modifications,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
}

// expiryOverride returns the explicit expiry timestamp from the data map,
// if the panel supplied one.
func (p *Punishment) expiryOverride() (int64, bool) {
	if p.Data == nil {
		return 0, false
	}
	switch v := p.Data["expires"].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// SimplePunishment is the reduced projection the panel sends inside sync
// deltas. Expiration of 0 means the punishment never expires.
type SimplePunishment struct {
	ID         string   `json:"id"`
	Category   Category `json:"type"`
	Started    bool     `json:"started"`
	Expiration int64    `json:"expiration"`
	Reason     string   `json:"reason,omitempty"`
	Issuer     string   `json:"issuerName,omitempty"`
}

// ActiveAt reports whether the simplified punishment is in force at the
// given unix-millisecond timestamp.
func (s *SimplePunishment) ActiveAt(nowMillis int64) bool {
	if !s.Started {
		return false
	}
	return s.Expiration == 0 || nowMillis < s.Expiration
}
