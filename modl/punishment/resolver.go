package punishment

import "time"

// EffectiveDuration resolves the duration of a punishment from its base
// duration and modification history. Duration changes replace the running
// value outright, so the latest change in the stored order wins; changes are
// never summed. The second return value is true when the resolved duration
// means the punishment is permanent.
func EffectiveDuration(p *Punishment) (time.Duration, bool) {
	millis := p.Duration
	for _, m := range p.Modifications {
		if m.Type == ModificationDurationChange && m.EffectiveDuration != nil {
			millis = *m.EffectiveDuration
		}
	}
	if millis <= 0 {
		return 0, true
	}
	return time.Duration(millis) * time.Millisecond, false
}

// IsActive reports whether a punishment is in force at the given time. A
// pardoned punishment is never active, whatever its duration math says. A
// ban or mute that has not started yet is queued, not active. Everything
// else is active until its effective duration elapses.
func IsActive(p *Punishment, reg *TypeRegistry, now time.Time) bool {
	for _, m := range p.Modifications {
		if m.Type == ModificationPardon {
			return false
		}
	}

	category := reg.CategoryOf(p.TypeOrdinal)
	if (category == CategoryBan || category == CategoryMute) && p.Started == nil {
		return false
	}

	if expiry, ok := p.expiryOverride(); ok {
		return now.UnixMilli() < expiry
	}

	duration, permanent := EffectiveDuration(p)
	if permanent {
		return true
	}

	started := p.Issued
	if p.Started != nil {
		started = *p.Started
	}
	return now.Before(time.UnixMilli(started).Add(duration))
}

// Record holds a player's cached punishment in whichever representation the
// panel delivered it: the simplified sync projection, the full record, or
// both. Readers go through ActiveAt so resolution logic is never duplicated
// per call site; the simplified form is preferred when both are present.
type Record struct {
	Simple *SimplePunishment
	Full   *Punishment
}

// ID returns the punishment id of whichever representation is present.
func (r Record) ID() string {
	if r.Simple != nil {
		return r.Simple.ID
	}
	if r.Full != nil {
		return r.Full.ID
	}
	return ""
}

// Empty reports whether the record holds no punishment at all.
func (r Record) Empty() bool {
	return r.Simple == nil && r.Full == nil
}

// ActiveAt reports whether the record's punishment is in force at the given
// time.
func (r Record) ActiveAt(reg *TypeRegistry, now time.Time) bool {
	if r.Simple != nil {
		return r.Simple.ActiveAt(now.UnixMilli())
	}
	if r.Full != nil {
		return IsActive(r.Full, reg, now)
	}
	return false
}
