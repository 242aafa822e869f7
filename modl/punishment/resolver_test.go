package punishment_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modl-gg/minecraft-sub001/modl/punishment"
)

func millis(v int64) *int64 { return &v }

func TestEffectiveDurationLatestChangeWins(t *testing.T) {
	t.Parallel()

	p := &punishment.Punishment{
		ID:       "B1",
		Duration: int64(time.Hour / time.Millisecond),
		Modifications: []punishment.Modification{
			{Type: punishment.ModificationDurationChange, Issued: 1, EffectiveDuration: millis(int64(30 * time.Minute / time.Millisecond))},
			{Type: punishment.ModificationDurationChange, Issued: 2, EffectiveDuration: millis(int64(10 * time.Minute / time.Millisecond))},
		},
	}

	duration, permanent := punishment.EffectiveDuration(p)
	require.False(t, permanent)

	// The latest change replaces the duration outright; changes are never
	// summed.
	assert.Equal(t, 10*time.Minute, duration)
}

func TestEffectiveDurationPermanent(t *testing.T) {
	t.Parallel()

	p := &punishment.Punishment{ID: "B2", Duration: -1}
	_, permanent := punishment.EffectiveDuration(p)
	assert.True(t, permanent)

	// A duration change down to a non-positive value makes the punishment
	// permanent as well.
	p = &punishment.Punishment{
		ID:       "B3",
		Duration: 1000,
		Modifications: []punishment.Modification{
			{Type: punishment.ModificationDurationChange, EffectiveDuration: millis(0)},
		},
	}
	_, permanent = punishment.EffectiveDuration(p)
	assert.True(t, permanent)
}

func TestIsActivePardonAlwaysWins(t *testing.T) {
	t.Parallel()
	reg := punishment.NewTypeRegistry()

	now := time.Now()
	started := now.Add(-time.Minute).UnixMilli()
	p := &punishment.Punishment{
		ID:          "B4",
		TypeOrdinal: 2,
		Started:     &started,
		Duration:    -1, // permanent, window stays open forever
		Modifications: []punishment.Modification{
			{Type: punishment.ModificationPardon, Issued: now.UnixMilli()},
		},
	}

	assert.False(t, punishment.IsActive(p, reg, now))
	assert.False(t, punishment.IsActive(p, reg, now.Add(-time.Hour)))
	assert.False(t, punishment.IsActive(p, reg, now.Add(time.Hour)))
}

func TestIsActiveQueuedNeverActive(t *testing.T) {
	t.Parallel()
	reg := punishment.NewTypeRegistry()

	for _, ordinal := range []int{1, 2, 7} { // mute and ban family
		p := &punishment.Punishment{ID: "B5", TypeOrdinal: ordinal, Duration: -1}
		assert.False(t, punishment.IsActive(p, reg, time.Now()), "ordinal %d", ordinal)
	}
}

func TestIsActiveExpiry(t *testing.T) {
	t.Parallel()
	reg := punishment.NewTypeRegistry()

	now := time.Now()
	started := now.Add(-time.Hour).UnixMilli()
	p := &punishment.Punishment{
		ID:          "B6",
		TypeOrdinal: 2,
		Started:     &started,
		Duration:    int64(2 * time.Hour / time.Millisecond),
	}

	assert.True(t, punishment.IsActive(p, reg, now))
	assert.False(t, punishment.IsActive(p, reg, now.Add(90*time.Minute)))
}

func TestRecordPrefersSimplifiedForm(t *testing.T) {
	t.Parallel()
	reg := punishment.NewTypeRegistry()
	now := time.Now()

	started := now.UnixMilli()
	record := punishment.Record{
		// Expired simplified form next to a full form that would still be
		// active: the simplified form decides.
		Simple: &punishment.SimplePunishment{ID: "B7", Category: punishment.CategoryBan, Started: true, Expiration: now.Add(-time.Minute).UnixMilli()},
		Full:   &punishment.Punishment{ID: "B7", TypeOrdinal: 2, Started: &started, Duration: -1},
	}

	assert.False(t, record.ActiveAt(reg, now))
	assert.Equal(t, "B7", record.ID())
}

func TestRegistryCatalogReplacement(t *testing.T) {
	t.Parallel()
	reg := punishment.NewTypeRegistry()

	require.Equal(t, punishment.CategoryKick, reg.CategoryOf(0))
	require.Equal(t, punishment.CategoryMute, reg.CategoryOf(1))
	require.Equal(t, punishment.CategoryBan, reg.CategoryOf(5))

	reg.ApplyCatalog([]punishment.TypeEntry{
		{Ordinal: 0, Name: "Kick"},
		{Ordinal: 1, Name: "Mute", IsMute: true},
		{Ordinal: 2, Name: "Ban", IsBan: true},
		{Ordinal: 6, Name: "Chat Abuse", IsMute: true},
	})

	assert.Equal(t, punishment.CategoryMute, reg.CategoryOf(6))
	// Ordinals missing from the catalog still classify as bans.
	assert.Equal(t, punishment.CategoryBan, reg.CategoryOf(42))
}
