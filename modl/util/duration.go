package util

import (
	"fmt"
	"strings"
	"time"
)

// Duration is a time.Duration that marshals to and from human-readable
// strings in config files.
type Duration time.Duration

// UnmarshalText ...
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: cannot parse %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText ...
func (d *Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(*d).String()), nil
}

// FormatExpiry renders a unix-millisecond expiry timestamp for player
// facing messages. Zero means the punishment never expires.
func FormatExpiry(millis int64) string {
	if millis <= 0 {
		return "never"
	}
	return time.UnixMilli(millis).UTC().Format("2006-01-02 15:04 MST")
}
