package locator

import (
	"time"

	"github.com/benmeehan/locator-agent/pkg/location"
)

// DefaultOverallTimeout bounds a lookup when no timeout is configured.
const DefaultOverallTimeout = 15 * time.Second

// Config holds the per-lookup settings.
type Config struct {
	// PrimaryTimeout starts the fallback if the primary produced nothing in
	// this time. Zero disables it.
	PrimaryTimeout time.Duration
	// OverallTimeout bounds the whole lookup.
	OverallTimeout time.Duration
	// RequireFinePermission fails the lookup up front when the permission check denies it.
	RequireFinePermission bool
}

// DefaultConfig returns the settings used by the application bridge.
func DefaultConfig() Config {
	return Config{
		OverallTimeout:        DefaultOverallTimeout,
		RequireFinePermission: true,
	}
}

func (c Config) withDefaults() Config {
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = DefaultOverallTimeout
	}
	if c.PrimaryTimeout < 0 {
		c.PrimaryTimeout = 0
	}
	return c
}

var (
	primaryRequest = location.Request{
		Priority:        location.PriorityHighAccuracy,
		Interval:        1000 * time.Millisecond,
		FastestInterval: 500 * time.Millisecond,
		NumUpdates:      1,
	}

	fallbackRequest = location.Request{
		Priority:   location.PriorityLowPower,
		Interval:   1000 * time.Millisecond,
		NumUpdates: 1,
	}
)
