package location

import (
	"context"
	"errors"
	"time"
)

// ErrNoFix is returned by a provider that is reachable but currently has no position.
var ErrNoFix = errors.New("no location fix available")

// Provider interface defines the methods for location providers
type Provider interface {
	GetLocation(ctx context.Context) (Fix, error)
	Close() error
}

// Request describes a location subscription.
type Request struct {
	Priority        Priority
	Interval        time.Duration // Time between polls
	FastestInterval time.Duration // Lower bound between two delivered fixes
	NumUpdates      int           // Fixes to deliver before the subscription ends, 0 for unlimited
}

// Callback receives the events of a subscription. Implementations must be
// safe for use from the goroutine the source delivers on.
type Callback interface {
	OnFix(fix Fix)
	OnAvailabilityChanged(available bool)
	OnError(err error)
}

// Source hands out location subscriptions.
type Source interface {
	RequestLocationUpdates(req Request, cb Callback) error
	RemoveLocationUpdates(cb Callback) error
}
