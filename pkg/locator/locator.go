// Package locator answers "where is the device now" with exactly one outcome
// per request. A lookup asks a high-accuracy source first, falls back to a
// low-power source when the first one reports it cannot see a position, and
// gives up after an overall timeout.
package locator

import (
	"github.com/benbjohnson/clock"
	"github.com/benmeehan/locator-agent/pkg/location"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PermissionChecker reports whether the agent holds fine location permission.
type PermissionChecker interface {
	FineLocationGranted() bool
}

// Locator runs single-flight lookups against a location source.
type Locator struct {
	source     location.Source
	permission PermissionChecker
	probe      func() bool
	available  bool
	clock      clock.Clock
	logger     zerolog.Logger
	newID      func() string
}

// Option configures a Locator.
type Option func(*Locator)

// WithPermission sets the permission check. Without one, permission is assumed.
func WithPermission(p PermissionChecker) Option {
	return func(l *Locator) { l.permission = p }
}

// WithProbe sets the capability probe. It is evaluated once, by New, after every option is applied.
func WithProbe(probe func() bool) Option {
	return func(l *Locator) { l.probe = probe }
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(l *Locator) { l.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// New creates a Locator over source.
func New(source location.Source, opts ...Option) *Locator {
	l := &Locator{
		source:    source,
		available: true,
		clock:     clock.New(),
		logger:    zerolog.Nop(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.probe != nil {
		l.available = l.probe()
		l.logger.Debug().Bool("available", l.available).Msg("Location capability probed")
	}
	return l
}

// Available reports the result of the capability probe.
func (l *Locator) Available() bool {
	return l.available
}

// Lookup starts a lookup and returns its correlation ID without blocking.
// deliver is called exactly once, from another goroutine, with the outcome.
// The outcome arrives no later than cfg.OverallTimeout plus source teardown time.
func (l *Locator) Lookup(cfg Config, deliver func(Outcome)) string {
	cfg = cfg.withDefaults()
	id := l.newID()
	logger := l.logger.With().Str("request_id", id).Logger()

	if !l.available {
		logger.Warn().Msg("Location lookup rejected, no provider available")
		l.deliverEarly(id, failure(NotAvailable, "location providers are not available"), deliver)
		return id
	}
	if cfg.RequireFinePermission && l.permission != nil && !l.permission.FineLocationGranted() {
		logger.Warn().Msg("Location lookup rejected, permission not granted")
		l.deliverEarly(id, failure(PermissionDenied, "location permission not granted"), deliver)
		return id
	}

	lk := newLookup(id, cfg, l.source, l.clock, logger, deliver)
	lk.start()
	return id
}

func (l *Locator) deliverEarly(id string, o Outcome, deliver func(Outcome)) {
	o.RequestID = id
	go deliver(o)
}
