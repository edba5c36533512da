package locator

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/benmeehan/locator-agent/pkg/location"
	"github.com/rs/zerolog"
)

// lookup is the state of one request. The latch is the only state shared
// between producers; subscriptions and timers belong to the run goroutine
// (or to start, before run begins).
type lookup struct {
	id      string
	cfg     Config
	source  location.Source
	clock   clock.Clock
	logger  zerolog.Logger
	deliver func(Outcome)

	latch   Latch
	outcome Outcome       // written once by the latch winner, before settled is closed
	settled chan struct{} // closed by the latch winner
	done    chan struct{} // closed when run has torn everything down

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	primary  *subscription
	fallback *subscription
	timers   []*clock.Timer
}

func newLookup(id string, cfg Config, source location.Source, clk clock.Clock, logger zerolog.Logger, deliver func(Outcome)) *lookup {
	return &lookup{
		id:      id,
		cfg:     cfg,
		source:  source,
		clock:   clk,
		logger:  logger,
		deliver: deliver,
		settled: make(chan struct{}),
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
}

func (l *lookup) start() {
	l.timers = append(l.timers, l.clock.AfterFunc(l.cfg.OverallTimeout, func() {
		l.settle(failure(Timeout, "location request timed out"), "timer")
	}))
	if l.cfg.PrimaryTimeout > 0 {
		l.timers = append(l.timers, l.clock.AfterFunc(l.cfg.PrimaryTimeout, func() {
			l.post(func() {
				if l.primary.active {
					l.logger.Info().Dur("primary_timeout", l.cfg.PrimaryTimeout).Msg("Primary provider silent, falling back")
				}
				l.primaryUnavailable()
			})
		}))
	}

	l.logger.Debug().Dur("overall_timeout", l.cfg.OverallTimeout).Msg("Requesting high accuracy location")
	l.primary = &subscription{name: "primary", source: l.source, handler: &primaryHandler{l: l}, logger: l.logger}
	if err := l.primary.subscribe(primaryRequest); err != nil {
		l.settle(failure(ProviderError, err.Error()), "primary")
	}

	go l.run()
}

// run executes queued subscription work until the lookup settles, then tears down and delivers.
func (l *lookup) run() {
	for {
		select {
		case <-l.wake:
			for _, fn := range l.drain() {
				if l.latch.Settled() {
					break
				}
				fn()
			}
		case <-l.settled:
			l.teardown()
			l.deliver(l.outcome)
			return
		}
	}
}

// post queues fn for the run goroutine. It never blocks, so it is safe from
// inside a source callback. Work posted after teardown is dropped.
func (l *lookup) post(fn func()) {
	l.mu.Lock()
	select {
	case <-l.done:
		l.mu.Unlock()
		return
	default:
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *lookup) drain() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.queue
	l.queue = nil
	return q
}

// settle records o if this caller wins the latch. Losers' outcomes are discarded.
func (l *lookup) settle(o Outcome, from string) bool {
	if !l.latch.TrySettle() {
		l.logger.Debug().Str("source", from).Msg("Discarding event for settled lookup")
		return false
	}

	o.RequestID = l.id
	l.outcome = o

	event := l.logger.Info().Str("source", from)
	if o.Success() {
		event.Float64("latitude", o.Fix.Latitude).
			Float64("longitude", o.Fix.Longitude).
			Float64("accuracy_m", o.Fix.AccuracyMeters).
			Msg("Location lookup settled")
	} else {
		event.Str("kind", o.Kind().String()).Err(o.Err).Msg("Location lookup failed")
	}

	close(l.settled)
	return true
}

func (l *lookup) teardown() {
	for _, t := range l.timers {
		t.Stop()
	}
	l.primary.cancel()
	l.fallback.cancel()

	l.mu.Lock()
	close(l.done)
	l.queue = nil
	l.mu.Unlock()
}

// primaryUnavailable drops the primary and, unless settled, starts the fallback once.
func (l *lookup) primaryUnavailable() {
	l.primary.cancel()
	if l.latch.Settled() || l.fallback != nil {
		return
	}

	l.logger.Warn().Msg("High accuracy location unavailable, trying low power location")
	l.fallback = &subscription{name: "fallback", source: l.source, handler: &fallbackHandler{l: l}, logger: l.logger}
	if err := l.fallback.subscribe(fallbackRequest); err != nil {
		l.settle(failure(LocationUnavailable, err.Error()), "fallback")
	}
}

// subscription tracks one source subscription so it is removed exactly once.
type subscription struct {
	name    string
	source  location.Source
	handler location.Callback
	logger  zerolog.Logger
	active  bool
}

// subscribe requests updates. Errors and panics raised by the source are returned as errors.
func (s *subscription) subscribe(req location.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s location request panicked: %v", s.name, r)
		}
	}()

	if err := s.source.RequestLocationUpdates(req, s.handler); err != nil {
		return fmt.Errorf("%s location request failed: %w", s.name, err)
	}
	s.active = true
	return nil
}

// cancel removes the subscription if it is active. Safe on a nil receiver.
func (s *subscription) cancel() {
	if s == nil || !s.active {
		return
	}
	s.active = false

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("subscription", s.name).Interface("panic", r).Msg("Removing location updates panicked")
		}
	}()
	if err := s.source.RemoveLocationUpdates(s.handler); err != nil {
		s.logger.Warn().Err(err).Str("subscription", s.name).Msg("Failed to remove location updates")
	}
}

type primaryHandler struct {
	l *lookup
}

func (h *primaryHandler) OnFix(fix location.Fix) {
	h.l.settle(success(fix), "primary")
	h.l.post(h.l.primary.cancel)
}

func (h *primaryHandler) OnAvailabilityChanged(available bool) {
	if available {
		return
	}
	h.l.post(h.l.primaryUnavailable)
}

func (h *primaryHandler) OnError(err error) {
	h.l.settle(failure(ProviderError, err.Error()), "primary")
	h.l.post(h.l.primary.cancel)
}

type fallbackHandler struct {
	l *lookup
}

func (h *fallbackHandler) OnFix(fix location.Fix) {
	h.l.settle(success(fix), "fallback")
	h.l.post(h.l.fallback.cancel)
}

func (h *fallbackHandler) OnAvailabilityChanged(bool) {}

func (h *fallbackHandler) OnError(err error) {
	h.l.settle(failure(LocationUnavailable, err.Error()), "fallback")
	h.l.post(h.l.fallback.cancel)
}
