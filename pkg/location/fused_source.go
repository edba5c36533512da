package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// ErrSourceClosed is returned when subscribing to a closed source.
var ErrSourceClosed = errors.New("location source is closed")

// FusedSource serves subscriptions from two providers: high-accuracy requests
// go to a GPS-class provider, low-power requests to a network provider.
// Every subscription is polled by its own goroutine.
//
// Callbacks are used as map keys and must be comparable (pointer receivers).
type FusedSource struct {
	highAccuracy Provider
	lowPower     Provider
	clock        clock.Clock
	logger       zerolog.Logger

	mu      sync.Mutex
	pollers map[Callback]*poller
	closed  bool
}

// NewFusedSource creates a source over the given providers. Either provider may be nil.
// Without a high-accuracy provider, high-accuracy subscriptions report the location
// as unavailable so callers can fall back to low power. Without a low-power provider,
// low-power requests are rejected.
func NewFusedSource(highAccuracy, lowPower Provider, clk clock.Clock, logger zerolog.Logger) *FusedSource {
	if clk == nil {
		clk = clock.New()
	}
	if highAccuracy == nil {
		highAccuracy = noFixProvider{}
	}
	return &FusedSource{
		highAccuracy: highAccuracy,
		lowPower:     lowPower,
		clock:        clk,
		logger:       logger,
		pollers:      make(map[Callback]*poller),
	}
}

// RequestLocationUpdates starts polling the provider matching req.Priority.
func (f *FusedSource) RequestLocationUpdates(req Request, cb Callback) error {
	provider := f.providerFor(req.Priority)
	if provider == nil {
		return fmt.Errorf("no provider configured for priority %s", req.Priority)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrSourceClosed
	}
	if _, exists := f.pollers[cb]; exists {
		return errors.New("callback is already subscribed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{
		provider: provider,
		req:      req,
		cb:       cb,
		clock:    f.clock,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	f.pollers[cb] = p

	go func() {
		p.run()
		f.forget(cb, p)
	}()

	f.logger.Debug().
		Str("priority", req.Priority.String()).
		Dur("interval", req.Interval).
		Int("num_updates", req.NumUpdates).
		Msg("Location updates requested")
	return nil
}

// RemoveLocationUpdates stops the subscription for cb. It does not wait for the
// poller to exit, so it is safe to call from inside a callback. Removing an
// unknown or finished subscription is a no-op.
func (f *FusedSource) RemoveLocationUpdates(cb Callback) error {
	f.mu.Lock()
	p, ok := f.pollers[cb]
	delete(f.pollers, cb)
	f.mu.Unlock()

	if ok {
		p.cancel()
	}
	return nil
}

// Close stops every poller, waits for them and closes both providers.
func (f *FusedSource) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	pollers := make([]*poller, 0, len(f.pollers))
	for cb, p := range f.pollers {
		pollers = append(pollers, p)
		delete(f.pollers, cb)
	}
	f.mu.Unlock()

	for _, p := range pollers {
		p.cancel()
		<-p.done
	}

	var errs []error
	for _, provider := range []Provider{f.highAccuracy, f.lowPower} {
		if provider == nil {
			continue
		}
		if err := provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FusedSource) providerFor(priority Priority) Provider {
	switch priority {
	case PriorityHighAccuracy:
		return f.highAccuracy
	case PriorityLowPower:
		return f.lowPower
	default:
		return nil
	}
}

// noFixProvider stands in for a missing GPS receiver.
type noFixProvider struct{}

func (noFixProvider) GetLocation(context.Context) (Fix, error) { return Fix{}, ErrNoFix }

func (noFixProvider) Close() error { return nil }

// forget drops a poller that ended on its own, unless it was already replaced or removed.
func (f *FusedSource) forget(cb Callback, p *poller) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if current, ok := f.pollers[cb]; ok && current == p {
		delete(f.pollers, cb)
	}
}

// poller drives a single subscription.
type poller struct {
	provider Provider
	req      Request
	cb       Callback
	clock    clock.Clock

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *poller) run() {
	defer close(p.done)
	defer p.cancel()

	delivered := 0
	available := true
	var lastFix time.Time

	for {
		fix, err := p.provider.GetLocation(p.ctx)
		if p.ctx.Err() != nil {
			return
		}

		switch {
		case err == nil:
			now := p.clock.Now()
			if !lastFix.IsZero() && now.Sub(lastFix) < p.req.FastestInterval {
				break
			}
			if !available {
				available = true
				p.cb.OnAvailabilityChanged(true)
			}
			if fix.TimestampMillis == 0 {
				fix.TimestampMillis = now.UnixMilli()
			}
			lastFix = now
			p.cb.OnFix(fix)
			delivered++
			if p.req.NumUpdates > 0 && delivered >= p.req.NumUpdates {
				return
			}
		case errors.Is(err, ErrNoFix):
			if available {
				available = false
				p.cb.OnAvailabilityChanged(false)
			}
		default:
			p.cb.OnError(err)
			return
		}

		select {
		case <-p.clock.After(p.req.Interval):
		case <-p.ctx.Done():
			return
		}
	}
}
