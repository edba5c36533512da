package mocks

import (
	"strconv"
	"sync"

	"github.com/benmeehan/locator-agent/pkg/locator"
)

// FakeLookup is a scripted LocationLookup. Outcomes are delivered asynchronously
// unless Hold is set, in which case they wait for Release.
type FakeLookup struct {
	mu      sync.Mutex
	outcome locator.Outcome
	avail   bool
	hold    bool
	configs []locator.Config
	held    []heldLookup
	calls   int
}

type heldLookup struct {
	id      string
	deliver func(locator.Outcome)
}

// NewFakeLookup returns a fake that answers every lookup with outcome.
func NewFakeLookup(outcome locator.Outcome, available bool) *FakeLookup {
	return &FakeLookup{outcome: outcome, avail: available}
}

// Hold makes later lookups wait for Release.
func (f *FakeLookup) Hold() {
	f.mu.Lock()
	f.hold = true
	f.mu.Unlock()
}

// Release delivers the scripted outcome to every held lookup.
func (f *FakeLookup) Release() {
	f.mu.Lock()
	held := f.held
	f.held = nil
	f.hold = false
	outcome := f.outcome
	f.mu.Unlock()

	for _, h := range held {
		o := outcome
		o.RequestID = h.id
		h.deliver(o)
	}
}

func (f *FakeLookup) Lookup(cfg locator.Config, deliver func(locator.Outcome)) string {
	f.mu.Lock()
	f.calls++
	id := "lookup-" + strconv.Itoa(f.calls)
	f.configs = append(f.configs, cfg)
	if f.hold {
		f.held = append(f.held, heldLookup{id: id, deliver: deliver})
		f.mu.Unlock()
		return id
	}
	o := f.outcome
	f.mu.Unlock()

	o.RequestID = id
	go deliver(o)
	return id
}

func (f *FakeLookup) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.avail
}

// Calls returns the number of lookups started.
func (f *FakeLookup) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Configs returns the configs passed to Lookup.
func (f *FakeLookup) Configs() []locator.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]locator.Config(nil), f.configs...)
}
