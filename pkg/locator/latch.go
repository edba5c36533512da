package locator

import "sync/atomic"

// Latch is a one-way unsettled→settled flag. The zero value is unsettled.
type Latch struct {
	settled atomic.Bool
}

// TrySettle settles the latch. It returns true for exactly one caller.
func (l *Latch) TrySettle() bool {
	return l.settled.CompareAndSwap(false, true)
}

// Settled reports whether the latch has been settled.
func (l *Latch) Settled() bool {
	return l.settled.Load()
}
