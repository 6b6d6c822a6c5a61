// Package bus provides the primitives that bus drivers and monitors are built
// on: a FIFO lock that serializes transactions, an on/off throttle for valid
// assertion, the delivery of reconstructed transactions, and logging hooks.
package bus

import "log"

// A Lock serializes the transactions of a driver. Waiters get the lock in the
// order in which they asked for it.
type Lock struct {
	held    bool
	waiters []func()
}

// Acquire runs fn with the lock held. If the lock is free, fn runs
// immediately. Otherwise, fn runs when the lock is handed over by Release.
func (l *Lock) Acquire(fn func()) {
	if !l.held {
		l.held = true
		fn()

		return
	}

	l.waiters = append(l.waiters, fn)
}

// Release hands the lock to the next waiter, or frees it if nobody waits.
func (l *Lock) Release() {
	if !l.held {
		log.Panic("releasing a lock that is not held")
	}

	if len(l.waiters) == 0 {
		l.held = false
		return
	}

	next := l.waiters[0]
	l.waiters = l.waiters[1:]
	next()
}

// Held tells if the lock is held.
func (l *Lock) Held() bool {
	return l.held
}

// NumWaiting returns the number of waiters.
func (l *Lock) NumWaiting() int {
	return len(l.waiters)
}
