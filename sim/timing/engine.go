package timing

import "github.com/sarchlab/avalonbus/sim/hooking"

// TimeTeller tells the current cycle.
type TimeTeller interface {
	CurrentTime() VTimeInCycle
}

// EventScheduler queues events for later cycles.
type EventScheduler interface {
	TimeTeller
	Schedule(e Event)
}

// An Engine runs the events of a simulation in time order. Its hooks see
// every event before and after it is handled.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run handles events until none are left or a handler fails.
	Run() error

	// Pause holds the engine before its next event, and Continue releases
	// it. Both can be called from another goroutine, such as the monitor's.
	Pause()
	Continue()
}
