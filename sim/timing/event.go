package timing

import "github.com/sarchlab/avalonbus/sim/hooking"

// VTimeInCycle is a point of simulated time, counted in clock cycles.
type VTimeInCycle uint64

// An Event is handled by its Handler at its cycle. Secondary events of a
// cycle are handled after all the primary events of that cycle, which is
// how a clock samples only after every edge is done.
type Event interface {
	Time() VTimeInCycle
	Handler() Handler
	IsSecondary() bool
}

// A Handler handles the events that it scheduled. A handler error stops the
// engine.
type Handler interface {
	Handle(e Event) error
}

// The engine invokes its hooks at these positions, with the event as the
// item.
var (
	HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}
	HookPosAfterEvent  = &hooking.HookPos{Name: "AfterEvent"}
)

// EventBase implements Event. Embed a pointer to it in concrete events.
type EventBase struct {
	time      VTimeInCycle
	handler   Handler
	secondary bool
}

// NewEventBase creates a primary event.
func NewEventBase(t VTimeInCycle, handler Handler) *EventBase {
	return &EventBase{time: t, handler: handler}
}

// NewSecondaryEventBase creates a secondary event.
func NewSecondaryEventBase(t VTimeInCycle, handler Handler) *EventBase {
	return &EventBase{time: t, handler: handler, secondary: true}
}

// Time returns the cycle of the event.
func (e EventBase) Time() VTimeInCycle {
	return e.time
}

// Handler returns the handler of the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary tells if the event waits for the primary events of its cycle.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}
