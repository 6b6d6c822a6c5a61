package timing

import (
	"fmt"
	"sync"

	"github.com/sarchlab/avalonbus/sim/hooking"
)

// A SerialEngine handles events one at a time, in time order. Within a
// cycle, the primary events, such as clock edges, are handled before the
// secondary events, such as samples.
type SerialEngine struct {
	hooking.HookableBase

	primary   EventQueue
	secondary EventQueue

	// nowLock guards now and handled, which the monitor reads from another
	// goroutine.
	nowLock sync.RWMutex
	now     VTimeInCycle
	handled uint64

	// gate is held while an event is handled and while the engine is paused.
	gate      sync.Mutex
	pauseLock sync.Mutex
	paused    bool

	runLock sync.Mutex
}

// NewSerialEngine creates a SerialEngine without events.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		primary:   NewEventQueue(),
		secondary: NewEventQueue(),
	}
}

// Name returns the name of the engine.
func (e *SerialEngine) Name() string {
	return "SerialEngine"
}

// Schedule queues an event. Scheduling an event before the current cycle
// panics.
func (e *SerialEngine) Schedule(evt Event) {
	if now := e.CurrentTime(); evt.Time() < now {
		panic(fmt.Sprintf("event %T scheduled at cycle %d, which is before %d",
			evt, evt.Time(), now))
	}

	if evt.IsSecondary() {
		e.secondary.Push(evt)
		return
	}

	e.primary.Push(evt)
}

// Run handles the queued events until there are none left. It stops at the
// first handler error and returns it. The remaining events stay queued, so
// Run can be called again.
func (e *SerialEngine) Run() error {
	e.runLock.Lock()
	defer e.runLock.Unlock()

	for e.primary.Len() > 0 || e.secondary.Len() > 0 {
		err := e.handleNext()
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *SerialEngine) handleNext() error {
	e.gate.Lock()
	defer e.gate.Unlock()

	evt := e.popNext()

	e.nowLock.Lock()
	e.now = evt.Time()
	e.handled++
	e.nowLock.Unlock()

	ctx := hooking.HookCtx{Domain: e, Pos: HookPosBeforeEvent, Item: evt}
	e.InvokeHook(ctx)

	err := evt.Handler().Handle(evt)

	ctx.Pos = HookPosAfterEvent
	e.InvokeHook(ctx)

	return err
}

func (e *SerialEngine) popNext() Event {
	switch {
	case e.primary.Len() == 0:
		return e.secondary.Pop()
	case e.secondary.Len() == 0:
		return e.primary.Pop()
	case e.primary.Peek().Time() <= e.secondary.Peek().Time():
		return e.primary.Pop()
	default:
		return e.secondary.Pop()
	}
}

// Pause stops the engine before the next event. It blocks until the event
// being handled returns.
func (e *SerialEngine) Pause() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	if e.paused {
		return
	}

	e.gate.Lock()
	e.paused = true
}

// Continue lets a paused engine handle events again.
func (e *SerialEngine) Continue() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	if !e.paused {
		return
	}

	e.paused = false
	e.gate.Unlock()
}

// CurrentTime returns the cycle of the event being handled, or of the last
// event handled.
func (e *SerialEngine) CurrentTime() VTimeInCycle {
	e.nowLock.RLock()
	defer e.nowLock.RUnlock()

	return e.now
}

// Handled returns the number of events handled so far.
func (e *SerialEngine) Handled() uint64 {
	e.nowLock.RLock()
	defer e.nowLock.RUnlock()

	return e.handled
}
