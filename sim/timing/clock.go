package timing

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/sim/naming"
)

// Phase tells which part of a clock cycle is being processed.
type Phase int

// The phases of a clock cycle. Every cycle has an edge phase, in which
// components drive signals, followed by a sample phase, in which components
// observe the signals driven in the same cycle.
const (
	PhaseIdle Phase = iota
	PhaseEdge
	PhaseSample
)

func (p Phase) String() string {
	switch p {
	case PhaseEdge:
		return "edge"
	case PhaseSample:
		return "sample"
	default:
		return "idle"
	}
}

// HookPosEdge is triggered after all the components have processed an edge.
var HookPosEdge = &hooking.HookPos{Name: "ClockEdge"}

// HookPosSample is triggered after all the components have sampled a cycle.
var HookPosSample = &hooking.HookPos{Name: "ClockSample"}

// ErrCycleLimit is returned by RunUntil when the condition does not become
// true within the allowed number of cycles.
var ErrCycleLimit = errors.New("cycle limit reached")

// A Clocked component is advanced by a Clock. OnEdge is called in the edge
// phase of every cycle and is the only place where the component may drive
// signals. OnSample is called after every component has seen the edge of the
// same cycle.
type Clocked interface {
	OnEdge(cycle VTimeInCycle) error
	OnSample(cycle VTimeInCycle) error
}

// A CycleTeller reports the position of the clock.
type CycleTeller interface {
	Cycle() VTimeInCycle
	Phase() Phase

	// NextEdge returns the cycle of the first edge that is not processed yet.
	NextEdge() VTimeInCycle

	// NextSample returns the cycle of the first sample phase that is not
	// processed yet.
	NextSample() VTimeInCycle
}

type edgeEvent struct {
	*EventBase
}

type sampleEvent struct {
	*EventBase
}

// A Clock delivers the edge and sample phases of every cycle to the
// registered components, in registration order.
type Clock struct {
	naming.NamedBase
	hooking.HookableBase

	engine     Engine
	components []Clocked

	phase     Phase
	cycle     VTimeInCycle
	nextCycle VTimeInCycle
	scheduled bool

	stopCond  func() bool
	stopAfter VTimeInCycle
	err       error
}

// NewClock creates a clock that schedules its cycles on the engine.
func NewClock(name string, engine Engine) *Clock {
	c := &Clock{
		NamedBase: naming.MakeNamedBase(name),
		engine:    engine,
	}

	return c
}

// Register adds a component to be advanced by the clock.
func (c *Clock) Register(comp Clocked) {
	c.components = append(c.components, comp)
}

// Components returns the registered components.
func (c *Clock) Components() []Clocked {
	return c.components
}

// Cycle returns the cycle that is being, or was last, processed.
func (c *Clock) Cycle() VTimeInCycle {
	return c.cycle
}

// Phase returns the phase that is being processed.
func (c *Clock) Phase() Phase {
	return c.phase
}

// NextEdge returns the cycle of the first edge that is not processed yet.
func (c *Clock) NextEdge() VTimeInCycle {
	if c.phase == PhaseIdle {
		return c.nextCycle
	}

	return c.cycle + 1
}

// NextSample returns the cycle of the first sample phase that is not
// processed yet. Signals driven now are visible from that sample phase on.
func (c *Clock) NextSample() VTimeInCycle {
	switch c.phase {
	case PhaseEdge:
		return c.cycle
	case PhaseSample:
		return c.cycle + 1
	default:
		return c.nextCycle
	}
}

// Err returns the error that stopped the clock, if any.
func (c *Clock) Err() error {
	return c.err
}

// Handle processes the edge and sample events of the clock.
func (c *Clock) Handle(e Event) error {
	switch e := e.(type) {
	case edgeEvent:
		return c.handleEdge(e)
	case sampleEvent:
		return c.handleSample(e)
	default:
		return errors.Errorf("clock %s cannot handle event %T", c.Name(), e)
	}
}

func (c *Clock) handleEdge(e edgeEvent) error {
	c.scheduled = false
	c.cycle = e.Time()
	c.phase = PhaseEdge

	for _, comp := range c.components {
		err := comp.OnEdge(c.cycle)
		if err != nil {
			return c.fail(err)
		}
	}

	c.invoke(HookPosEdge)

	c.engine.Schedule(sampleEvent{NewSecondaryEventBase(c.cycle, c)})

	return nil
}

func (c *Clock) handleSample(e sampleEvent) error {
	c.phase = PhaseSample

	for _, comp := range c.components {
		err := comp.OnSample(c.cycle)
		if err != nil {
			return c.fail(err)
		}
	}

	c.invoke(HookPosSample)

	c.phase = PhaseIdle
	c.nextCycle = c.cycle + 1

	if c.shouldStop() {
		return nil
	}

	c.scheduleNextEdge()

	return nil
}

func (c *Clock) fail(err error) error {
	c.phase = PhaseIdle
	c.err = err

	return err
}

func (c *Clock) invoke(pos *hooking.HookPos) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   c.cycle,
	})
}

func (c *Clock) shouldStop() bool {
	if c.stopCond != nil && c.stopCond() {
		return true
	}

	return c.cycle+1 >= c.stopAfter
}

func (c *Clock) scheduleNextEdge() {
	if c.scheduled {
		return
	}

	c.scheduled = true
	c.engine.Schedule(edgeEvent{NewEventBase(c.nextCycle, c)})
}

// RunCycles runs the simulation for n more cycles.
func (c *Clock) RunCycles(n uint64) error {
	if n == 0 {
		return nil
	}

	c.stopCond = nil
	c.stopAfter = c.nextCycle + VTimeInCycle(n)

	return c.run()
}

// RunUntil runs the simulation until cond returns true at the end of a cycle.
// It returns ErrCycleLimit if cond is still false after maxCycles cycles.
func (c *Clock) RunUntil(cond func() bool, maxCycles uint64) error {
	if cond() {
		return nil
	}

	c.stopCond = cond
	c.stopAfter = c.nextCycle + VTimeInCycle(maxCycles)

	err := c.run()
	c.stopCond = nil

	if err != nil {
		return err
	}

	if !cond() {
		return errors.Wrapf(ErrCycleLimit,
			"%s: condition not met within %d cycles", c.Name(), maxCycles)
	}

	return nil
}

func (c *Clock) run() error {
	if c.err != nil {
		return c.err
	}

	c.scheduleNextEdge()

	return c.engine.Run()
}
