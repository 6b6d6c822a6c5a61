package bus

import (
	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/sim/naming"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
)

// A Callback consumes a transaction reconstructed by a monitor.
type Callback func(item interface{})

// MonitorBase provides the delivery of reconstructed transactions and the
// reset detection shared by bus monitors.
type MonitorBase struct {
	naming.NamedBase
	hooking.HookableBase

	callbacks []Callback
	received  []interface{}

	reset          *signal.Signal
	resetActiveLow bool
}

// MakeMonitorBase creates a MonitorBase.
func MakeMonitorBase(name string) MonitorBase {
	return MonitorBase{NamedBase: naming.MakeNamedBase(name)}
}

// AddCallback registers a function that is called with every delivered
// transaction.
func (m *MonitorBase) AddCallback(cb Callback) {
	m.callbacks = append(m.callbacks, cb)
}

// SetReset sets the signal that holds the monitor in reset. An active-low
// reset holds the monitor while the signal is 0.
func (m *MonitorBase) SetReset(s *signal.Signal, activeLow bool) {
	m.reset = s
	m.resetActiveLow = activeLow
}

// InReset tells if the reset signal is asserted.
func (m *MonitorBase) InReset() bool {
	if m.reset == nil {
		return false
	}

	v := m.reset.Value()
	if !v.IsResolvable() {
		return false
	}

	if m.resetActiveLow {
		return !v.IsTrue()
	}

	return v.IsTrue()
}

// Deliver records a transaction, passes it to the callbacks and invokes the
// hooks at the given position.
func (m *MonitorBase) Deliver(
	cycle timing.VTimeInCycle,
	pos *hooking.HookPos,
	item interface{},
) {
	m.received = append(m.received, item)

	for _, cb := range m.callbacks {
		cb(item)
	}

	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    pos,
			Item:   item,
			Detail: cycle,
		})
	}
}

// Received returns the transactions delivered so far.
func (m *MonitorBase) Received() []interface{} {
	return m.received
}

// ClearReceived forgets the delivered transactions.
func (m *MonitorBase) ClearReceived() {
	m.received = nil
}
