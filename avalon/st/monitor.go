package st

import (
	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/bus"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
)

// Monitor watches an Avalon-ST interface and delivers every accepted word as
// bytes, in the configured symbol order.
type Monitor struct {
	bus.MonitorBase

	valid *signal.Signal
	data  *signal.Signal
	ready *signal.Signal

	highFirst bool
	err       error
}

// accepted tells if the sink takes the word on the bus in this cycle.
func accepted(valid, ready *signal.Signal) bool {
	if !valid.IsHigh() {
		return false
	}

	return ready == nil || ready.IsHigh()
}

// OnEdge does nothing. Monitors only sample.
func (m *Monitor) OnEdge(timing.VTimeInCycle) error {
	return nil
}

// OnSample delivers the word if one is accepted.
func (m *Monitor) OnSample(cycle timing.VTimeInCycle) error {
	if m.err != nil {
		return m.err
	}

	if !accepted(m.valid, m.ready) {
		return nil
	}

	data, err := m.data.Value().Bytes(m.highFirst)
	if err != nil {
		m.err = avalon.NewProtocolError(m.Name(), uint64(cycle),
			"accepted an unresolvable word %s", m.data.Value())

		return m.err
	}

	m.Deliver(cycle, avalon.HookPosWordReceived, data)

	return nil
}
