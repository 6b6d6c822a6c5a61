// Package st provides the Avalon-ST components: drivers that send words and
// packets through the valid/ready handshake, and monitors that rebuild them
// from the bus.
package st

import (
	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/bus"
	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/sim/naming"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
)

// Driver sends single words on an Avalon-ST interface. Each word is held on
// the bus until the sink is ready, and valid drops for at least one edge
// between two synchronized sends.
type Driver struct {
	naming.NamedBase
	hooking.HookableBase

	sender

	highFirst bool
}

// IsBusy tells if a word is being sent or waits to be sent.
func (d *Driver) IsBusy() bool {
	return d.isBusy()
}

// SetThrottle replaces the generator that shapes the valid assertion.
func (d *Driver) SetThrottle(gen bus.OnOffGenerator) {
	d.throttle.SetGenerator(gen)
}

// Send drives a word. If sync is true, the word is driven from the next
// clock edge. Otherwise it is driven right away, unless the clock is in its
// sample phase. onDone is called once valid is released.
func (d *Driver) Send(value signal.Word, sync bool, onDone func()) error {
	if value.Width() != d.data.Width() {
		return avalon.NewValidationError(d.Name(),
			"cannot send a %d-bit word on a %d-bit bus",
			value.Width(), d.data.Width())
	}

	d.start(&job{
		what:   "word",
		sync:   sync,
		beats:  1,
		detail: value,
		init: func() {
			d.valid.SetUint64(0)
		},
		drive: func(int) bool {
			d.valid.SetUint64(1)
			d.data.Set(value)

			return true
		},
		blank: func() {
			d.data.SetUnknown()
		},
		onDone: onDone,
	})

	return nil
}

// SendBytes packs the bytes into a word in the configured symbol order and
// sends it.
func (d *Driver) SendBytes(data []byte, sync bool, onDone func()) error {
	if len(data)*8 > d.data.Width() {
		return avalon.NewValidationError(d.Name(),
			"%d bytes do not fit in a %d-bit word",
			len(data), d.data.Width())
	}

	return d.Send(signal.FromBytes(d.data.Width(), data, d.highFirst),
		sync, onDone)
}

// OnEdge drives the word in flight.
func (d *Driver) OnEdge(cycle timing.VTimeInCycle) error {
	d.onEdge(cycle)
	return nil
}

// OnSample waits for the sink to take the word.
func (d *Driver) OnSample(cycle timing.VTimeInCycle) error {
	d.onSample(cycle)
	return nil
}
