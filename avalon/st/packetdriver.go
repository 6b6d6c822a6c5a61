package st

import (
	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/bus"
	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/sim/naming"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
)

// PacketDriver sends packets on an Avalon-ST interface with
// startofpacket/endofpacket framing.
type PacketDriver struct {
	naming.NamedBase
	hooking.HookableBase

	sender

	startOfPacket *signal.Signal
	endOfPacket   *signal.Signal
	errorSignal   *signal.Signal
	channel       *signal.Signal
	empty         *signal.Signal

	highFirst      bool
	bitsPerSymbol  int
	symbolsPerWord int
	useEmpty       bool
	maxChannel     int
}

// IsBusy tells if a packet is being sent or waits to be sent.
func (d *PacketDriver) IsBusy() bool {
	return d.isBusy()
}

// SetThrottle replaces the generator that shapes the valid assertion.
func (d *PacketDriver) SetThrottle(gen bus.OnOffGenerator) {
	d.throttle.SetGenerator(gen)
}

// MaxChannel returns the largest channel that the driver accepts.
func (d *PacketDriver) MaxChannel() int {
	return d.maxChannel
}

// Send splits the payload into words and sends them as one packet. A nil
// channel drives channel 0 when the interface has a channel signal. The
// last word carries the number of unused symbols on the empty signal.
func (d *PacketDriver) Send(
	payload []byte,
	sync bool,
	channel *int,
	onDone func(),
) error {
	if d.bitsPerSymbol != 8 {
		return avalon.NewConfigurationError(d.Name(),
			"byte payloads need 8-bit symbols, the bus has %d-bit symbols",
			d.bitsPerSymbol)
	}

	if len(payload) == 0 {
		return avalon.NewValidationError(d.Name(), "empty packet")
	}

	err := d.checkChannel(channel)
	if err != nil {
		return err
	}

	payload = append([]byte(nil), payload...)
	sym := d.symbolsPerWord
	beats := (len(payload) + sym - 1) / sym

	d.start(&job{
		what:   "packet",
		sync:   sync,
		beats:  beats,
		detail: payload,
		init:   d.driveDefaults,
		drive: func(i int) bool {
			d.valid.SetUint64(1)
			d.driveChannel(channel)
			d.startOfPacket.SetUint64(boolToUint(i == 0))

			end := (i + 1) * sym
			if end > len(payload) {
				end = len(payload)
			}

			chunk := payload[i*sym : end]
			d.data.Set(signal.FromBytes(d.data.Width(), chunk, d.highFirst))

			if i == beats-1 {
				d.endOfPacket.SetUint64(1)

				if d.useEmpty {
					d.empty.SetUint64(uint64(sym - len(chunk)))
				}
			}

			return true
		},
		blank:  d.blank,
		onDone: onDone,
	})

	return nil
}

// SendBeats drives the beats as they are, one per cycle. The framing is up
// to the caller. The channel argument is ignored, since every beat carries
// its own channel.
func (d *PacketDriver) SendBeats(
	beats []Beat,
	sync bool,
	channel *int,
	onDone func(),
) error {
	if len(beats) == 0 {
		return avalon.NewValidationError(d.Name(), "no beat to send")
	}

	for i, b := range beats {
		err := d.checkBeat(i, b)
		if err != nil {
			return err
		}
	}

	if channel != nil {
		avalon.Report(d, uint64(d.clock.Cycle()), avalon.SeverityWarning,
			"ignoring channel %d, beats carry their own channel", *channel)
	}

	beats = append([]Beat(nil), beats...)

	d.start(&job{
		what:   "beats",
		sync:   sync,
		beats:  len(beats),
		detail: beats,
		init: func() {
			d.valid.SetUint64(0)
		},
		drive: func(i int) bool {
			return d.drivePrebuilt(beats[i])
		},
		blank:  d.blank,
		onDone: onDone,
	})

	return nil
}

func (d *PacketDriver) checkChannel(channel *int) error {
	if channel == nil {
		return nil
	}

	if d.channel == nil {
		return avalon.NewConfigurationError(d.Name(),
			"cannot send on channel %d without a channel signal", *channel)
	}

	if *channel < 0 || *channel > d.maxChannel {
		return avalon.NewValidationError(d.Name(),
			"channel %d is outside range 0-%d", *channel, d.maxChannel)
	}

	return nil
}

func (d *PacketDriver) checkBeat(i int, b Beat) error {
	if b.Idle {
		return nil
	}

	if b.Data.Width() != d.data.Width() {
		return avalon.NewValidationError(d.Name(),
			"beat %d is %d bits wide, the bus is %d bits wide",
			i, b.Data.Width(), d.data.Width())
	}

	switch {
	case b.Empty != 0 && d.empty == nil:
		return avalon.NewValidationError(d.Name(),
			"beat %d has an empty count but there is no empty signal", i)
	case b.Empty >= uint64(d.symbolsPerWord):
		return avalon.NewValidationError(d.Name(),
			"beat %d has an empty count of %d, a word has %d symbols",
			i, b.Empty, d.symbolsPerWord)
	case b.Channel != 0 && d.channel == nil:
		return avalon.NewValidationError(d.Name(),
			"beat %d has a channel but there is no channel signal", i)
	case b.Channel > uint64(d.maxChannel):
		return avalon.NewValidationError(d.Name(),
			"beat %d has channel %d, above the maximum of %d",
			i, b.Channel, d.maxChannel)
	case b.Error != 0 && d.errorSignal == nil:
		return avalon.NewValidationError(d.Name(),
			"beat %d has an error but there is no error signal", i)
	}

	return nil
}

func (d *PacketDriver) drivePrebuilt(b Beat) bool {
	if b.Idle {
		d.valid.SetUint64(0)
		return false
	}

	d.valid.SetUint64(1)
	d.data.Set(b.Data)
	d.startOfPacket.SetUint64(boolToUint(b.StartOfPacket))
	d.endOfPacket.SetUint64(boolToUint(b.EndOfPacket))

	if d.empty != nil {
		d.empty.SetUint64(b.Empty)
	}

	if d.channel != nil {
		d.channel.SetUint64(b.Channel)
	}

	if d.errorSignal != nil {
		d.errorSignal.SetUint64(b.Error)
	}

	return true
}

func (d *PacketDriver) driveDefaults() {
	if d.useEmpty {
		d.empty.SetUint64(0)
	}

	d.startOfPacket.SetUint64(0)
	d.endOfPacket.SetUint64(0)
	d.valid.SetUint64(0)

	if d.errorSignal != nil {
		d.errorSignal.SetUint64(0)
	}

	if d.channel != nil {
		d.channel.SetUint64(0)
	}
}

func (d *PacketDriver) driveChannel(channel *int) {
	if d.channel == nil {
		return
	}

	if channel == nil {
		d.channel.SetUint64(0)
		return
	}

	d.channel.SetUint64(uint64(*channel))
}

func (d *PacketDriver) blank() {
	d.startOfPacket.SetUint64(0)
	d.endOfPacket.SetUint64(0)
	d.data.SetUnknown()

	if d.empty != nil {
		d.empty.SetUnknown()
	}

	if d.channel != nil {
		d.channel.SetUnknown()
	}
}

// reset drives the idle state of the bus.
func (d *PacketDriver) reset() {
	d.valid.SetUint64(0)
	d.data.SetUnknown()
	d.startOfPacket.SetUnknown()
	d.endOfPacket.SetUnknown()

	if d.empty != nil {
		d.empty.SetUnknown()
	}

	if d.channel != nil {
		d.channel.SetUnknown()
	}
}

// OnEdge drives the packet in flight.
func (d *PacketDriver) OnEdge(cycle timing.VTimeInCycle) error {
	d.onEdge(cycle)
	return nil
}

// OnSample waits for the sink to take the current word.
func (d *PacketDriver) OnSample(cycle timing.VTimeInCycle) error {
	d.onSample(cycle)
	return nil
}

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}

	return 0
}
