package st

import (
	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/bus"
	"github.com/sarchlab/avalonbus/sim/id"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
	"github.com/sarchlab/avalonbus/tracing"
)

// An ErrorCallback is called with the value of the error signal when a word
// is received with a non-zero error.
type ErrorCallback func(value uint64)

// PacketMonitor rebuilds the packets sent on an Avalon-ST interface with
// startofpacket/endofpacket framing.
//
// A malformed sequence stops the monitor with a ProtocolError. The monitor
// returns the same error from every later cycle.
type PacketMonitor struct {
	bus.MonitorBase

	valid         *signal.Signal
	data          *signal.Signal
	ready         *signal.Signal
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
	invalidTimeout int
	reportChannel  bool
	errorCallback  ErrorCallback

	inPacket      bool
	buf           []byte
	channelSet    bool
	channelValue  int
	invalidCycles int
	taskID        string

	lastChannel    int
	hasLastChannel bool

	err error
}

// InPacket tells if a packet is open.
func (m *PacketMonitor) InPacket() bool {
	return m.inPacket
}

// LastChannel returns the channel of the last delivered packet. ok is false
// if no packet was delivered or the interface has no channel signal.
func (m *PacketMonitor) LastChannel() (channel int, ok bool) {
	return m.lastChannel, m.hasLastChannel
}

// Err returns the protocol error that stopped the monitor, if any.
func (m *PacketMonitor) Err() error {
	return m.err
}

// OnEdge does nothing. Monitors only sample.
func (m *PacketMonitor) OnEdge(timing.VTimeInCycle) error {
	return nil
}

// OnSample advances the packet state machine by one cycle.
func (m *PacketMonitor) OnSample(cycle timing.VTimeInCycle) error {
	if m.err != nil {
		return m.err
	}

	if m.InReset() {
		m.clear()
		return nil
	}

	if !accepted(m.valid, m.ready) {
		return m.idleCycle(cycle)
	}

	m.invalidCycles = 0

	err := m.receive(cycle)
	if err != nil {
		return m.fail(err)
	}

	return nil
}

func (m *PacketMonitor) idleCycle(cycle timing.VTimeInCycle) error {
	if !m.inPacket {
		return nil
	}

	m.invalidCycles++

	if m.invalidTimeout > 0 && m.invalidCycles >= m.invalidTimeout {
		return m.fail(m.protocolError(cycle,
			"in-packet timeout, no valid data for %d cycles", m.invalidCycles))
	}

	return nil
}

func (m *PacketMonitor) receive(cycle timing.VTimeInCycle) error {
	if m.startOfPacket.IsHigh() {
		if len(m.buf) > 0 {
			return m.protocolError(cycle, "duplicate start of packet")
		}

		m.buf = nil
		m.inPacket = true
		m.taskID = id.Generate()
		tracing.StartTask(m.taskID, "", m,
			tracing.KindRequestIn, "packet", nil)
	}

	if !m.inPacket {
		return m.protocolError(cycle, "data transfer outside of a packet")
	}

	endOfPacket := m.endOfPacket.IsHigh()

	data, err := m.wordBytes(cycle, endOfPacket)
	if err != nil {
		return err
	}

	m.buf = append(m.buf, data...)

	err = m.checkChannel(cycle)
	if err != nil {
		return err
	}

	err = m.checkError(cycle)
	if err != nil {
		return err
	}

	if endOfPacket {
		m.deliverPacket(cycle)
	}

	return nil
}

func (m *PacketMonitor) wordBytes(
	cycle timing.VTimeInCycle,
	endOfPacket bool,
) ([]byte, error) {
	w := m.data.Value()
	empty := uint64(0)

	if endOfPacket && m.useEmpty {
		var err error

		empty, err = m.empty.Uint64()
		if err != nil {
			return nil, m.protocolError(cycle,
				"unresolvable empty count %s", m.empty.Value())
		}

		if empty >= uint64(m.symbolsPerWord) {
			return nil, m.protocolError(cycle,
				"empty count %d in a word of %d symbols",
				empty, m.symbolsPerWord)
		}

		if empty > 0 {
			w = w.Truncate(int(empty)*m.bitsPerSymbol, m.highFirst)
		}
	}

	data, err := w.Bytes(m.highFirst)
	if err != nil {
		return nil, m.protocolError(cycle,
			"value %s is unresolvable with an empty count of %d",
			m.data.Value(), empty)
	}

	return data, nil
}

func (m *PacketMonitor) checkChannel(cycle timing.VTimeInCycle) error {
	if m.channel == nil {
		return nil
	}

	v, err := m.channel.Uint64()
	if err != nil {
		return m.protocolError(cycle,
			"unresolvable channel %s", m.channel.Value())
	}

	if !m.channelSet {
		if v > uint64(m.maxChannel) {
			return m.protocolError(cycle,
				"channel %d is greater than maxChannel %d", v, m.maxChannel)
		}

		m.channelSet = true
		m.channelValue = int(v)

		return nil
	}

	if v != uint64(m.channelValue) {
		return m.protocolError(cycle,
			"channel changed from %d to %d during a packet",
			m.channelValue, v)
	}

	return nil
}

func (m *PacketMonitor) checkError(cycle timing.VTimeInCycle) error {
	if m.errorSignal == nil {
		return nil
	}

	v, err := m.errorSignal.Uint64()
	if err != nil {
		return m.protocolError(cycle,
			"unresolvable error %s", m.errorSignal.Value())
	}

	if v == 0 {
		return nil
	}

	avalon.Report(m, uint64(cycle), avalon.SeverityInfo,
		"received an error %d", v)

	if m.errorCallback != nil {
		m.errorCallback(v)
	}

	return nil
}

func (m *PacketMonitor) deliverPacket(cycle timing.VTimeInCycle) {
	pkt := m.buf

	avalon.Report(m, uint64(cycle), avalon.SeverityDebug,
		"received a packet of %d bytes", len(pkt))

	m.lastChannel = m.channelValue
	m.hasLastChannel = m.channel != nil

	var item interface{} = pkt
	if m.reportChannel {
		item = ChannelPacket{Data: pkt, Channel: m.channelValue}
	}

	m.clear()
	m.Deliver(cycle, avalon.HookPosPacketReceived, item)
}

// fail stops the monitor for good. The open packet is ended without being
// delivered.
func (m *PacketMonitor) fail(err error) error {
	m.endTask()
	m.err = err

	return err
}

func (m *PacketMonitor) endTask() {
	if m.taskID != "" {
		tracing.EndTask(m.taskID, m)
		m.taskID = ""
	}
}

// clear forgets the open packet.
func (m *PacketMonitor) clear() {
	m.endTask()

	m.inPacket = false
	m.buf = nil
	m.channelSet = false
	m.channelValue = 0
	m.invalidCycles = 0
}

func (m *PacketMonitor) protocolError(
	cycle timing.VTimeInCycle,
	format string,
	args ...interface{},
) error {
	return avalon.NewProtocolError(m.Name(), uint64(cycle), format, args...)
}
