package st

import (
	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/bus"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
)

// MonitorBuilder builds Monitor components.
type MonitorBuilder struct {
	clock   *timing.Clock
	iface   *signal.Interface
	options avalon.Options
}

// MakeMonitorBuilder returns a new MonitorBuilder.
func MakeMonitorBuilder() MonitorBuilder {
	return MonitorBuilder{}
}

// WithClock sets the clock that advances the monitor.
func (b MonitorBuilder) WithClock(clock *timing.Clock) MonitorBuilder {
	b.clock = clock
	return b
}

// WithInterface sets the signals that the monitor watches.
func (b MonitorBuilder) WithInterface(iface *signal.Interface) MonitorBuilder {
	b.iface = iface
	return b
}

// WithOptions sets the Avalon properties of the interface.
func (b MonitorBuilder) WithOptions(options avalon.Options) MonitorBuilder {
	b.options = options
	return b
}

// Build creates a Monitor and registers it with the clock.
func (b MonitorBuilder) Build(name string) (*Monitor, error) {
	if b.clock == nil {
		panic("monitor needs a clock")
	}

	cfg, err := avalon.Resolve(avalon.STTable(), b.options)
	if err != nil {
		return nil, avalon.NewConfigurationError(name, "%s", err)
	}

	binding, err := signal.Bind(b.iface,
		[]string{"valid", "data"}, []string{"ready"})
	if err != nil {
		return nil, avalon.NewConfigurationError(name, "%s", err)
	}

	if binding.Get("data").Width()%8 != 0 {
		return nil, avalon.NewConfigurationError(name,
			"data width %d is not a whole number of bytes",
			binding.Get("data").Width())
	}

	m := &Monitor{
		MonitorBase: bus.MakeMonitorBase(name),
		valid:       binding.Get("valid"),
		data:        binding.Get("data"),
		ready:       binding.Get("ready"),
		highFirst:   cfg.Bool(avalon.OptFirstSymbolInHighOrderBits),
	}

	b.clock.Register(m)

	return m, nil
}

// PacketMonitorBuilder builds PacketMonitor components.
type PacketMonitorBuilder struct {
	clock          *timing.Clock
	iface          *signal.Interface
	options        avalon.Options
	reportChannel  bool
	errorCallback  ErrorCallback
	reset          *signal.Signal
	resetActiveLow bool
}

// MakePacketMonitorBuilder returns a new PacketMonitorBuilder.
func MakePacketMonitorBuilder() PacketMonitorBuilder {
	return PacketMonitorBuilder{}
}

// WithClock sets the clock that advances the monitor.
func (b PacketMonitorBuilder) WithClock(
	clock *timing.Clock,
) PacketMonitorBuilder {
	b.clock = clock
	return b
}

// WithInterface sets the signals that the monitor watches.
func (b PacketMonitorBuilder) WithInterface(
	iface *signal.Interface,
) PacketMonitorBuilder {
	b.iface = iface
	return b
}

// WithOptions sets the Avalon properties of the interface.
func (b PacketMonitorBuilder) WithOptions(
	options avalon.Options,
) PacketMonitorBuilder {
	b.options = options
	return b
}

// WithChannelReporting makes the monitor deliver ChannelPacket items instead
// of bare bytes. The interface must have a channel signal.
func (b PacketMonitorBuilder) WithChannelReporting(
	report bool,
) PacketMonitorBuilder {
	b.reportChannel = report
	return b
}

// WithErrorCallback sets the function called when a word carries an error.
func (b PacketMonitorBuilder) WithErrorCallback(
	cb ErrorCallback,
) PacketMonitorBuilder {
	b.errorCallback = cb
	return b
}

// WithReset sets the signal that clears the monitor state while asserted.
func (b PacketMonitorBuilder) WithReset(
	reset *signal.Signal,
	activeLow bool,
) PacketMonitorBuilder {
	b.reset = reset
	b.resetActiveLow = activeLow

	return b
}

// Build creates a PacketMonitor and registers it with the clock.
func (b PacketMonitorBuilder) Build(name string) (*PacketMonitor, error) {
	if b.clock == nil {
		panic("monitor needs a clock")
	}

	binding, err := signal.Bind(b.iface, packetRequired, packetOptional)
	if err != nil {
		return nil, avalon.NewConfigurationError(name, "%s", err)
	}

	if b.reportChannel && !binding.Has("channel") {
		return nil, avalon.NewConfigurationError(name,
			"channel reporting asked on a bus without channel signal")
	}

	f, err := resolvePacketFraming(name, binding,
		avalon.STPacketMonitorTable(), b.options)
	if err != nil {
		return nil, err
	}

	if f.bitsPerSymbol%8 != 0 {
		return nil, avalon.NewConfigurationError(name,
			"%d-bit symbols cannot be received as bytes", f.bitsPerSymbol)
	}

	timeout := f.cfg.Int(avalon.OptInvalidTimeout)
	if timeout < 0 {
		return nil, avalon.NewConfigurationError(name,
			"%s must not be negative, got %d",
			avalon.OptInvalidTimeout, timeout)
	}

	m := &PacketMonitor{
		MonitorBase:    bus.MakeMonitorBase(name),
		valid:          binding.Get("valid"),
		data:           binding.Get("data"),
		ready:          binding.Get("ready"),
		startOfPacket:  binding.Get("startofpacket"),
		endOfPacket:    binding.Get("endofpacket"),
		errorSignal:    binding.Get("error"),
		channel:        binding.Get("channel"),
		empty:          binding.Get("empty"),
		highFirst:      f.highFirst,
		bitsPerSymbol:  f.bitsPerSymbol,
		symbolsPerWord: f.symbolsPerWord,
		useEmpty:       f.symbolsPerWord > 1,
		maxChannel:     f.maxChannel,
		invalidTimeout: timeout,
		reportChannel:  b.reportChannel,
		errorCallback:  b.errorCallback,
	}

	if b.reset != nil {
		m.SetReset(b.reset, b.resetActiveLow)
	}

	b.clock.Register(m)

	return m, nil
}
