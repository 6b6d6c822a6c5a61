package st

import (
	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/bus"
	"github.com/sarchlab/avalonbus/sim/naming"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
)

// DriverBuilder builds Driver components.
type DriverBuilder struct {
	clock    *timing.Clock
	iface    *signal.Interface
	options  avalon.Options
	throttle bus.OnOffGenerator
}

// MakeDriverBuilder returns a new DriverBuilder.
func MakeDriverBuilder() DriverBuilder {
	return DriverBuilder{}
}

// WithClock sets the clock that advances the driver.
func (b DriverBuilder) WithClock(clock *timing.Clock) DriverBuilder {
	b.clock = clock
	return b
}

// WithInterface sets the signals that the driver binds to.
func (b DriverBuilder) WithInterface(iface *signal.Interface) DriverBuilder {
	b.iface = iface
	return b
}

// WithOptions sets the Avalon properties of the interface.
func (b DriverBuilder) WithOptions(options avalon.Options) DriverBuilder {
	b.options = options
	return b
}

// WithThrottle sets the generator of the on and off cycles of valid.
func (b DriverBuilder) WithThrottle(gen bus.OnOffGenerator) DriverBuilder {
	b.throttle = gen
	return b
}

// Build creates a Driver and registers it with the clock.
func (b DriverBuilder) Build(name string) (*Driver, error) {
	if b.clock == nil {
		panic("driver needs a clock")
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

	d := &Driver{
		NamedBase: naming.MakeNamedBase(name),
		highFirst: cfg.Bool(avalon.OptFirstSymbolInHighOrderBits),
	}
	d.sender = sender{
		owner:    d,
		clock:    b.clock,
		throttle: bus.NewThrottle(b.throttle),
		valid:    binding.Get("valid"),
		data:     binding.Get("data"),
		ready:    binding.Get("ready"),
	}

	d.valid.SetUint64(0)
	d.data.SetUnknown()
	b.clock.Register(d)

	return d, nil
}

// PacketDriverBuilder builds PacketDriver components.
type PacketDriverBuilder struct {
	clock    *timing.Clock
	iface    *signal.Interface
	options  avalon.Options
	throttle bus.OnOffGenerator
}

// MakePacketDriverBuilder returns a new PacketDriverBuilder.
func MakePacketDriverBuilder() PacketDriverBuilder {
	return PacketDriverBuilder{}
}

// WithClock sets the clock that advances the driver.
func (b PacketDriverBuilder) WithClock(clock *timing.Clock) PacketDriverBuilder {
	b.clock = clock
	return b
}

// WithInterface sets the signals that the driver binds to.
func (b PacketDriverBuilder) WithInterface(
	iface *signal.Interface,
) PacketDriverBuilder {
	b.iface = iface
	return b
}

// WithOptions sets the Avalon properties of the interface.
func (b PacketDriverBuilder) WithOptions(
	options avalon.Options,
) PacketDriverBuilder {
	b.options = options
	return b
}

// WithThrottle sets the generator of the on and off cycles of valid.
func (b PacketDriverBuilder) WithThrottle(
	gen bus.OnOffGenerator,
) PacketDriverBuilder {
	b.throttle = gen
	return b
}

var (
	packetRequired = []string{"valid", "data", "startofpacket", "endofpacket"}
	packetOptional = []string{"error", "channel", "ready", "empty"}
)

// Build creates a PacketDriver and registers it with the clock.
func (b PacketDriverBuilder) Build(name string) (*PacketDriver, error) {
	if b.clock == nil {
		panic("driver needs a clock")
	}

	binding, err := signal.Bind(b.iface, packetRequired, packetOptional)
	if err != nil {
		return nil, avalon.NewConfigurationError(name, "%s", err)
	}

	f, err := resolvePacketFraming(name, binding, avalon.STPacketTable(),
		b.options)
	if err != nil {
		return nil, err
	}

	d := &PacketDriver{
		NamedBase:      naming.MakeNamedBase(name),
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
	}
	d.sender = sender{
		owner:    d,
		clock:    b.clock,
		throttle: bus.NewThrottle(b.throttle),
		valid:    binding.Get("valid"),
		data:     binding.Get("data"),
		ready:    binding.Get("ready"),
	}

	d.reset()
	b.clock.Register(d)

	return d, nil
}

// framing is the resolved configuration of a packetized interface.
type framing struct {
	cfg            avalon.Config
	highFirst      bool
	bitsPerSymbol  int
	symbolsPerWord int
	maxChannel     int
}

// resolvePacketFraming checks the options of a packetized interface against
// its signals. The default maxChannel is the largest value that the channel
// signal can carry.
func resolvePacketFraming(
	name string,
	binding *signal.Binding,
	table avalon.Table,
	options avalon.Options,
) (framing, error) {
	channel := binding.Get("channel")

	if channel != nil {
		if channel.Width() > avalon.MaxChannelWidth {
			return framing{}, avalon.NewConfigurationError(name,
				"channel width must be 1 to %d, got %d",
				avalon.MaxChannelWidth, channel.Width())
		}

		table = table.With(avalon.OptMaxChannel,
			avalon.MaxChannelFor(channel.Width()))
	}

	cfg, err := avalon.Resolve(table, options)
	if err != nil {
		return framing{}, avalon.NewConfigurationError(name, "%s", err)
	}

	if cfg.Int(avalon.OptReadyLatency) != 0 {
		return framing{}, avalon.NewConfigurationError(name,
			"%s %d is not supported, only 0 is",
			avalon.OptReadyLatency, cfg.Int(avalon.OptReadyLatency))
	}

	f := framing{
		cfg:           cfg,
		highFirst:     cfg.Bool(avalon.OptFirstSymbolInHighOrderBits),
		bitsPerSymbol: cfg.Int(avalon.OptDataBitsPerSymbol),
		maxChannel:    cfg.Int(avalon.OptMaxChannel),
	}

	f.symbolsPerWord, err = avalon.SymbolsPerWord(
		binding.Get("data").Width(), f.bitsPerSymbol)
	if err != nil {
		return framing{}, avalon.NewConfigurationError(name, "%s", err)
	}

	if f.symbolsPerWord > 1 && !binding.Has("empty") {
		return framing{}, avalon.NewConfigurationError(name,
			"%d data symbols but no empty signal", f.symbolsPerWord)
	}

	if f.maxChannel < 0 {
		return framing{}, avalon.NewConfigurationError(name,
			"%s must not be negative, got %d",
			avalon.OptMaxChannel, f.maxChannel)
	}

	if channel != nil && !avalon.ChannelFits(f.maxChannel, channel.Width()) {
		return framing{}, avalon.NewConfigurationError(name,
			"%s %d does not fit in a %d-bit channel, the maximum is %d",
			avalon.OptMaxChannel, f.maxChannel, channel.Width(),
			avalon.MaxChannelFor(channel.Width()))
	}

	return f, nil
}
