package mm

import (
	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/sim/naming"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
)

var masterRequired = []string{"address"}

var masterOptional = []string{
	"readdata", "read", "write", "waitrequest", "writedata",
	"readdatavalid", "byteenable", "cs", "burstcount",
}

// MasterBuilder builds Master components.
type MasterBuilder struct {
	clock   *timing.Clock
	iface   *signal.Interface
	options avalon.Options
}

// MakeMasterBuilder returns a new MasterBuilder.
func MakeMasterBuilder() MasterBuilder {
	return MasterBuilder{}
}

// WithClock sets the clock that advances the master.
func (b MasterBuilder) WithClock(clock *timing.Clock) MasterBuilder {
	b.clock = clock
	return b
}

// WithInterface sets the signals that the master binds to.
func (b MasterBuilder) WithInterface(iface *signal.Interface) MasterBuilder {
	b.iface = iface
	return b
}

// WithOptions sets the Avalon properties of the master. The master accepts
// no option, so any option is rejected.
func (b MasterBuilder) WithOptions(options avalon.Options) MasterBuilder {
	b.options = options
	return b
}

// Build creates a Master and registers it with the clock.
func (b MasterBuilder) Build(name string) (*Master, error) {
	if b.clock == nil {
		panic("master needs a clock")
	}

	m := &Master{
		NamedBase: naming.MakeNamedBase(name),
		clock:     b.clock,
	}

	_, err := avalon.Resolve(avalon.MasterTable(), b.options)
	if err != nil {
		return nil, avalon.NewConfigurationError(name, "%s", err)
	}

	binding, err := signal.Bind(b.iface, masterRequired, masterOptional)
	if err != nil {
		return nil, avalon.NewConfigurationError(name, "%s", err)
	}

	m.address = binding.Get("address")
	m.read = binding.Get("read")
	m.write = binding.Get("write")
	m.readData = binding.Get("readdata")
	m.writeData = binding.Get("writedata")
	m.waitRequest = binding.Get("waitrequest")
	m.readDataValid = binding.Get("readdatavalid")
	m.byteEnable = binding.Get("byteenable")
	m.cs = binding.Get("cs")
	m.burstCount = binding.Get("burstcount")

	if m.write != nil && m.writeData == nil {
		return nil, avalon.NewConfigurationError(name,
			"write signal without writedata")
	}

	if m.readData != nil && m.readData.Width()%8 != 0 ||
		m.writeData != nil && m.writeData.Width()%8 != 0 {
		return nil, avalon.NewConfigurationError(name,
			"data width is not a whole number of bytes")
	}

	m.reset()
	b.clock.Register(m)

	return m, nil
}
