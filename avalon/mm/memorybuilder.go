package mm

import (
	"math/rand"

	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/sim/naming"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
)

var memoryRequired = []string{"address"}

var memoryOptional = []string{
	"write", "read", "writedata", "readdatavalid", "readdata",
	"waitrequest", "burstcount", "byteenable",
}

// MemoryBuilder builds Memory components.
type MemoryBuilder struct {
	clock   *timing.Clock
	iface   *signal.Interface
	options avalon.Options
	store   *Store
	rng     *rand.Rand
}

// MakeMemoryBuilder returns a new MemoryBuilder.
func MakeMemoryBuilder() MemoryBuilder {
	return MemoryBuilder{}
}

// WithClock sets the clock that advances the memory.
func (b MemoryBuilder) WithClock(clock *timing.Clock) MemoryBuilder {
	b.clock = clock
	return b
}

// WithInterface sets the signals that the memory binds to.
func (b MemoryBuilder) WithInterface(iface *signal.Interface) MemoryBuilder {
	b.iface = iface
	return b
}

// WithOptions sets the Avalon properties of the memory.
func (b MemoryBuilder) WithOptions(options avalon.Options) MemoryBuilder {
	b.options = options
	return b
}

// WithStore makes the memory use an existing store. Two memories that share a
// store model a dual-port memory.
func (b MemoryBuilder) WithStore(store *Store) MemoryBuilder {
	b.store = store
	return b
}

// WithRand sets the random source of the read latency and the wait states.
func (b MemoryBuilder) WithRand(rng *rand.Rand) MemoryBuilder {
	b.rng = rng
	return b
}

// Build creates a Memory and registers it with the clock.
func (b MemoryBuilder) Build(name string) (*Memory, error) {
	naming.NameMustBeValid(name)

	m := &Memory{
		NamedBase: naming.MakeNamedBase(name),
		store:     b.store,
		rng:       b.rng,
	}

	if m.store == nil {
		m.store = NewStore()
	}

	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(1))
	}

	err := b.bind(m)
	if err != nil {
		return nil, err
	}

	err = b.configure(m)
	if err != nil {
		return nil, err
	}

	m.reset()

	if b.clock != nil {
		b.clock.Register(m)
	}

	return m, nil
}

func (b MemoryBuilder) bind(m *Memory) error {
	binding, err := signal.Bind(b.iface, memoryRequired, memoryOptional)
	if err != nil {
		return avalon.NewConfigurationError(m.Name(), "%s", err)
	}

	m.address = binding.Get("address")
	m.read = binding.Get("read")
	m.write = binding.Get("write")
	m.readData = binding.Get("readdata")
	m.writeData = binding.Get("writedata")
	m.readDataValid = binding.Get("readdatavalid")
	m.waitRequest = binding.Get("waitrequest")
	m.burstCount = binding.Get("burstcount")
	m.byteEnable = binding.Get("byteenable")

	m.readable = m.readData != nil && m.read != nil
	m.writeable = m.writeData != nil && m.write != nil

	if m.readData == nil && m.writeData == nil {
		return avalon.NewConfigurationError(m.Name(),
			"attempt to instantiate useless memory")
	}

	if m.readData != nil && m.writeData != nil &&
		m.readData.Width() != m.writeData.Width() {
		return avalon.NewConfigurationError(m.Name(),
			"readdata and writedata bus are not the same size")
	}

	if m.readData != nil {
		m.width = m.readData.Width()
	} else {
		m.width = m.writeData.Width()
	}

	if m.width%8 != 0 {
		return avalon.NewConfigurationError(m.Name(),
			"data width %d is not a whole number of bytes", m.width)
	}

	m.wordBytes = m.width / 8

	if m.burstCount != nil {
		if m.byteEnable == nil || m.waitRequest == nil {
			return avalon.NewConfigurationError(m.Name(),
				"bursts need the byteenable and waitrequest signals")
		}

		m.burstWrite = true
		m.burstRead = m.readDataValid != nil
	}

	return nil
}

func (b MemoryBuilder) configure(m *Memory) error {
	c, err := avalon.Resolve(avalon.MemoryTable(), b.options)
	if err != nil {
		return avalon.NewConfigurationError(m.Name(), "%s", err)
	}

	for _, opt := range []string{avalon.OptBurstCountUnits, avalon.OptAddressUnits} {
		if c.String(opt) != avalon.UnitsSymbols {
			return avalon.NewConfigurationError(m.Name(),
				"only %s %s is supported", avalon.UnitsSymbols, opt)
		}
	}

	m.readLatency = c.Int(avalon.OptReadLatency)
	m.writeBurstWaitReq = c.Bool(avalon.OptWriteBurstWaitReq)
	m.maxWaitReqLen = c.Int(avalon.OptMaxWaitReqLen)
	m.latencyMin = c.Int(avalon.OptReadLatencyMin)
	m.latencyMax = c.Int(avalon.OptReadLatencyMax)

	if m.readLatency < 0 || m.maxWaitReqLen < 0 {
		return avalon.NewConfigurationError(m.Name(),
			"%s and %s must not be negative",
			avalon.OptReadLatency, avalon.OptMaxWaitReqLen)
	}

	if m.latencyMin < 0 || m.latencyMin > m.latencyMax {
		return avalon.NewConfigurationError(m.Name(),
			"invalid read latency range [%d, %d]", m.latencyMin, m.latencyMax)
	}

	return nil
}
