package mm

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
)

// scriptedDriver runs a function at the edge of the given cycles.
type scriptedDriver struct {
	steps map[timing.VTimeInCycle]func()
}

func (d *scriptedDriver) OnEdge(cycle timing.VTimeInCycle) error {
	if f, ok := d.steps[cycle]; ok {
		f()
	}

	return nil
}

func (d *scriptedDriver) OnSample(timing.VTimeInCycle) error {
	return nil
}

var _ = Describe("Memory", func() {
	var (
		engine *timing.SerialEngine
		clock  *timing.Clock
		iface  *signal.Interface
		driver *scriptedDriver
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		clock = timing.NewClock("Clock", engine)
		iface = newInterface(true)
		driver = &scriptedDriver{steps: make(map[timing.VTimeInCycle]func())}
		clock.Register(driver)

		_, err := MakeMemoryBuilder().
			WithClock(clock).
			WithInterface(iface).
			Build("Memory")
		Expect(err).NotTo(HaveOccurred())
	})

	burstRequest := func(strobe string, addr, count, byteEnable uint64) {
		driver.steps[0] = func() {
			iface.MustSignal(strobe).SetUint64(1)
			iface.MustSignal("address").SetUint64(addr)
			iface.MustSignal("burstcount").SetUint64(count)
			iface.MustSignal("byteenable").SetUint64(byteEnable)
			iface.MustSignal("writedata").SetUint64(0)
		}
	}

	It("should reject a misaligned burst read", func() {
		burstRequest("read", 0x3, 1, 0xf)

		err := clock.RunCycles(4)

		Expect(avalon.IsValidationError(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("not aligned"))
	})

	It("should reject a partial burst read", func() {
		burstRequest("read", 0x4, 1, 0x7)

		err := clock.RunCycles(4)

		Expect(avalon.IsValidationError(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("full word"))
	})

	It("should reject a zero burst count", func() {
		burstRequest("read", 0x4, 0, 0xf)

		err := clock.RunCycles(4)

		Expect(avalon.IsValidationError(err)).To(BeTrue())
	})

	It("should reject a misaligned burst write", func() {
		burstRequest("write", 0x2, 2, 0xf)

		err := clock.RunCycles(10)

		Expect(avalon.IsValidationError(err)).To(BeTrue())
	})

	It("should stop the clock at the error", func() {
		burstRequest("read", 0x3, 1, 0xf)

		err := clock.RunCycles(4)

		Expect(err).To(HaveOccurred())
		Expect(clock.Cycle()).To(Equal(timing.VTimeInCycle(0)))
		Expect(clock.RunCycles(1)).To(MatchError(err))
	})

	It("should arbitrate before a burst read", func() {
		burstRequest("read", 0x0, 1, 0xf)
		wr := iface.MustSignal("waitrequest")
		var seen []bool

		driver.steps[1] = func() { seen = append(seen, wr.IsHigh()) }
		driver.steps[2] = func() { seen = append(seen, wr.IsHigh()) }
		driver.steps[3] = func() { seen = append(seen, wr.IsHigh()) }

		Expect(clock.RunCycles(4)).To(Succeed())

		// The driver sees the edge before the memory drives it.
		Expect(seen).To(Equal([]bool{true, true, false}))
	})
})

var _ = Describe("MemoryBuilder", func() {
	build := func(iface *signal.Interface, options avalon.Options) error {
		_, err := MakeMemoryBuilder().
			WithInterface(iface).
			WithOptions(options).
			WithRand(rand.New(rand.NewSource(1))).
			Build("Memory")

		return err
	}

	It("should reject a useless memory", func() {
		iface := signal.NewInterface("avs")
		iface.Add("address", 8)
		iface.Add("read", 1)

		err := build(iface, nil)

		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("useless memory"))
	})

	It("should reject different data widths", func() {
		iface := signal.NewInterface("avs")
		iface.Add("address", 8)
		iface.Add("readdata", 32)
		iface.Add("writedata", 16)

		Expect(avalon.IsConfigurationError(build(iface, nil))).To(BeTrue())
	})

	It("should reject bursts without byteenable", func() {
		iface := signal.NewInterface("avs")
		iface.Add("address", 8)
		iface.Add("readdata", 32)
		iface.Add("waitrequest", 1)
		iface.Add("burstcount", 4)

		Expect(avalon.IsConfigurationError(build(iface, nil))).To(BeTrue())
	})

	It("should only support symbol units", func() {
		err := build(newInterface(true), avalon.Options{
			avalon.OptAddressUnits: "words",
		})
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())

		err = build(newInterface(true), avalon.Options{
			avalon.OptBurstCountUnits: "words",
		})
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})

	It("should reject unknown options", func() {
		err := build(newInterface(false), avalon.Options{"latency": 3})

		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})

	It("should reject an empty latency range", func() {
		err := build(newInterface(false), avalon.Options{
			avalon.OptReadLatencyMin: 4,
			avalon.OptReadLatencyMax: 2,
		})

		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})
})

var _ = Describe("Dual-port memory", func() {
	It("should share the store between two ports", func() {
		engine := timing.NewSerialEngine()
		clock := timing.NewClock("Clock", engine)
		ifaceA := newInterface(false)
		ifaceB := newInterface(false)

		masterA, err := MakeMasterBuilder().
			WithClock(clock).WithInterface(ifaceA).Build("MasterA")
		Expect(err).NotTo(HaveOccurred())
		masterB, err := MakeMasterBuilder().
			WithClock(clock).WithInterface(ifaceB).Build("MasterB")
		Expect(err).NotTo(HaveOccurred())

		portA, err := MakeMemoryBuilder().
			WithClock(clock).WithInterface(ifaceA).Build("PortA")
		Expect(err).NotTo(HaveOccurred())
		_, err = MakeMemoryBuilder().
			WithClock(clock).WithInterface(ifaceB).
			WithStore(portA.Store()).Build("PortB")
		Expect(err).NotTo(HaveOccurred())

		var got signal.Word
		done := false

		Expect(masterA.Write(0x30, signal.FromUint64(32, 0x55aa),
			func() {
				Expect(masterB.Read(0x30, true, func(w signal.Word) {
					got = w
					done = true
				})).To(Succeed())
			})).To(Succeed())

		Expect(clock.RunUntil(func() bool { return done }, 50)).To(Succeed())
		Expect(got.Uint64()).To(Equal(uint64(0x55aa)))
	})
})
