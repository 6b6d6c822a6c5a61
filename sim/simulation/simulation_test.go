package simulation

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avalonbus/sim/naming"
	"github.com/sarchlab/avalonbus/sim/timing"
)

type edgeCounter struct {
	naming.NamedBase
	edges int
}

func (c *edgeCounter) OnEdge(timing.VTimeInCycle) error {
	c.edges++
	return nil
}

func (c *edgeCounter) OnSample(timing.VTimeInCycle) error {
	return nil
}

var _ = Describe("Simulation", func() {
	var (
		sim    *Simulation
		engine *timing.SerialEngine
		clock  *timing.Clock
	)

	BeforeEach(func() {
		sim = NewSimulation()
		engine = timing.NewSerialEngine()
		clock = timing.NewClock("Clock", engine)
		sim.RegisterEngine(engine)
		sim.RegisterClock(clock)
	})

	It("should find components by name", func() {
		comp := &edgeCounter{NamedBase: naming.MakeNamedBase("DUT.Counter")}
		clock.Register(comp)
		sim.RegisterComponent(comp)

		Expect(sim.GetClock().RunCycles(3)).To(Succeed())
		Expect(comp.edges).To(Equal(3))
		Expect(sim.GetComponentByName("DUT.Counter")).To(BeIdenticalTo(comp))
	})

	It("should list components by name", func() {
		b := &edgeCounter{NamedBase: naming.MakeNamedBase("B")}
		a := &edgeCounter{NamedBase: naming.MakeNamedBase("A")}
		sim.RegisterComponent(b)
		sim.RegisterComponent(a)

		comps := sim.Components()

		Expect(comps).To(HaveLen(2))
		Expect(comps[0].Name()).To(Equal("A"))
		Expect(comps[1].Name()).To(Equal("B"))
	})

	It("should panic on duplicated names", func() {
		sim.RegisterComponent(&edgeCounter{NamedBase: naming.MakeNamedBase("A")})

		Expect(func() {
			sim.RegisterComponent(
				&edgeCounter{NamedBase: naming.MakeNamedBase("A")})
		}).To(Panic())
	})

	It("should generate unique IDs", func() {
		Expect(sim.GenerateID()).NotTo(Equal(sim.GenerateID()))
	})
})
