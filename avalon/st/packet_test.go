package st

import (
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/bus"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
	"github.com/sarchlab/avalonbus/tracing"
)

// beatProbe records the framing signals of every word that the sink takes.
type beatProbe struct {
	iface *signal.Interface
	beats []Beat
}

func (p *beatProbe) OnEdge(timing.VTimeInCycle) error {
	return nil
}

func (p *beatProbe) OnSample(timing.VTimeInCycle) error {
	if !accepted(p.iface.MustSignal("valid"), p.iface.MustSignal("ready")) {
		return nil
	}

	empty, _ := p.iface.MustSignal("empty").Uint64()
	p.beats = append(p.beats, Beat{
		Data:          p.iface.MustSignal("data").Value(),
		StartOfPacket: p.iface.MustSignal("startofpacket").IsHigh(),
		EndOfPacket:   p.iface.MustSignal("endofpacket").IsHigh(),
		Empty:         empty,
	})

	return nil
}

func payloadOf(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(0x10 + i)
	}

	return p
}

var _ = Describe("PacketDriver and PacketMonitor", func() {
	var b *packetBench

	Context("with byte payloads", func() {
		BeforeEach(func() {
			b = newPacketBench(newPacketInterface(32, 4, true),
				MakePacketMonitorBuilder(), nil)
		})

		It("should frame a payload with a partial last word", func() {
			probe := &beatProbe{iface: b.iface}
			b.clock.Register(probe)
			payload := payloadOf(2*4 + 3)

			b.send(payload, nil)

			Expect(b.monitor.Received()).To(Equal([]interface{}{payload}))
			Expect(probe.beats).To(HaveLen(3))
			Expect(probe.beats[0].StartOfPacket).To(BeTrue())
			Expect(probe.beats[0].EndOfPacket).To(BeFalse())
			Expect(probe.beats[1].StartOfPacket).To(BeFalse())
			Expect(probe.beats[2].EndOfPacket).To(BeTrue())
			Expect(probe.beats[2].Empty).To(Equal(uint64(4 - 3)))
			Expect(probe.beats[2].Data.Uint64()).To(Equal(uint64(0x18191a00)))
		})

		It("should send a single-word packet", func() {
			b.send([]byte{0xde, 0xad}, nil)

			Expect(b.monitor.Received()).To(Equal(
				[]interface{}{[]byte{0xde, 0xad}}))
		})

		It("should blank the bus after the packet", func() {
			b.send(payloadOf(5), nil)

			Expect(b.iface.MustSignal("valid").IsHigh()).To(BeFalse())
			Expect(b.iface.MustSignal("startofpacket").IsHigh()).To(BeFalse())
			Expect(b.iface.MustSignal("endofpacket").IsHigh()).To(BeFalse())
			Expect(b.iface.MustSignal("data").Value().IsResolvable()).
				To(BeFalse())
			Expect(b.iface.MustSignal("empty").Value().IsResolvable()).
				To(BeFalse())
			Expect(b.iface.MustSignal("channel").Value().IsResolvable()).
				To(BeFalse())
		})

		It("should drive the channel and remember it", func() {
			b.send(payloadOf(6), intPtr(9))

			ch, ok := b.monitor.LastChannel()
			Expect(ok).To(BeTrue())
			Expect(ch).To(Equal(9))

			b.send(payloadOf(2), nil)

			ch, _ = b.monitor.LastChannel()
			Expect(ch).To(Equal(0))
		})

		It("should reject a channel above maxChannel before driving", func() {
			err := b.driver.Send(payloadOf(4), true, intPtr(16), nil)
			Expect(avalon.IsValidationError(err)).To(BeTrue())

			err = b.driver.Send(payloadOf(4), true, intPtr(-1), nil)
			Expect(avalon.IsValidationError(err)).To(BeTrue())

			Expect(b.driver.IsBusy()).To(BeFalse())
			Expect(b.iface.MustSignal("valid").IsHigh()).To(BeFalse())
			Expect(b.iface.MustSignal("channel").Value().IsResolvable()).
				To(BeFalse())
		})

		It("should reject an empty payload", func() {
			err := b.driver.Send(nil, true, nil, nil)

			Expect(avalon.IsValidationError(err)).To(BeTrue())
		})

		It("should send packets back to back", func() {
			for i := 1; i <= 4; i++ {
				Expect(b.driver.Send(payloadOf(i*3), true, nil, nil)).
					To(Succeed())
			}

			Expect(b.clock.RunUntil(func() bool { return !b.driver.IsBusy() },
				200)).To(Succeed())

			Expect(b.monitor.Received()).To(Equal([]interface{}{
				payloadOf(3), payloadOf(6), payloadOf(9), payloadOf(12),
			}))
		})

		It("should follow the throttle inside a packet", func() {
			b.driver.SetThrottle(bus.Constant(1, 1))
			sent := &cycleRecorder{pos: avalon.HookPosWordSent}
			b.driver.AcceptHook(sent)

			b.send(payloadOf(12), nil)

			Expect(sent.cycles).To(Equal([]timing.VTimeInCycle{0, 2, 4}))
			Expect(b.monitor.Received()).To(Equal([]interface{}{payloadOf(12)}))
		})

		It("should wait for ready on every word", func() {
			ready := b.iface.MustSignal("ready")
			b.clock.Register(edgeScript(func(cycle timing.VTimeInCycle) {
				ready.SetUint64(boolToUint(cycle >= 2))
			}))
			sent := &cycleRecorder{pos: avalon.HookPosWordSent}
			b.driver.AcceptHook(sent)

			b.send(payloadOf(8), nil)

			Expect(sent.cycles).To(Equal([]timing.VTimeInCycle{2, 3}))
			Expect(b.monitor.Received()).To(Equal([]interface{}{payloadOf(8)}))
		})
	})

	Context("with the low-order symbol first", func() {
		It("should strip the empty symbols from the high-order end", func() {
			options := avalon.Options{
				avalon.OptFirstSymbolInHighOrderBits: false,
			}
			b = newPacketBench(newPacketInterface(32, 0, false),
				MakePacketMonitorBuilder().WithOptions(options), options)

			b.send(payloadOf(7), nil)

			Expect(b.monitor.Received()).To(Equal([]interface{}{payloadOf(7)}))
			Expect(b.iface.MustSignal("data").Value().IsResolvable()).
				To(BeFalse())
		})
	})

	Context("with single-symbol words", func() {
		It("should not need the empty signal", func() {
			iface := signal.NewInterface("st")
			iface.Add("valid", 1)
			iface.Add("data", 8)
			iface.Add("startofpacket", 1)
			iface.Add("endofpacket", 1)

			b = newPacketBench(iface, MakePacketMonitorBuilder(), nil)

			b.send([]byte{1, 2, 3}, nil)

			Expect(b.monitor.Received()).To(Equal([]interface{}{
				[]byte{1, 2, 3},
			}))
		})
	})

	Context("with beats", func() {
		BeforeEach(func() {
			b = newPacketBench(newPacketInterface(32, 4, true),
				MakePacketMonitorBuilder(), nil)
		})

		It("should raise a duplicate start of packet", func() {
			err := b.sendBeats(
				Beat{Data: word32(1), StartOfPacket: true},
				Beat{Data: word32(2), StartOfPacket: true, EndOfPacket: true},
			)

			Expect(avalon.IsProtocolError(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("duplicate start of packet"))
			Expect(b.monitor.Received()).To(BeEmpty())
		})

		It("should raise data outside of a packet", func() {
			err := b.sendBeats(Beat{Data: word32(1), EndOfPacket: true})

			Expect(avalon.IsProtocolError(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("outside of a packet"))
		})

		It("should raise a channel change", func() {
			err := b.sendBeats(
				Beat{Data: word32(1), StartOfPacket: true, Channel: 1},
				Beat{Data: word32(2), EndOfPacket: true, Channel: 2},
			)

			Expect(avalon.IsProtocolError(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("channel changed"))
		})

		It("should take a packet with idle beats", func() {
			err := b.sendBeats(
				Beat{Data: word32(0x01020304), StartOfPacket: true},
				Beat{Idle: true},
				Beat{Data: word32(0x05060000), EndOfPacket: true, Empty: 2},
			)

			Expect(err).NotTo(HaveOccurred())
			Expect(b.monitor.Received()).To(Equal([]interface{}{
				[]byte{1, 2, 3, 4, 5, 6},
			}))
		})

		It("should mask the unknown empty symbols", func() {
			last, err := signal.ParseBinary(
				"00000111_00001000_xxxxxxxx_xxxxxxxx")
			Expect(err).NotTo(HaveOccurred())

			err = b.sendBeats(
				Beat{Data: last, StartOfPacket: true, EndOfPacket: true,
					Empty: 2},
			)

			Expect(err).NotTo(HaveOccurred())
			Expect(b.monitor.Received()).To(Equal([]interface{}{
				[]byte{7, 8},
			}))
		})

		It("should raise unknown data that is not masked", func() {
			last, err := signal.ParseBinary(
				"00000111_00001000_xxxxxxxx_xxxxxxxx")
			Expect(err).NotTo(HaveOccurred())

			err = b.sendBeats(
				Beat{Data: last, StartOfPacket: true, EndOfPacket: true,
					Empty: 1},
			)

			Expect(avalon.IsProtocolError(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("unresolvable"))
		})

		It("should report errors without stopping", func() {
			var errs []uint64
			diags := &diagRecorder{}

			b = newPacketBench(newPacketInterface(32, 4, true),
				MakePacketMonitorBuilder().
					WithErrorCallback(func(v uint64) { errs = append(errs, v) }),
				nil)
			b.monitor.AcceptHook(diags)

			err := b.sendBeats(
				Beat{Data: word32(1), StartOfPacket: true, Error: 2},
				Beat{Data: word32(2), EndOfPacket: true},
			)

			Expect(err).NotTo(HaveOccurred())
			Expect(errs).To(Equal([]uint64{2}))
			Expect(b.monitor.Received()).To(HaveLen(1))
			Expect(diags.diags[0].Message).To(Equal("received an error 2"))
		})

		It("should warn about an ignored channel", func() {
			diags := &diagRecorder{}
			b.driver.AcceptHook(diags)

			Expect(b.driver.SendBeats(
				[]Beat{{Data: word32(1), StartOfPacket: true, EndOfPacket: true}},
				true, intPtr(3), nil)).To(Succeed())

			Expect(diags.diags).To(HaveLen(1))
			Expect(diags.diags[0].Severity).To(Equal(avalon.SeverityWarning))
		})

		It("should validate the beats", func() {
			Expect(avalon.IsValidationError(b.driver.SendBeats(
				[]Beat{{Data: signal.FromUint64(8, 1)}}, true, nil, nil))).
				To(BeTrue())
			Expect(avalon.IsValidationError(b.driver.SendBeats(
				[]Beat{{Data: word32(1), Empty: 4}}, true, nil, nil))).
				To(BeTrue())
			Expect(avalon.IsValidationError(b.driver.SendBeats(
				[]Beat{{Data: word32(1), Channel: 16}}, true, nil, nil))).
				To(BeTrue())
			Expect(avalon.IsValidationError(b.driver.SendBeats(
				nil, true, nil, nil))).To(BeTrue())
			Expect(b.driver.IsBusy()).To(BeFalse())
		})
	})

	Context("with a channel limit on the monitor", func() {
		It("should raise a channel above maxChannel", func() {
			iface := newPacketInterface(32, 4, true)
			b = newPacketBench(iface, MakePacketMonitorBuilder(), nil)

			limited, err := MakePacketMonitorBuilder().
				WithClock(b.clock).
				WithInterface(iface).
				WithOptions(avalon.Options{avalon.OptMaxChannel: 2}).
				Build("LimitedSink")
			Expect(err).NotTo(HaveOccurred())

			b.send(payloadOf(4), intPtr(2))
			Expect(limited.Received()).To(HaveLen(1))

			done := false
			Expect(b.driver.Send(payloadOf(4), true, intPtr(3),
				func() { done = true })).To(Succeed())
			err = b.clock.RunUntil(func() bool { return done }, 50)

			Expect(avalon.IsProtocolError(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("greater than maxChannel"))
			Expect(limited.Err()).To(MatchError(err))
		})
	})

	Context("with channel reporting", func() {
		It("should deliver the channel with the data", func() {
			b = newPacketBench(newPacketInterface(32, 4, true),
				MakePacketMonitorBuilder().WithChannelReporting(true), nil)

			b.send(payloadOf(5), intPtr(3))

			Expect(b.monitor.Received()).To(Equal([]interface{}{
				ChannelPacket{Data: payloadOf(5), Channel: 3},
			}))
		})
	})

	Context("with an invalid timeout", func() {
		BeforeEach(func() {
			b = newPacketBench(newPacketInterface(32, 0, true),
				MakePacketMonitorBuilder().WithOptions(
					avalon.Options{avalon.OptInvalidTimeout: 3}),
				nil)
		})

		It("should time out at the boundary and not before", func() {
			Expect(b.driver.SendBeats(
				[]Beat{{Data: word32(1), StartOfPacket: true}},
				true, nil, nil)).To(Succeed())

			Expect(b.clock.RunCycles(3)).To(Succeed())
			Expect(b.monitor.InPacket()).To(BeTrue())

			err := b.clock.RunCycles(1)

			Expect(avalon.IsProtocolError(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("timeout"))
			perr := errors.Cause(err).(*avalon.ProtocolError)
			Expect(perr.Cycle).To(Equal(uint64(3)))
			Expect(b.clock.RunCycles(1)).To(MatchError(err))
		})

		It("should restart the count on every valid word", func() {
			err := b.sendBeats(
				Beat{Data: word32(1), StartOfPacket: true},
				Beat{Idle: true},
				Beat{Idle: true},
				Beat{Data: word32(2)},
				Beat{Idle: true},
				Beat{Idle: true},
				Beat{Data: word32(3), EndOfPacket: true},
			)

			Expect(err).NotTo(HaveOccurred())
			Expect(b.monitor.Received()).To(HaveLen(1))
		})

		It("should not count cycles outside of a packet", func() {
			Expect(b.clock.RunCycles(10)).To(Succeed())
		})
	})

	Context("with a reset", func() {
		It("should drop the open packet", func() {
			iface := newPacketInterface(32, 0, true)
			reset := signal.NewSignal("reset", 1)
			reset.SetUint64(0)

			b = newPacketBench(iface,
				MakePacketMonitorBuilder().WithReset(reset, false), nil)
			b.clock.Register(edgeScript(func(cycle timing.VTimeInCycle) {
				reset.SetUint64(boolToUint(cycle == 1))
			}))

			Expect(b.driver.SendBeats(
				[]Beat{{Data: word32(1), StartOfPacket: true}},
				true, nil, nil)).To(Succeed())
			err := b.sendBeats(
				Beat{Data: word32(2), StartOfPacket: true},
				Beat{Data: word32(3), EndOfPacket: true},
			)

			Expect(err).NotTo(HaveOccurred())
			Expect(b.monitor.Received()).To(Equal([]interface{}{
				[]byte{0, 0, 0, 2, 0, 0, 0, 3},
			}))
		})
	})
})

// taskRecorder keeps the tasks that end, as they were started.
type taskRecorder struct {
	started map[string]tracing.Task
	ended   []tracing.Task
}

func (r *taskRecorder) StartTask(task tracing.Task) {
	r.started[task.ID] = task
}

func (r *taskRecorder) StepTask(tracing.Task) {}

func (r *taskRecorder) EndTask(task tracing.Task) {
	r.ended = append(r.ended, r.started[task.ID])
}

var _ = Describe("Packet tracing", func() {
	It("should trace a packet on both ends", func() {
		b := newPacketBench(newPacketInterface(32, 0, true),
			MakePacketMonitorBuilder(), nil)

		steps := tracing.NewStepCountTracer(nil)
		tracing.CollectTrace(b.driver, steps)

		tasks := &taskRecorder{started: make(map[string]tracing.Task)}
		tracing.CollectTrace(b.monitor, tasks)

		b.send(payloadOf(9), nil)

		Expect(steps.GetStepCount("accepted")).To(Equal(uint64(3)))
		Expect(steps.GetTaskCount("accepted")).To(Equal(uint64(1)))
		Expect(tasks.ended).To(HaveLen(1))
		Expect(tasks.ended[0].Kind).To(Equal("req_in"))
		Expect(tasks.ended[0].What).To(Equal("packet"))
		Expect(tasks.ended[0].Location).To(Equal("Sink"))
	})

	It("should end the open packet when the monitor fails", func() {
		b := newPacketBench(newPacketInterface(32, 0, true),
			MakePacketMonitorBuilder(), nil)

		tasks := &taskRecorder{started: make(map[string]tracing.Task)}
		tracing.CollectTrace(b.monitor, tasks)

		err := b.sendBeats(
			Beat{Data: word32(1), StartOfPacket: true},
			Beat{Data: word32(2), StartOfPacket: true, EndOfPacket: true},
		)

		Expect(avalon.IsProtocolError(err)).To(BeTrue())
		Expect(tasks.started).To(HaveLen(1))
		Expect(tasks.ended).To(HaveLen(1))
		Expect(tasks.ended[0].What).To(Equal("packet"))
		Expect(b.monitor.Received()).To(BeEmpty())
	})
})

var _ = Describe("PacketDriverBuilder and PacketMonitorBuilder", func() {
	var clock *timing.Clock

	BeforeEach(func() {
		clock = timing.NewClock("Clock", timing.NewSerialEngine())
	})

	buildDriver := func(
		iface *signal.Interface,
		options avalon.Options,
	) (*PacketDriver, error) {
		return MakePacketDriverBuilder().
			WithClock(clock).
			WithInterface(iface).
			WithOptions(options).
			Build("Source")
	}

	buildMonitor := func(
		mb PacketMonitorBuilder,
		iface *signal.Interface,
		options avalon.Options,
	) error {
		_, err := mb.
			WithClock(clock).
			WithInterface(iface).
			WithOptions(options).
			Build("Sink")

		return err
	}

	It("should default maxChannel to the channel width", func() {
		d, err := buildDriver(newPacketInterface(32, 2, false), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.MaxChannel()).To(Equal(3))

		d, err = buildDriver(newPacketInterface(32, 0, false), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.MaxChannel()).To(Equal(0))
	})

	It("should reject a channel without a channel signal", func() {
		d, err := buildDriver(newPacketInterface(32, 0, false), nil)
		Expect(err).NotTo(HaveOccurred())

		err = d.Send(payloadOf(4), true, intPtr(0), nil)
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})

	It("should reject a maxChannel that does not fit", func() {
		options := avalon.Options{avalon.OptMaxChannel: 4}

		_, err := buildDriver(newPacketInterface(32, 2, false), options)
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())

		err = buildMonitor(MakePacketMonitorBuilder(),
			newPacketInterface(32, 2, false), options)
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})

	It("should reject a channel wider than 128 bits", func() {
		_, err := buildDriver(newPacketInterface(32, 129, false), nil)
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())

		err = buildMonitor(MakePacketMonitorBuilder(),
			newPacketInterface(32, 129, false), nil)
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})

	It("should accept a 128-bit channel", func() {
		d, err := buildDriver(newPacketInterface(32, 128, false), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.MaxChannel()).To(Equal(avalon.MaxChannelFor(128)))
	})

	It("should need the empty signal for multi-symbol words", func() {
		iface := signal.NewInterface("st")
		iface.Add("valid", 1)
		iface.Add("data", 16)
		iface.Add("startofpacket", 1)
		iface.Add("endofpacket", 1)

		_, err := buildDriver(iface, nil)
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("empty"))

		err = buildMonitor(MakePacketMonitorBuilder(), iface, nil)
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})

	It("should reject channel reporting without a channel signal", func() {
		err := buildMonitor(MakePacketMonitorBuilder().WithChannelReporting(true),
			newPacketInterface(32, 0, false), nil)

		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})

	It("should only support a ready latency of 0", func() {
		_, err := buildDriver(newPacketInterface(32, 0, true),
			avalon.Options{avalon.OptReadyLatency: 1})

		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})

	It("should only frame bytes with 8-bit symbols", func() {
		d, err := buildDriver(newPacketInterface(32, 0, false),
			avalon.Options{avalon.OptDataBitsPerSymbol: 16})
		Expect(err).NotTo(HaveOccurred())

		err = d.Send(payloadOf(4), true, nil, nil)
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})

	It("should reject the timeout option on the driver", func() {
		_, err := buildDriver(newPacketInterface(32, 0, false),
			avalon.Options{avalon.OptInvalidTimeout: 5})

		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})
})
