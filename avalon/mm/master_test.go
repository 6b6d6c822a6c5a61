package mm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
	"github.com/sarchlab/avalonbus/tracing"
)

func uint64s(ws []signal.Word) []uint64 {
	res := make([]uint64, 0, len(ws))
	for _, w := range ws {
		v, err := w.Uint64()
		Expect(err).NotTo(HaveOccurred())
		res = append(res, v)
	}

	return res
}

var _ = Describe("Master and Memory", func() {
	var b *bench

	Context("without bursts", func() {
		BeforeEach(func() {
			b = newBench(newInterface(false), nil)
		})

		It("should read back a written word", func() {
			b.write(0x10, 0xdeadbeef)

			got := b.read(0x10)

			Expect(got.Uint64()).To(Equal(uint64(0xdeadbeef)))
			Expect(b.warnings()).To(BeEmpty())
		})

		It("should keep the byte lanes that are not enabled", func() {
			b.write(0x10, 0x11223344)

			done := false
			Expect(b.master.WriteMasked(0x10,
				signal.FromUint64(32, 0xaabbccdd),
				signal.FromUint64(4, 0x5),
				func() { done = true })).To(Succeed())
			b.run(func() bool { return done })

			Expect(b.read(0x10).Uint64()).To(Equal(uint64(0x11bb33dd)))
		})

		It("should treat never written lanes as zero in a masked write", func() {
			done := false
			Expect(b.master.WriteMasked(0x20,
				signal.FromUint64(32, 0xaabbccdd),
				signal.FromUint64(4, 0x3),
				func() { done = true })).To(Succeed())
			b.run(func() bool { return done })

			Expect(b.read(0x20).Uint64()).To(Equal(uint64(0x0000ccdd)))
		})

		It("should return unknown for a never written address", func() {
			got := b.read(0x40)

			Expect(got.IsResolvable()).To(BeFalse())
			Expect(b.warnings()).To(HaveLen(1))
			Expect(b.warnings()[0].Message).To(
				Equal("attempt to read from uninitialized address 0x40"))
		})

		It("should see the words written through the back door", func() {
			Expect(b.memory.Store().WriteWord(0x8,
				signal.FromUint64(32, 0x01020304))).To(Succeed())

			Expect(b.read(0x8).Uint64()).To(Equal(uint64(0x01020304)))

			b.write(0xc, 0x0a0b0c0d)
			Expect(b.memory.Store().ReadWord(0xc, 32).Uint64()).
				To(Equal(uint64(0x0a0b0c0d)))

			data, ok := b.memory.Store().Read(0xc, 4)
			Expect(ok).To(BeTrue())
			Expect(data).To(Equal([]byte{0x0d, 0x0c, 0x0b, 0x0a}))
		})

		It("should serialize the transactions issued together", func() {
			var order []string

			Expect(b.master.Write(0x0, signal.FromUint64(32, 1),
				func() { order = append(order, "w0") })).To(Succeed())
			Expect(b.master.Write(0x4, signal.FromUint64(32, 2),
				func() { order = append(order, "w1") })).To(Succeed())
			Expect(b.master.Read(0x4, true, func(w signal.Word) {
				v, _ := w.Uint64()
				Expect(v).To(Equal(uint64(2)))
				order = append(order, "r1")
			})).To(Succeed())

			Expect(b.master.IsBusy()).To(BeTrue())
			b.run(func() bool { return len(order) == 3 })

			Expect(order).To(Equal([]string{"w0", "w1", "r1"}))
			Expect(b.master.IsBusy()).To(BeFalse())
		})

		It("should report the transactions", func() {
			var txns []avalon.Transaction
			b.master.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos == avalon.HookPosTransactionDone {
					txns = append(txns, ctx.Item.(avalon.Transaction))
				}
			}))

			b.write(0x10, 5)
			b.read(0x10)

			Expect(txns).To(HaveLen(2))
			Expect(txns[0].Kind).To(Equal("write"))
			Expect(txns[1].Kind).To(Equal("read"))
			Expect(txns[1].Address).To(Equal(uint64(0x10)))
			Expect(uint64s(txns[1].Data)).To(Equal([]uint64{5}))
			Expect(txns[1].EndCycle - txns[1].StartCycle).To(Equal(uint64(2)))
		})

		It("should trace the transactions", func() {
			steps := tracing.NewStepCountTracer(nil)
			tracing.CollectTrace(b.master, steps)

			b.write(0x10, 5)
			b.read(0x10)

			Expect(steps.GetStepCount("accepted")).To(Equal(uint64(1)))
			Expect(steps.GetTaskCount("accepted")).To(Equal(uint64(1)))
		})

		It("should blank the request after the transaction", func() {
			b.write(0x10, 5)

			Expect(b.iface.MustSignal("write").IsHigh()).To(BeFalse())
			Expect(b.iface.MustSignal("address").Value().IsResolvable()).
				To(BeFalse())
			Expect(b.iface.MustSignal("writedata").Value().IsResolvable()).
				To(BeFalse())
		})

		It("should reject values of the wrong width", func() {
			err := b.master.Write(0, signal.FromUint64(16, 1), nil)

			Expect(avalon.IsValidationError(err)).To(BeTrue())
		})

		It("should reject bursts", func() {
			err := b.master.BurstRead(0, 2, nil)

			Expect(avalon.IsConfigurationError(err)).To(BeTrue())
		})

		It("should tell the size of the address space", func() {
			Expect(b.master.Size()).To(Equal(uint64(1) << 32))
		})
	})

	Context("with a read latency", func() {
		It("should delay the read data", func() {
			b = newBench(newInterface(false), avalon.Options{
				avalon.OptReadLatencyMin: 3,
				avalon.OptReadLatencyMax: 3,
			})

			var txn avalon.Transaction
			b.master.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos == avalon.HookPosTransactionDone {
					txn = ctx.Item.(avalon.Transaction)
				}
			}))

			b.write(0x10, 9)
			Expect(b.read(0x10).Uint64()).To(Equal(uint64(9)))
			Expect(txn.EndCycle - txn.StartCycle).To(Equal(uint64(4)))
		})
	})

	Context("with bursts", func() {
		BeforeEach(func() {
			b = newBench(newInterface(true), nil)
		})

		burstWrite := func(addr uint64, values []signal.Word) {
			done := false
			Expect(b.master.BurstWrite(addr, values,
				func() { done = true })).To(Succeed())
			b.run(func() bool { return done })
		}

		burstRead := func(addr uint64, n int) []signal.Word {
			var got []signal.Word
			Expect(b.master.BurstRead(addr, n,
				func(ws []signal.Word) { got = ws })).To(Succeed())
			b.run(func() bool { return got != nil })

			return got
		}

		It("should hold waitrequest between bursts", func() {
			Expect(b.iface.MustSignal("waitrequest").IsHigh()).To(BeTrue())
		})

		It("should read back a burst write", func() {
			burstWrite(0x100, words(1, 2, 3, 4))

			got := burstRead(0x100, 4)

			Expect(uint64s(got)).To(Equal([]uint64{1, 2, 3, 4}))
			Expect(b.memory.IsIdle()).To(BeTrue())
		})

		It("should survive many bursts with random wait states", func() {
			for i := uint64(0); i < 8; i++ {
				burstWrite(0x200+i*16, words(i, i+1, i+2, i+3))
			}

			for i := uint64(0); i < 8; i++ {
				Expect(uint64s(burstRead(0x200+i*16, 4))).
					To(Equal([]uint64{i, i + 1, i + 2, i + 3}))
			}
		})

		It("should refuse a partial masked write before driving", func() {
			err := b.master.WriteMasked(0x10,
				signal.FromUint64(32, 0xaabbccdd),
				signal.FromUint64(4, 0x5), nil)

			Expect(avalon.IsValidationError(err)).To(BeTrue())
			Expect(b.master.IsBusy()).To(BeFalse())
			Expect(b.clock.RunCycles(4)).To(Succeed())
		})

		It("should take a masked write with every lane enabled", func() {
			done := false
			Expect(b.master.WriteMasked(0x10,
				signal.FromUint64(32, 0xaabbccdd),
				signal.FromUint64(4, 0xf),
				func() { done = true })).To(Succeed())
			b.run(func() bool { return done })

			Expect(b.read(0x10).Uint64()).To(Equal(uint64(0xaabbccdd)))
		})

		It("should read single words as one-beat bursts", func() {
			burstWrite(0x40, words(7, 8))

			Expect(b.read(0x44).Uint64()).To(Equal(uint64(8)))
		})

		It("should return unknown words for uninitialized addresses", func() {
			burstWrite(0x80, words(1))

			got := burstRead(0x80, 2)

			Expect(got[0].Uint64()).To(Equal(uint64(1)))
			Expect(got[1].IsResolvable()).To(BeFalse())
			Expect(b.warnings()).To(HaveLen(1))
		})

		It("should validate bursts before driving them", func() {
			Expect(avalon.IsValidationError(
				b.master.BurstRead(0x102, 2, nil))).To(BeTrue())
			Expect(avalon.IsValidationError(
				b.master.BurstRead(0x100, 0, nil))).To(BeTrue())
			Expect(avalon.IsValidationError(
				b.master.BurstWrite(0x100, nil, nil))).To(BeTrue())
			Expect(avalon.IsValidationError(
				b.master.BurstRead(0x100, 256, nil))).To(BeTrue())
			Expect(b.master.IsBusy()).To(BeFalse())
		})
	})
})

var _ = Describe("MasterBuilder", func() {
	var clock *timing.Clock

	BeforeEach(func() {
		clock = timing.NewClock("Clock", timing.NewSerialEngine())
	})

	It("should reject read on a write-only master", func() {
		iface := signal.NewInterface("avm")
		iface.Add("address", 16)
		iface.Add("write", 1)
		iface.Add("writedata", 32)

		m, err := MakeMasterBuilder().
			WithClock(clock).
			WithInterface(iface).
			Build("Master")
		Expect(err).NotTo(HaveOccurred())

		err = m.Read(0, true, nil)
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
		Expect(m.Size()).To(Equal(uint64(1) << 16))
	})

	It("should reject write on a read-only master", func() {
		iface := signal.NewInterface("avm")
		iface.Add("address", 16)
		iface.Add("read", 1)
		iface.Add("readdata", 32)

		m, err := MakeMasterBuilder().
			WithClock(clock).
			WithInterface(iface).
			Build("Master")
		Expect(err).NotTo(HaveOccurred())

		err = m.Write(0, signal.FromUint64(32, 0), nil)
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})

	It("should require the address signal", func() {
		iface := signal.NewInterface("avm")
		iface.Add("read", 1)

		_, err := MakeMasterBuilder().
			WithClock(clock).
			WithInterface(iface).
			Build("Master")
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})

	It("should reject options", func() {
		_, err := MakeMasterBuilder().
			WithClock(clock).
			WithInterface(newInterface(false)).
			WithOptions(avalon.Options{avalon.OptReadLatency: 2}).
			Build("Master")
		Expect(avalon.IsConfigurationError(err)).To(BeTrue())
	})
})
