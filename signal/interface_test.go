package signal

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Interface", func() {
	var iface *Interface

	BeforeEach(func() {
		iface = NewInterface("DUT.Source")
		iface.Add("valid", 1)
		iface.Add("data", 32)
	})

	It("should start with unknown values", func() {
		s := iface.MustSignal("data")

		Expect(s.Width()).To(Equal(32))
		Expect(s.Value().IsResolvable()).To(BeFalse())
		Expect(iface.Names()).To(Equal([]string{"data", "valid"}))
	})

	It("should drive values", func() {
		s := iface.MustSignal("valid")

		s.SetUint64(1)
		Expect(s.IsHigh()).To(BeTrue())

		s.SetUnknown()
		Expect(s.IsHigh()).To(BeFalse())
	})

	It("should panic when driving a word of the wrong width", func() {
		Expect(func() {
			iface.MustSignal("valid").Set(Zero(2))
		}).To(Panic())
	})

	It("should bind required and optional signals", func() {
		b, err := Bind(iface, []string{"valid", "data"}, []string{"ready"})

		Expect(err).NotTo(HaveOccurred())
		Expect(b.Has("valid")).To(BeTrue())
		Expect(b.Has("ready")).To(BeFalse())
		Expect(b.Get("ready")).To(BeNil())
		Expect(b.Get("data")).To(BeIdenticalTo(iface.MustSignal("data")))
	})

	It("should fail to bind missing required signals", func() {
		_, err := Bind(iface,
			[]string{"valid", "data", "startofpacket", "endofpacket"}, nil)

		Expect(err).To(MatchError(ContainSubstring(
			"startofpacket, endofpacket")))
	})
})
