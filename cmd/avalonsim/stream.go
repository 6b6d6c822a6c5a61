package main

import (
	"bytes"
	"fmt"
	"math/bits"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/avalonbus/avalon/st"
	"github.com/sarchlab/avalonbus/bus"
	"github.com/sarchlab/avalonbus/monitoring"
	"github.com/sarchlab/avalonbus/sim/naming"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Send random packets from a packet driver to a packet monitor.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sc, err := loadScenario(flags.config)
		if err != nil {
			return err
		}

		e, err := buildEnv(flags)
		if err != nil {
			return err
		}

		n, err := runStream(e, sc.Stream, rand.New(rand.NewSource(flags.seed)),
			flags.maxCycles)
		closeErr := e.close()

		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "stream: %d packets checked, %s\n",
			n, e.summary())

		return closeErr
	},
}

// readyToggler drives the ready signal of the sink at random.
type readyToggler struct {
	naming.NamedBase

	ready   *signal.Signal
	rng     *rand.Rand
	percent int
}

func (t *readyToggler) OnEdge(timing.VTimeInCycle) error {
	if t.rng.Intn(100) < t.percent {
		t.ready.SetUint64(1)
	} else {
		t.ready.SetUint64(0)
	}

	return nil
}

func (t *readyToggler) OnSample(timing.VTimeInCycle) error {
	return nil
}

func newStreamInterface(sc streamScenario) *signal.Interface {
	iface := signal.NewInterface("st")
	iface.Add("valid", 1).SetUint64(0)
	iface.Add("data", sc.DataWidth)
	iface.Add("startofpacket", 1)
	iface.Add("endofpacket", 1)

	if symbols := sc.DataWidth / 8; symbols > 1 {
		iface.Add("empty", bits.Len(uint(symbols-1)))
	}

	if sc.ChannelWidth > 0 {
		iface.Add("channel", sc.ChannelWidth)
	}

	if sc.ReadyPercent < 100 {
		iface.Add("ready", 1).SetUint64(0)
	}

	return iface
}

type streamLoopback struct {
	driver  *st.PacketDriver
	monitor *st.PacketMonitor
	bar     *monitoring.ProgressBar

	expected []st.ChannelPacket
	checked  int
	mismatch error
}

func buildStreamLoopback(
	e *environment,
	sc streamScenario,
	rng *rand.Rand,
) (*streamLoopback, error) {
	iface := newStreamInterface(sc)

	var gen bus.OnOffGenerator
	if sc.MaxOn > 0 {
		gen = bus.RandomOnOff(rng, sc.MaxOn, sc.MaxOff)
	}

	l := &streamLoopback{}

	var err error

	l.driver, err = st.MakePacketDriverBuilder().
		WithClock(e.clock).
		WithInterface(iface).
		WithOptions(sc.DriverOptions).
		WithThrottle(gen).
		Build("Source")
	if err != nil {
		return nil, err
	}

	l.monitor, err = st.MakePacketMonitorBuilder().
		WithClock(e.clock).
		WithInterface(iface).
		WithOptions(sc.MonitorOptions).
		WithChannelReporting(sc.ChannelWidth > 0).
		Build("Sink")
	if err != nil {
		return nil, err
	}

	e.register(l.driver)
	e.register(l.monitor)
	l.monitor.AddCallback(l.check)

	if ready, ok := iface.Signal("ready"); ok {
		t := &readyToggler{
			NamedBase: naming.MakeNamedBase("Sink.Ready"),
			ready:     ready,
			rng:       rng,
			percent:   sc.ReadyPercent,
		}
		e.clock.Register(t)
		e.sim.RegisterComponent(t)
	}

	if e.monitor != nil {
		l.bar = e.monitor.CreateProgressBar("Packets", uint64(sc.Packets))
	}

	return l, nil
}

func (l *streamLoopback) check(item interface{}) {
	var got st.ChannelPacket

	switch item := item.(type) {
	case st.ChannelPacket:
		got = item
	case []byte:
		got = st.ChannelPacket{Data: item}
	}

	if l.bar != nil {
		l.bar.Finish(1)
	}

	if l.checked >= len(l.expected) {
		if l.mismatch == nil {
			l.mismatch = errors.Errorf("unexpected packet %s", got)
		}

		return
	}

	want := l.expected[l.checked]
	if !bytes.Equal(want.Data, got.Data) || want.Channel != got.Channel {
		if l.bar != nil {
			l.bar.Mismatch()
		}

		if l.mismatch == nil {
			l.mismatch = errors.Errorf("packet %d: sent %s, received %s",
				l.checked, want, got)
		}
	}

	l.checked++
}

// runStream sends the packets of the scenario and checks that the monitor
// rebuilds all of them in order. It returns the number of packets checked.
func runStream(
	e *environment,
	sc streamScenario,
	rng *rand.Rand,
	maxCycles uint64,
) (int, error) {
	l, err := buildStreamLoopback(e, sc, rng)
	if err != nil {
		return 0, err
	}

	for i := 0; i < sc.Packets; i++ {
		pkt := st.ChannelPacket{Data: make([]byte, 1+rng.Intn(sc.MaxPacketLen))}
		rng.Read(pkt.Data)

		var channel *int
		if sc.ChannelWidth > 0 {
			pkt.Channel = rng.Intn(l.driver.MaxChannel() + 1)
			channel = &pkt.Channel
		}

		l.expected = append(l.expected, pkt)

		err = l.driver.Send(pkt.Data, true, channel, nil)
		if err != nil {
			return 0, err
		}
	}

	if l.bar != nil {
		l.bar.Start(uint64(sc.Packets))
		defer e.monitor.CompleteProgressBar(l.bar)
	}

	err = e.run(func() bool {
		return l.mismatch != nil || l.checked == len(l.expected)
	}, maxCycles)
	if err != nil {
		return l.checked, err
	}

	return l.checked, l.mismatch
}
