package main

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/avalonbus/avalon/mm"
	"github.com/sarchlab/avalonbus/monitoring"
	"github.com/sarchlab/avalonbus/signal"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Run random transactions from a master against the burst memory.",
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

		n, err := runMemory(e, sc.Memory, rand.New(rand.NewSource(flags.seed)),
			flags.maxCycles)
		closeErr := e.close()

		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "memory: %d transactions checked, %s\n",
			n, e.summary())

		return closeErr
	},
}

func newMemoryInterface(sc memoryScenario) *signal.Interface {
	iface := signal.NewInterface("avm")
	iface.Add("address", sc.AddressWidth)
	iface.Add("read", 1)
	iface.Add("write", 1)
	iface.Add("readdata", sc.DataWidth)
	iface.Add("writedata", sc.DataWidth)
	iface.Add("waitrequest", 1)
	iface.Add("readdatavalid", 1)
	iface.Add("byteenable", sc.DataWidth/8)

	if sc.BurstWidth > 0 {
		iface.Add("burstcount", sc.BurstWidth)
	}

	return iface
}

// memoryLoopback issues the transactions and keeps a copy of what the
// memory should hold. Transactions complete in the order they are issued,
// so the copy is updated when a transaction is issued.
type memoryLoopback struct {
	master *mm.Master
	memory *mm.Memory
	bar    *monitoring.ProgressBar
	rng    *rand.Rand
	sc     memoryScenario

	shadow    map[uint64][]byte
	wordBytes int
	issued    int
	completed int
	mismatch  error
}

func buildMemoryLoopback(
	e *environment,
	sc memoryScenario,
	rng *rand.Rand,
) (*memoryLoopback, error) {
	iface := newMemoryInterface(sc)

	l := &memoryLoopback{
		rng:       rng,
		sc:        sc,
		shadow:    make(map[uint64][]byte),
		wordBytes: sc.DataWidth / 8,
	}

	var err error

	l.master, err = mm.MakeMasterBuilder().
		WithClock(e.clock).
		WithInterface(iface).
		Build("Master")
	if err != nil {
		return nil, err
	}

	l.memory, err = mm.MakeMemoryBuilder().
		WithClock(e.clock).
		WithInterface(iface).
		WithOptions(sc.Options).
		WithRand(rng).
		Build("Memory")
	if err != nil {
		return nil, err
	}

	e.register(l.master)
	e.register(l.memory)

	if e.monitor != nil {
		l.bar = e.monitor.CreateProgressBar("Transactions",
			uint64(sc.Transactions))
	}

	return l, nil
}

func (l *memoryLoopback) randomAddress(words int) uint64 {
	slots := l.sc.AddressSpace/l.wordBytes - words + 1
	return uint64(l.rng.Intn(slots) * l.wordBytes)
}

func (l *memoryLoopback) randomWord() []byte {
	b := make([]byte, l.wordBytes)
	l.rng.Read(b)

	return b
}

func (l *memoryLoopback) expected(addr uint64) signal.Word {
	b, ok := l.shadow[addr]
	if !ok {
		return signal.Unknown(l.sc.DataWidth)
	}

	return signal.FromBytes(l.sc.DataWidth, b, false)
}

func (l *memoryLoopback) done() {
	l.completed++

	if l.bar != nil {
		l.bar.Finish(1)
	}
}

func (l *memoryLoopback) compare(addr uint64, want, got signal.Word) {
	if want.Equal(got) {
		return
	}

	if l.bar != nil {
		l.bar.Mismatch()
	}

	if l.mismatch == nil {
		l.mismatch = errors.Errorf("read 0x%x: expected %s, got %s",
			addr, want, got)
	}
}

// issue issues one random transaction.
func (l *memoryLoopback) issue() error {
	kinds := 3
	if l.sc.BurstWidth > 0 {
		kinds = 5
	}

	l.issued++

	switch l.rng.Intn(kinds) {
	case 0:
		return l.issueWrite()
	case 1:
		return l.issueMaskedWrite()
	case 2:
		return l.issueRead()
	case 3:
		return l.issueBurstWrite()
	default:
		return l.issueBurstRead()
	}
}

func (l *memoryLoopback) issueWrite() error {
	addr := l.randomAddress(1)
	data := l.randomWord()
	l.shadow[addr] = data

	return l.master.Write(addr,
		signal.FromBytes(l.sc.DataWidth, data, false), l.done)
}

func (l *memoryLoopback) issueMaskedWrite() error {
	addr := l.randomAddress(1)
	data := l.randomWord()
	mask := uint64(l.rng.Intn(1 << uint(l.wordBytes)))

	merged, ok := l.shadow[addr]
	if !ok {
		merged = make([]byte, l.wordBytes)
	}

	merged = append([]byte(nil), merged...)
	for i := range merged {
		if mask&(1<<uint(i)) != 0 {
			merged[i] = data[i]
		}
	}

	l.shadow[addr] = merged

	return l.master.WriteMasked(addr,
		signal.FromBytes(l.sc.DataWidth, data, false),
		signal.FromUint64(l.wordBytes, mask),
		l.done)
}

func (l *memoryLoopback) issueRead() error {
	addr := l.randomAddress(1)
	want := l.expected(addr)

	return l.master.Read(addr, true, func(got signal.Word) {
		l.compare(addr, want, got)
		l.done()
	})
}

func (l *memoryLoopback) issueBurstWrite() error {
	n := 1 + l.rng.Intn(l.sc.maxBurst())
	addr := l.randomAddress(n)

	values := make([]signal.Word, n)
	for i := range values {
		data := l.randomWord()
		l.shadow[addr+uint64(i*l.wordBytes)] = data
		values[i] = signal.FromBytes(l.sc.DataWidth, data, false)
	}

	return l.master.BurstWrite(addr, values, l.done)
}

func (l *memoryLoopback) issueBurstRead() error {
	n := 1 + l.rng.Intn(l.sc.maxBurst())
	addr := l.randomAddress(n)

	want := make([]signal.Word, n)
	for i := range want {
		want[i] = l.expected(addr + uint64(i*l.wordBytes))
	}

	return l.master.BurstRead(addr, n, func(got []signal.Word) {
		if len(got) != n && l.mismatch == nil {
			l.mismatch = errors.Errorf("burst read 0x%x: expected %d words, "+
				"got %d", addr, n, len(got))
		}

		for i := 0; i < n && i < len(got); i++ {
			l.compare(addr+uint64(i*l.wordBytes), want[i], got[i])
		}

		l.done()
	})
}

// runMemory issues the transactions of the scenario and checks every read
// against the data written before it. It returns the number of completed
// transactions.
func runMemory(
	e *environment,
	sc memoryScenario,
	rng *rand.Rand,
	maxCycles uint64,
) (int, error) {
	l, err := buildMemoryLoopback(e, sc, rng)
	if err != nil {
		return 0, err
	}

	for i := 0; i < sc.Transactions; i++ {
		err = l.issue()
		if err != nil {
			return 0, err
		}
	}

	if l.bar != nil {
		l.bar.Start(uint64(sc.Transactions))
		defer e.monitor.CompleteProgressBar(l.bar)
	}

	err = e.run(func() bool {
		return l.mismatch != nil || l.completed == l.issued
	}, maxCycles)
	if err != nil {
		return l.completed, err
	}

	return l.completed, l.mismatch
}
