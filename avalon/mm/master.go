// Package mm provides an Avalon-MM master and a memory that responds to it,
// with single-word and burst transactions.
package mm

import (
	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/bus"
	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/sim/id"
	"github.com/sarchlab/avalonbus/sim/naming"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
	"github.com/sarchlab/avalonbus/tracing"
)

type masterState int

const (
	masterIdle masterState = iota
	masterDrive
	masterWaitAccept
	masterNextBeat
	masterDeassert
	masterWaitData
	masterSampleData
)

type txnKind int

const (
	txnRead txnKind = iota
	txnWrite
	txnBurstRead
	txnBurstWrite
)

func (k txnKind) String() string {
	switch k {
	case txnRead:
		return "read"
	case txnWrite:
		return "write"
	case txnBurstRead:
		return "burst_read"
	default:
		return "burst_write"
	}
}

func (k txnKind) isRead() bool {
	return k == txnRead || k == txnBurstRead
}

type transaction struct {
	id      string
	kind    txnKind
	address uint64
	sync    bool
	count   int
	values  []signal.Word
	mask    *signal.Word
	beat    int
	data    []signal.Word
	start   timing.VTimeInCycle

	state    masterState
	edgeAt   timing.VTimeInCycle
	sampleAt timing.VTimeInCycle

	onRead      func(signal.Word)
	onBurstRead func([]signal.Word)
	onWrite     func()
}

// Master issues blocking Avalon-MM transactions. Only one transaction is on
// the bus at a time. Transactions that are issued while another one is in
// flight wait for their turn, in order.
type Master struct {
	naming.NamedBase
	hooking.HookableBase

	clock timing.CycleTeller
	lock  bus.Lock

	address       *signal.Signal
	read          *signal.Signal
	write         *signal.Signal
	readData      *signal.Signal
	writeData     *signal.Signal
	waitRequest   *signal.Signal
	readDataValid *signal.Signal
	byteEnable    *signal.Signal
	cs            *signal.Signal
	burstCount    *signal.Signal

	txn *transaction
}

// Size returns the number of addresses that the master can reach. Address
// signals of 64 bits or more report the largest uint64.
func (m *Master) Size() uint64 {
	w := m.address.Width()
	if w >= 64 {
		return ^uint64(0)
	}

	return 1 << uint(w)
}

// IsBusy tells if a transaction is in flight or waiting.
func (m *Master) IsBusy() bool {
	return m.lock.Held()
}

func (m *Master) reset() {
	if m.read != nil {
		m.read.SetUint64(0)
	}

	if m.write != nil {
		m.write.SetUint64(0)
		m.writeData.SetUnknown()
	}

	if m.byteEnable != nil {
		m.byteEnable.SetUint64(0)
	}

	if m.cs != nil {
		m.cs.SetUint64(0)
	}

	m.address.SetUnknown()
}

// Read reads a word from the address and passes it to onDone. If sync is
// false and the clock is not sampling, the request is driven right away
// instead of at the next edge.
func (m *Master) Read(
	address uint64,
	sync bool,
	onDone func(signal.Word),
) error {
	if m.read == nil || m.readData == nil {
		return avalon.NewConfigurationError(m.Name(),
			"attempt to read on a write-only master")
	}

	m.issue(&transaction{
		kind:    txnRead,
		address: address,
		sync:    sync,
		count:   1,
		onRead:  onDone,
	})

	return nil
}

// Write writes a word to the address and calls onDone when the write is
// done.
func (m *Master) Write(address uint64, value signal.Word, onDone func()) error {
	return m.issueWrite(address, value, nil, onDone)
}

func (m *Master) issueWrite(
	address uint64,
	value signal.Word,
	mask *signal.Word,
	onDone func(),
) error {
	if m.write == nil || m.writeData == nil {
		return avalon.NewConfigurationError(m.Name(),
			"attempt to write on a read-only master")
	}

	if value.Width() != m.writeData.Width() {
		return avalon.NewValidationError(m.Name(),
			"cannot write a %d-bit value on a %d-bit bus",
			value.Width(), m.writeData.Width())
	}

	m.issue(&transaction{
		kind:    txnWrite,
		address: address,
		sync:    true,
		count:   1,
		values:  []signal.Word{value},
		mask:    mask,
		onWrite: onDone,
	})

	return nil
}

// WriteMasked writes only the byte lanes of the value that are selected by
// mask. Bit i of mask enables byte lane i.
func (m *Master) WriteMasked(
	address uint64,
	value signal.Word,
	mask signal.Word,
	onDone func(),
) error {
	if m.byteEnable == nil {
		return avalon.NewConfigurationError(m.Name(),
			"masked write needs the byteenable signal")
	}

	if mask.Width() != m.byteEnable.Width() {
		return avalon.NewValidationError(m.Name(),
			"cannot drive a %d-bit mask on a %d-bit byteenable",
			mask.Width(), m.byteEnable.Width())
	}

	if m.burstCount != nil && !mask.Equal(signal.Ones(mask.Width())) {
		return avalon.NewValidationError(m.Name(),
			"only full word access is supported on a burst interface, "+
				"byteenable is %s", mask)
	}

	return m.issueWrite(address, value, &mask, onDone)
}

// BurstRead reads count consecutive words starting from a word-aligned
// address.
func (m *Master) BurstRead(
	address uint64,
	count int,
	onDone func([]signal.Word),
) error {
	if m.read == nil || m.readData == nil ||
		m.burstCount == nil || m.readDataValid == nil {
		return avalon.NewConfigurationError(m.Name(),
			"burst read needs the read, readdata, burstcount "+
				"and readdatavalid signals")
	}

	err := m.checkBurst(address, count, m.readData.Width())
	if err != nil {
		return err
	}

	m.issue(&transaction{
		kind:        txnBurstRead,
		address:     address,
		sync:        true,
		count:       count,
		onBurstRead: onDone,
	})

	return nil
}

// BurstWrite writes the values to consecutive words starting from a
// word-aligned address.
func (m *Master) BurstWrite(
	address uint64,
	values []signal.Word,
	onDone func(),
) error {
	if m.write == nil || m.writeData == nil || m.burstCount == nil {
		return avalon.NewConfigurationError(m.Name(),
			"burst write needs the write, writedata and burstcount signals")
	}

	err := m.checkBurst(address, len(values), m.writeData.Width())
	if err != nil {
		return err
	}

	for i, v := range values {
		if v.Width() != m.writeData.Width() {
			return avalon.NewValidationError(m.Name(),
				"value %d is %d bits wide, the bus is %d bits wide",
				i, v.Width(), m.writeData.Width())
		}
	}

	m.issue(&transaction{
		kind:    txnBurstWrite,
		address: address,
		sync:    true,
		count:   len(values),
		values:  append([]signal.Word(nil), values...),
		onWrite: onDone,
	})

	return nil
}

func (m *Master) checkBurst(address uint64, count, width int) error {
	if count < 1 {
		return avalon.NewValidationError(m.Name(),
			"burst count must be 1 at least, got %d", count)
	}

	if m.burstCount.Width() < 64 &&
		uint64(count) >= 1<<uint(m.burstCount.Width()) {
		return avalon.NewValidationError(m.Name(),
			"burst count %d does not fit in %d bits",
			count, m.burstCount.Width())
	}

	if address%uint64(width/8) != 0 {
		return avalon.NewValidationError(m.Name(),
			"burst address 0x%x is not aligned to the %d-bit data width",
			address, width)
	}

	return nil
}

func (m *Master) issue(t *transaction) {
	t.id = id.Generate()
	m.lock.Acquire(func() { m.begin(t) })
}

func (m *Master) begin(t *transaction) {
	m.txn = t
	t.start = m.clock.NextSample()

	tracing.StartTask(t.id, "", m, tracing.KindRequestOut, t.kind.String(), t)

	if t.kind == txnRead && !t.sync && m.clock.Phase() != timing.PhaseSample {
		m.driveRequest(t)
		t.state = masterWaitAccept
		t.sampleAt = m.clock.NextSample()

		return
	}

	t.state = masterDrive
	t.edgeAt = m.clock.NextEdge()
}

// OnEdge drives the signals of the transaction in flight.
func (m *Master) OnEdge(cycle timing.VTimeInCycle) error {
	t := m.txn
	if t == nil || cycle < t.edgeAt {
		return nil
	}

	switch t.state {
	case masterDrive:
		m.driveRequest(t)
		t.state = masterWaitAccept
		t.sampleAt = cycle
	case masterNextBeat:
		m.writeData.Set(t.values[t.beat])
		t.state = masterWaitAccept
		t.sampleAt = cycle
	case masterDeassert:
		m.deassert(t)
		m.afterDeassert(t, cycle)
	}

	return nil
}

func (m *Master) afterDeassert(t *transaction, cycle timing.VTimeInCycle) {
	if !t.kind.isRead() {
		m.finish(t, cycle)
		return
	}

	tracing.AddTaskStep(t.id, m, tracing.StepAccepted)

	t.sampleAt = cycle
	if m.readDataValid != nil {
		t.state = masterWaitData
	} else {
		t.state = masterSampleData
	}
}

// OnSample observes the responses of the slave.
func (m *Master) OnSample(cycle timing.VTimeInCycle) error {
	t := m.txn
	if t == nil || cycle < t.sampleAt {
		return nil
	}

	switch t.state {
	case masterWaitAccept:
		if !m.accepted() {
			return nil
		}

		if t.kind == txnBurstWrite && t.beat+1 < len(t.values) {
			t.beat++
			t.state = masterNextBeat
		} else {
			t.state = masterDeassert
		}

		t.edgeAt = cycle + 1
	case masterWaitData:
		if m.readDataValid.IsHigh() {
			t.data = append(t.data, m.readData.Value())
			if len(t.data) == t.count {
				m.finish(t, cycle)
			}
		}
	case masterSampleData:
		t.data = append(t.data, m.readData.Value())
		m.finish(t, cycle)
	}

	return nil
}

func (m *Master) accepted() bool {
	if m.waitRequest == nil {
		return true
	}

	v := m.waitRequest.Value()

	return v.IsResolvable() && !v.IsTrue()
}

func (m *Master) driveRequest(t *transaction) {
	m.address.SetUint64(t.address)

	if t.kind.isRead() {
		m.read.SetUint64(1)
	} else {
		m.write.SetUint64(1)
		m.writeData.Set(t.values[0])
	}

	switch {
	case m.byteEnable == nil:
	case t.mask != nil:
		m.byteEnable.Set(*t.mask)
	default:
		m.byteEnable.SetOnes()
	}

	if m.cs != nil {
		m.cs.SetUint64(1)
	}

	if m.burstCount != nil {
		m.burstCount.SetUint64(uint64(t.count))
	}
}

func (m *Master) deassert(t *transaction) {
	if t.kind.isRead() {
		m.read.SetUint64(0)
	} else {
		m.write.SetUint64(0)
		m.writeData.SetUnknown()
	}

	if m.byteEnable != nil {
		m.byteEnable.SetUint64(0)
	}

	if m.cs != nil {
		m.cs.SetUint64(0)
	}

	if m.burstCount != nil {
		m.burstCount.SetUnknown()
	}

	m.address.SetUnknown()
}

func (m *Master) finish(t *transaction, cycle timing.VTimeInCycle) {
	m.txn = nil

	if m.NumHooks() > 0 {
		data := t.data
		if !t.kind.isRead() {
			data = t.values
		}

		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    avalon.HookPosTransactionDone,
			Item: avalon.Transaction{
				ID:         t.id,
				Kind:       t.kind.String(),
				Address:    t.address,
				Data:       data,
				StartCycle: uint64(t.start),
				EndCycle:   uint64(cycle),
			},
		})
	}

	tracing.EndTask(t.id, m)

	m.lock.Release()

	switch {
	case t.onRead != nil:
		t.onRead(t.data[0])
	case t.onBurstRead != nil:
		t.onBurstRead(t.data)
	case t.onWrite != nil:
		t.onWrite()
	}
}
