package mm

import (
	"math/rand"

	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/sim/naming"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
)

type memoryState int

const (
	memIdle memoryState = iota
	memBurstReadArbitrate
	memBurstReadRelease
	memBurstReadStream
	memBurstReadDone
	memBurstWriteStall
	memBurstWriteHold
	memBurstWriteBeat
	memBurstWriteFinish
)

type burst struct {
	addr  uint64
	count int
	done  int
	wait  int
}

// Memory emulates an Avalon-MM slave memory. It answers single-word reads
// and writes and, when the interface has a burstcount signal, bursts.
//
// Memory drives its outputs at the clock edge and samples the request
// signals in the sample phase of every cycle.
type Memory struct {
	naming.NamedBase
	hooking.HookableBase

	rng       *rand.Rand
	store     *Store
	responses ResponseQueue

	address       *signal.Signal
	read          *signal.Signal
	write         *signal.Signal
	readData      *signal.Signal
	writeData     *signal.Signal
	readDataValid *signal.Signal
	waitRequest   *signal.Signal
	burstCount    *signal.Signal
	byteEnable    *signal.Signal

	readable   bool
	writeable  bool
	burstRead  bool
	burstWrite bool
	width      int
	wordBytes  int

	readLatency       int
	writeBurstWaitReq bool
	maxWaitReqLen     int
	latencyMin        int
	latencyMax        int

	state memoryState
	burst burst
}

// Store returns the storage of the memory, for back-door access.
func (m *Memory) Store() *Store {
	return m.store
}

// Responses returns the number of read responses waiting to be driven.
func (m *Memory) Responses() int {
	return m.responses.Len()
}

// IsIdle tells if the memory is not in the middle of a burst.
func (m *Memory) IsIdle() bool {
	return m.state == memIdle
}

func (m *Memory) reset() {
	if m.readDataValid != nil {
		m.readDataValid.SetUint64(0)
	}

	if m.waitRequest != nil {
		m.waitRequest.SetUint64(0)
	}

	if m.burstCount != nil && m.writeBurstWaitReq {
		m.waitRequest.SetUint64(1)
	}
}

// OnEdge drives the next read response, or advances the current burst.
func (m *Memory) OnEdge(cycle timing.VTimeInCycle) error {
	switch m.state {
	case memIdle:
		m.driveResponse()
	case memBurstReadArbitrate:
		m.waitRequest.SetUint64(1)
		m.state = memBurstReadRelease
	case memBurstReadRelease:
		m.waitRequest.SetUint64(0)
		m.burst.wait = m.readLatency
		m.state = memBurstReadStream
	case memBurstReadStream:
		m.streamBurstRead(cycle)
	case memBurstWriteStall:
		m.stall()
	case memBurstWriteHold:
		m.burst.wait--
		if m.burst.wait == 0 {
			m.waitRequest.SetUint64(0)
			m.state = memBurstWriteBeat
		}
	case memBurstWriteFinish:
		if m.writeBurstWaitReq {
			m.waitRequest.SetUint64(1)
		}

		m.state = memIdle
	}

	return nil
}

// OnSample inspects the request signals.
func (m *Memory) OnSample(cycle timing.VTimeInCycle) error {
	switch m.state {
	case memIdle:
		return m.inspect(cycle)
	case memBurstReadDone:
		m.state = memIdle
	case memBurstWriteBeat:
		if m.write.IsHigh() {
			return m.captureBeat(cycle)
		}
	}

	return nil
}

func (m *Memory) driveResponse() {
	r := m.responses.Pop()

	switch r.Kind {
	case ResponseValue:
		m.readData.Set(r.Value)
		m.setReadDataValid(1)
	case ResponseUnknown:
		m.readData.SetUnknown()
		m.setReadDataValid(1)
	default:
		m.setReadDataValid(0)
	}
}

func (m *Memory) setReadDataValid(v uint64) {
	if m.readDataValid != nil {
		m.readDataValid.SetUint64(v)
	}
}

func (m *Memory) inspect(cycle timing.VTimeInCycle) error {
	if m.readable && m.read.IsHigh() {
		if m.burstRead {
			return m.startBurstRead(cycle)
		}

		err := m.singleRead(cycle)
		if err != nil {
			return err
		}
	}

	if m.writeable && m.write.IsHigh() {
		if m.burstWrite {
			return m.startBurstWrite(cycle)
		}

		return m.singleWrite(cycle)
	}

	return nil
}

func (m *Memory) sampleAddress(cycle timing.VTimeInCycle) (uint64, error) {
	addr, err := m.address.Uint64()
	if err != nil {
		return 0, avalon.NewValidationError(m.Name(),
			"address %s is not resolvable at cycle %d", m.address.Value(), cycle)
	}

	return addr, nil
}

func (m *Memory) singleRead(cycle timing.VTimeInCycle) error {
	addr, err := m.sampleAddress(cycle)
	if err != nil {
		return err
	}

	m.responses.PadTo(m.drawReadLatency())
	m.pushWord(cycle, addr)

	return nil
}

func (m *Memory) drawReadLatency() int {
	return m.latencyMin + m.rng.Intn(m.latencyMax-m.latencyMin+1)
}

func (m *Memory) pushWord(cycle timing.VTimeInCycle, addr uint64) {
	data, ok := m.store.Read(addr, m.wordBytes)
	if !ok {
		avalon.Report(m, uint64(cycle), avalon.SeverityWarning,
			"attempt to read from uninitialized address 0x%x", addr)
		m.responses.PushUnknown()

		return
	}

	w := signal.FromBytes(m.width, data, false)
	avalon.Report(m, uint64(cycle), avalon.SeverityDebug,
		"read from address 0x%x returning %s", addr, w)
	m.responses.PushValue(w)
}

func (m *Memory) checkBurst(
	cycle timing.VTimeInCycle,
	kind string,
) (addr uint64, count int, err error) {
	addr, err = m.sampleAddress(cycle)
	if err != nil {
		return 0, 0, err
	}

	if addr%uint64(m.wordBytes) != 0 {
		return 0, 0, avalon.NewValidationError(m.Name(),
			"burst %s address 0x%x is not aligned to the %d-bit data width",
			kind, addr, m.width)
	}

	if !m.byteEnable.Value().Equal(signal.Ones(m.byteEnable.Width())) {
		return 0, 0, avalon.NewValidationError(m.Name(),
			"only full word access is supported for burst %s, byteenable is %s",
			kind, m.byteEnable.Value())
	}

	n, err := m.burstCount.Uint64()
	if err != nil || n == 0 {
		return 0, 0, avalon.NewValidationError(m.Name(),
			"burst %s count must be 1 at least, got %s",
			kind, m.burstCount.Value())
	}

	return addr, int(n), nil
}

func (m *Memory) startBurstRead(cycle timing.VTimeInCycle) error {
	addr, count, err := m.checkBurst(cycle, "read")
	if err != nil {
		return err
	}

	m.burst = burst{addr: addr, count: count}
	m.state = memBurstReadArbitrate

	return nil
}

func (m *Memory) streamBurstRead(cycle timing.VTimeInCycle) {
	if m.burst.wait > 0 {
		m.burst.wait--
		return
	}

	addr := m.burst.addr + uint64(m.burst.done*m.wordBytes)
	m.pushWord(cycle, addr)
	m.driveResponse()

	m.burst.done++
	if m.burst.done == m.burst.count {
		m.state = memBurstReadDone
	}
}

func (m *Memory) singleWrite(cycle timing.VTimeInCycle) error {
	addr, err := m.sampleAddress(cycle)
	if err != nil {
		return err
	}

	data, err := m.writeData.Value().Bytes(false)
	if err != nil {
		return avalon.NewValidationError(m.Name(),
			"write data %s is not resolvable at cycle %d",
			m.writeData.Value(), cycle)
	}

	if m.byteEnable != nil {
		old, _ := m.store.Read(addr, m.wordBytes)
		be := m.byteEnable.Value()

		for i := range data {
			enabled := false
			if i < be.Width() {
				enabled, _ = be.BitKnown(i)
			}

			if !enabled {
				data[i] = old[i]
			}
		}
	}

	m.store.Write(addr, data)
	avalon.Report(m, uint64(cycle), avalon.SeverityDebug,
		"write to address 0x%x -> %x", addr, data)

	return nil
}

func (m *Memory) startBurstWrite(cycle timing.VTimeInCycle) error {
	m.burst = burst{}

	if !m.waitRequest.IsHigh() {
		return m.captureBeat(cycle)
	}

	m.state = memBurstWriteStall

	return nil
}

func (m *Memory) stall() {
	k := 0
	if m.writeBurstWaitReq && m.rng.Intn(4) == 0 {
		k = m.rng.Intn(m.maxWaitReqLen + 1)
	}

	if k == 0 {
		m.waitRequest.SetUint64(0)
		m.state = memBurstWriteBeat

		return
	}

	m.waitRequest.SetUint64(1)
	m.burst.wait = k
	m.state = memBurstWriteHold
}

func (m *Memory) captureBeat(cycle timing.VTimeInCycle) error {
	if m.burst.done == 0 {
		addr, count, err := m.checkBurst(cycle, "write")
		if err != nil {
			return err
		}

		m.burst.addr = addr
		m.burst.count = count
	}

	data, err := m.writeData.Value().Bytes(false)
	if err != nil {
		return avalon.NewValidationError(m.Name(),
			"burst write data %s is not resolvable at cycle %d",
			m.writeData.Value(), cycle)
	}

	addr := m.burst.addr + uint64(m.burst.done*m.wordBytes)
	m.store.Write(addr, data)
	avalon.Report(m, uint64(cycle), avalon.SeverityDebug,
		"burst write %x @ 0x%x", data, addr)

	m.burst.done++
	if m.burst.done == m.burst.count {
		m.state = memBurstWriteFinish
	} else {
		m.state = memBurstWriteStall
	}

	return nil
}
