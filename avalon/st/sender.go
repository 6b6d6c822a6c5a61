package st

import (
	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/bus"
	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/sim/id"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/signal"
	"github.com/sarchlab/avalonbus/tracing"
)

type sendState int

const (
	sendWaitEdge sendState = iota
	sendGap
	sendWaitReady
	sendDeassert
)

// A job is one call to Send. It drives a number of beats, one per cycle at
// most, and then blanks the bus.
type job struct {
	id     string
	what   string
	sync   bool
	beats  int
	beat   int
	detail interface{}

	// init drives the idle values before the first beat.
	init func()
	// drive drives beat i and tells if valid is asserted.
	drive func(i int) bool
	// blank releases the bus after the last beat.
	blank  func()
	onDone func()

	asserted bool
	state    sendState
	edgeAt   timing.VTimeInCycle
	sampleAt timing.VTimeInCycle
}

// sender runs jobs through the valid/ready handshake, one at a time.
type sender struct {
	owner    tracing.NamedHookable
	clock    timing.CycleTeller
	throttle *bus.Throttle
	lock     bus.Lock

	valid *signal.Signal
	data  *signal.Signal
	ready *signal.Signal

	job *job
}

func (s *sender) isBusy() bool {
	return s.lock.Held()
}

func (s *sender) start(j *job) {
	j.id = id.Generate()
	s.lock.Acquire(func() { s.begin(j) })
}

func (s *sender) begin(j *job) {
	s.job = j

	tracing.StartTask(j.id, "", s.owner,
		tracing.KindRequestOut, j.what, j.detail)

	j.init()

	if !j.sync && s.clock.Phase() != timing.PhaseSample {
		s.driveBeat(j, s.clock.NextSample())
		return
	}

	j.state = sendWaitEdge
	j.edgeAt = s.clock.NextEdge()
}

func (s *sender) onEdge(cycle timing.VTimeInCycle) {
	j := s.job
	if j == nil || cycle < j.edgeAt {
		return
	}

	switch j.state {
	case sendWaitEdge:
		s.driveBeat(j, cycle)
	case sendGap:
		s.throttle.Advance()
		s.driveBeat(j, cycle)
	case sendDeassert:
		s.valid.SetUint64(0)
		j.blank()
		s.finish(j)
	}
}

func (s *sender) driveBeat(j *job, cycle timing.VTimeInCycle) {
	if s.throttle.IsOff() {
		s.valid.SetUint64(0)

		// The off cycles count from the first edge still to come.
		off := s.throttle.OffCycles()
		if off > 0 {
			j.state = sendGap
			j.edgeAt = s.clock.NextEdge() + timing.VTimeInCycle(off-1)

			return
		}

		s.throttle.Advance()
	}

	s.throttle.Consume()

	j.asserted = j.drive(j.beat)
	j.state = sendWaitReady
	j.sampleAt = cycle
}

func (s *sender) onSample(cycle timing.VTimeInCycle) {
	j := s.job
	if j == nil || j.state != sendWaitReady || cycle < j.sampleAt {
		return
	}

	if j.asserted {
		if s.ready != nil && !s.ready.IsHigh() {
			return
		}

		s.wordSent(cycle)
		tracing.AddTaskStep(j.id, s.owner, tracing.StepAccepted)
	}

	j.beat++
	if j.beat < j.beats {
		j.state = sendWaitEdge
	} else {
		j.state = sendDeassert
	}

	j.edgeAt = cycle + 1
}

func (s *sender) wordSent(cycle timing.VTimeInCycle) {
	if s.owner.NumHooks() == 0 {
		return
	}

	s.owner.InvokeHook(hooking.HookCtx{
		Domain: s.owner,
		Pos:    avalon.HookPosWordSent,
		Item:   s.data.Value(),
		Detail: cycle,
	})
}

func (s *sender) finish(j *job) {
	s.job = nil

	tracing.EndTask(j.id, s.owner)

	s.lock.Release()

	if j.onDone != nil {
		j.onDone()
	}
}
