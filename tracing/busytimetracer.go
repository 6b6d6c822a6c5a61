package tracing

import (
	"sync"

	"github.com/sarchlab/avalonbus/sim/timing"
)

// BusyTimeTracer counts the cycles in which at least one transaction is in
// flight. Overlapping transactions, such as a read that waits for the bus
// lock while a burst is running, are counted once.
type BusyTimeTracer struct {
	timeTeller timing.TimeTeller
	filter     TaskFilter

	lock      sync.Mutex
	active    map[string]bool
	busySince timing.VTimeInCycle
	busyTime  timing.VTimeInCycle
}

// NewBusyTimeTracer creates a BusyTimeTracer that keeps the tasks accepted
// by the filter.
func NewBusyTimeTracer(
	timeTeller timing.TimeTeller,
	filter TaskFilter,
) *BusyTimeTracer {
	return &BusyTimeTracer{
		timeTeller: timeTeller,
		filter:     filter,
		active:     make(map[string]bool),
	}
}

// BusyTime returns the cycles of the busy periods that have closed. Call
// TerminateAllTasks first to include the period that is still open.
func (t *BusyTimeTracer) BusyTime() timing.VTimeInCycle {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.busyTime
}

// StartTask opens a busy period if the bus was idle.
func (t *BusyTimeTracer) StartTask(task Task) {
	if !t.filter.keep(task) {
		return
	}

	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	if len(t.active) == 0 {
		t.busySince = now
	}

	t.active[task.ID] = true
}

// StepTask ignores the steps.
func (t *BusyTimeTracer) StepTask(Task) {}

// EndTask closes the busy period when the last transaction ends.
func (t *BusyTimeTracer) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.active[task.ID] {
		return
	}

	delete(t.active, task.ID)

	if len(t.active) == 0 {
		t.busyTime += now - t.busySince
	}
}

// TerminateAllTasks ends every transaction in flight at the given cycle.
func (t *BusyTimeTracer) TerminateAllTasks(now timing.VTimeInCycle) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if len(t.active) == 0 {
		return
	}

	t.busyTime += now - t.busySince
	t.active = make(map[string]bool)
}
