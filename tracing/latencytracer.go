package tracing

import (
	"sync"

	"github.com/sarchlab/avalonbus/sim/timing"
)

// LatencyStats summarizes the latency of the transactions that do the same
// thing, such as all the burst reads of a master.
type LatencyStats struct {
	Count uint64
	Total timing.VTimeInCycle
	Min   timing.VTimeInCycle
	Max   timing.VTimeInCycle
}

// Average returns the mean latency in cycles, or 0 if nothing completed.
func (s LatencyStats) Average() float64 {
	if s.Count == 0 {
		return 0
	}

	return float64(s.Total) / float64(s.Count)
}

func (s *LatencyStats) add(latency timing.VTimeInCycle) {
	if s.Count == 0 || latency < s.Min {
		s.Min = latency
	}

	if latency > s.Max {
		s.Max = latency
	}

	s.Count++
	s.Total += latency
}

// LatencyTracer measures how many cycles the transactions take from the start
// to the end, grouped by what they do. Overlapping transactions each count
// in full.
type LatencyTracer struct {
	timeTeller timing.TimeTeller
	filter     TaskFilter

	lock    sync.Mutex
	started map[string]Task
	whats   []string
	byWhat  map[string]*LatencyStats
	all     LatencyStats
}

// NewLatencyTracer creates a LatencyTracer that keeps the tasks accepted by
// the filter.
func NewLatencyTracer(
	timeTeller timing.TimeTeller,
	filter TaskFilter,
) *LatencyTracer {
	return &LatencyTracer{
		timeTeller: timeTeller,
		filter:     filter,
		started:    make(map[string]Task),
		byWhat:     make(map[string]*LatencyStats),
	}
}

// StartTask remembers the cycle in which the task starts.
func (t *LatencyTracer) StartTask(task Task) {
	if !t.filter.keep(task) {
		return
	}

	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	t.started[task.ID] = task
}

// StepTask ignores the steps.
func (t *LatencyTracer) StepTask(Task) {}

// EndTask adds the latency of a started task to the statistics.
func (t *LatencyTracer) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	begin, ok := t.started[task.ID]
	if !ok {
		return
	}

	delete(t.started, task.ID)

	stats, ok := t.byWhat[begin.What]
	if !ok {
		stats = &LatencyStats{}
		t.byWhat[begin.What] = stats
		t.whats = append(t.whats, begin.What)
	}

	stats.add(now - begin.StartTime)
	t.all.add(now - begin.StartTime)
}

// TotalCount returns the number of completed transactions.
func (t *LatencyTracer) TotalCount() uint64 {
	return t.Overall().Count
}

// AverageTime returns the mean latency of all the completed transactions.
func (t *LatencyTracer) AverageTime() float64 {
	return t.Overall().Average()
}

// TotalTime returns the sum of the latencies.
func (t *LatencyTracer) TotalTime() timing.VTimeInCycle {
	return t.Overall().Total
}

// Overall returns the statistics over all the completed transactions.
func (t *LatencyTracer) Overall() LatencyStats {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.all
}

// Whats lists the kinds of transactions seen, in the order they first
// completed.
func (t *LatencyTracer) Whats() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.whats...)
}

// Stats returns the statistics of one kind of transaction.
func (t *LatencyTracer) Stats(what string) LatencyStats {
	t.lock.Lock()
	defer t.lock.Unlock()

	if s, ok := t.byWhat[what]; ok {
		return *s
	}

	return LatencyStats{}
}

// InFlightCount returns the number of started transactions that have not
// ended.
func (t *LatencyTracer) InFlightCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.started)
}
