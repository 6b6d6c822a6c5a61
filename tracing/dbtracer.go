package tracing

import (
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/avalonbus/datarecording"
	"github.com/sarchlab/avalonbus/sim/timing"
)

// TraceTable is the table that a DBTracer writes to.
const TraceTable = "trace"

// TaskEntry is a row of the trace table. Accepted counts the words that the
// other side of the interface took, and Completed is false for the tasks
// still in flight when the tracer terminated.
type TaskEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime uint64
	EndTime   uint64
	Latency   uint64
	Steps     int
	Accepted  int
	Completed bool
}

func newTaskEntry(task Task, completed bool) TaskEntry {
	accepted := 0

	for _, s := range task.Steps {
		if s.What == StepAccepted {
			accepted++
		}
	}

	return TaskEntry{
		ID:        task.ID,
		ParentID:  task.ParentID,
		Kind:      task.Kind,
		What:      task.What,
		Location:  task.Location,
		StartTime: uint64(task.StartTime),
		EndTime:   uint64(task.EndTime),
		Latency:   uint64(task.EndTime - task.StartTime),
		Steps:     len(task.Steps),
		Accepted:  accepted,
		Completed: completed,
	}
}

// DBTracer writes every task into the trace table of a recording.
type DBTracer struct {
	timeTeller timing.TimeTeller
	recorder   datarecording.DataRecorder

	lock        sync.Mutex
	open        map[string]Task
	windowStart timing.VTimeInCycle
	windowEnd   timing.VTimeInCycle
	terminated  bool
}

// NewDBTracer creates the trace table and returns the tracer. The tasks in
// flight are written when the program exits through atexit.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	recorder datarecording.DataRecorder,
) *DBTracer {
	recorder.CreateTable(TraceTable, TaskEntry{})

	t := &DBTracer{
		timeTeller: timeTeller,
		recorder:   recorder,
		open:       make(map[string]Task),
	}

	atexit.Register(t.Terminate)

	return t
}

// SetTimeRange keeps only the tasks that overlap the cycles from start to
// end. An end of 0 leaves the range open.
func (t *DBTracer) SetTimeRange(start, end timing.VTimeInCycle) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.windowStart = start
	t.windowEnd = end
}

// StartTask opens a task.
func (t *DBTracer) StartTask(task Task) {
	task.mustBeComplete()
	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.windowEnd > 0 && task.StartTime > t.windowEnd {
		return
	}

	t.open[task.ID] = task
}

// StepTask adds the steps to an open task.
func (t *DBTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if open, ok := t.open[task.ID]; ok {
		open.Steps = append(open.Steps, task.Steps...)
		t.open[task.ID] = open
	}
}

// EndTask writes a task that ended inside the time range.
func (t *DBTracer) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	open, ok := t.open[task.ID]
	if !ok {
		return
	}

	delete(t.open, task.ID)

	if now < t.windowStart {
		return
	}

	open.EndTime = now
	t.recorder.InsertData(TraceTable, newTaskEntry(open, true))
}

// Terminate writes the open tasks as ending now and flushes the recording.
// Only the first call has an effect.
func (t *DBTracer) Terminate() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.terminated {
		return
	}

	t.terminated = true
	now := t.timeTeller.CurrentTime()

	for _, task := range t.open {
		task.EndTime = now
		t.recorder.InsertData(TraceTable, newTaskEntry(task, false))
	}

	t.open = nil
	t.recorder.Flush()
}
