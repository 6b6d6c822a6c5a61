package tracing

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/sarchlab/avalonbus/sim/timing"
)

// TaskPrinter prints a task that has not completed.
type TaskPrinter interface {
	Print(task Task)
}

type writerTaskPrinter struct {
	w io.Writer
}

func (p *writerTaskPrinter) Print(task Task) {
	fmt.Fprintf(p.w, "  %s %s at %s since cycle %d",
		task.Kind, task.What, task.Location, task.StartTime)

	if n := len(task.Steps); n > 0 {
		last := task.Steps[n-1]
		fmt.Fprintf(p.w, ", %d steps, last %s at cycle %d",
			n, last.What, last.Time)
	}

	fmt.Fprintln(p.w)
}

// NewWriterTaskPrinter returns a TaskPrinter that prints one line per task
// to w.
func NewWriterTaskPrinter(w io.Writer) TaskPrinter {
	return &writerTaskPrinter{w: w}
}

// BackTraceTracer keeps the transactions that have not completed. When a
// run stops on an error or on the cycle limit, it tells where each of them
// got stuck.
type BackTraceTracer struct {
	timeTeller timing.TimeTeller
	printer    TaskPrinter

	lock sync.Mutex
	open map[string]*Task
}

// NewBackTraceTracer creates a BackTraceTracer. A nil printer prints to the
// standard error.
func NewBackTraceTracer(
	timeTeller timing.TimeTeller,
	printer TaskPrinter,
) *BackTraceTracer {
	if printer == nil {
		printer = NewWriterTaskPrinter(os.Stderr)
	}

	return &BackTraceTracer{
		timeTeller: timeTeller,
		printer:    printer,
		open:       make(map[string]*Task),
	}
}

// StartTask marks the task as in flight.
func (t *BackTraceTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()
	task.Steps = nil

	t.lock.Lock()
	defer t.lock.Unlock()

	t.open[task.ID] = &task
}

// StepTask records the progress of a task in flight.
func (t *BackTraceTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	open, ok := t.open[task.ID]
	if !ok {
		return
	}

	now := t.timeTeller.CurrentTime()
	for _, s := range task.Steps {
		open.Steps = append(open.Steps, TaskStep{Time: now, What: s.What})
	}
}

// EndTask forgets the task.
func (t *BackTraceTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	delete(t.open, task.ID)
}

// InFlight returns copies of the tasks that have started but not ended, the
// oldest first.
func (t *BackTraceTracer) InFlight() []Task {
	t.lock.Lock()
	defer t.lock.Unlock()

	tasks := make([]Task, 0, len(t.open))
	for _, task := range t.open {
		c := *task
		c.Steps = slices.Clone(task.Steps)
		tasks = append(tasks, c)
	}

	slices.SortFunc(tasks, func(a, b Task) int {
		if a.StartTime != b.StartTime {
			if a.StartTime < b.StartTime {
				return -1
			}

			return 1
		}

		if a.ID < b.ID {
			return -1
		}

		if a.ID > b.ID {
			return 1
		}

		return 0
	})

	return tasks
}

// DumpBackTrace prints the task followed by the ancestors that are still in
// flight.
func (t *BackTraceTracer) DumpBackTrace(task Task) {
	for {
		t.printer.Print(task)

		t.lock.Lock()
		parent, ok := t.open[task.ParentID]
		t.lock.Unlock()

		if task.ParentID == "" || !ok {
			return
		}

		task = *parent
	}
}

// DumpInFlight prints all the tasks in flight.
func (t *BackTraceTracer) DumpInFlight() {
	for _, task := range t.InFlight() {
		t.printer.Print(task)
	}
}
