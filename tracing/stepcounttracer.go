package tracing

import "sync"

type stepCount struct {
	steps uint64
	tasks uint64
}

// StepCountTracer counts the steps that the transactions report, for
// example how many words were accepted, and how many transactions reported
// each step at least once.
type StepCountTracer struct {
	filter TaskFilter

	lock    sync.Mutex
	tracked map[string]Task
	names   []string
	counts  map[string]*stepCount
}

// NewStepCountTracer creates a StepCountTracer that keeps the tasks accepted
// by the filter.
func NewStepCountTracer(filter TaskFilter) *StepCountTracer {
	return &StepCountTracer{
		filter:  filter,
		tracked: make(map[string]Task),
		counts:  make(map[string]*stepCount),
	}
}

// StartTask starts tracking the task.
func (t *StepCountTracer) StartTask(task Task) {
	if !t.filter.keep(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.tracked[task.ID] = task
}

// StepTask counts the step of a tracked task.
func (t *StepCountTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	tracked, ok := t.tracked[task.ID]
	if !ok {
		return
	}

	for _, step := range task.Steps {
		c := t.countOf(step.What)
		c.steps++

		if !tracked.hasStep(step.What) {
			c.tasks++
		}

		tracked.Steps = append(tracked.Steps, step)
	}

	t.tracked[task.ID] = tracked
}

func (t *StepCountTracer) countOf(name string) *stepCount {
	c, ok := t.counts[name]
	if !ok {
		c = &stepCount{}
		t.counts[name] = c
		t.names = append(t.names, name)
	}

	return c
}

// EndTask stops tracking the task.
func (t *StepCountTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	delete(t.tracked, task.ID)
}

// GetStepNames returns the step names in the order they were first seen.
func (t *StepCountTracer) GetStepNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.names...)
}

// GetStepCount returns how many times a step was reported.
func (t *StepCountTracer) GetStepCount(name string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if c, ok := t.counts[name]; ok {
		return c.steps
	}

	return 0
}

// GetTaskCount returns how many transactions reported a step.
func (t *StepCountTracer) GetTaskCount(name string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if c, ok := t.counts[name]; ok {
		return c.tasks
	}

	return 0
}
