package tracing

import "github.com/sarchlab/avalonbus/sim/timing"

// A TaskStep is a milestone in the life of a task.
type TaskStep struct {
	Time timing.VTimeInCycle `json:"time"`
	What string              `json:"what"`
}

// A Task is a bus transaction, or a part of it, that a component works on.
// Times are in clock cycles.
type Task struct {
	ID         string              `json:"id"`
	ParentID   string              `json:"parent_id"`
	Kind       string              `json:"kind"`
	What       string              `json:"what"`
	Location   string              `json:"location"`
	StartTime  timing.VTimeInCycle `json:"start_time"`
	EndTime    timing.VTimeInCycle `json:"end_time"`
	Steps      []TaskStep          `json:"steps"`
	Detail     interface{}         `json:"-"`
	ParentTask *Task               `json:"-"`
}

func (t Task) mustBeComplete() {
	switch {
	case t.ID == "":
		panic("task without an id")
	case t.Kind == "":
		panic("task " + t.ID + " without a kind")
	case t.What == "":
		panic("task " + t.ID + " without a what")
	case t.Location == "":
		panic("task " + t.ID + " without a location")
	}
}

// hasStep tells if the task has reported a step with the given name.
func (t Task) hasStep(what string) bool {
	for _, s := range t.Steps {
		if s.What == what {
			return true
		}
	}

	return false
}

// TaskFilter selects the tasks that a tracer keeps. A nil filter keeps all.
type TaskFilter func(t Task) bool

func (f TaskFilter) keep(t Task) bool {
	return f == nil || f(t)
}

// FilterByKind returns a filter that keeps the tasks of the given kind.
func FilterByKind(kind string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind
	}
}

// FilterByWhat returns a filter that keeps the tasks that do the given thing,
// for example "burst_read".
func FilterByWhat(what string) TaskFilter {
	return func(t Task) bool {
		return t.What == what
	}
}

// FilterByLocation returns a filter that keeps the tasks reported at a
// component or an interface.
func FilterByLocation(location string) TaskFilter {
	return func(t Task) bool {
		return t.Location == location
	}
}
