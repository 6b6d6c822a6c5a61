// Package tracing records the bus transactions as tasks. A component reports
// the start, the steps, and the end of a task through its hooks, and tracers
// attached with CollectTrace turn the reports into statistics or traces.
package tracing

import (
	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/sim/naming"
)

// The kinds of tasks that the bus components report.
const (
	// KindRequestOut is a transaction issued by a master or a source.
	KindRequestOut = "req_out"
	// KindRequestIn is a transfer observed by a monitor or a responder.
	KindRequestIn = "req_in"
)

// StepAccepted marks the cycle in which the other side of the interface took
// a word of the task.
const StepAccepted = "accepted"

// NamedHookable is a component that has a name and reports tasks through its
// hooks.
type NamedHookable interface {
	naming.Named
	hooking.Hookable
	InvokeHook(hooking.HookCtx)
}

// The hook positions at which tasks are reported.
var (
	HookPosTaskStart = &hooking.HookPos{Name: "HookPosTaskStart"}
	HookPosTaskStep  = &hooking.HookPos{Name: "HookPosTaskStep"}
	HookPosTaskEnd   = &hooking.HookPos{Name: "HookPosTaskEnd"}
)

// StartTask reports that the domain starts working on a task. The task is
// located at the domain.
func StartTask(
	id, parentID string,
	domain NamedHookable,
	kind, what string,
	detail interface{},
) {
	if domain.NumHooks() == 0 {
		return
	}

	StartTaskAt(id, parentID, domain, kind, what, domain.Name(), detail)
}

// StartTaskAt is StartTask with an explicit location, such as the name of the
// interface a monitor watches.
func StartTaskAt(
	id, parentID string,
	domain NamedHookable,
	kind, what, location string,
	detail interface{},
) {
	if domain.NumHooks() == 0 {
		return
	}

	task := Task{
		ID:       id,
		ParentID: parentID,
		Kind:     kind,
		What:     what,
		Location: location,
		Detail:   detail,
	}
	task.mustBeComplete()

	report(domain, HookPosTaskStart, task)
}

// AddTaskStep reports a milestone of a task, for example StepAccepted.
func AddTaskStep(id string, domain NamedHookable, what string) {
	if domain.NumHooks() == 0 {
		return
	}

	report(domain, HookPosTaskStep, Task{
		ID:    id,
		Steps: []TaskStep{{What: what}},
	})
}

// EndTask reports that a task is completed.
func EndTask(id string, domain NamedHookable) {
	if domain.NumHooks() == 0 {
		return
	}

	report(domain, HookPosTaskEnd, Task{ID: id})
}

func report(domain NamedHookable, pos *hooking.HookPos, task Task) {
	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    pos,
		Item:   task,
	})
}
