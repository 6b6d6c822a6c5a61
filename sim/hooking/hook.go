// Package hooking lets loggers, tracers and test probes observe the bus
// components. A component invokes its hooks at named positions, such as the
// acceptance of a word, and does not know who listens.
package hooking

// HookPos names a point at which a component invokes its hooks.
type HookPos struct {
	Name string
}

// HookCtx describes one invocation. Item is what the position is about, for
// example a transaction, and Detail carries extra data, usually the cycle.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable is implemented by everything that can be observed.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
}

// A Hook is called at every position that its domain invokes.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc turns a function into a Hook. A HookFunc can be attached more
// than once, as functions cannot be compared.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

type posHook struct {
	f         func(ctx HookCtx)
	positions []*HookPos
}

func (h *posHook) Func(ctx HookCtx) {
	for _, p := range h.positions {
		if p == ctx.Pos {
			h.f(ctx)
			return
		}
	}
}

// AtPos returns a hook that calls f only at the given positions.
func AtPos(f func(ctx HookCtx), positions ...*HookPos) Hook {
	return &posHook{f: f, positions: positions}
}

// HookableBase implements Hookable. Embed it in a component and call
// InvokeHook.
type HookableBase struct {
	hooks []Hook
}

// NewHookableBase creates a HookableBase without hooks.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// NumHooks returns the number of attached hooks. Components check it to
// skip building hook contexts that nobody reads.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// Hooks returns the attached hooks in the order they were attached.
func (h *HookableBase) Hooks() []Hook {
	return h.hooks
}

// AcceptHook attaches a hook. Attaching the same hook twice panics, except
// for a HookFunc.
func (h *HookableBase) AcceptHook(hook Hook) {
	if _, ok := hook.(HookFunc); !ok {
		for _, attached := range h.hooks {
			if attached == hook {
				panic("hook attached twice")
			}
		}
	}

	h.hooks = append(h.hooks, hook)
}

// InvokeHook calls the hooks in the order they were attached.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
