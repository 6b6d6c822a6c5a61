package timing

import (
	"fmt"
	"log"

	"github.com/sarchlab/avalonbus/sim/hooking"
)

// EventLogger prints one line per event that the engine handles, such as
// "cycle 3 edge Clock". Attach it to an engine with AcceptHook.
type EventLogger struct {
	logger *log.Logger
}

// NewEventLogger creates an EventLogger that prints to the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func prints the event before it is handled.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	h.logger.Printf("cycle %d %s %s",
		evt.Time(), describeEvent(evt), handlerName(evt.Handler()))
}

func describeEvent(evt Event) string {
	switch evt.(type) {
	case edgeEvent:
		return PhaseEdge.String()
	case sampleEvent:
		return PhaseSample.String()
	}

	return fmt.Sprintf("%T", evt)
}

func handlerName(h Handler) string {
	if n, ok := h.(interface{ Name() string }); ok {
		return n.Name()
	}

	return "unnamed"
}
