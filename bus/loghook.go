package bus

import (
	"encoding/hex"
	"log"

	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/signal"
)

type named interface {
	Name() string
}

// A LogHook prints what Avalon components report into a logger.
type LogHook struct {
	*log.Logger

	minSeverity avalon.Severity
}

// NewLogHook returns a LogHook that prints diagnostics at or above the given
// severity, as well as the transactions.
func NewLogHook(logger *log.Logger, minSeverity avalon.Severity) *LogHook {
	return &LogHook{
		Logger:      logger,
		minSeverity: minSeverity,
	}
}

// Func prints the hook context.
func (h *LogHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case avalon.HookPosDiagnostic:
		d := ctx.Item.(avalon.Diagnostic)
		if d.Severity >= h.minSeverity {
			h.Print(d)
		}
	case avalon.HookPosWordSent:
		h.Printf("%v %s sent %s", ctx.Detail, domainName(ctx), ctx.Item)
	case avalon.HookPosWordReceived, avalon.HookPosPacketReceived:
		h.Printf("%v %s received %s",
			ctx.Detail, domainName(ctx), formatItem(ctx.Item))
	case avalon.HookPosTransactionDone:
		t := ctx.Item.(avalon.Transaction)
		h.Printf("%d %s %s 0x%x %s",
			t.EndCycle, domainName(ctx), t.Kind, t.Address, formatWords(t.Data))
	}
}

func domainName(ctx hooking.HookCtx) string {
	if n, ok := ctx.Domain.(named); ok {
		return n.Name()
	}

	return "unnamed"
}

func formatItem(item interface{}) string {
	switch item := item.(type) {
	case []byte:
		return hex.EncodeToString(item)
	case interface{ String() string }:
		return item.String()
	default:
		return "?"
	}
}

func formatWords(words []signal.Word) string {
	s := ""
	for i, w := range words {
		if i > 0 {
			s += " "
		}

		s += w.String()
	}

	return s
}
