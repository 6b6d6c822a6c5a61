package avalon

import (
	"fmt"

	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/signal"
)

// Hook positions of the Avalon components.
var (
	// HookPosDiagnostic is triggered with a Diagnostic item when a component
	// notices something unusual that does not stop it.
	HookPosDiagnostic = &hooking.HookPos{Name: "AvalonDiagnostic"}

	// HookPosWordSent is triggered with the data word when a driver's word is
	// accepted by the bus.
	HookPosWordSent = &hooking.HookPos{Name: "AvalonWordSent"}

	// HookPosWordReceived is triggered with a []byte item when a monitor
	// accepts a word.
	HookPosWordReceived = &hooking.HookPos{Name: "AvalonWordReceived"}

	// HookPosPacketReceived is triggered with the delivered packet.
	HookPosPacketReceived = &hooking.HookPos{Name: "AvalonPacketReceived"}

	// HookPosTransactionDone is triggered with a Transaction item when a
	// memory-mapped transaction completes.
	HookPosTransactionDone = &hooking.HookPos{Name: "AvalonTransactionDone"}
)

// Severity tells how serious a diagnostic is.
type Severity int

// Severities of diagnostics.
const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	default:
		return "WARNING"
	}
}

// A Diagnostic is a non-fatal message emitted by a component.
type Diagnostic struct {
	Component string
	Cycle     uint64
	Severity  Severity
	Message   string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d %s %s: %s",
		d.Cycle, d.Severity, d.Component, d.Message)
}

// A Transaction describes a completed memory-mapped access.
type Transaction struct {
	ID         string
	Kind       string
	Address    uint64
	Data       []signal.Word
	StartCycle uint64
	EndCycle   uint64
}

// A Reporter is a named component that can emit diagnostics.
type Reporter interface {
	Name() string
	hooking.Hookable
	InvokeHook(ctx hooking.HookCtx)
}

// Report invokes the diagnostic hooks of a component.
func Report(
	r Reporter,
	cycle uint64,
	severity Severity,
	format string,
	args ...interface{},
) {
	if r.NumHooks() == 0 {
		return
	}

	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    HookPosDiagnostic,
		Item: Diagnostic{
			Component: r.Name(),
			Cycle:     cycle,
			Severity:  severity,
			Message:   fmt.Sprintf(format, args...),
		},
	})
}
