package bus

import (
	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/datarecording"
	"github.com/sarchlab/avalonbus/sim/hooking"
)

// Tables that a RecordHook writes to.
const (
	TransactionTable = "transactions"
	DiagnosticTable  = "diagnostics"
)

// TransactionEntry is a row of the transaction table.
type TransactionEntry struct {
	ID         string
	Component  string
	Kind       string
	Address    uint64
	Words      int
	Data       string
	StartCycle uint64
	EndCycle   uint64
}

// DiagnosticEntry is a row of the diagnostic table.
type DiagnosticEntry struct {
	Component string
	Cycle     uint64
	Severity  string
	Message   string
}

// A RecordHook stores the completed memory-mapped transactions and the
// diagnostics of the components that it is attached to.
type RecordHook struct {
	recorder    datarecording.DataRecorder
	minSeverity avalon.Severity
}

// NewRecordHook creates the tables in the recorder and returns the hook.
func NewRecordHook(
	recorder datarecording.DataRecorder,
	minSeverity avalon.Severity,
) *RecordHook {
	recorder.CreateTable(TransactionTable, TransactionEntry{})
	recorder.CreateTable(DiagnosticTable, DiagnosticEntry{})

	return &RecordHook{
		recorder:    recorder,
		minSeverity: minSeverity,
	}
}

// Func records the hook context.
func (h *RecordHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case avalon.HookPosTransactionDone:
		t := ctx.Item.(avalon.Transaction)
		h.recorder.InsertData(TransactionTable, TransactionEntry{
			ID:         t.ID,
			Component:  domainName(ctx),
			Kind:       t.Kind,
			Address:    t.Address,
			Words:      len(t.Data),
			Data:       formatWords(t.Data),
			StartCycle: t.StartCycle,
			EndCycle:   t.EndCycle,
		})
	case avalon.HookPosDiagnostic:
		d := ctx.Item.(avalon.Diagnostic)
		if d.Severity < h.minSeverity {
			return
		}

		h.recorder.InsertData(DiagnosticTable, DiagnosticEntry{
			Component: d.Component,
			Cycle:     d.Cycle,
			Severity:  d.Severity.String(),
			Message:   d.Message,
		})
	}
}
