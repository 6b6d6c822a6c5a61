package bus_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avalonbus/bus"

	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/signal"
	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/sim/naming"
)

type namedDomain struct {
	naming.NamedBase
	hooking.HookableBase
}

type memoryRecorder struct {
	tables map[string][]any
}

func (r *memoryRecorder) CreateTable(name string, _ any) {
	r.tables[name] = []any{}
}

func (r *memoryRecorder) InsertData(name string, entry any) {
	r.tables[name] = append(r.tables[name], entry)
}

func (r *memoryRecorder) ListTables() []string {
	names := []string{}
	for name := range r.tables {
		names = append(names, name)
	}

	return names
}

func (r *memoryRecorder) Flush() {}

func (r *memoryRecorder) Close() error {
	return nil
}

var _ = Describe("RecordHook", func() {
	var (
		recorder *memoryRecorder
		hook     *bus.RecordHook
		master   *namedDomain
	)

	BeforeEach(func() {
		recorder = &memoryRecorder{tables: make(map[string][]any)}
		hook = bus.NewRecordHook(recorder, avalon.SeverityInfo)
		master = &namedDomain{NamedBase: naming.MakeNamedBase("Master")}
	})

	It("should create its tables", func() {
		Expect(recorder.ListTables()).To(ConsistOf(
			bus.TransactionTable, bus.DiagnosticTable))
	})

	It("should record transactions", func() {
		hook.Func(hooking.HookCtx{
			Domain: master,
			Pos:    avalon.HookPosTransactionDone,
			Item: avalon.Transaction{
				ID:      "7",
				Kind:    "burst_read",
				Address: 0x40,
				Data: []signal.Word{
					signal.FromUint64(8, 1),
					signal.FromUint64(8, 2),
				},
				StartCycle: 3,
				EndCycle:   9,
			},
		})

		Expect(recorder.tables[bus.TransactionTable]).To(HaveLen(1))

		entry := recorder.tables[bus.TransactionTable][0].(bus.TransactionEntry)
		Expect(entry.Component).To(Equal("Master"))
		Expect(entry.Kind).To(Equal("burst_read"))
		Expect(entry.Address).To(Equal(uint64(0x40)))
		Expect(entry.Words).To(Equal(2))
		Expect(entry.EndCycle).To(Equal(uint64(9)))
	})

	It("should skip diagnostics below the severity", func() {
		for _, sev := range []avalon.Severity{
			avalon.SeverityDebug,
			avalon.SeverityWarning,
		} {
			hook.Func(hooking.HookCtx{
				Domain: master,
				Pos:    avalon.HookPosDiagnostic,
				Item: avalon.Diagnostic{
					Component: "Master",
					Cycle:     4,
					Severity:  sev,
					Message:   "note",
				},
			})
		}

		Expect(recorder.tables[bus.DiagnosticTable]).To(Equal([]any{
			bus.DiagnosticEntry{
				Component: "Master",
				Cycle:     4,
				Severity:  "WARNING",
				Message:   "note",
			},
		}))
	})

	It("should ignore other positions", func() {
		hook.Func(hooking.HookCtx{
			Domain: master,
			Pos:    avalon.HookPosWordSent,
			Item:   signal.FromUint64(8, 1),
		})

		Expect(recorder.tables[bus.TransactionTable]).To(BeEmpty())
		Expect(recorder.tables[bus.DiagnosticTable]).To(BeEmpty())
	})
})
