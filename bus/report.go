package bus

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/sarchlab/avalonbus/datarecording"
)

// KindSummary sums up the recorded transactions of one kind.
type KindSummary struct {
	Kind       string
	Count      int
	Words      int
	MinLatency uint64
	MaxLatency uint64
	AvgLatency float64
}

// A Report sums up a recording written by a RecordHook.
type Report struct {
	Kinds       []KindSummary
	Diagnostics map[string]int
	RunInfo     []datarecording.RunInfo
}

// ReadReport reads the transactions and the diagnostics of a recording.
func ReadReport(ctx context.Context, r *datarecording.Reader) (Report, error) {
	report := Report{Diagnostics: make(map[string]int)}

	txns, err := datarecording.ReadTable[TransactionEntry](
		ctx, r, TransactionTable, datarecording.Query{OrderBy: "StartCycle"})
	if err != nil {
		return report, err
	}

	report.Kinds = summarizeKinds(txns)

	diags, err := datarecording.ReadTable[DiagnosticEntry](
		ctx, r, DiagnosticTable, datarecording.Query{})
	if err != nil {
		return report, err
	}

	for _, d := range diags {
		report.Diagnostics[d.Severity]++
	}

	report.RunInfo, err = datarecording.ReadTable[datarecording.RunInfo](
		ctx, r, datarecording.RunInfoTable, datarecording.Query{})
	if err != nil {
		return report, err
	}

	return report, nil
}

func summarizeKinds(txns []TransactionEntry) []KindSummary {
	byKind := make(map[string]*KindSummary)
	totals := make(map[string]uint64)

	for _, t := range txns {
		s, ok := byKind[t.Kind]
		if !ok {
			s = &KindSummary{Kind: t.Kind, MinLatency: t.EndCycle - t.StartCycle}
			byKind[t.Kind] = s
		}

		latency := t.EndCycle - t.StartCycle
		if latency < s.MinLatency {
			s.MinLatency = latency
		}

		if latency > s.MaxLatency {
			s.MaxLatency = latency
		}

		s.Count++
		s.Words += t.Words
		totals[t.Kind] += latency
	}

	kinds := make([]KindSummary, 0, len(byKind))
	for kind, s := range byKind {
		s.AvgLatency = float64(totals[kind]) / float64(s.Count)
		kinds = append(kinds, *s)
	}

	sort.Slice(kinds, func(i, j int) bool {
		return kinds[i].Kind < kinds[j].Kind
	})

	return kinds
}

// Write prints the report as a table.
func (r Report) Write(w io.Writer) {
	for _, info := range r.RunInfo {
		fmt.Fprintf(w, "%-18s %s\n", info.Property, info.Value)
	}

	fmt.Fprintf(w, "%-12s %8s %8s %8s %8s %8s\n",
		"kind", "count", "words", "min", "max", "avg")

	for _, k := range r.Kinds {
		fmt.Fprintf(w, "%-12s %8d %8d %8d %8d %8.2f\n",
			k.Kind, k.Count, k.Words, k.MinLatency, k.MaxLatency, k.AvgLatency)
	}

	severities := make([]string, 0, len(r.Diagnostics))
	for s := range r.Diagnostics {
		severities = append(severities, s)
	}

	sort.Strings(severities)

	for _, s := range severities {
		fmt.Fprintf(w, "%d %s diagnostics\n", r.Diagnostics[s], s)
	}
}
