package datarecording

import (
	"os"
	"runtime"
	"strings"
	"time"
)

// RunInfoTable keeps the properties of the run that made a recording.
const RunInfoTable = "run_info"

// RunInfo is a property of the run, such as the command line or the seed.
type RunInfo struct {
	Property string
	Value    string
}

const timeLayout = time.RFC3339Nano

// runInfoRecorder records when and how the program ran. It is written when
// the recorder closes.
type runInfoRecorder struct {
	recorder DataRecorder
	started  time.Time
}

func newRunInfoRecorder(recorder DataRecorder) *runInfoRecorder {
	recorder.CreateTable(RunInfoTable, RunInfo{})

	r := &runInfoRecorder{
		recorder: recorder,
		started:  time.Now(),
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "unknown"
	}

	r.add("Start Time", r.started.Format(timeLayout))
	r.add("Command", strings.Join(os.Args, " "))
	r.add("Working Directory", cwd)
	r.add("Go Version", runtime.Version())

	return r
}

func (r *runInfoRecorder) add(property, value string) {
	r.recorder.InsertData(RunInfoTable, RunInfo{property, value})
}

func (r *runInfoRecorder) finish() {
	end := time.Now()
	r.add("End Time", end.Format(timeLayout))
	r.add("Wall Time", end.Sub(r.started).String())
}
