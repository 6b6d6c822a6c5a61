package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/browser"
	"github.com/pkg/errors"

	"github.com/sarchlab/avalonbus/avalon"
	"github.com/sarchlab/avalonbus/bus"
	"github.com/sarchlab/avalonbus/datarecording"
	"github.com/sarchlab/avalonbus/monitoring"
	"github.com/sarchlab/avalonbus/sim/hooking"
	"github.com/sarchlab/avalonbus/sim/simulation"
	"github.com/sarchlab/avalonbus/sim/timing"
	"github.com/sarchlab/avalonbus/tracing"
)

// An environment holds the engine, the clock and the observers that every
// scenario runs with.
type environment struct {
	sim    *simulation.Simulation
	engine *timing.SerialEngine
	clock  *timing.Clock

	logHook    *bus.LogHook
	verbose    bool
	recorder   datarecording.DataRecorder
	recordHook *bus.RecordHook

	tracers  []tracing.Tracer
	inFlight *tracing.BackTraceTracer
	latency  *tracing.LatencyTracer
	busy     *tracing.BusyTimeTracer
	steps    *tracing.StepCountTracer
	monitor  *monitoring.Monitor
}

type envBuilder struct {
	trace       string
	tracePath   string
	monitorOn   bool
	monitorPort int
	openBrowser bool
	logger      *log.Logger
	logLevel    avalon.Severity
	logEvents   bool
	seed        int64
}

func makeEnvBuilder() envBuilder {
	return envBuilder{
		logger:   log.New(os.Stderr, "", 0),
		logLevel: avalon.SeverityWarning,
	}
}

func (b envBuilder) WithTrace(kind, path string) envBuilder {
	b.trace = kind
	b.tracePath = path
	return b
}

func (b envBuilder) WithMonitor(port int, openBrowser bool) envBuilder {
	b.monitorOn = true
	b.monitorPort = port
	b.openBrowser = openBrowser
	return b
}

func (b envBuilder) WithLogger(
	logger *log.Logger,
	level avalon.Severity,
	events bool,
) envBuilder {
	b.logger = logger
	b.logLevel = level
	b.logEvents = events
	return b
}

// WithFlags applies the command line flags.
func (b envBuilder) WithFlags(f runFlags) (envBuilder, error) {
	level, err := parseSeverity(f.logLevel)
	if err != nil {
		return b, err
	}

	b = b.WithTrace(f.trace, f.tracePath).
		WithLogger(b.logger, level, f.logEvents)
	b.seed = f.seed

	if f.monitor {
		b = b.WithMonitor(f.monitorPort, f.openBrowser)
	} else if f.openBrowser {
		return b, errors.New("--open-browser needs --monitor")
	}

	return b, nil
}

func (b envBuilder) parametersMustBeValid() error {
	switch b.trace {
	case "", "csv", "db":
	default:
		return errors.Errorf("unknown trace format %q", b.trace)
	}

	if b.tracePath != "" && b.trace == "" {
		return errors.New("trace file given without a trace format")
	}

	return nil
}

func (b envBuilder) Build() (*environment, error) {
	err := b.parametersMustBeValid()
	if err != nil {
		return nil, err
	}

	e := &environment{
		sim:     simulation.NewSimulation(),
		engine:  timing.NewSerialEngine(),
		logHook: bus.NewLogHook(b.logger, b.logLevel),
		verbose: b.logLevel == avalon.SeverityDebug,
	}
	e.clock = timing.NewClock("Clock", e.engine)
	e.sim.RegisterEngine(e.engine)
	e.sim.RegisterClock(e.clock)

	if b.logEvents {
		e.engine.AcceptHook(timing.NewEventLogger(b.logger))
	}

	e.inFlight = tracing.NewBackTraceTracer(e.engine,
		tracing.NewWriterTaskPrinter(os.Stderr))
	issued := tracing.FilterByKind(tracing.KindRequestOut)
	e.latency = tracing.NewLatencyTracer(e.engine, issued)
	e.busy = tracing.NewBusyTimeTracer(e.engine, issued)
	e.steps = tracing.NewStepCountTracer(issued)
	e.tracers = append(e.tracers, e.inFlight, e.latency, e.busy, e.steps)

	err = b.buildTrace(e)
	if err != nil {
		return nil, err
	}

	if b.monitorOn {
		b.startMonitor(e)
	}

	return e, nil
}

func (b envBuilder) buildTrace(e *environment) error {
	switch b.trace {
	case "csv":
		w := tracing.NewCSVTraceWriter(e.engine, b.tracePath)

		err := w.Init()
		if err != nil {
			return errors.Wrap(err, "cannot create trace")
		}

		e.tracers = append(e.tracers, w)
	case "db":
		recorder, err := datarecording.New(b.tracePath)
		if err != nil {
			return errors.Wrap(err, "cannot create trace")
		}

		recorder.InsertData(datarecording.RunInfoTable, datarecording.RunInfo{
			Property: "Seed",
			Value:    strconv.FormatInt(b.seed, 10),
		})

		e.recorder = recorder
		e.recordHook = bus.NewRecordHook(recorder, b.logLevel)
		e.tracers = append(e.tracers, tracing.NewDBTracer(e.engine, recorder))
	}

	return nil
}

func (b envBuilder) startMonitor(e *environment) {
	e.monitor = monitoring.NewMonitor(e.sim)
	if b.monitorPort > 0 {
		e.monitor.WithPortNumber(b.monitorPort)
	}

	e.monitor.RegisterInFlightTracer(e.inFlight)
	port := e.monitor.StartServer()

	if b.openBrowser {
		err := browser.OpenURL(fmt.Sprintf("http://localhost:%d", port))
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open browser: %v\n", err)
		}
	}
}

// register makes the component known to the simulation and attaches the
// observers to it.
func (e *environment) register(c tracing.NamedHookable) {
	e.sim.RegisterComponent(c)

	if e.verbose {
		c.AcceptHook(e.logHook)
	} else {
		c.AcceptHook(hooking.AtPos(e.logHook.Func, avalon.HookPosDiagnostic))
	}

	if e.recordHook != nil {
		c.AcceptHook(e.recordHook)
	}

	for _, t := range e.tracers {
		tracing.CollectTrace(c, t)
	}
}

// run runs the clock until done returns true. On a failure, the
// transactions that are still in flight are printed.
func (e *environment) run(done func() bool, maxCycles uint64) error {
	err := e.clock.RunUntil(done, maxCycles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stopped at cycle %d, in flight:\n",
			e.clock.Cycle())
		e.inFlight.DumpInFlight()
	}

	return err
}

// close flushes the traces and stops the monitoring server.
func (e *environment) close() error {
	if e.monitor != nil {
		e.monitor.StopServer()
	}

	var firstErr error

	for _, t := range e.tracers {
		switch t := t.(type) {
		case *tracing.CSVTraceWriter:
			err := t.Close()
			if err != nil && firstErr == nil {
				firstErr = err
			}
		case *tracing.DBTracer:
			t.Terminate()
		}
	}

	if e.recorder != nil {
		err := e.recorder.Close()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (e *environment) summary() string {
	e.busy.TerminateAllTasks(e.engine.CurrentTime())

	b := &strings.Builder{}
	fmt.Fprintf(b,
		"%d cycles, %d transactions, %.2f cycles on average, "+
			"bus busy for %d cycles, %d cycles in total, %d accepted steps",
		e.clock.Cycle(), e.latency.TotalCount(), e.latency.AverageTime(),
		e.busy.BusyTime(), e.latency.TotalTime(),
		e.steps.GetStepCount(tracing.StepAccepted))

	for _, what := range e.latency.Whats() {
		s := e.latency.Stats(what)
		fmt.Fprintf(b, "\n  %-12s %6d  min %d  max %d  avg %.2f",
			what, s.Count, s.Min, s.Max, s.Average())
	}

	return b.String()
}

func parseSeverity(s string) (avalon.Severity, error) {
	switch strings.ToLower(s) {
	case "debug":
		return avalon.SeverityDebug, nil
	case "info":
		return avalon.SeverityInfo, nil
	case "warning", "warn":
		return avalon.SeverityWarning, nil
	}

	return avalon.SeverityWarning, errors.Errorf("unknown log level %q", s)
}

func buildEnv(f runFlags) (*environment, error) {
	b, err := makeEnvBuilder().WithFlags(f)
	if err != nil {
		return nil, err
	}

	return b.Build()
}
