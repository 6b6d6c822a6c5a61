// Package monitoring serves a running bus simulation over HTTP so that it can
// be paused, inspected and profiled from a browser.
package monitoring

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	// Registers the /debug/pprof handlers on the default mux.
	_ "net/http/pprof"

	"github.com/gorilla/mux"

	"github.com/sarchlab/avalonbus/monitoring/web"
	"github.com/sarchlab/avalonbus/sim/simulation"
	"github.com/sarchlab/avalonbus/tracing"
)

// Ports below this one are reserved and never used by the monitor.
const minPort = 1024

// A Monitor serves the state of a simulation: the clock, the busy
// components, the transactions in flight and the progress of the scenario.
type Monitor struct {
	sim      *simulation.Simulation
	inFlight *tracing.BackTraceTracer
	port     int
	listener net.Listener

	pauseLock sync.Mutex
	paused    bool

	barsLock sync.Mutex
	bars     []*ProgressBar
}

// NewMonitor creates a Monitor of the simulation. The server is started
// with StartServer.
func NewMonitor(s *simulation.Simulation) *Monitor {
	return &Monitor{sim: s}
}

// WithPortNumber asks for a fixed port. Reserved ports are refused and a
// random port is used instead.
func (m *Monitor) WithPortNumber(port int) *Monitor {
	if port < minPort {
		fmt.Fprintf(os.Stderr,
			"monitor: port %d is reserved, using a random port\n", port)

		port = 0
	}

	m.port = port

	return m
}

// RegisterInFlightTracer sets the tracer that knows the transactions that
// have not completed yet.
func (m *Monitor) RegisterInFlightTracer(t *tracing.BackTraceTracer) {
	m.inFlight = t
}

// CreateProgressBar adds a bar to the page. The bar counts total items.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		id:        m.sim.GenerateID(),
		name:      name,
		startTime: time.Now(),
		total:     total,
	}

	m.barsLock.Lock()
	defer m.barsLock.Unlock()

	m.bars = append(m.bars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the page.
func (m *Monitor) CompleteProgressBar(bar *ProgressBar) {
	m.barsLock.Lock()
	defer m.barsLock.Unlock()

	m.bars = slices.DeleteFunc(m.bars, func(b *ProgressBar) bool {
		return b == bar
	})
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/engine/{action:pause|continue}", m.controlEngine)
	api.HandleFunc("/now", m.now)
	api.HandleFunc("/components", m.listComponents)
	api.HandleFunc("/components/{name}", m.componentDetails)
	api.HandleFunc("/components/{name}/field", m.componentField)
	api.HandleFunc("/busy", m.listBusyComponents)
	api.HandleFunc("/inflight", m.listInFlightTasks)
	api.HandleFunc("/progress", m.listProgressBars)
	api.HandleFunc("/resource", m.resources)
	api.HandleFunc("/profile", m.profile)

	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the port.
func (m *Monitor) StartServer() int {
	addr := ":0"
	if m.port >= minPort {
		addr = ":" + strconv.Itoa(m.port)
	}

	listener, err := net.Listen("tcp", addr)
	dieOnErr(err)

	m.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port

	fmt.Fprintf(os.Stderr, "Monitoring simulation at http://localhost:%d\n",
		port)

	go func() {
		err := http.Serve(listener, m.router())
		if err != nil && !strings.Contains(err.Error(), "use of closed") {
			dieOnErr(err)
		}
	}()

	return port
}

// StopServer stops accepting connections. A paused engine is released so
// that the simulation can finish.
func (m *Monitor) StopServer() {
	m.setPaused(false)

	if m.listener == nil {
		return
	}

	dieOnErr(m.listener.Close())
	m.listener = nil
}

func (m *Monitor) setPaused(paused bool) {
	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()

	if m.paused == paused {
		return
	}

	if paused {
		m.sim.GetEngine().Pause()
	} else {
		m.sim.GetEngine().Continue()
	}

	m.paused = paused
}
