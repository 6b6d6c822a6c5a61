package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/avalonbus/sim/naming"
)

type busyComponent interface {
	naming.Named
	IsBusy() bool
}

type engineRsp struct {
	Paused bool `json:"paused"`
}

func (m *Monitor) controlEngine(w http.ResponseWriter, r *http.Request) {
	m.setPaused(mux.Vars(r)["action"] == "pause")

	m.pauseLock.Lock()
	rsp := engineRsp{Paused: m.paused}
	m.pauseLock.Unlock()

	writeJSON(w, rsp)
}

type nowRsp struct {
	Now    uint64 `json:"now"`
	Cycle  uint64 `json:"cycle"`
	Phase  string `json:"phase"`
	Events uint64 `json:"events"`
}

type eventCounter interface {
	Handled() uint64
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	engine := m.sim.GetEngine()
	rsp := nowRsp{Now: uint64(engine.CurrentTime())}

	if c, ok := engine.(eventCounter); ok {
		rsp.Events = c.Handled()
	}

	if clock := m.sim.GetClock(); clock != nil {
		rsp.Cycle = uint64(clock.Cycle())
		rsp.Phase = clock.Phase().String()
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := []string{}
	for _, c := range m.sim.Components() {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) component(w http.ResponseWriter, r *http.Request) naming.Named {
	name := mux.Vars(r)["name"]

	c := m.sim.GetComponentByName(name)
	if c == nil {
		httpError(w, http.StatusNotFound, "no component named %s", name)
	}

	return c
}

// serialize writes a component, or the field at path inside it, one level
// deep.
func serialize(w http.ResponseWriter, c naming.Named, path []string) {
	s := goseth.NewSerializer()
	s.SetRoot(c)
	s.SetMaxDepth(1)

	if len(path) > 0 {
		dieOnErr(s.SetEntryPoint(path))
	}

	w.Header().Set("Content-Type", "application/json")
	dieOnErr(s.Serialize(w))
}

func (m *Monitor) componentDetails(w http.ResponseWriter, r *http.Request) {
	c := m.component(w, r)
	if c == nil {
		return
	}

	serialize(w, c, nil)
}

func (m *Monitor) componentField(w http.ResponseWriter, r *http.Request) {
	c := m.component(w, r)
	if c == nil {
		return
	}

	path := r.URL.Query().Get("path")

	_, err := walkPath(c, path)
	if err != nil {
		httpError(w, http.StatusBadRequest, "%s", err)
		return
	}

	serialize(w, c, strings.Split(path, "."))
}

type busyRsp struct {
	Component string `json:"component"`
	Busy      bool   `json:"busy"`
}

func (m *Monitor) listBusyComponents(w http.ResponseWriter, _ *http.Request) {
	rsp := []busyRsp{}

	for _, c := range m.sim.Components() {
		if b, ok := c.(busyComponent); ok {
			rsp = append(rsp, busyRsp{Component: b.Name(), Busy: b.IsBusy()})
		}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listInFlightTasks(w http.ResponseWriter, r *http.Request) {
	if m.inFlight == nil {
		httpError(w, http.StatusNotFound, "transaction tracing is off")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "%s", err)
		return
	}

	tasks := m.inFlight.InFlight()
	if limit > 0 && limit < len(tasks) {
		tasks = tasks[:limit]
	}

	writeJSON(w, tasks)
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(s)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", s)
	}

	return limit, nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.barsLock.Lock()
	bars := append([]*ProgressBar{}, m.bars...)
	m.barsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSS        uint64  `json:"rss"`
	Threads    int32   `json:"threads"`
}

func (m *Monitor) resources(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpu, err := p.CPUPercent()
	dieOnErr(err)

	mem, err := p.MemoryInfo()
	dieOnErr(err)

	threads, err := p.NumThreads()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpu,
		RSS:        mem.RSS,
		Threads:    threads,
	})
}

// profile samples the CPU for the number of seconds in the query, one by
// default, and returns the parsed profile.
func (m *Monitor) profile(w http.ResponseWriter, r *http.Request) {
	seconds := 1
	if s := r.URL.Query().Get("seconds"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 60 {
			httpError(w, http.StatusBadRequest, "invalid seconds %q", s)
			return
		}

		seconds = n
	}

	buf := &bytes.Buffer{}

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		httpError(w, http.StatusConflict, "%s", err)
		return
	}

	time.Sleep(time.Duration(seconds) * time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

type pathError struct {
	segment string
}

func (e pathError) Error() string {
	return "cannot walk into " + e.segment
}

// walkPath follows a dot separated path of struct fields and slice indices,
// exported or not, from v.
func walkPath(v interface{}, path string) (reflect.Value, error) {
	elem := reflect.ValueOf(v)
	segments := strings.Split(path, ".")

	for len(segments) > 0 {
		seg := segments[0]

		switch elem.Kind() {
		case reflect.Ptr, reflect.Interface:
			elem = elem.Elem()
			continue
		case reflect.Struct:
			elem = elem.FieldByName(seg)
			if !elem.IsValid() {
				return elem, pathError{seg}
			}
		case reflect.Slice, reflect.Array:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= elem.Len() {
				return elem, pathError{seg}
			}

			elem = elem.Index(i)
		default:
			return elem, pathError{seg}
		}

		segments = segments[1:]
	}

	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	return elem, nil
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	w.WriteHeader(code)
	fmt.Fprintf(w, "Error: "+format, args...)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
