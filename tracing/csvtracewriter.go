package tracing

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/avalonbus/sim/timing"
)

var csvHeader = []string{
	"id", "parent_id", "kind", "what", "location",
	"start", "end", "latency", "accepted",
}

// CSVTraceWriter writes one row per completed task into a CSV file. Rows
// are buffered and written in batches.
type CSVTraceWriter struct {
	timeTeller timing.TimeTeller
	path       string

	lock     sync.Mutex
	file     io.Closer
	out      *csv.Writer
	open     map[string]Task
	accepted map[string]int
	done     []Task
	batch    int
}

// NewCSVTraceWriter creates a CSVTraceWriter for the file path + ".csv". An
// empty path picks a unique name. Call Init to create the file.
func NewCSVTraceWriter(
	timeTeller timing.TimeTeller,
	path string,
) *CSVTraceWriter {
	return &CSVTraceWriter{
		timeTeller: timeTeller,
		path:       path,
		open:       make(map[string]Task),
		accepted:   make(map[string]int),
		batch:      1000,
	}
}

// Init creates the file. It fails if the file exists.
func (t *CSVTraceWriter) Init() error {
	if t.path == "" {
		t.path = "avalon_trace_" + xid.New().String()
	}

	filename := t.path + ".csv"
	if _, err := os.Stat(filename); err == nil {
		return errors.Errorf("file %s already exists", filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "cannot create trace")
	}

	t.initWithWriter(file)

	atexit.Register(func() { _ = t.Close() })

	return nil
}

func (t *CSVTraceWriter) initWithWriter(w io.WriteCloser) {
	t.file = w
	t.out = csv.NewWriter(w)
	_ = t.out.Write(csvHeader)
}

// Path returns the path of the trace file, without the suffix.
func (t *CSVTraceWriter) Path() string {
	return t.path
}

// StartTask opens a task.
func (t *CSVTraceWriter) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	t.open[task.ID] = task
}

// StepTask counts the accepted words of an open task.
func (t *CSVTraceWriter) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, ok := t.open[task.ID]; !ok {
		return
	}

	for _, s := range task.Steps {
		if s.What == StepAccepted {
			t.accepted[task.ID]++
		}
	}
}

// EndTask queues the row of an open task.
func (t *CSVTraceWriter) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	open, ok := t.open[task.ID]
	if !ok {
		return
	}

	delete(t.open, task.ID)

	open.EndTime = now
	t.done = append(t.done, open)

	if len(t.done) >= t.batch {
		t.flush()
	}
}

// Flush writes the queued rows.
func (t *CSVTraceWriter) Flush() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.flush()
}

func (t *CSVTraceWriter) flush() {
	if t.out == nil {
		return
	}

	for _, task := range t.done {
		_ = t.out.Write([]string{
			task.ID,
			task.ParentID,
			task.Kind,
			task.What,
			task.Location,
			strconv.FormatUint(uint64(task.StartTime), 10),
			strconv.FormatUint(uint64(task.EndTime), 10),
			strconv.FormatUint(uint64(task.EndTime-task.StartTime), 10),
			strconv.Itoa(t.accepted[task.ID]),
		})
		delete(t.accepted, task.ID)
	}

	t.done = nil
	t.out.Flush()
}

// Close writes the queued rows and closes the file. The tasks still open are
// not written.
func (t *CSVTraceWriter) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.file == nil {
		return nil
	}

	t.flush()

	err := t.out.Error()
	if closeErr := t.file.Close(); err == nil {
		err = closeErr
	}

	t.file = nil
	t.out = nil

	return err
}
