package tracing

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avalonbus/datarecording"
	"github.com/sarchlab/avalonbus/sim/timing"
)

type testTimeTeller struct {
	now timing.VTimeInCycle
}

func (t *testTimeTeller) CurrentTime() timing.VTimeInCycle {
	return t.now
}

var _ = Describe("DBTracer", func() {
	var (
		timeTeller *testTimeTeller
		path       string
		recorder   datarecording.DataRecorder
		tracer     *DBTracer
	)

	BeforeEach(func() {
		var err error

		timeTeller = &testTimeTeller{}
		path = filepath.Join(GinkgoT().TempDir(), "trace")
		recorder, err = datarecording.New(path)
		Expect(err).NotTo(HaveOccurred())
		tracer = NewDBTracer(timeTeller, recorder)
	})

	AfterEach(func() {
		Expect(recorder.Close()).To(Succeed())
	})

	readTasks := func() []TaskEntry {
		reader, err := datarecording.OpenReader(path)
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		tasks, err := datarecording.ReadTable[TaskEntry](context.Background(),
			reader, TraceTable, datarecording.Query{OrderBy: "ID"})
		Expect(err).NotTo(HaveOccurred())

		return tasks
	}

	It("should store the tasks", func() {
		timeTeller.now = 1
		tracer.StartTask(Task{
			ID: "a", Kind: "req_out", What: "burst_read", Location: "Master",
		})
		tracer.StepTask(Task{ID: "a", Steps: []TaskStep{{What: "accepted"}}})
		timeTeller.now = 2
		tracer.StartTask(Task{
			ID: "b", Kind: "req_out", What: "read", Location: "Master",
		})
		timeTeller.now = 7
		tracer.EndTask(Task{ID: "a"})

		tracer.Terminate()
		Expect(recorder.Close()).To(Succeed())

		tasks := readTasks()
		Expect(tasks).To(HaveLen(2))
		Expect(tasks[0]).To(Equal(TaskEntry{
			ID: "a", Kind: "req_out", What: "burst_read", Location: "Master",
			StartTime: 1, EndTime: 7, Latency: 6, Steps: 1, Accepted: 1,
			Completed: true,
		}))
		Expect(tasks[1].ID).To(Equal("b"))
		Expect(tasks[1].EndTime).To(Equal(uint64(7)))
		Expect(tasks[1].Latency).To(Equal(uint64(5)))
		Expect(tasks[1].Completed).To(BeFalse())
	})

	It("should only store the tasks in the time range", func() {
		tracer.SetTimeRange(5, 10)

		timeTeller.now = 1
		tracer.StartTask(Task{ID: "early", Kind: "k", What: "w", Location: "l"})
		timeTeller.now = 3
		tracer.EndTask(Task{ID: "early"})

		timeTeller.now = 11
		tracer.StartTask(Task{ID: "late", Kind: "k", What: "w", Location: "l"})
		timeTeller.now = 12
		tracer.EndTask(Task{ID: "late"})

		tracer.Terminate()
		Expect(recorder.Close()).To(Succeed())

		Expect(readTasks()).To(BeEmpty())
	})

	It("should reject incomplete tasks", func() {
		Expect(func() {
			tracer.StartTask(Task{ID: "a", Kind: "k", What: "w"})
		}).To(Panic())
	})
})
