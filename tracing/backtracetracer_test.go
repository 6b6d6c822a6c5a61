package tracing

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/avalonbus/sim/timing"
)

var _ = Describe("BackTraceTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		printer    *MockTaskPrinter
		t          *BackTraceTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		timeTeller.EXPECT().CurrentTime().Return(timing.VTimeInCycle(3)).AnyTimes()
		printer = NewMockTaskPrinter(mockCtrl)
		t = NewBackTraceTracer(timeTeller, printer)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should trace tasks until they end", func() {
		t.StartTask(Task{ID: "1"})
		t.StartTask(Task{ID: "2", ParentID: "1"})
		t.StartTask(Task{ID: "3", ParentID: "2"})

		t.EndTask(Task{ID: "2"})

		inFlight := t.InFlight()
		Expect(inFlight).To(HaveLen(2))
		Expect(inFlight[0].ID).To(Equal("1"))
		Expect(inFlight[1].ID).To(Equal("3"))
		Expect(inFlight[1].StartTime).To(Equal(timing.VTimeInCycle(3)))
	})

	It("should keep the steps of a task in flight", func() {
		t.StartTask(Task{ID: "1"})
		t.StepTask(Task{ID: "1", Steps: []TaskStep{{What: StepAccepted}}})
		t.StepTask(Task{ID: "9", Steps: []TaskStep{{What: StepAccepted}}})

		inFlight := t.InFlight()
		Expect(inFlight).To(HaveLen(1))
		Expect(inFlight[0].Steps).To(Equal([]TaskStep{
			{Time: 3, What: StepAccepted},
		}))
	})

	It("should print the ancestors of a task", func() {
		t.StartTask(Task{ID: "1"})
		t.StartTask(Task{ID: "2", ParentID: "1"})

		gomock.InOrder(
			printer.EXPECT().Print(gomock.Any()).Do(func(task Task) {
				Expect(task.ID).To(Equal("3"))
			}),
			printer.EXPECT().Print(gomock.Any()).Do(func(task Task) {
				Expect(task.ID).To(Equal("2"))
			}),
			printer.EXPECT().Print(gomock.Any()).Do(func(task Task) {
				Expect(task.ID).To(Equal("1"))
			}),
		)

		t.DumpBackTrace(Task{ID: "3", ParentID: "2"})
	})

	It("should print all the tasks in flight", func() {
		t.StartTask(Task{ID: "1"})
		t.StartTask(Task{ID: "2"})
		t.EndTask(Task{ID: "1"})

		printer.EXPECT().Print(gomock.Any()).Do(func(task Task) {
			Expect(task.ID).To(Equal("2"))
		})

		t.DumpInFlight()
	})
})

var _ = Describe("WriterTaskPrinter", func() {
	It("should print a line per task", func() {
		buf := new(bytes.Buffer)
		p := NewWriterTaskPrinter(buf)

		p.Print(Task{
			Kind:      "req_out",
			What:      "burst_read",
			Location:  "Master",
			StartTime: 12,
		})

		Expect(buf.String()).To(Equal(
			"  req_out burst_read at Master since cycle 12\n"))
	})

	It("should print the last step", func() {
		buf := new(bytes.Buffer)
		p := NewWriterTaskPrinter(buf)

		p.Print(Task{
			Kind:      "req_out",
			What:      "read",
			Location:  "Master",
			StartTime: 2,
			Steps:     []TaskStep{{Time: 4, What: StepAccepted}},
		})

		Expect(buf.String()).To(Equal(
			"  req_out read at Master since cycle 2, 1 steps, last accepted at cycle 4\n"))
	})
})
