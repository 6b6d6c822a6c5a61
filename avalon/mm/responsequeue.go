package mm

import "github.com/sarchlab/avalonbus/signal"

// ResponseKind tells what a queued read response carries.
type ResponseKind int

// Kinds of read responses.
const (
	// ResponseNone is a placeholder that keeps readdatavalid low for a cycle.
	ResponseNone ResponseKind = iota
	ResponseValue
	ResponseUnknown
)

// A Response is an entry of the response queue.
type Response struct {
	Kind  ResponseKind
	Value signal.Word
}

// A ResponseQueue holds the read responses that a memory still has to drive,
// one per cycle.
type ResponseQueue struct {
	items []Response
}

// Len returns the number of queued responses.
func (q *ResponseQueue) Len() int {
	return len(q.items)
}

// PadTo appends placeholders until the queue holds n entries.
func (q *ResponseQueue) PadTo(n int) {
	for len(q.items) < n {
		q.items = append(q.items, Response{Kind: ResponseNone})
	}
}

// PushValue appends a response that carries data.
func (q *ResponseQueue) PushValue(w signal.Word) {
	q.items = append(q.items, Response{Kind: ResponseValue, Value: w})
}

// PushUnknown appends a response whose data is unknown.
func (q *ResponseQueue) PushUnknown() {
	q.items = append(q.items, Response{Kind: ResponseUnknown})
}

// Pop removes the first response. An empty queue returns a placeholder.
func (q *ResponseQueue) Pop() Response {
	if len(q.items) == 0 {
		return Response{Kind: ResponseNone}
	}

	r := q.items[0]
	q.items = q.items[1:]

	return r
}
