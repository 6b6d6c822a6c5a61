package timing

import (
	"container/heap"
	"sync"
)

// EventQueue orders events by cycle. Events of the same cycle leave in the
// order they were pushed.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Peek() Event
	Len() int
}

// EventQueueImpl is a heap based EventQueue that can be shared between
// goroutines.
type EventQueueImpl struct {
	lock  sync.Mutex
	items queueItems
	seq   uint64
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueueImpl {
	return &EventQueueImpl{}
}

// Push adds an event.
func (q *EventQueueImpl) Push(evt Event) {
	q.lock.Lock()
	defer q.lock.Unlock()

	heap.Push(&q.items, queueItem{evt: evt, seq: q.seq})
	q.seq++
}

// Pop removes and returns the earliest event.
func (q *EventQueueImpl) Pop() Event {
	q.lock.Lock()
	defer q.lock.Unlock()

	return heap.Pop(&q.items).(queueItem).evt
}

// Peek returns the earliest event and leaves it in the queue.
func (q *EventQueueImpl) Peek() Event {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.items[0].evt
}

// Len returns the number of queued events.
func (q *EventQueueImpl) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.items)
}

type queueItem struct {
	evt Event
	seq uint64
}

// queueItems implements heap.Interface.
type queueItems []queueItem

func (s queueItems) Len() int { return len(s) }

func (s queueItems) Less(i, j int) bool {
	if a, b := s[i].evt.Time(), s[j].evt.Time(); a != b {
		return a < b
	}

	return s[i].seq < s[j].seq
}

func (s queueItems) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s *queueItems) Push(x any) { *s = append(*s, x.(queueItem)) }

func (s *queueItems) Pop() any {
	last := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]

	return last
}
