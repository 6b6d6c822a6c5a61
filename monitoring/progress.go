package monitoring

import (
	"encoding/json"
	"sync"
	"time"
)

// A ProgressBar tracks how many transactions or packets of a scenario are
// issued, checked, and found wrong. The scenario updates it from the
// simulation goroutine while the server reads it.
type ProgressBar struct {
	lock sync.Mutex

	id         string
	name       string
	startTime  time.Time
	total      uint64
	inProgress uint64
	finished   uint64
	mismatched uint64
}

// Start marks n more items as in flight.
func (b *ProgressBar) Start(n uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.inProgress += n
}

// Finish marks n in-flight items as checked.
func (b *ProgressBar) Finish(n uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	n = min(n, b.inProgress)
	b.inProgress -= n
	b.finished += n
}

// Mismatch counts a checked item that differed from what was expected.
func (b *ProgressBar) Mismatch() {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.mismatched++
}

// Done tells if every item has been checked.
func (b *ProgressBar) Done() bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.finished >= b.total
}

type progressView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	InProgress uint64    `json:"in_progress"`
	Finished   uint64    `json:"finished"`
	Mismatched uint64    `json:"mismatched"`
}

// MarshalJSON encodes a consistent snapshot of the bar.
func (b *ProgressBar) MarshalJSON() ([]byte, error) {
	b.lock.Lock()
	v := progressView{
		ID:         b.id,
		Name:       b.name,
		StartTime:  b.startTime,
		Total:      b.total,
		InProgress: b.inProgress,
		Finished:   b.finished,
		Mismatched: b.mismatched,
	}
	b.lock.Unlock()

	return json.Marshal(v)
}
