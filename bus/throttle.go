package bus

import "math/rand"

// An OnOffGenerator produces the pairs of on and off cycle counts that shape
// valid assertion. ok is false when the generator is exhausted.
type OnOffGenerator interface {
	Next() (on, off int, ok bool)
}

// OnOff is a pair of on and off cycle counts.
type OnOff struct {
	On, Off int
}

type alwaysOn struct{}

func (alwaysOn) Next() (int, int, bool) {
	return 0, 0, false
}

// AlwaysOn returns a generator that never inserts off cycles.
func AlwaysOn() OnOffGenerator {
	return alwaysOn{}
}

type constant struct {
	on, off int
}

func (c constant) Next() (int, int, bool) {
	return c.on, c.off, true
}

// Constant returns a generator that repeats the same pair forever.
func Constant(on, off int) OnOffGenerator {
	return constant{on: on, off: off}
}

type sequence struct {
	pairs []OnOff
}

func (s *sequence) Next() (int, int, bool) {
	if len(s.pairs) == 0 {
		return 0, 0, false
	}

	p := s.pairs[0]
	s.pairs = s.pairs[1:]

	return p.On, p.Off, true
}

// Sequence returns a generator that produces the given pairs once.
func Sequence(pairs ...OnOff) OnOffGenerator {
	return &sequence{pairs: append([]OnOff(nil), pairs...)}
}

type randomOnOff struct {
	rng           *rand.Rand
	maxOn, maxOff int
}

func (r randomOnOff) Next() (int, int, bool) {
	on := 1 + r.rng.Intn(r.maxOn)
	off := r.rng.Intn(r.maxOff + 1)

	return on, off, true
}

// RandomOnOff returns a generator of on counts uniform in [1, maxOn] and off
// counts uniform in [0, maxOff].
func RandomOnOff(rng *rand.Rand, maxOn, maxOff int) OnOffGenerator {
	if maxOn < 1 || maxOff < 0 {
		panic("invalid on/off limits")
	}

	return randomOnOff{rng: rng, maxOn: maxOn, maxOff: maxOff}
}

// A Throttle tracks how many more words a driver may send before it has to
// insert off cycles.
type Throttle struct {
	gen    OnOffGenerator
	always bool
	on     int
	off    int
}

// NewThrottle creates a throttle. A nil generator never throttles.
func NewThrottle(gen OnOffGenerator) *Throttle {
	t := &Throttle{}
	t.SetGenerator(gen)

	return t
}

// SetGenerator replaces the generator and draws the first pair.
func (t *Throttle) SetGenerator(gen OnOffGenerator) {
	t.gen = gen
	t.Advance()
}

// Advance draws the next pair from the generator. Pairs with no on cycle are
// skipped. When the generator is exhausted the throttle stays on.
func (t *Throttle) Advance() {
	if t.gen == nil {
		t.always = true
		return
	}

	for {
		on, off, ok := t.gen.Next()
		if !ok {
			t.always = true
			return
		}

		if on != 0 {
			t.always = false
			t.on = on
			t.off = off

			return
		}
	}
}

// IsOff tells if the current on window is used up.
func (t *Throttle) IsOff() bool {
	return !t.always && t.on == 0
}

// OffCycles returns the number of off cycles to insert before the next pair.
func (t *Throttle) OffCycles() int {
	return t.off
}

// Consume uses one on cycle.
func (t *Throttle) Consume() {
	if !t.always && t.on > 0 {
		t.on--
	}
}

// IsAlwaysOn tells if the throttle no longer inserts off cycles.
func (t *Throttle) IsAlwaysOn() bool {
	return t.always
}
