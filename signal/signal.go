// Package signal models the wires of a simulated hardware interface.
//
// A Signal carries a 4-state Word. Signals are grouped in an Interface, and
// components resolve the wires they need with Bind once, at construction.
package signal

import (
	"fmt"
	"log"
)

// A Signal is a named wire of a fixed width.
type Signal struct {
	name  string
	width int
	value Word
}

// NewSignal creates a signal whose value is unknown.
func NewSignal(name string, width int) *Signal {
	return &Signal{
		name:  name,
		width: width,
		value: Unknown(width),
	}
}

// Name returns the name of the signal.
func (s *Signal) Name() string {
	return s.name
}

// Width returns the number of bits of the signal.
func (s *Signal) Width() int {
	return s.width
}

// Value returns the value currently driven on the signal.
func (s *Signal) Value() Word {
	return s.value
}

// Set drives a word on the signal.
func (s *Signal) Set(w Word) {
	if w.Width() != s.width {
		log.Panicf("driving a %d-bit word on %d-bit signal %s",
			w.Width(), s.width, s.name)
	}

	s.value = w
}

// SetUint64 drives an integer on the signal.
func (s *Signal) SetUint64(v uint64) {
	s.value = FromUint64(s.width, v)
}

// SetUnknown drives all the bits of the signal to unknown.
func (s *Signal) SetUnknown() {
	s.value = Unknown(s.width)
}

// SetOnes drives all the bits of the signal to 1.
func (s *Signal) SetOnes() {
	s.value = Ones(s.width)
}

// IsHigh returns true if the signal carries a known, non-zero value.
func (s *Signal) IsHigh() bool {
	return s.value.IsTrue()
}

// Uint64 returns the integer value of the signal.
func (s *Signal) Uint64() (uint64, error) {
	return s.value.Uint64()
}

func (s *Signal) String() string {
	return fmt.Sprintf("%s=%s", s.name, s.value)
}
