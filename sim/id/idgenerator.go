// Package id generates the identifiers attached to transactions and trace
// tasks. By default the IDs count up from 1, so that two runs with the same
// seed give the same traces.
package id

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator hands out IDs. It is safe for concurrent use.
type IDGenerator interface {
	Generate() string
}

type counter struct {
	last atomic.Uint64
}

func (c *counter) Generate() string {
	return strconv.FormatUint(c.last.Add(1), 10)
}

type unique struct{}

func (unique) Generate() string {
	return xid.New().String()
}

var global struct {
	sync.Mutex
	gen IDGenerator
}

// NewIDGenerator returns a counting generator that does not share its count
// with the global one.
func NewIDGenerator() IDGenerator {
	return &counter{}
}

// UseSequentialIDGenerator makes the global generator count up from 1.
func UseSequentialIDGenerator() {
	setGlobal(&counter{})
}

// UseParallelIDGenerator makes the global generator return globally unique
// IDs, so that the traces of several runs can be merged. The IDs are no
// longer reproducible.
func UseParallelIDGenerator() {
	setGlobal(unique{})
}

func setGlobal(g IDGenerator) {
	global.Lock()
	defer global.Unlock()

	if global.gen != nil {
		panic("the ID generator cannot change once IDs are generated")
	}

	global.gen = g
}

// Generate returns an ID from the global generator.
func Generate() string {
	global.Lock()
	if global.gen == nil {
		global.gen = &counter{}
	}
	g := global.gen
	global.Unlock()

	return g.Generate()
}
