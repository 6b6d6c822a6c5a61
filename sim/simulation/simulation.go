// Package simulation groups the engine, the clock and the components of a
// bus simulation so that tools can find them by name.
package simulation

import (
	"sort"

	"github.com/sarchlab/avalonbus/sim/id"
	"github.com/sarchlab/avalonbus/sim/naming"
	"github.com/sarchlab/avalonbus/sim/timing"
)

// A Simulation provides the service requires to define a simulation.
type Simulation struct {
	idGenerator id.IDGenerator
	engine      timing.Engine
	clock       *timing.Clock
	components  map[string]naming.Named
}

// NewSimulation creates a new simulation.
func NewSimulation() *Simulation {
	return &Simulation{
		idGenerator: id.NewIDGenerator(),
		components:  make(map[string]naming.Named),
	}
}

// ID returns the ID of the simulation.
func (s *Simulation) ID() string {
	return "simulation"
}

// GenerateID returns an ID that is unique within the simulation.
func (s *Simulation) GenerateID() string {
	return s.idGenerator.Generate()
}

// RegisterEngine registers the engine used in the simulation.
func (s *Simulation) RegisterEngine(e timing.Engine) {
	s.engine = e
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() timing.Engine {
	return s.engine
}

// RegisterClock registers the clock that drives the components.
func (s *Simulation) RegisterClock(c *timing.Clock) {
	s.clock = c
}

// GetClock returns the clock of the simulation.
func (s *Simulation) GetClock() *timing.Clock {
	return s.clock
}

// RegisterComponent registers a component with the simulation.
func (s *Simulation) RegisterComponent(c naming.Named) {
	name := c.Name()

	if _, ok := s.components[name]; ok {
		panic("component " + name + " already registered")
	}

	s.components[name] = c
}

// GetComponentByName returns the component with the given name, or nil.
func (s *Simulation) GetComponentByName(name string) naming.Named {
	return s.components[name]
}

// Components returns all the registered components, sorted by name.
func (s *Simulation) Components() []naming.Named {
	names := make([]string, 0, len(s.components))
	for name := range s.components {
		names = append(names, name)
	}

	sort.Strings(names)

	comps := make([]naming.Named, 0, len(names))
	for _, name := range names {
		comps = append(comps, s.components[name])
	}

	return comps
}
