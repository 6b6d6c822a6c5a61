package signal

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/avalonbus/sim/naming"
)

// An Interface is a named set of signals, such as the Avalon port of a
// device under test.
type Interface struct {
	naming.NamedBase

	signals map[string]*Signal
}

// NewInterface creates an empty interface.
func NewInterface(name string) *Interface {
	return &Interface{
		NamedBase: naming.MakeNamedBase(name),
		signals:   make(map[string]*Signal),
	}
}

// Add creates a signal in the interface and returns it.
func (i *Interface) Add(name string, width int) *Signal {
	if _, ok := i.signals[name]; ok {
		panic("signal " + name + " already exists in " + i.Name())
	}

	s := NewSignal(name, width)
	i.signals[name] = s

	return s
}

// Signal returns the signal with the given name.
func (i *Interface) Signal(name string) (*Signal, bool) {
	s, ok := i.signals[name]
	return s, ok
}

// MustSignal returns the signal with the given name and panics if there is
// none.
func (i *Interface) MustSignal(name string) *Signal {
	s, ok := i.signals[name]
	if !ok {
		panic("signal " + name + " does not exist in " + i.Name())
	}

	return s
}

// Names returns the names of the signals, sorted.
func (i *Interface) Names() []string {
	names := make([]string, 0, len(i.signals))
	for name := range i.signals {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// A Binding is the set of signals that a component resolved from an
// interface.
type Binding struct {
	iface   *Interface
	signals map[string]*Signal
}

// Bind resolves the required and optional signals of a component. It returns
// an error naming every required signal that the interface lacks. Missing
// optional signals are recorded as absent.
func Bind(iface *Interface, required, optional []string) (*Binding, error) {
	if iface == nil {
		return nil, errors.New("no interface to bind")
	}

	b := &Binding{
		iface:   iface,
		signals: make(map[string]*Signal),
	}

	var missing []string

	for _, name := range required {
		s, ok := iface.Signal(name)
		if !ok {
			missing = append(missing, name)
			continue
		}

		b.signals[name] = s
	}

	if len(missing) > 0 {
		return nil, errors.Errorf("interface %s has no signal named %s",
			iface.Name(), strings.Join(missing, ", "))
	}

	for _, name := range optional {
		if s, ok := iface.Signal(name); ok {
			b.signals[name] = s
		}
	}

	return b, nil
}

// Interface returns the bound interface.
func (b *Binding) Interface() *Interface {
	return b.iface
}

// Has tells if a signal is bound.
func (b *Binding) Has(name string) bool {
	_, ok := b.signals[name]
	return ok
}

// Get returns the bound signal, or nil if the signal is absent.
func (b *Binding) Get(name string) *Signal {
	return b.signals[name]
}
