// Package probe records named state histories of Probeable targets during a
// simulation run.
package probe

import (
	"fmt"
	"sort"
	"sync"

	"nengosim/internal/model"
)

// NoElement marks an Address that targets a whole node.
const NoElement = -1

// Address locates a probe target by name so it can be re-resolved against a
// cloned network. Element is NoElement unless the target is an element of
// the ensemble named Node.
type Address struct {
	Node    string
	Element int
}

func (a Address) String() string {
	if a.Element == NoElement {
		return a.Node
	}
	return fmt.Sprintf("%s[%d]", a.Node, a.Element)
}

// Probe samples one state of its target after every simulator step. A
// recording probe keeps every sample; a non-recording probe keeps only the
// latest one.
type Probe struct {
	target  model.Probeable
	address Address
	state   string
	record  bool

	mu       sync.Mutex
	attached bool
	times    []float64
	values   [][]float64
	units    []model.Units
	labels   []string
}

// New validates state against target.ListStates and returns an attached
// probe.
func New(target model.Probeable, address Address, state string, record bool) (*Probe, error) {
	if target == nil {
		return nil, model.Structuralf("probe %s: nil target", address)
	}
	states := target.ListStates()
	if _, ok := states[state]; !ok {
		known := make([]string, 0, len(states))
		for name := range states {
			known = append(known, name)
		}
		sort.Strings(known)
		return nil, model.Structuralf("probe %s: unknown state %q (known: %v)", address, state, known)
	}
	return &Probe{
		target:   target,
		address:  address,
		state:    state,
		record:   record,
		attached: true,
	}, nil
}

func (p *Probe) Target() model.Probeable { return p.target }

func (p *Probe) Address() Address { return p.address }

func (p *Probe) State() string { return p.state }

func (p *Probe) Recording() bool { return p.record }

func (p *Probe) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached
}

// Detach stops accumulation. Collected samples stay readable through Data.
func (p *Probe) Detach() {
	p.mu.Lock()
	p.attached = false
	p.mu.Unlock()
}

// Sample appends the target's most recent state value. It is a no-op on a
// detached probe and never mutates the target. A sample whose time does not
// advance past the previous one replaces it.
func (p *Probe) Sample() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.attached {
		return nil
	}
	history, err := p.target.History(p.state)
	if err != nil {
		return model.AsSimulation(fmt.Errorf("probe %s.%s: %w", p.address, p.state, err))
	}
	t, v, ok := history.Last()
	if !ok {
		return nil
	}
	if p.units == nil {
		p.units = history.Units()
		p.labels = history.Labels()
	}
	if len(v) != len(p.units) {
		return model.Simulationf("probe %s.%s: sample dimension %d, want %d", p.address, p.state, len(v), len(p.units))
	}

	n := len(p.times)
	switch {
	case !p.record:
		p.times = append(p.times[:0], t)
		p.values = append(p.values[:0], v)
	case n > 0 && t <= p.times[n-1]:
		p.times[n-1] = t
		p.values[n-1] = v
	default:
		p.times = append(p.times, t)
		p.values = append(p.values, v)
	}
	return nil
}

// Data returns an immutable snapshot of the samples collected so far. It is
// safe to call while a run is in progress.
func (p *Probe) Data() model.TimeSeries {
	p.mu.Lock()
	defer p.mu.Unlock()

	units := p.units
	if units == nil {
		units = []model.Units{}
	}
	ts, err := model.NewTimeSeries(p.times, p.values, units)
	if err != nil {
		// Sample enforces the shape.
		return model.TimeSeries{}.WithName(p.name())
	}
	if len(p.labels) == ts.Dimension() {
		if labeled, err := ts.WithLabels(p.labels); err == nil {
			ts = labeled
		}
	}
	return ts.WithName(p.name())
}

// Len reports the number of samples collected.
func (p *Probe) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.times)
}

// Clear drops collected samples without detaching.
func (p *Probe) Clear() {
	p.mu.Lock()
	p.times = nil
	p.values = nil
	p.mu.Unlock()
}

func (p *Probe) name() string {
	return p.address.String() + "." + p.state
}
