package nodes

import (
	"fmt"
	"math"
	"math/rand"

	"nengosim/internal/dynamics"
	"nengosim/internal/model"
)

const (
	PopulationInput = "input"
	PopulationAxon  = "AXON"
	NeuronRate      = "rate"
)

// PopulationConfig describes a rectified-linear rate population. Neuron i
// encodes dimension i%Dimensions with a positive encoder when
// (i/Dimensions) is even and a negative one otherwise.
type PopulationConfig struct {
	Dimensions int
	Size       int
	Gain       float64
	Tau        float64
	Seed       int64
}

func (c PopulationConfig) validate(name string) error {
	if c.Dimensions <= 0 {
		return model.Structuralf("population %s: dimension must be positive, got %d", name, c.Dimensions)
	}
	if c.Size <= 0 {
		return model.Structuralf("population %s: size must be positive, got %d", name, c.Size)
	}
	if c.Gain <= 0 {
		return model.Structuralf("population %s: gain must be positive, got %g", name, c.Gain)
	}
	return nil
}

// Population is an ensemble of rate neurons fed by one filtered input
// termination. Its "X" origin decodes the represented vector from the alive
// neurons; its "AXON" origin carries the individual rates.
//
// In approximate mode the neurons are bypassed and X is the filtered input.
type Population struct {
	base
	cfg     PopulationConfig
	rng     *rand.Rand
	neurons []*Neuron
	input   *BasicTermination
	decoded *BasicOrigin
	axon    *BasicOrigin
	history model.TimeSeries
}

func NewPopulation(name string, cfg PopulationConfig) (*Population, error) {
	if err := cfg.validate(name); err != nil {
		return nil, err
	}
	sys, err := dynamics.NewLowPass(cfg.Tau, cfg.Dimensions)
	if err != nil {
		return nil, model.Structuralf("population %s: %w", name, err)
	}
	p := &Population{
		base: newBase(name),
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}
	p.input = NewBasicTermination(p, sys, &dynamics.ExactLTIIntegrator{}, PopulationInput)
	p.decoded = NewBasicOrigin(p, LinearOrigin, cfg.Dimensions, model.UnitsUnknown)
	p.axon = NewBasicOrigin(p, PopulationAxon, cfg.Size, model.UnitsSpikesS)
	p.neurons = make([]*Neuron, cfg.Size)
	for i := range p.neurons {
		sign := 1.0
		if (i/cfg.Dimensions)%2 == 1 {
			sign = -1
		}
		p.neurons[i] = &Neuron{
			base:   newBase(fmt.Sprintf("%s.%d", name, i)),
			parent: p,
			index:  i,
			axis:   i % cfg.Dimensions,
			sign:   sign,
			alive:  true,
		}
	}
	p.history = singlePointHistory(0, make([]float64, cfg.Dimensions), model.UnitsUnknown)
	return p, nil
}

func (p *Population) Config() PopulationConfig { return p.cfg }

func (p *Population) Origins() []model.Origin {
	return []model.Origin{p.decoded, p.axon}
}

func (p *Population) Origin(name string) (model.Origin, error) {
	switch name {
	case LinearOrigin:
		return p.decoded, nil
	case PopulationAxon:
		return p.axon, nil
	}
	return nil, model.Structuralf("node %s: unknown origin %q", p.name, name)
}

func (p *Population) Terminations() []model.Termination {
	return []model.Termination{p.input}
}

func (p *Population) Termination(name string) (model.Termination, error) {
	if name != PopulationInput {
		return nil, model.Structuralf("node %s: unknown termination %q", p.name, name)
	}
	return p.input, nil
}

func (p *Population) Elements() []model.Node {
	out := make([]model.Node, len(p.neurons))
	for i, n := range p.neurons {
		out[i] = n
	}
	return out
}

func (p *Population) Run(start, end float64) error {
	if err := p.input.Run(start, end); err != nil {
		return err
	}
	x := p.input.Value()

	rates := make([]float64, len(p.neurons))
	if p.mode != model.ModeApproximate {
		for i, n := range p.neurons {
			if n.alive {
				rates[i] = p.cfg.Gain * math.Max(0, n.sign*x[n.axis])
			}
			n.record(end, rates[i])
		}
		x = p.decode(rates)
	}

	p.decoded.setReal(x, end)
	p.axon.setReal(rates, end)
	p.history = singlePointHistory(end, x, model.UnitsUnknown)
	return nil
}

// decode averages the alive neurons of each encoder group and takes the
// difference of the positive and negative means.
func (p *Population) decode(rates []float64) []float64 {
	dim := p.cfg.Dimensions
	posSum := make([]float64, dim)
	negSum := make([]float64, dim)
	posCount := make([]int, dim)
	negCount := make([]int, dim)
	for i, n := range p.neurons {
		if !n.alive {
			continue
		}
		if n.sign > 0 {
			posSum[n.axis] += rates[i]
			posCount[n.axis]++
		} else {
			negSum[n.axis] += rates[i]
			negCount[n.axis]++
		}
	}
	out := make([]float64, dim)
	for d := range out {
		if posCount[d] > 0 {
			out[d] += posSum[d] / float64(posCount[d])
		}
		if negCount[d] > 0 {
			out[d] -= negSum[d] / float64(negCount[d])
		}
		out[d] /= p.cfg.Gain
	}
	return out
}

// KillNeurons silences round(fraction * alive) randomly chosen neurons. With
// preserveSingleNodeGroups set, a population of one neuron is left intact.
func (p *Population) KillNeurons(fraction float64, preserveSingleNodeGroups bool) {
	if preserveSingleNodeGroups && len(p.neurons) == 1 {
		return
	}
	if math.IsNaN(fraction) {
		fraction = 0
	}
	fraction = math.Max(0, math.Min(1, fraction))
	alive := make([]*Neuron, 0, len(p.neurons))
	for _, n := range p.neurons {
		if n.alive {
			alive = append(alive, n)
		}
	}
	k := int(math.Round(fraction * float64(len(alive))))
	for _, idx := range p.rng.Perm(len(alive))[:k] {
		alive[idx].alive = false
	}
}

func (p *Population) NeuronCount() int { return len(p.neurons) }

func (p *Population) AliveCount() int {
	count := 0
	for _, n := range p.neurons {
		if n.alive {
			count++
		}
	}
	return count
}

func (p *Population) Reset(randomize bool) {
	p.input.Reset(randomize)
	p.input.ResetDynamics()
	p.decoded.SetValues(nil)
	p.axon.SetValues(nil)
	for _, n := range p.neurons {
		n.Reset(randomize)
	}
	p.history = singlePointHistory(0, make([]float64, p.cfg.Dimensions), model.UnitsUnknown)
}

func (p *Population) ListStates() map[string]string {
	return map[string]string{
		LinearOrigin:   "Decoded output",
		PopulationAxon: "Neuron firing rates",
	}
}

func (p *Population) History(state string) (model.TimeSeries, error) {
	switch state {
	case LinearOrigin:
		return p.history, nil
	case PopulationAxon:
		values, err := p.axon.Values()
		if err != nil {
			return model.TimeSeries{}, err
		}
		rates := values.(model.RealOutput)
		return singlePointHistory(rates.Time(), rates.Values(), model.UnitsSpikesS), nil
	}
	return model.TimeSeries{}, unknownState(p.name, state)
}

// Clone copies the configuration, lesions and filter state. The clone's
// random source is reseeded from the configured seed.
func (p *Population) Clone() (model.Node, error) {
	out := &Population{
		base:    p.cloneBase(),
		cfg:     p.cfg,
		rng:     rand.New(rand.NewSource(p.cfg.Seed)),
		history: p.history,
	}
	out.input = p.input.cloneFor(out)
	out.decoded = p.decoded.cloneFor(out)
	out.axon = p.axon.cloneFor(out)
	out.neurons = make([]*Neuron, len(p.neurons))
	for i, n := range p.neurons {
		cp := *n
		cp.base = n.cloneBase()
		cp.parent = out
		out.neurons[i] = &cp
	}
	return out, nil
}

// Neuron is one element of a Population. It has no ports of its own; the
// parent computes its rate during Run.
type Neuron struct {
	base
	parent *Population
	index  int
	axis   int
	sign   float64
	alive  bool
	rate   float64
	time   float64
}

func (n *Neuron) Index() int { return n.index }

func (n *Neuron) Alive() bool { return n.alive }

func (n *Neuron) record(t, rate float64) {
	n.time = t
	n.rate = rate
}

func (n *Neuron) Origins() []model.Origin { return nil }

func (n *Neuron) Origin(name string) (model.Origin, error) {
	return nil, model.Structuralf("node %s: unknown origin %q", n.name, name)
}

func (n *Neuron) Terminations() []model.Termination { return nil }

func (n *Neuron) Termination(name string) (model.Termination, error) {
	return nil, model.Structuralf("node %s: unknown termination %q", n.name, name)
}

func (n *Neuron) Run(float64, float64) error { return nil }

func (n *Neuron) Reset(bool) {
	n.rate = 0
	n.time = 0
}

func (n *Neuron) ListStates() map[string]string {
	return map[string]string{NeuronRate: "Firing rate"}
}

func (n *Neuron) History(state string) (model.TimeSeries, error) {
	if state != NeuronRate {
		return model.TimeSeries{}, unknownState(n.name, state)
	}
	return singlePointHistory(n.time, []float64{n.rate}, model.UnitsSpikesS), nil
}

// Clone returns a detached copy of the neuron.
func (n *Neuron) Clone() (model.Node, error) {
	cp := *n
	cp.base = n.cloneBase()
	cp.parent = nil
	return &cp, nil
}

// PopulationFactory makes populations from a shared configuration.
type PopulationFactory struct {
	Config PopulationConfig
}

func (f PopulationFactory) Make(name string) (model.Node, error) {
	return NewPopulation(name, f.Config)
}

func (f PopulationFactory) TypeDescription() string {
	return fmt.Sprintf("rectified-linear rate population (%d neurons, %d dimensions)", f.Config.Size, f.Config.Dimensions)
}
