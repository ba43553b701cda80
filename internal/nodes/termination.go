package nodes

import (
	"nengosim/internal/dynamics"
	"nengosim/internal/model"
)

// BasicTermination filters its input through a dynamical system before the
// owning node reads it.
//
// Input is held constant across each step: Run builds a two-point series with
// the same value at both interval endpoints (zero-order hold) and hands it to
// the integrator. Spike inputs become pulses of height 1/(end-start) so the
// charge delivered by one spike does not depend on the step size.
type BasicTermination struct {
	node       model.Node
	name       string
	dynamics   dynamics.System
	integrator dynamics.Integrator
	input      model.InstantaneousOutput
	output     model.TimeSeries
	modulatory bool
}

func NewBasicTermination(node model.Node, sys dynamics.System, integrator dynamics.Integrator, name string) *BasicTermination {
	return &BasicTermination{
		node:       node,
		name:       name,
		dynamics:   sys,
		integrator: integrator,
	}
}

func (t *BasicTermination) Name() string { return t.name }

func (t *BasicTermination) Dimensions() int { return t.dynamics.InputDimension() }

func (t *BasicTermination) Node() model.Node { return t.node }

func (t *BasicTermination) SetValues(values model.InstantaneousOutput) error {
	if values != nil && values.Dimension() != t.Dimensions() {
		return model.Simulationf("termination %s: input dimension %d, want %d", t.name, values.Dimension(), t.Dimensions())
	}
	t.input = values
	return nil
}

func (t *BasicTermination) Input() model.InstantaneousOutput { return t.input }

func (t *BasicTermination) Run(start, end float64) error {
	dim := t.Dimensions()
	input := make([]float64, dim)
	units := model.UnitsUnknown
	switch v := t.input.(type) {
	case nil:
	case model.RealOutput:
		copy(input, v.Values())
		units = v.Units()
	case model.SpikeOutput:
		if end <= start {
			return model.Simulationf("termination %s: spike input needs end > start, got [%g, %g]", t.name, start, end)
		}
		amplitude := 1 / (end - start)
		for i, fired := range v.Values() {
			if fired {
				input[i] = amplitude
			}
		}
	default:
		return model.Simulationf("termination %s: unsupported input type %T", t.name, t.input)
	}

	series, err := model.NewTimeSeries([]float64{start, end}, [][]float64{input, input}, model.UniformUnits(units, dim))
	if err != nil {
		return model.Simulationf("termination %s: %w", t.name, err)
	}
	out, err := t.integrator.Integrate(t.dynamics, series)
	if err != nil {
		return model.Simulationf("termination %s: %w", t.name, err)
	}
	t.output = out
	return nil
}

// Output is the series produced by the most recent Run.
func (t *BasicTermination) Output() model.TimeSeries { return t.output }

// Value is the final sample of Output, or zeros before the first Run.
func (t *BasicTermination) Value() []float64 {
	if _, v, ok := t.output.Last(); ok {
		return v
	}
	return make([]float64, t.dynamics.OutputDimension())
}

func (t *BasicTermination) Dynamics() dynamics.System { return t.dynamics }

func (t *BasicTermination) Integrator() dynamics.Integrator { return t.integrator }

func (t *BasicTermination) Modulatory() bool { return t.modulatory }

func (t *BasicTermination) SetModulatory(modulatory bool) { t.modulatory = modulatory }

func (t *BasicTermination) Tau() (float64, error) {
	lti, ok := t.dynamics.(*dynamics.LTISystem)
	if !ok {
		return 0, model.Structuralf("termination %s: can't get time constant of non-LTI dynamics", t.name)
	}
	tau, err := dynamics.DominantTimeConstant(lti)
	if err != nil {
		return 0, model.Structuralf("termination %s: %w", t.name, err)
	}
	return tau, nil
}

func (t *BasicTermination) SetTau(tau float64) error {
	lti, ok := t.dynamics.(*dynamics.LTISystem)
	if !ok {
		return model.Structuralf("termination %s: can't set time constant of non-LTI dynamics", t.name)
	}
	if err := dynamics.ChangeTimeConstant(lti, tau); err != nil {
		return model.Structuralf("termination %s: %w", t.name, err)
	}
	return nil
}

// Reset clears the stored input. The dynamics keep their state; owners reset
// that separately through ResetDynamics.
func (t *BasicTermination) Reset(bool) {
	t.input = nil
}

// ResetDynamics zeroes the filter state and the last output.
func (t *BasicTermination) ResetDynamics() {
	if lti, ok := t.dynamics.(*dynamics.LTISystem); ok {
		lti.SetState(make([]float64, lti.StateDimension()))
	} else {
		t.dynamics.SetState(make([]float64, len(t.dynamics.State())))
	}
	t.output = model.TimeSeries{}
}

func (t *BasicTermination) cloneFor(node model.Node) *BasicTermination {
	out := &BasicTermination{
		node:       node,
		name:       t.name,
		dynamics:   t.dynamics.Clone(),
		integrator: t.integrator.Clone(),
		output:     t.output,
		modulatory: t.modulatory,
	}
	if t.input != nil {
		out.input = t.input.Clone()
	}
	return out
}

// PassthroughTermination hands its input straight to the owning node. It has
// no dynamics, so Tau and SetTau fail.
type PassthroughTermination struct {
	node       model.Node
	name       string
	dim        int
	input      model.InstantaneousOutput
	modulatory bool
}

func NewPassthroughTermination(node model.Node, name string, dim int) *PassthroughTermination {
	return &PassthroughTermination{node: node, name: name, dim: dim}
}

func (t *PassthroughTermination) Name() string { return t.name }

func (t *PassthroughTermination) Dimensions() int { return t.dim }

func (t *PassthroughTermination) Node() model.Node { return t.node }

func (t *PassthroughTermination) SetValues(values model.InstantaneousOutput) error {
	if values != nil && values.Dimension() != t.dim {
		return model.Simulationf("termination %s: input dimension %d, want %d", t.name, values.Dimension(), t.dim)
	}
	t.input = values
	return nil
}

func (t *PassthroughTermination) Input() model.InstantaneousOutput { return t.input }

func (t *PassthroughTermination) Modulatory() bool { return t.modulatory }

func (t *PassthroughTermination) SetModulatory(modulatory bool) { t.modulatory = modulatory }

func (t *PassthroughTermination) Tau() (float64, error) {
	return 0, model.Structuralf("termination %s: can't get time constant of non-LTI dynamics", t.name)
}

func (t *PassthroughTermination) SetTau(float64) error {
	return model.Structuralf("termination %s: can't set time constant of non-LTI dynamics", t.name)
}

func (t *PassthroughTermination) Reset(bool) { t.input = nil }
