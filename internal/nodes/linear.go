package nodes

import (
	"gonum.org/v1/gonum/mat"

	"nengosim/internal/dynamics"
	"nengosim/internal/model"
)

// LinearOrigin is the decoded output of LinearNode and Population.
const LinearOrigin = "X"

type weightedTermination struct {
	term      *BasicTermination
	transform *mat.Dense
}

// LinearNode sums its low-pass filtered terminations, each mapped through a
// transform matrix, into a single decoded origin. It is the idealized form of
// a neural population and is enough to build integrators and oscillators.
// Modulatory terminations are filtered but do not contribute to the sum.
type LinearNode struct {
	base
	dim          int
	terminations []weightedTermination
	origin       *BasicOrigin
	integrator   dynamics.Integrator
	history      model.TimeSeries
}

func NewLinearNode(name string, dim int) (*LinearNode, error) {
	if dim <= 0 {
		return nil, model.Structuralf("linear node %s: dimension must be positive, got %d", name, dim)
	}
	n := &LinearNode{
		base:       newBase(name),
		dim:        dim,
		integrator: &dynamics.ExactLTIIntegrator{},
	}
	n.origin = NewBasicOrigin(n, LinearOrigin, dim, model.UnitsUnknown)
	n.history = singlePointHistory(0, make([]float64, dim), model.UnitsUnknown)
	return n, nil
}

func (n *LinearNode) Dimension() int { return n.dim }

// SetIntegrator sets the prototype cloned into terminations added from now on.
func (n *LinearNode) SetIntegrator(integrator dynamics.Integrator) {
	if integrator != nil {
		n.integrator = integrator
	}
}

// AddTermination adds a low-pass termination with time constant tau. The
// transform has one row per node dimension; its column count is the
// termination's dimension.
func (n *LinearNode) AddTermination(name string, tau float64, transform [][]float64) (*BasicTermination, error) {
	for _, wt := range n.terminations {
		if wt.term.Name() == name {
			return nil, model.Structuralf("linear node %s: termination %q already exists", n.name, name)
		}
	}
	if len(transform) != n.dim {
		return nil, model.Structuralf("linear node %s: transform has %d rows, want %d", n.name, len(transform), n.dim)
	}
	cols := len(transform[0])
	if cols == 0 {
		return nil, model.Structuralf("linear node %s: transform has no columns", n.name)
	}
	data := make([]float64, 0, n.dim*cols)
	for i, row := range transform {
		if len(row) != cols {
			return nil, model.Structuralf("linear node %s: transform row %d has %d columns, want %d", n.name, i, len(row), cols)
		}
		data = append(data, row...)
	}
	sys, err := dynamics.NewLowPass(tau, cols)
	if err != nil {
		return nil, model.Structuralf("linear node %s: termination %q: %w", n.name, name, err)
	}
	term := NewBasicTermination(n, sys, n.integrator.Clone(), name)
	n.terminations = append(n.terminations, weightedTermination{
		term:      term,
		transform: mat.NewDense(n.dim, cols, data),
	})
	return term, nil
}

func (n *LinearNode) RemoveTermination(name string) error {
	for i, wt := range n.terminations {
		if wt.term.Name() == name {
			n.terminations = append(n.terminations[:i], n.terminations[i+1:]...)
			return nil
		}
	}
	return model.Structuralf("linear node %s: unknown termination %q", n.name, name)
}

// Transform returns a copy of the named termination's transform.
func (n *LinearNode) Transform(name string) ([][]float64, error) {
	for _, wt := range n.terminations {
		if wt.term.Name() != name {
			continue
		}
		rows, cols := wt.transform.Dims()
		out := make([][]float64, rows)
		for i := range out {
			out[i] = mat.Row(make([]float64, cols), i, wt.transform)
		}
		return out, nil
	}
	return nil, model.Structuralf("linear node %s: unknown termination %q", n.name, name)
}

func (n *LinearNode) Origins() []model.Origin { return []model.Origin{n.origin} }

func (n *LinearNode) Origin(name string) (model.Origin, error) {
	if name != LinearOrigin {
		return nil, model.Structuralf("node %s: unknown origin %q", n.name, name)
	}
	return n.origin, nil
}

func (n *LinearNode) Terminations() []model.Termination {
	out := make([]model.Termination, len(n.terminations))
	for i, wt := range n.terminations {
		out[i] = wt.term
	}
	return out
}

func (n *LinearNode) Termination(name string) (model.Termination, error) {
	for _, wt := range n.terminations {
		if wt.term.Name() == name {
			return wt.term, nil
		}
	}
	return nil, model.Structuralf("node %s: unknown termination %q", n.name, name)
}

func (n *LinearNode) Run(start, end float64) error {
	sum := mat.NewVecDense(n.dim, nil)
	for _, wt := range n.terminations {
		if err := wt.term.Run(start, end); err != nil {
			return err
		}
		if wt.term.Modulatory() {
			continue
		}
		var contrib mat.VecDense
		contrib.MulVec(wt.transform, mat.NewVecDense(wt.term.Dimensions(), wt.term.Value()))
		sum.AddVec(sum, &contrib)
	}
	values := mat.Col(nil, 0, sum)
	n.origin.setReal(values, end)
	n.history = singlePointHistory(end, values, model.UnitsUnknown)
	return nil
}

func (n *LinearNode) Reset(randomize bool) {
	for _, wt := range n.terminations {
		wt.term.Reset(randomize)
		wt.term.ResetDynamics()
	}
	n.origin.SetValues(nil)
	n.history = singlePointHistory(0, make([]float64, n.dim), model.UnitsUnknown)
}

func (n *LinearNode) ListStates() map[string]string {
	return map[string]string{LinearOrigin: "Decoded output"}
}

func (n *LinearNode) History(state string) (model.TimeSeries, error) {
	if state != LinearOrigin {
		return model.TimeSeries{}, unknownState(n.name, state)
	}
	return n.history, nil
}

func (n *LinearNode) Clone() (model.Node, error) {
	out := &LinearNode{
		base:       n.cloneBase(),
		dim:        n.dim,
		integrator: n.integrator.Clone(),
		history:    n.history,
	}
	out.terminations = make([]weightedTermination, len(n.terminations))
	for i, wt := range n.terminations {
		out.terminations[i] = weightedTermination{
			term:      wt.term.cloneFor(out),
			transform: mat.DenseCopyOf(wt.transform),
		}
	}
	out.origin = n.origin.cloneFor(out)
	return out, nil
}
