package nodes

import "nengosim/internal/model"

// FunctionOrigin is the origin name of every FunctionInput.
const FunctionOrigin = "origin"

// FunctionInput emits one Function per output dimension. It has no
// terminations.
type FunctionInput struct {
	base
	functions []Function
	units     model.Units
	origin    *BasicOrigin
	time      float64
	history   model.TimeSeries
}

func NewFunctionInput(name string, functions []Function, units model.Units) (*FunctionInput, error) {
	if len(functions) == 0 {
		return nil, model.Structuralf("function input %s: needs at least one function", name)
	}
	for i, fn := range functions {
		if fn == nil {
			return nil, model.Structuralf("function input %s: function %d is nil", name, i)
		}
	}
	n := &FunctionInput{
		base:      newBase(name),
		functions: append([]Function(nil), functions...),
		units:     units,
	}
	n.origin = NewBasicOrigin(n, FunctionOrigin, len(functions), units)
	n.emit(0)
	return n, nil
}

func (n *FunctionInput) Functions() []Function { return append([]Function(nil), n.functions...) }

func (n *FunctionInput) Origins() []model.Origin { return []model.Origin{n.origin} }

func (n *FunctionInput) Origin(name string) (model.Origin, error) {
	if name != FunctionOrigin {
		return nil, model.Structuralf("node %s: unknown origin %q", n.name, name)
	}
	return n.origin, nil
}

func (n *FunctionInput) Terminations() []model.Termination { return nil }

func (n *FunctionInput) Termination(name string) (model.Termination, error) {
	return nil, model.Structuralf("node %s: unknown termination %q", n.name, name)
}

// Run evaluates the functions at the start of the interval.
func (n *FunctionInput) Run(start, end float64) error {
	n.emit(start)
	n.time = end
	return nil
}

func (n *FunctionInput) emit(t float64) {
	values := make([]float64, len(n.functions))
	for i, fn := range n.functions {
		values[i] = fn.Map(t)
	}
	n.origin.setReal(values, t)
	n.history = singlePointHistory(t, values, n.units)
}

func (n *FunctionInput) SetTime(t float64) {
	n.time = t
	n.emit(t)
}

func (n *FunctionInput) Reset(bool) {
	n.time = 0
	n.emit(0)
}

func (n *FunctionInput) ListStates() map[string]string {
	return map[string]string{FunctionOrigin: "Function output"}
}

func (n *FunctionInput) History(state string) (model.TimeSeries, error) {
	if state != FunctionOrigin {
		return model.TimeSeries{}, unknownState(n.name, state)
	}
	return n.history, nil
}

func (n *FunctionInput) Clone() (model.Node, error) {
	out := &FunctionInput{
		base:      n.cloneBase(),
		functions: append([]Function(nil), n.functions...),
		units:     n.units,
		time:      n.time,
		history:   n.history,
	}
	out.origin = n.origin.cloneFor(out)
	return out, nil
}
