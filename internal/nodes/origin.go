package nodes

import "nengosim/internal/model"

// BasicOrigin holds the most recent output of its node.
type BasicOrigin struct {
	node   model.Node
	name   string
	dim    int
	units  model.Units
	values model.InstantaneousOutput
}

func NewBasicOrigin(node model.Node, name string, dim int, units model.Units) *BasicOrigin {
	return &BasicOrigin{node: node, name: name, dim: dim, units: units}
}

func (o *BasicOrigin) Name() string { return o.name }

func (o *BasicOrigin) Dimensions() int { return o.dim }

func (o *BasicOrigin) Node() model.Node { return o.node }

func (o *BasicOrigin) Values() (model.InstantaneousOutput, error) {
	if o.values == nil {
		return model.ZeroOutput(o.dim, 0), nil
	}
	return o.values, nil
}

func (o *BasicOrigin) SetValues(values model.InstantaneousOutput) {
	o.values = values
}

func (o *BasicOrigin) setReal(values []float64, t float64) {
	o.values = model.NewRealOutput(values, o.units, t)
}

func (o *BasicOrigin) cloneFor(node model.Node) *BasicOrigin {
	out := &BasicOrigin{node: node, name: o.name, dim: o.dim, units: o.units}
	if o.values != nil {
		out.values = o.values.Clone()
	}
	return out
}
