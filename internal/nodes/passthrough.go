package nodes

import "nengosim/internal/model"

const (
	PassthroughTerminationName = "termination"
	PassthroughOriginName      = "origin"
)

// PassthroughNode copies its single termination's input to its single
// origin without filtering. Networks use it to route a signal to several
// consumers.
type PassthroughNode struct {
	base
	dim         int
	termination *PassthroughTermination
	origin      *BasicOrigin
}

func NewPassthroughNode(name string, dim int) *PassthroughNode {
	n := &PassthroughNode{base: newBase(name), dim: dim}
	n.termination = NewPassthroughTermination(n, PassthroughTerminationName, dim)
	n.origin = NewBasicOrigin(n, PassthroughOriginName, dim, model.UnitsUnknown)
	return n
}

func (n *PassthroughNode) Origins() []model.Origin { return []model.Origin{n.origin} }

func (n *PassthroughNode) Origin(name string) (model.Origin, error) {
	if name != PassthroughOriginName {
		return nil, model.Structuralf("node %s: unknown origin %q", n.name, name)
	}
	return n.origin, nil
}

func (n *PassthroughNode) Terminations() []model.Termination {
	return []model.Termination{n.termination}
}

func (n *PassthroughNode) Termination(name string) (model.Termination, error) {
	if name != PassthroughTerminationName {
		return nil, model.Structuralf("node %s: unknown termination %q", n.name, name)
	}
	return n.termination, nil
}

func (n *PassthroughNode) Run(_, end float64) error {
	switch in := n.termination.Input().(type) {
	case nil:
		n.origin.SetValues(model.ZeroOutput(n.dim, end))
	case model.RealOutput:
		n.origin.SetValues(model.NewRealOutput(in.Values(), in.Units(), end))
	default:
		n.origin.SetValues(in.Clone())
	}
	return nil
}

func (n *PassthroughNode) Reset(randomize bool) {
	n.termination.Reset(randomize)
	n.origin.SetValues(nil)
}

func (n *PassthroughNode) Clone() (model.Node, error) {
	out := &PassthroughNode{base: n.cloneBase(), dim: n.dim}
	out.termination = NewPassthroughTermination(out, PassthroughTerminationName, n.dim)
	out.termination.modulatory = n.termination.modulatory
	if in := n.termination.Input(); in != nil {
		out.termination.input = in.Clone()
	}
	out.origin = n.origin.cloneFor(out)
	return out, nil
}
