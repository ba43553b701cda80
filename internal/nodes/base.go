// Package nodes provides the port implementations and the reference node
// types assembled into networks: function inputs, passthroughs, linear
// (decoded) nodes and rectified-linear populations.
package nodes

import (
	"nengosim/internal/model"
)

// base carries the bookkeeping shared by every node type.
type base struct {
	name        string
	mode        model.SimulationMode
	doc         string
	accelerated bool
	owner       model.Container
}

func newBase(name string) base {
	return base{name: name, mode: model.ModeDefault}
}

func (b *base) Name() string { return b.name }

// SetName renames the node. A failed rename, such as a sibling collision,
// leaves the name unchanged; use Rename to see the error.
func (b *base) SetName(name string) { _ = b.Rename(name) }

// Rename renames the node through its owner when it has one.
func (b *base) Rename(name string) error {
	if b.owner != nil {
		return b.owner.RenameNode(b.name, name)
	}
	if name == "" {
		return model.Structuralf("node %s: name is required", b.name)
	}
	b.name = name
	return nil
}

func (b *base) Mode() model.SimulationMode { return b.mode }

func (b *base) SetMode(mode model.SimulationMode) {
	if mode.Valid() {
		b.mode = mode
	}
}

func (b *base) Documentation() string { return b.doc }

func (b *base) SetDocumentation(text string) { b.doc = text }

func (b *base) UseAccelerator() bool { return b.accelerated }

func (b *base) SetUseAccelerator(use bool) { b.accelerated = use }

func (b *base) Owner() model.Container { return b.owner }

func (b *base) SetOwner(owner model.Container) { b.owner = owner }

// cloneBase copies everything except the owner.
func (b *base) cloneBase() base {
	return base{name: b.name, mode: b.mode, doc: b.doc, accelerated: b.accelerated}
}

func singlePointHistory(t float64, values []float64, units model.Units) model.TimeSeries {
	return model.MustTimeSeries([]float64{t}, [][]float64{values}, model.UniformUnits(units, len(values)))
}

func unknownState(node, state string) error {
	return model.Simulationf("node %s: unknown state %q", node, state)
}
