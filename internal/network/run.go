package network

import (
	"context"
	"slices"

	"nengosim/internal/model"
	"nengosim/internal/probe"
	"nengosim/internal/simulator"
)

// Run advances the network as a child of an enclosing network: the nested
// simulator steps [start, end] with this network's step size and does not
// call step listeners.
func (n *Network) Run(start, end float64) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sim.Run(context.Background(), start, end, n.stepSize, false)
}

// Simulate runs the network as the top level from start to end. Step
// listeners are called at the start of every step. Cancelling ctx stops the
// run after the current step.
func (n *Network) Simulate(ctx context.Context, start, end float64) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	n.logger.Debug("simulate", "start", start, "end", end, "step", n.stepSize)
	return n.sim.Run(ctx, start, end, n.stepSize, true)
}

// SimulateAsync starts Simulate in the background. The returned task joins
// or cancels the run.
func (n *Network) SimulateAsync(ctx context.Context, start, end float64) *simulator.Task {
	return simulator.Go(ctx, func(ctx context.Context) error {
		return n.Simulate(ctx, start, end)
	})
}

// State reports the state of the network's simulator.
func (n *Network) State() simulator.State { return n.sim.State() }

// ClearFault returns this network's simulator and those of every nested
// network to Ready.
func (n *Network) ClearFault() {
	n.mu.RLock()
	defer n.mu.RUnlock()
	n.sim.ClearFault()
	for _, node := range n.nodesLocked() {
		if child, ok := node.(*Network); ok {
			child.ClearFault()
		}
	}
}

// Reset resets every child. Probe data is kept.
func (n *Network) Reset(randomize bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.sim.ResetNodes(randomize, false); err != nil {
		n.logger.Warn("reset nodes", "error", err)
	}
}

// ResetSimulation resets every child and drops the samples of every probe.
func (n *Network) ResetSimulation(randomize bool) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sim.ResetNodes(randomize, true)
}

func (n *Network) Mode() model.SimulationMode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.mode
}

// SetMode sets the mode of the network and every child. It is ignored when
// the network's modes are fixed and mode is not among them.
func (n *Network) SetMode(mode model.SimulationMode) {
	if !mode.Valid() {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fixedModes != nil && !slices.Contains(n.fixedModes, mode) {
		n.logger.Debug("mode is fixed", "requested", string(mode))
		return
	}
	n.mode = mode
	for _, node := range n.nodesLocked() {
		node.SetMode(mode)
	}
}

// FixMode restricts SetMode to modes. An empty list lifts the restriction.
func (n *Network) FixMode(modes ...model.SimulationMode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(modes) == 0 {
		n.fixedModes = nil
		return
	}
	n.fixedModes = append([]model.SimulationMode(nil), modes...)
}

func (n *Network) UseAccelerator() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.accelerated
}

// SetUseAccelerator toggles offloading for the network and every offloadable
// child, then rebuilds the plan.
func (n *Network) SetUseAccelerator(use bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accelerated = use
	for _, node := range n.nodesLocked() {
		if off, ok := node.(model.Offloadable); ok {
			off.SetUseAccelerator(use)
		}
	}
	if err := n.sim.Initialize(graphView{n}); err != nil {
		n.logger.Warn("rebuild plan after accelerator toggle", "error", err)
	}
}

// SetNodeAccelerator toggles offloading for a single child.
func (n *Network) SetNodeAccelerator(name string, use bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	node, ok := n.nodes[name]
	if !ok {
		return model.Structuralf("network %s: no node named %q", n.name, name)
	}
	off, ok := node.(model.Offloadable)
	if !ok {
		return model.Structuralf("network %s: node %q can't be offloaded", n.name, name)
	}
	off.SetUseAccelerator(use)
	return n.sim.Initialize(graphView{n})
}

// KillNeurons lesions every lesionable descendant.
func (n *Network) KillNeurons(fraction float64, preserveSingleNodeGroups bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, node := range n.nodesLocked() {
		if l, ok := node.(model.Lesionable); ok {
			l.KillNeurons(fraction, preserveSingleNodeGroups)
		}
	}
}

// KillAllNeurons is KillNeurons without preserving single-neuron groups.
func (n *Network) KillAllNeurons(fraction float64) { n.KillNeurons(fraction, false) }

// NeuronCount sums the neuron counts of every lesionable descendant.
func (n *Network) NeuronCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	total := 0
	for _, node := range n.nodesLocked() {
		if l, ok := node.(model.Lesionable); ok {
			total += l.NeuronCount()
		}
	}
	return total
}

// SetTime propagates an absolute time to every time-aware descendant.
func (n *Network) SetTime(t float64) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, node := range n.nodesLocked() {
		if ta, ok := node.(model.TimeAware); ok {
			ta.SetTime(t)
		}
	}
}

// AddProbe attaches a probe to state of the child named nodeName. Recording
// probes keep every sample; others keep the latest only.
func (n *Network) AddProbe(nodeName, state string, record bool) (*probe.Probe, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sim.AddProbe(nodeName, state, record)
}

// AddElementProbe attaches a probe to state of element index of the child
// ensemble named ensembleName.
func (n *Network) AddElementProbe(ensembleName string, index int, state string, record bool) (*probe.Probe, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sim.AddElementProbe(ensembleName, index, state, record)
}

// RemoveProbe detaches p. Its data stays readable.
func (n *Network) RemoveProbe(p *probe.Probe) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sim.RemoveProbe(p)
}

func (n *Network) Probes() []*probe.Probe { return n.sim.Probes() }

// AddStepListener registers l for top-level runs of this network and returns
// an id for RemoveStepListener. Listeners must not edit the network.
func (n *Network) AddStepListener(l simulator.StepListener) int {
	return n.sim.AddStepListener(l)
}

func (n *Network) RemoveStepListener(id int) bool {
	return n.sim.RemoveStepListener(id)
}
