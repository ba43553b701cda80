package modelspec

import (
	"fmt"

	"nengosim/internal/model"
	"nengosim/internal/network"
	"nengosim/internal/nodes"
	"nengosim/internal/probe"
)

// Built is a network constructed from a Model with its probes attached.
type Built struct {
	Model   *Model
	Network *network.Network
	// Probes are keyed by "node.state" or "node[element].state".
	Probes map[string]*probe.Probe
}

// ProbeKey is the key Built.Probes uses for p.
func ProbeKey(p *probe.Probe) string {
	return fmt.Sprintf("%s.%s", p.Address(), p.State())
}

// Build validates m, constructs its network and attaches its probes.
func Build(m *Model, opts network.Options) (*Built, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}
	net, err := BuildNetwork(m.Network, opts)
	if err != nil {
		return nil, err
	}
	built := &Built{Model: m, Network: net, Probes: make(map[string]*probe.Probe, len(m.Probes))}
	for i, ps := range m.Probes {
		var p *probe.Probe
		if ps.Element != nil {
			p, err = net.AddElementProbe(ps.Node, *ps.Element, ps.State, ps.Recording())
		} else {
			p, err = net.AddProbe(ps.Node, ps.State, ps.Recording())
		}
		if err != nil {
			return nil, fmt.Errorf("probes[%d]: %w", i, err)
		}
		built.Probes[ProbeKey(p)] = p
	}
	return built, nil
}

// BuildNetwork constructs one network level and, recursively, its nested
// networks. Opts.StepSize is replaced by the level's own step size.
func BuildNetwork(spec Network, opts network.Options) (*network.Network, error) {
	levelOpts := opts
	levelOpts.StepSize = spec.StepSize
	net := network.New(spec.Name, levelOpts)
	net.SetDocumentation(spec.Documentation)

	for _, ns := range spec.Nodes {
		node, err := buildNode(ns, opts)
		if err != nil {
			return nil, fmt.Errorf("network %s: node %s: %w", spec.Name, ns.Name, err)
		}
		if off, ok := node.(model.Offloadable); ok && ns.Accelerate {
			off.SetUseAccelerator(true)
		}
		if err := net.AddNode(node); err != nil {
			return nil, err
		}
	}

	for i, ps := range spec.Projections {
		origin, err := resolveOrigin(net, ps.From)
		if err != nil {
			return nil, fmt.Errorf("network %s: projections[%d]: %w", spec.Name, i, err)
		}
		term, err := resolveTermination(net, ps.To)
		if err != nil {
			return nil, fmt.Errorf("network %s: projections[%d]: %w", spec.Name, i, err)
		}
		if _, err := net.AddProjection(origin, term); err != nil {
			return nil, fmt.Errorf("network %s: projections[%d]: %w", spec.Name, i, err)
		}
	}

	for _, alias := range spec.Expose.Origins {
		origin, err := resolveOrigin(net, alias.Port)
		if err != nil {
			return nil, fmt.Errorf("network %s: expose %s: %w", spec.Name, alias.Port, err)
		}
		if _, err := net.ExposeOrigin(origin, alias.As); err != nil {
			return nil, err
		}
	}
	for _, alias := range spec.Expose.Terminations {
		term, err := resolveTermination(net, alias.Port)
		if err != nil {
			return nil, fmt.Errorf("network %s: expose %s: %w", spec.Name, alias.Port, err)
		}
		if _, err := net.ExposeTermination(term, alias.As); err != nil {
			return nil, err
		}
	}
	for _, alias := range spec.Expose.States {
		node, err := net.Node(alias.Node)
		if err != nil {
			return nil, err
		}
		target, ok := node.(model.Probeable)
		if !ok {
			return nil, model.Structuralf("network %s: node %q has no probeable state", spec.Name, alias.Node)
		}
		if err := net.ExposeState(target, alias.State, alias.As); err != nil {
			return nil, err
		}
	}

	if spec.Mode != "" {
		net.SetMode(model.SimulationMode(spec.Mode))
	}
	if spec.Accelerate {
		net.SetUseAccelerator(true)
	}
	return net, nil
}

func buildNode(ns NodeSpec, opts network.Options) (model.Node, error) {
	switch ns.Kind {
	case KindFunction:
		fns := make([]nodes.Function, len(ns.Functions))
		for i, fs := range ns.Functions {
			fn, err := nodes.ResolveFunction(fs.Type, fs.Params)
			if err != nil {
				return nil, err
			}
			fns[i] = fn
		}
		return nodes.NewFunctionInput(ns.Name, fns, model.UnitsUnknown)
	case KindLinear:
		n, err := nodes.NewLinearNode(ns.Name, ns.Dimensions)
		if err != nil {
			return nil, err
		}
		for _, ts := range ns.Terminations {
			term, err := n.AddTermination(ts.Name, ts.Tau, ts.Transform)
			if err != nil {
				return nil, err
			}
			term.SetModulatory(ts.Modulatory)
		}
		return n, nil
	case KindPopulation:
		if ns.Population == nil {
			return nil, model.Structuralf("population block is required")
		}
		return nodes.NewPopulation(ns.Name, nodes.PopulationConfig{
			Dimensions: ns.Population.Dimensions,
			Size:       ns.Population.Size,
			Gain:       ns.Population.Gain,
			Tau:        ns.Population.Tau,
			Seed:       ns.Population.Seed,
		})
	case KindPassthrough:
		return nodes.NewPassthroughNode(ns.Name, ns.Dimensions), nil
	case KindNetwork:
		if ns.Network == nil {
			return nil, model.Structuralf("network block is required")
		}
		return BuildNetwork(*ns.Network, opts)
	default:
		return nil, model.Structuralf("unknown node kind %q", ns.Kind)
	}
}

func resolveOrigin(net *network.Network, ref string) (model.Origin, error) {
	nodeName, port, ok := splitPort(ref)
	if !ok {
		return nil, model.Structuralf("%q is not of the form node.port", ref)
	}
	node, err := net.Node(nodeName)
	if err != nil {
		return nil, err
	}
	return node.Origin(port)
}

func resolveTermination(net *network.Network, ref string) (model.Termination, error) {
	nodeName, port, ok := splitPort(ref)
	if !ok {
		return nil, model.Structuralf("%q is not of the form node.port", ref)
	}
	node, err := net.Node(nodeName)
	if err != nil {
		return nil, err
	}
	return node.Termination(port)
}
