package network

import (
	"fmt"

	"nengosim/internal/model"
	"nengosim/internal/probe"
)

// CloneReport lists the items a clone could not re-resolve by name.
type CloneReport struct {
	Skipped []string
}

func (r *CloneReport) skip(format string, args ...any) {
	r.Skipped = append(r.Skipped, fmt.Sprintf(format, args...))
}

// Clone deep-copies the network. Items that can't be re-resolved are logged
// and skipped; see CloneWithReport.
func (n *Network) Clone() (model.Node, error) {
	c, report, err := n.CloneWithReport()
	if err != nil {
		return nil, err
	}
	for _, item := range report.Skipped {
		n.logger.Warn("clone skipped item", "item", item)
	}
	return c, nil
}

// CloneWithReport deep-copies children, then re-resolves projections, port
// aliases, state aliases and probes by name on the copy. Metadata values are
// copied with model.CopyValue and a value that can't be copied fails the
// clone. Step listeners and probe data are not copied.
func (n *Network) CloneWithReport() (*Network, CloneReport, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var report CloneReport
	opts := n.opts
	opts.StepSize = n.stepSize
	c := New(n.name, opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc = n.doc
	c.mode = n.mode
	c.fixedModes = append([]model.SimulationMode(nil), n.fixedModes...)
	c.accelerated = n.accelerated

	for key, value := range n.metadata {
		copied, err := model.CopyValue(value)
		if err != nil {
			return nil, report, fmt.Errorf("clone network %s: metadata %q: %w", n.name, key, err)
		}
		c.metadata[key] = copied
	}

	for _, name := range n.order {
		child, err := n.nodes[name].Clone()
		if err != nil {
			return nil, report, fmt.Errorf("clone network %s: node %q: %w", n.name, name, err)
		}
		c.nodes[name] = child
		c.order = append(c.order, name)
		if owned, ok := child.(model.Owned); ok {
			owned.SetOwner(c)
		}
	}

	for _, p := range n.projections {
		origin, err := c.lookupOrigin(p.originNode, p.origin.Name())
		if err != nil {
			report.skip("projection %s: %v", p, err)
			continue
		}
		term, err := c.lookupTermination(p.termNode, p.termination.Name())
		if err != nil {
			report.skip("projection %s: %v", p, err)
			continue
		}
		if _, err := c.addProjectionLocked(origin, term); err != nil {
			report.skip("projection %s: %v", p, err)
		}
	}

	for _, e := range n.origins {
		origin, err := c.lookupOrigin(e.child, e.port.Name())
		if err != nil {
			report.skip("exposed origin %q: %v", e.alias, err)
			continue
		}
		c.origins = append(c.origins, &ExposedOrigin{
			alias:     e.alias,
			network:   c,
			child:     e.child,
			port:      origin,
			base:      baseOrigin(origin),
			autoState: e.autoState,
		})
	}
	for _, e := range n.terms {
		term, err := c.lookupTermination(e.child, e.port.Name())
		if err != nil {
			report.skip("exposed termination %q: %v", e.alias, err)
			continue
		}
		c.terms = append(c.terms, &ExposedTermination{
			alias:   e.alias,
			network: c,
			child:   e.child,
			port:    term,
			base:    baseTermination(term),
		})
	}
	for _, s := range n.states {
		target, ok := c.nodes[s.child].(model.Probeable)
		if !ok {
			report.skip("exposed state %q: node %q is not probeable", s.name, s.child)
			continue
		}
		if _, known := target.ListStates()[s.state]; !known {
			report.skip("exposed state %q: node %q has no state %q", s.name, s.child, s.state)
			continue
		}
		c.states = append(c.states, s)
	}

	if err := c.sim.Initialize(graphView{c}); err != nil {
		return nil, report, fmt.Errorf("clone network %s: %w", n.name, err)
	}
	for _, p := range n.sim.Probes() {
		addr := p.Address()
		var err error
		if addr.Element == probe.NoElement {
			_, err = c.sim.AddProbe(addr.Node, p.State(), p.Recording())
		} else {
			_, err = c.sim.AddElementProbe(addr.Node, addr.Element, p.State(), p.Recording())
		}
		if err != nil {
			report.skip("probe %s.%s: %v", addr, p.State(), err)
		}
	}
	return c, report, nil
}

func (n *Network) lookupOrigin(child, name string) (model.Origin, error) {
	node, ok := n.nodes[child]
	if !ok {
		return nil, model.Structuralf("no node named %q", child)
	}
	return node.Origin(name)
}

func (n *Network) lookupTermination(child, name string) (model.Termination, error) {
	node, ok := n.nodes[child]
	if !ok {
		return nil, model.Structuralf("no node named %q", child)
	}
	return node.Termination(name)
}
