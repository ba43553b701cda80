package network

import (
	"fmt"

	"nengosim/internal/logging"
	"nengosim/internal/model"
)

// Projection binds an origin of one direct child to a termination of another.
// The endpoints may be exposed aliases of child networks; the simulator moves
// values between the innermost ports.
type Projection struct {
	network     *Network
	origin      model.Origin
	termination model.Termination
	baseOrigin  model.Origin
	baseTerm    model.Termination
	originNode  string
	termNode    string
}

func (p *Projection) Origin() model.Origin { return p.origin }

func (p *Projection) Termination() model.Termination { return p.termination }

func (p *Projection) Network() model.Node { return p.network }

func (p *Projection) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", p.originNode, p.origin.Name(), p.termNode, p.termination.Name())
}

func baseOrigin(o model.Origin) model.Origin {
	if alias, ok := o.(*ExposedOrigin); ok {
		return alias.base
	}
	return o
}

func baseTermination(t model.Termination) model.Termination {
	if alias, ok := t.(*ExposedTermination); ok {
		return alias.base
	}
	return t
}

// AddNode adds node as a child. A node owned by another network is detached
// from it first; a moved child network keeps its children and probes.
func (n *Network) AddNode(node model.Node) error {
	if node == nil {
		return model.Structuralf("network %s: nil node", n.Name())
	}
	name := node.Name()
	if name == "" {
		return model.Structuralf("network %s: node name is required", n.Name())
	}
	if err := n.checkAddable(node, name); err != nil {
		return err
	}

	if owned, ok := node.(model.Owned); ok {
		if prev := owned.Owner(); prev != nil && prev != model.Container(n) {
			if err := prev.DetachNode(name); err != nil {
				return model.Structuralf("network %s: detach %q from %s: %w", n.Name(), name, prev.Name(), err)
			}
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.nodes[name]; exists {
		return model.Structuralf("network %s: node %q already exists", n.name, name)
	}
	n.insertLocked(node)
	n.emitLocked(model.Change{Kind: model.NodeAdded, Subject: name})
	return nil
}

func (n *Network) checkAddable(node model.Node, name string) error {
	n.mu.RLock()
	_, exists := n.nodes[name]
	owner := n.owner
	n.mu.RUnlock()
	if exists {
		return model.Structuralf("network %s: node %q already exists", n.Name(), name)
	}
	if any(node) == any(n) {
		return model.Structuralf("network %s: can't add a network to itself", n.Name())
	}
	// Walk the owner chain so a network is never added below itself.
	for owner != nil {
		if any(owner) == any(node) {
			return model.Structuralf("network %s: adding %q would create a cycle", n.Name(), name)
		}
		parent, ok := owner.(model.Owned)
		if !ok {
			break
		}
		owner = parent.Owner()
	}
	return nil
}

func (n *Network) insertLocked(node model.Node) {
	name := node.Name()
	n.nodes[name] = node
	n.order = append(n.order, name)
	if owned, ok := node.(model.Owned); ok {
		owned.SetOwner(n)
	}
}

// RemoveNode removes the named child. It fails while probes of this network
// target the child. A child network is torn down depth-first: its probes are
// detached and its children removed. Aliases exposing the child's ports and
// projections touching it are removed first.
func (n *Network) RemoveNode(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	node, ok := n.nodes[name]
	if !ok {
		return model.Structuralf("network %s: no node named %q", n.name, name)
	}
	if probes := n.sim.ProbesOn(name); len(probes) > 0 {
		return model.Structuralf("network %s: node %q has %d attached probe(s); remove them first", n.name, name, len(probes))
	}

	if child, ok := node.(*Network); ok {
		if err := child.teardown(); err != nil {
			return model.Structuralf("network %s: tear down %q: %w", n.name, name, err)
		}
	}
	n.detachLocked(name, node)
	return nil
}

// DetachNode releases the named child without tearing it down. Like
// RemoveNode it fails while probes of this network target the child, and it
// removes the aliases and projections touching it.
func (n *Network) DetachNode(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	node, ok := n.nodes[name]
	if !ok {
		return model.Structuralf("network %s: no node named %q", n.name, name)
	}
	if probes := n.sim.ProbesOn(name); len(probes) > 0 {
		return model.Structuralf("network %s: node %q has %d attached probe(s); remove them first", n.name, name, len(probes))
	}
	n.detachLocked(name, node)
	return nil
}

func (n *Network) detachLocked(name string, node model.Node) {
	n.hideAliasesOfLocked(name)
	for _, p := range append([]*Projection(nil), n.projections...) {
		if p.originNode == name || p.termNode == name {
			n.removeProjectionLocked(p)
		}
	}

	delete(n.nodes, name)
	for i, existing := range n.order {
		if existing == name {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	if owned, ok := node.(model.Owned); ok {
		owned.SetOwner(nil)
	}
	n.emitLocked(model.Change{Kind: model.NodeRemoved, Subject: name})
}

// teardown detaches every probe of n and removes its children depth-first.
func (n *Network) teardown() error {
	detached := n.sim.DetachAll()
	if len(detached) > 0 {
		n.logger.Info("detached probes during teardown", "count", len(detached))
	}
	for _, child := range n.Nodes() {
		if err := n.RemoveNode(child.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) hideAliasesOfLocked(child string) {
	for _, alias := range append([]*ExposedOrigin(nil), n.origins...) {
		if alias.child == child {
			n.hideOriginLocked(alias.alias)
		}
	}
	for _, alias := range append([]*ExposedTermination(nil), n.terms...) {
		if alias.child == child {
			n.hideTerminationLocked(alias.alias)
		}
	}
	for _, s := range append([]stateAlias(nil), n.states...) {
		if s.child == child {
			n.hideStateLocked(s.name)
		}
	}
}

// RenameNode renames a child, keeping sibling names unique. Children with
// attached probes can't be renamed because probes address nodes by name.
func (n *Network) RenameNode(oldName, newName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	node, ok := n.nodes[oldName]
	if !ok {
		return model.Structuralf("network %s: no node named %q", n.name, oldName)
	}
	if oldName == newName {
		return nil
	}
	if newName == "" {
		return model.Structuralf("network %s: node name is required", n.name)
	}
	if _, exists := n.nodes[newName]; exists {
		return model.Structuralf("network %s: node %q already exists", n.name, newName)
	}
	if len(n.sim.ProbesOn(oldName)) > 0 {
		return model.Structuralf("network %s: node %q has attached probes", n.name, oldName)
	}
	switch v := node.(type) {
	case *Network:
		v.setName(newName)
	case model.Renamable:
		// Release ownership while renaming so SetName doesn't call back here.
		owned, isOwned := node.(model.Owned)
		if isOwned {
			owned.SetOwner(nil)
		}
		v.SetName(newName)
		if isOwned {
			owned.SetOwner(n)
		}
		if node.Name() != newName {
			return model.Structuralf("network %s: node %q refused the name %q", n.name, oldName, newName)
		}
	default:
		return model.Structuralf("network %s: node %q can't be renamed", n.name, oldName)
	}

	delete(n.nodes, oldName)
	n.nodes[newName] = node
	for i, name := range n.order {
		if name == oldName {
			n.order[i] = newName
		}
	}
	for _, p := range n.projections {
		if p.originNode == oldName {
			p.originNode = newName
		}
		if p.termNode == oldName {
			p.termNode = newName
		}
	}
	for _, a := range n.origins {
		if a.child == oldName {
			a.child = newName
		}
	}
	for _, a := range n.terms {
		if a.child == oldName {
			a.child = newName
		}
	}
	for i := range n.states {
		if n.states[i].child == oldName {
			n.states[i].child = newName
		}
	}
	n.emitLocked(model.Change{Kind: model.NameChanged, Subject: newName, Previous: oldName})
	if err := n.sim.Initialize(graphView{n}); err != nil {
		n.logger.Error("rebuild plan after rename", "error", err)
	}
	return nil
}

// SetName renames the network. An owned network is renamed through its owner
// so sibling names stay unique; a failed rename is logged.
func (n *Network) SetName(name string) {
	if err := n.Rename(name); err != nil {
		n.logger.Warn("rename network", "name", name, "error", err)
	}
}

// Rename is SetName with the error returned.
func (n *Network) Rename(name string) error {
	n.mu.RLock()
	owner, current := n.owner, n.name
	n.mu.RUnlock()
	if owner != nil {
		return owner.RenameNode(current, name)
	}
	if name == "" {
		return model.Structuralf("network %s: name is required", current)
	}
	n.setName(name)
	return nil
}

func (n *Network) setName(name string) {
	n.mu.Lock()
	n.name = name
	n.logger = logging.OrDiscard(n.opts.Logger).With("network", name)
	n.mu.Unlock()
}

// AddProjection binds origin to termination. Both must belong to direct
// children, have equal dimensions, and the termination must be unbound.
func (n *Network) AddProjection(origin model.Origin, termination model.Termination) (*Projection, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, err := n.addProjectionLocked(origin, termination)
	if err != nil {
		return nil, err
	}
	n.emitLocked(model.Change{Kind: model.ProjectionAdded, Subject: p.String()})
	return p, nil
}

func (n *Network) addProjectionLocked(origin model.Origin, termination model.Termination) (*Projection, error) {
	if origin == nil || termination == nil {
		return nil, model.Structuralf("network %s: projection endpoints are required", n.name)
	}
	originNode, ok := n.childName(origin.Node())
	if !ok {
		return nil, model.Structuralf("network %s: origin %q does not belong to a child node", n.name, origin.Name())
	}
	termNode, ok := n.childName(termination.Node())
	if !ok {
		return nil, model.Structuralf("network %s: termination %q does not belong to a child node", n.name, termination.Name())
	}
	if origin.Dimensions() != termination.Dimensions() {
		return nil, model.Structuralf("network %s: can't connect origin %q of dimension %d to termination %q of dimension %d",
			n.name, origin.Name(), origin.Dimensions(), termination.Name(), termination.Dimensions())
	}
	base := baseTermination(termination)
	if existing, ok := n.bound[base]; ok {
		return nil, model.Structuralf("network %s: termination %q is already bound to %s", n.name, termination.Name(), existing)
	}
	if alias, ok := termination.(*ExposedTermination); ok {
		if inner, bound := alias.boundInside(); bound {
			return nil, model.Structuralf("network %s: termination %q is already bound inside %s", n.name, termination.Name(), inner)
		}
	}
	if alias := n.boundOutsideLocked(base); alias != nil {
		return nil, model.Structuralf("network %s: termination %q is bound by an enclosing network through alias %q", n.name, termination.Name(), alias.alias)
	}

	p := &Projection{
		network:     n,
		origin:      origin,
		termination: termination,
		baseOrigin:  baseOrigin(origin),
		baseTerm:    base,
		originNode:  originNode,
		termNode:    termNode,
	}
	n.projections = append(n.projections, p)
	n.bound[base] = p
	markOutsideUse(origin, termination, true)
	return p, nil
}

// RemoveProjection removes the projection bound to termination and clears
// the termination's input.
func (n *Network) RemoveProjection(termination model.Termination) error {
	if termination == nil {
		return model.Structuralf("network %s: termination is required", n.Name())
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.bound[baseTermination(termination)]
	if !ok {
		return model.Structuralf("network %s: termination %q is not bound", n.name, termination.Name())
	}
	n.removeProjectionLocked(p)
	return nil
}

func (n *Network) removeProjectionLocked(p *Projection) {
	delete(n.bound, p.baseTerm)
	for i, existing := range n.projections {
		if existing == p {
			n.projections = append(n.projections[:i], n.projections[i+1:]...)
			break
		}
	}
	markOutsideUse(p.origin, p.termination, false)
	p.baseTerm.Reset(false)
	n.emitLocked(model.Change{Kind: model.ProjectionRemoved, Subject: p.String()})
}

// IsBound reports whether termination has a projection in this network.
func (n *Network) IsBound(termination model.Termination) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.bound[baseTermination(termination)]
	return ok
}
