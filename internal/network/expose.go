package network

import (
	"sort"
	"sync/atomic"

	"nengosim/internal/model"
)

// ExposedOrigin is an origin of a direct child published on the network
// under an alias. It records the innermost real origin so that exposing an
// exposed origin never builds a chain.
type ExposedOrigin struct {
	alias     string
	network   *Network
	child     string
	port      model.Origin
	base      model.Origin
	autoState bool
	// outside counts projections of enclosing networks that read this alias.
	outside atomic.Int32
}

func (o *ExposedOrigin) Name() string { return o.alias }

func (o *ExposedOrigin) Dimensions() int { return o.base.Dimensions() }

func (o *ExposedOrigin) Values() (model.InstantaneousOutput, error) { return o.base.Values() }

func (o *ExposedOrigin) Node() model.Node { return o.network }

// Port is the child origin this alias was created from.
func (o *ExposedOrigin) Port() model.Origin { return o.port }

// Base is the innermost real origin.
func (o *ExposedOrigin) Base() model.Origin { return o.base }

// Child is the name of the direct child that owns Port.
func (o *ExposedOrigin) Child() string { return o.child }

// ExposedTermination is the termination counterpart of ExposedOrigin.
type ExposedTermination struct {
	alias   string
	network *Network
	child   string
	port    model.Termination
	base    model.Termination
	// outside is set while an enclosing network's projection binds this alias.
	outside atomic.Bool
}

func (t *ExposedTermination) Name() string { return t.alias }

func (t *ExposedTermination) Dimensions() int { return t.base.Dimensions() }

func (t *ExposedTermination) SetValues(values model.InstantaneousOutput) error {
	return t.base.SetValues(values)
}

func (t *ExposedTermination) Input() model.InstantaneousOutput { return t.base.Input() }

func (t *ExposedTermination) Node() model.Node { return t.network }

func (t *ExposedTermination) Modulatory() bool { return t.base.Modulatory() }

func (t *ExposedTermination) SetModulatory(modulatory bool) { t.base.SetModulatory(modulatory) }

func (t *ExposedTermination) Tau() (float64, error) { return t.base.Tau() }

func (t *ExposedTermination) SetTau(tau float64) error { return t.base.SetTau(tau) }

func (t *ExposedTermination) Reset(randomize bool) { t.base.Reset(randomize) }

func (t *ExposedTermination) Port() model.Termination { return t.port }

func (t *ExposedTermination) Base() model.Termination { return t.base }

func (t *ExposedTermination) Child() string { return t.child }

// boundInside reports the network along the alias chain that already binds
// the base termination with one of its own projections.
func (t *ExposedTermination) boundInside() (string, bool) {
	for e := t; ; {
		if e.network.IsBound(e.base) {
			return e.network.Name(), true
		}
		next, ok := e.port.(*ExposedTermination)
		if !ok {
			return "", false
		}
		e = next
	}
}

// boundOutsideLocked returns the alias of base that an enclosing network
// binds, or nil.
func (n *Network) boundOutsideLocked(base model.Termination) *ExposedTermination {
	for _, alias := range n.terms {
		if alias.base == base && alias.outside.Load() {
			return alias
		}
	}
	return nil
}

// markOutsideUse flags every alias along the chains of a projection's
// endpoints as used by an enclosing network.
func markOutsideUse(origin model.Origin, termination model.Termination, used bool) {
	for o, ok := origin.(*ExposedOrigin); ok; o, ok = o.port.(*ExposedOrigin) {
		if used {
			o.outside.Add(1)
		} else {
			o.outside.Add(-1)
		}
	}
	for t, ok := termination.(*ExposedTermination); ok; t, ok = t.port.(*ExposedTermination) {
		t.outside.Store(used)
	}
}

// ExposeOrigin publishes origin, which must belong to a direct child, under
// alias. When the child is Probeable and knows a state named like the origin,
// that state is exposed under the same alias.
func (n *Network) ExposeOrigin(origin model.Origin, alias string) (*ExposedOrigin, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if origin == nil || alias == "" {
		return nil, model.Structuralf("network %s: origin and alias are required", n.name)
	}
	child, ok := n.childName(origin.Node())
	if !ok {
		return nil, model.Structuralf("network %s: origin %q does not belong to a child node", n.name, origin.Name())
	}
	for _, existing := range n.origins {
		if existing.alias == alias {
			return nil, model.Structuralf("network %s: origin alias %q already exists", n.name, alias)
		}
		if existing.port == origin {
			return nil, model.Structuralf("network %s: origin %s.%s is already exposed as %q", n.name, child, origin.Name(), existing.alias)
		}
	}

	exposed := &ExposedOrigin{
		alias:   alias,
		network: n,
		child:   child,
		port:    origin,
		base:    baseOrigin(origin),
	}
	if target, ok := n.nodes[child].(model.Probeable); ok && !n.hasStateLocked(alias) {
		if _, known := target.ListStates()[origin.Name()]; known {
			n.states = append(n.states, stateAlias{name: alias, child: child, state: origin.Name()})
			exposed.autoState = true
		}
	}
	n.origins = append(n.origins, exposed)
	n.emitLocked(model.Change{Kind: model.OriginExposed, Subject: alias})
	return exposed, nil
}

// HideOrigin removes the alias and the state alias exposed along with it.
// Projections of the enclosing network that use the alias keep their binding
// and a warning is logged.
func (n *Network) HideOrigin(alias string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.hideOriginLocked(alias) {
		return model.Structuralf("network %s: no exposed origin %q", n.name, alias)
	}
	return nil
}

func (n *Network) hideOriginLocked(alias string) bool {
	for i, existing := range n.origins {
		if existing.alias != alias {
			continue
		}
		n.origins = append(n.origins[:i], n.origins[i+1:]...)
		if uses := existing.outside.Load(); uses > 0 {
			n.logger.Warn("hidden origin alias is still read by an enclosing network", "alias", alias, "projections", uses)
		}
		if existing.autoState {
			n.hideStateLocked(alias)
		}
		n.emitLocked(model.Change{Kind: model.OriginHidden, Subject: alias})
		return true
	}
	return false
}

// ExposeTermination publishes termination, which must belong to a direct
// child, under alias.
func (n *Network) ExposeTermination(termination model.Termination, alias string) (*ExposedTermination, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if termination == nil || alias == "" {
		return nil, model.Structuralf("network %s: termination and alias are required", n.name)
	}
	child, ok := n.childName(termination.Node())
	if !ok {
		return nil, model.Structuralf("network %s: termination %q does not belong to a child node", n.name, termination.Name())
	}
	for _, existing := range n.terms {
		if existing.alias == alias {
			return nil, model.Structuralf("network %s: termination alias %q already exists", n.name, alias)
		}
		if existing.port == termination {
			return nil, model.Structuralf("network %s: termination %s.%s is already exposed as %q", n.name, child, termination.Name(), existing.alias)
		}
	}
	exposed := &ExposedTermination{
		alias:   alias,
		network: n,
		child:   child,
		port:    termination,
		base:    baseTermination(termination),
	}
	n.terms = append(n.terms, exposed)
	n.emitLocked(model.Change{Kind: model.TerminationExposed, Subject: alias})
	return exposed, nil
}

func (n *Network) HideTermination(alias string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.hideTerminationLocked(alias) {
		return model.Structuralf("network %s: no exposed termination %q", n.name, alias)
	}
	return nil
}

func (n *Network) hideTerminationLocked(alias string) bool {
	for i, existing := range n.terms {
		if existing.alias == alias {
			n.terms = append(n.terms[:i], n.terms[i+1:]...)
			if existing.outside.Load() {
				n.logger.Warn("hidden termination alias is still bound by an enclosing network", "alias", alias)
			}
			n.emitLocked(model.Change{Kind: model.TerminationHidden, Subject: alias})
			return true
		}
	}
	return false
}

// ExposeState publishes state of the direct child target under alias so the
// network itself can be probed.
func (n *Network) ExposeState(target model.Probeable, state, alias string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	node, ok := target.(model.Node)
	if !ok {
		return model.Structuralf("network %s: state target is not a node", n.name)
	}
	child, ok := n.childName(node)
	if !ok {
		return model.Structuralf("network %s: state target is not a child node", n.name)
	}
	if alias == "" {
		return model.Structuralf("network %s: state alias is required", n.name)
	}
	if n.hasStateLocked(alias) {
		return model.Structuralf("network %s: state alias %q already exists", n.name, alias)
	}
	if _, known := target.ListStates()[state]; !known {
		return model.Structuralf("network %s: node %q has no state %q", n.name, child, state)
	}
	n.states = append(n.states, stateAlias{name: alias, child: child, state: state})
	return nil
}

func (n *Network) HideState(alias string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.hideStateLocked(alias) {
		return model.Structuralf("network %s: no exposed state %q", n.name, alias)
	}
	return nil
}

func (n *Network) hideStateLocked(alias string) bool {
	for i, s := range n.states {
		if s.name == alias {
			n.states = append(n.states[:i], n.states[i+1:]...)
			return true
		}
	}
	return false
}

func (n *Network) hasStateLocked(alias string) bool {
	for _, s := range n.states {
		if s.name == alias {
			return true
		}
	}
	return false
}

// ListStates describes the exposed states by alias.
func (n *Network) ListStates() map[string]string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[string]string, len(n.states))
	for _, s := range n.states {
		desc := ""
		if target, ok := n.nodes[s.child].(model.Probeable); ok {
			desc = target.ListStates()[s.state]
		}
		out[s.name] = desc
	}
	return out
}

// History forwards to the child state exposed under alias.
func (n *Network) History(alias string) (model.TimeSeries, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, s := range n.states {
		if s.name != alias {
			continue
		}
		target, ok := n.nodes[s.child].(model.Probeable)
		if !ok {
			return model.TimeSeries{}, model.Simulationf("network %s: node %q is no longer probeable", n.name, s.child)
		}
		return target.History(s.state)
	}
	return model.TimeSeries{}, model.Simulationf("network %s: no exposed state %q", n.name, alias)
}

// ExposedStates returns the state aliases sorted by name.
func (n *Network) ExposedStates() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, len(n.states))
	for i, s := range n.states {
		names[i] = s.name
	}
	sort.Strings(names)
	return names
}

// Origins returns the exposed origins in the order they were exposed.
func (n *Network) Origins() []model.Origin {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]model.Origin, len(n.origins))
	for i, o := range n.origins {
		out[i] = o
	}
	return out
}

func (n *Network) Origin(name string) (model.Origin, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, o := range n.origins {
		if o.alias == name {
			return o, nil
		}
	}
	return nil, model.Structuralf("network %s: no exposed origin %q", n.name, name)
}

func (n *Network) Terminations() []model.Termination {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]model.Termination, len(n.terms))
	for i, t := range n.terms {
		out[i] = t
	}
	return out
}

func (n *Network) Termination(name string) (model.Termination, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, t := range n.terms {
		if t.alias == name {
			return t, nil
		}
	}
	return nil, model.Structuralf("network %s: no exposed termination %q", n.name, name)
}

// ExposedOriginName returns the alias under which origin is exposed, or ""
// when it is not exposed by this network.
func (n *Network) ExposedOriginName(origin model.Origin) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, o := range n.origins {
		if o.port == origin {
			return o.alias
		}
	}
	return ""
}

func (n *Network) ExposedTerminationName(termination model.Termination) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, t := range n.terms {
		if t.port == termination {
			return t.alias
		}
	}
	return ""
}
