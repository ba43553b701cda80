package simulator

import (
	"nengosim/internal/model"
	"nengosim/internal/probe"
)

// AddProbe attaches a probe to state of the planned node named nodeName.
func (s *LocalSimulator) AddProbe(nodeName, state string, record bool) (*probe.Probe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUninitialized {
		return nil, ErrNotInitialized
	}
	node, ok := s.plan.byName[nodeName]
	if !ok {
		return nil, model.Structuralf("probe: no node named %q", nodeName)
	}
	target, ok := node.(model.Probeable)
	if !ok {
		return nil, model.Structuralf("probe: node %q has no probeable state", nodeName)
	}
	p, err := probe.New(target, probe.Address{Node: nodeName, Element: probe.NoElement}, state, record)
	if err != nil {
		return nil, err
	}
	s.probes = append(s.probes, p)
	return p, nil
}

// AddElementProbe attaches a probe to state of element index of the planned
// ensemble named ensembleName.
func (s *LocalSimulator) AddElementProbe(ensembleName string, index int, state string, record bool) (*probe.Probe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUninitialized {
		return nil, ErrNotInitialized
	}
	node, ok := s.plan.byName[ensembleName]
	if !ok {
		return nil, model.Structuralf("probe: no node named %q", ensembleName)
	}
	ensemble, ok := node.(model.Ensemble)
	if !ok {
		return nil, model.Structuralf("probe: node %q is not an ensemble", ensembleName)
	}
	elements := ensemble.Elements()
	if index < 0 || index >= len(elements) {
		return nil, model.Structuralf("probe: ensemble %q has no element %d", ensembleName, index)
	}
	target, ok := elements[index].(model.Probeable)
	if !ok {
		return nil, model.Structuralf("probe: element %d of %q has no probeable state", index, ensembleName)
	}
	p, err := probe.New(target, probe.Address{Node: ensembleName, Element: index}, state, record)
	if err != nil {
		return nil, err
	}
	s.probes = append(s.probes, p)
	return p, nil
}

// RemoveProbe detaches p and forgets it. Its data stays readable.
func (s *LocalSimulator) RemoveProbe(p *probe.Probe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.probes {
		if existing == p {
			p.Detach()
			s.probes = append(s.probes[:i], s.probes[i+1:]...)
			return nil
		}
	}
	return model.Structuralf("probe: not attached to this simulator")
}

func (s *LocalSimulator) Probes() []*probe.Probe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*probe.Probe(nil), s.probes...)
}

// ProbesOn returns the probes addressing the node named nodeName, including
// element probes of an ensemble with that name.
func (s *LocalSimulator) ProbesOn(nodeName string) []*probe.Probe {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*probe.Probe
	for _, p := range s.probes {
		if p.Address().Node == nodeName {
			out = append(out, p)
		}
	}
	return out
}

// DetachAll detaches and forgets every probe and returns them.
func (s *LocalSimulator) DetachAll() []*probe.Probe {
	s.mu.Lock()
	probes := s.probes
	s.probes = nil
	s.mu.Unlock()
	for _, p := range probes {
		p.Detach()
	}
	return probes
}
