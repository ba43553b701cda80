// Package network implements the hierarchical graph container: named child
// nodes, termination-keyed projections, exposed port and state aliases and
// the simulator that executes them.
//
// A Network is itself a Node, so networks nest. Structural edits take the
// network's write lock and re-derive the simulator's plan before returning;
// runs hold the read lock for their whole duration.
package network

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"nengosim/internal/events"
	"nengosim/internal/logging"
	"nengosim/internal/metrics"
	"nengosim/internal/model"
	"nengosim/internal/simulator"
)

// DefaultStepSize is the step size of a new network, in seconds.
const DefaultStepSize = 0.001

var (
	_ model.Node        = (*Network)(nil)
	_ model.Probeable   = (*Network)(nil)
	_ model.Lesionable  = (*Network)(nil)
	_ model.Offloadable = (*Network)(nil)
	_ model.Renamable   = (*Network)(nil)
	_ model.TimeAware   = (*Network)(nil)
	_ model.Owned       = (*Network)(nil)
	_ model.Container   = (*Network)(nil)
)

type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Registry
	Workers  int
	StepSize float64
}

type stateAlias struct {
	name  string
	child string
	state string
}

type Network struct {
	mu sync.RWMutex

	name        string
	doc         string
	mode        model.SimulationMode
	fixedModes  []model.SimulationMode
	accelerated bool
	stepSize    float64
	owner       model.Container

	order       []string
	nodes       map[string]model.Node
	projections []*Projection
	bound       map[model.Termination]*Projection
	origins     []*ExposedOrigin
	terms       []*ExposedTermination
	states      []stateAlias
	metadata    map[string]any

	opts   Options
	logger *slog.Logger
	sim    *simulator.LocalSimulator
	bus    *events.Bus
}

func New(name string, opts Options) *Network {
	if opts.StepSize <= 0 {
		opts.StepSize = DefaultStepSize
	}
	n := &Network{
		name:     name,
		mode:     model.ModeDefault,
		stepSize: opts.StepSize,
		nodes:    make(map[string]model.Node),
		bound:    make(map[model.Termination]*Projection),
		metadata: make(map[string]any),
		opts:     opts,
		logger:   logging.OrDiscard(opts.Logger).With("network", name),
		bus:      events.NewBus(),
	}
	n.sim = simulator.New(simulator.Options{
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
		Workers: opts.Workers,
	})
	// A fresh simulator is never running, so Initialize cannot fail here.
	_ = n.sim.Initialize(graphView{n})
	return n
}

// graphView is the simulator's lock-free view of the network. It is only
// used while the network lock is held.
type graphView struct{ n *Network }

func (g graphView) Name() string { return g.n.name }

func (g graphView) Nodes() []model.Node { return g.n.nodesLocked() }

func (g graphView) Links() []simulator.Link {
	links := make([]simulator.Link, len(g.n.projections))
	for i, p := range g.n.projections {
		links[i] = simulator.Link{Origin: p.baseOrigin, Termination: p.baseTerm}
	}
	return links
}

func (n *Network) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

func (n *Network) Documentation() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.doc
}

func (n *Network) SetDocumentation(text string) {
	n.mu.Lock()
	n.doc = text
	n.mu.Unlock()
}

func (n *Network) StepSize() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stepSize
}

func (n *Network) SetStepSize(step float64) error {
	if !(step > 0) {
		return fmt.Errorf("network %s: step size must be positive, got %g", n.Name(), step)
	}
	n.mu.Lock()
	n.stepSize = step
	n.mu.Unlock()
	return nil
}

// Simulator returns the network's simulator. Probes and listeners should be
// managed through the network so they are serialized with structural edits.
func (n *Network) Simulator() *simulator.LocalSimulator { return n.sim }

// Subscribe streams the change records of this network's structural edits.
func (n *Network) Subscribe(ctx context.Context, buffer int, kinds ...model.ChangeKind) *events.Subscription {
	return n.bus.Subscribe(ctx, buffer, kinds...)
}

// Close ends every change subscription.
func (n *Network) Close() { n.bus.Close() }

func (n *Network) Owner() model.Container {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.owner
}

func (n *Network) SetOwner(owner model.Container) {
	n.mu.Lock()
	n.owner = owner
	n.mu.Unlock()
}

// Nodes returns the children in insertion order.
func (n *Network) Nodes() []model.Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.nodesLocked()
}

func (n *Network) nodesLocked() []model.Node {
	out := make([]model.Node, len(n.order))
	for i, name := range n.order {
		out[i] = n.nodes[name]
	}
	return out
}

func (n *Network) Node(name string) (model.Node, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	node, ok := n.nodes[name]
	if !ok {
		return nil, model.Structuralf("network %s: no node named %q", n.name, name)
	}
	return node, nil
}

// Projections returns the projections in creation order.
func (n *Network) Projections() []model.Projection {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]model.Projection, len(n.projections))
	for i, p := range n.projections {
		out[i] = p
	}
	return out
}

// SetMetadata stores a value that Clone copies through model.CopyValue.
func (n *Network) SetMetadata(key string, value any) {
	n.mu.Lock()
	n.metadata[key] = value
	n.mu.Unlock()
}

func (n *Network) Metadata(key string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.metadata[key]
	return v, ok
}

func (n *Network) MetadataKeys() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	keys := make([]string, 0, len(n.metadata))
	for k := range n.metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (n *Network) RemoveMetadata(key string) {
	n.mu.Lock()
	delete(n.metadata, key)
	n.mu.Unlock()
}

// emitLocked applies change to the simulator plan and publishes it. The
// caller holds the write lock.
func (n *Network) emitLocked(change model.Change) {
	change.Network = n.name
	if err := n.sim.Apply(change); err != nil {
		n.logger.Error("apply change to simulator", "change", change.Kind.String(), "error", err)
	}
	n.bus.Publish(change)
}

// childName returns the name under which node is registered as a direct
// child. Identity is compared without calling into node, which may be this
// network or an ancestor. The caller holds the lock.
func (n *Network) childName(node model.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	for _, name := range n.order {
		if n.nodes[name] == node {
			return name, true
		}
	}
	return "", false
}
