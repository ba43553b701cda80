// Package simulator drives time-stepped execution of a network graph.
//
// Each step delivers the origin values computed in the previous step to the
// bound terminations, runs every node, then samples the attached probes.
// There is exactly one step of latency across every projection, so nodes
// within a step are independent and may be evaluated in parallel.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"nengosim/internal/logging"
	"nengosim/internal/metrics"
	"nengosim/internal/model"
	"nengosim/internal/probe"
)

var (
	ErrNotInitialized = errors.New("simulator not initialized")
	ErrRunning        = errors.New("simulator is running")
	ErrFaulted        = errors.New("simulator is faulted")
	ErrInvalidRun     = errors.New("invalid run window")
	ErrCancelled      = errors.New("run cancelled")
)

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateRunning
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Link is a projection resolved to the innermost origin and termination.
type Link struct {
	Origin      model.Origin
	Termination model.Termination
}

// Graph is the view of a network the simulator plans from. Implementations
// must not take locks the caller of Initialize already holds.
type Graph interface {
	Name() string
	Nodes() []model.Node
	Links() []Link
}

// StepListener is called with the start time of every top-level step, before
// any signal moves. Listeners must not edit the network structure.
type StepListener interface {
	OnStep(t float64)
}

type StepListenerFunc func(t float64)

func (f StepListenerFunc) OnStep(t float64) { f(t) }

type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Registry
	// Workers bounds parallel evaluation of offloadable nodes. Zero means
	// GOMAXPROCS.
	Workers int
}

type plan struct {
	nodes    []model.Node
	serial   []model.Node
	parallel []model.Node
	links    []Link
	byName   map[string]model.Node
}

type listenerEntry struct {
	id       int
	listener StepListener
}

// LocalSimulator runs a graph in the calling goroutine, fanning offloadable
// nodes out to a bounded worker pool.
type LocalSimulator struct {
	logger  *slog.Logger
	metrics *metrics.Registry
	workers int

	mu           sync.Mutex
	graph        Graph
	state        State
	plan         plan
	probes       []*probe.Probe
	listeners    []listenerEntry
	nextListener int
	fault        error
	time         float64
}

func New(opts Options) *LocalSimulator {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &LocalSimulator{
		logger:  logging.OrDiscard(opts.Logger),
		metrics: opts.Metrics,
		workers: workers,
	}
}

// Initialize (re)builds the execution plan from graph. It is idempotent and
// keeps the Faulted state if the simulator is faulted.
func (s *LocalSimulator) Initialize(graph Graph) error {
	if graph == nil {
		return errors.New("simulator: nil graph")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return ErrRunning
	}
	s.graph = graph
	s.plan = buildPlan(graph)
	if s.state == StateUninitialized {
		s.state = StateReady
	}
	s.metrics.RecordPlanRebuild()
	s.logger.Debug("execution plan rebuilt",
		"network", graph.Name(),
		"nodes", len(s.plan.nodes),
		"parallel", len(s.plan.parallel),
		"links", len(s.plan.links),
	)
	return nil
}

func buildPlan(graph Graph) plan {
	nodes := graph.Nodes()
	p := plan{
		nodes:  nodes,
		links:  graph.Links(),
		byName: make(map[string]model.Node, len(nodes)),
	}
	for _, node := range nodes {
		p.byName[node.Name()] = node
		if off, ok := node.(model.Offloadable); ok && off.UseAccelerator() {
			p.parallel = append(p.parallel, node)
		} else {
			p.serial = append(p.serial, node)
		}
	}
	return p
}

// Apply records a structural change and re-derives the plan when the change
// affects it.
func (s *LocalSimulator) Apply(change model.Change) error {
	s.metrics.RecordStructuralEdit(change.Kind.String())
	if !change.AffectsPlan() {
		return nil
	}
	s.mu.Lock()
	graph := s.graph
	s.mu.Unlock()
	if graph == nil {
		return ErrNotInitialized
	}
	return s.Initialize(graph)
}

func (s *LocalSimulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Fault returns the error that moved the simulator to Faulted, if any.
func (s *LocalSimulator) Fault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

// ClearFault returns a faulted simulator to Ready.
func (s *LocalSimulator) ClearFault() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFaulted {
		s.state = StateReady
		s.fault = nil
	}
}

// Time is the end time of the last completed step.
func (s *LocalSimulator) Time() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.time
}

// Run advances the graph from start to end in steps of step. The final step
// is shortened when step does not divide the window. Cancellation of ctx is
// honored between steps only.
func (s *LocalSimulator) Run(ctx context.Context, start, end, step float64, topLevel bool) error {
	if math.IsNaN(start) || math.IsNaN(end) || end < start {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidRun, start, end)
	}
	if !(step > 0) || math.IsInf(step, 0) {
		return fmt.Errorf("%w: step size %g", ErrInvalidRun, step)
	}

	s.mu.Lock()
	switch s.state {
	case StateUninitialized:
		s.mu.Unlock()
		return ErrNotInitialized
	case StateRunning:
		s.mu.Unlock()
		return ErrRunning
	case StateFaulted:
		fault := s.fault
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrFaulted, fault)
	}
	s.state = StateRunning
	p := s.plan
	var listeners []StepListener
	if topLevel {
		for _, entry := range s.listeners {
			listeners = append(listeners, entry.listener)
		}
	}
	s.mu.Unlock()

	s.metrics.RunStarted()
	err := s.loop(ctx, p, listeners, start, end, step)

	s.mu.Lock()
	result := metrics.RunCompleted
	switch {
	case err == nil:
		s.state = StateReady
	case errors.Is(err, ErrCancelled):
		s.state = StateReady
		result = metrics.RunCancelled
	default:
		s.state = StateFaulted
		s.fault = err
		result = metrics.RunFaulted
	}
	name := ""
	if s.graph != nil {
		name = s.graph.Name()
	}
	s.mu.Unlock()
	s.metrics.RunFinished(result)

	if result == metrics.RunFaulted {
		s.logger.Warn("simulation faulted", "network", name, "error", err)
	} else {
		s.logger.Debug("simulation finished", "network", name, "result", result, "start", start, "end", end)
	}
	return err
}

func (s *LocalSimulator) loop(ctx context.Context, p plan, listeners []StepListener, start, end, step float64) error {
	steps := int(math.Ceil((end-start)/step - 1e-9))
	for i := 0; i < steps; i++ {
		began := time.Now()
		t0 := start + float64(i)*step
		t1 := math.Min(start+float64(i+1)*step, end)

		for _, l := range listeners {
			l.OnStep(t0)
		}
		if err := deliver(p.links); err != nil {
			return err
		}
		if err := s.evaluate(p, t0, t1); err != nil {
			return err
		}
		if err := s.sample(); err != nil {
			return err
		}

		s.mu.Lock()
		s.time = t1
		s.mu.Unlock()
		s.metrics.RecordStep(time.Since(began))
		s.logger.Log(ctx, logging.LevelTrace, "step", "start", t0, "end", t1)

		if err := ctx.Err(); err != nil && i < steps-1 {
			return fmt.Errorf("%w at t=%g: %w", ErrCancelled, t1, err)
		}
	}
	return nil
}

func deliver(links []Link) error {
	for _, l := range links {
		values, err := l.Origin.Values()
		if err != nil {
			return model.AsSimulation(fmt.Errorf("origin %s.%s: %w", nodeName(l.Origin.Node()), l.Origin.Name(), err))
		}
		if err := l.Termination.SetValues(values); err != nil {
			return model.AsSimulation(fmt.Errorf("termination %s.%s: %w", nodeName(l.Termination.Node()), l.Termination.Name(), err))
		}
	}
	return nil
}

func (s *LocalSimulator) evaluate(p plan, t0, t1 float64) error {
	for _, node := range p.serial {
		if err := runNode(node, t0, t1); err != nil {
			return err
		}
	}
	s.metrics.RecordNodeEvaluations(metrics.PathSerial, len(p.serial))
	if len(p.parallel) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, node := range p.parallel {
		node := node
		g.Go(func() error {
			return runNode(node, t0, t1)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.metrics.RecordNodeEvaluations(metrics.PathParallel, len(p.parallel))
	return nil
}

func runNode(node model.Node, t0, t1 float64) error {
	if err := node.Run(t0, t1); err != nil {
		return model.AsSimulation(fmt.Errorf("node %s: %w", node.Name(), err))
	}
	return nil
}

func (s *LocalSimulator) sample() error {
	s.mu.Lock()
	probes := append([]*probe.Probe(nil), s.probes...)
	s.mu.Unlock()
	for _, p := range probes {
		if err := p.Sample(); err != nil {
			return err
		}
	}
	s.metrics.RecordProbeSamples(len(probes))
	return nil
}

func nodeName(n model.Node) string {
	if n == nil {
		return "?"
	}
	return n.Name()
}

// ResetNodes resets every planned node and, when clearProbes is set, drops
// the samples of every probe.
func (s *LocalSimulator) ResetNodes(randomize, clearProbes bool) error {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return ErrRunning
	}
	nodes := s.plan.nodes
	probes := append([]*probe.Probe(nil), s.probes...)
	s.time = 0
	s.mu.Unlock()

	for _, node := range nodes {
		node.Reset(randomize)
	}
	if clearProbes {
		for _, p := range probes {
			p.Clear()
		}
	}
	return nil
}

// AddStepListener registers l and returns an id for RemoveStepListener.
func (s *LocalSimulator) AddStepListener(l StepListener) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextListener++
	s.listeners = append(s.listeners, listenerEntry{id: s.nextListener, listener: l})
	return s.nextListener
}

func (s *LocalSimulator) RemoveStepListener(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.listeners {
		if entry.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return true
		}
	}
	return false
}
