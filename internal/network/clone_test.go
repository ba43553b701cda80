package network

import (
	"context"
	"math"
	"sort"
	"testing"

	"nengosim/internal/model"
	"nengosim/internal/nodes"
)

func projectionPairs(n *Network) []string {
	var out []string
	for _, p := range n.Projections() {
		out = append(out, p.(*Projection).String())
	}
	sort.Strings(out)
	return out
}

func originNames(n *Network) []string {
	var out []string
	for _, o := range n.Origins() {
		out = append(out, o.Name())
	}
	return out
}

func buildNested(t *testing.T) (*Network, *nodes.LinearNode) {
	t.Helper()
	outer := New("outer", Options{StepSize: 0.001})
	inner := New("inner", Options{})
	b := linearNode(t, "b", 1, map[string]float64{"in": 0.02})
	mustAdd(t, inner, b)
	if _, err := inner.ExposeTermination(mustTermination(t, b, "in"), "input"); err != nil {
		t.Fatalf("expose termination: %v", err)
	}
	if _, err := inner.ExposeOrigin(mustOrigin(t, b, nodes.LinearOrigin), "output"); err != nil {
		t.Fatalf("expose origin: %v", err)
	}

	a := constantInput(t, "a", 1)
	c := linearNode(t, "c", 1, map[string]float64{"in": 0.02})
	mustAdd(t, outer, a, inner, c)
	if _, err := outer.AddProjection(mustOrigin(t, a, nodes.FunctionOrigin), mustTermination(t, inner, "input")); err != nil {
		t.Fatalf("project into inner: %v", err)
	}
	if _, err := outer.AddProjection(mustOrigin(t, inner, "output"), mustTermination(t, c, "in")); err != nil {
		t.Fatalf("project out of inner: %v", err)
	}
	if _, err := outer.ExposeOrigin(mustOrigin(t, c, nodes.LinearOrigin), "result"); err != nil {
		t.Fatalf("expose result: %v", err)
	}
	outer.SetDocumentation("two filters in series")
	outer.SetMetadata("tags", []string{"demo"})
	return outer, c
}

func TestCloneIsEquivalent(t *testing.T) {
	orig, _ := buildNested(t)
	if _, err := orig.AddProbe("c", nodes.LinearOrigin, true); err != nil {
		t.Fatalf("add probe: %v", err)
	}

	clone, report, err := orig.CloneWithReport()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if len(report.Skipped) != 0 {
		t.Fatalf("expected nothing skipped, got %v", report.Skipped)
	}
	if len(clone.Nodes()) != len(orig.Nodes()) {
		t.Fatalf("expected %d nodes, got %d", len(orig.Nodes()), len(clone.Nodes()))
	}
	got, want := projectionPairs(clone), projectionPairs(orig)
	if len(got) != len(want) {
		t.Fatalf("expected projections %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected projections %v, got %v", want, got)
		}
	}
	if o, c := originNames(orig), originNames(clone); len(o) != 1 || len(c) != 1 || o[0] != c[0] {
		t.Fatalf("expected exposed origins %v, got %v", o, c)
	}
	if clone.Documentation() != orig.Documentation() || clone.StepSize() != orig.StepSize() {
		t.Fatalf("expected documentation and step size copied")
	}
	probes := clone.Probes()
	if len(probes) != 1 || probes[0].Address().Node != "c" || probes[0].Len() != 0 {
		t.Fatalf("expected one empty probe re-attached to c, got %v", probes)
	}

	innerClone, err := clone.Node("inner")
	if err != nil {
		t.Fatalf("lookup inner clone: %v", err)
	}
	innerOrig, _ := orig.Node("inner")
	if innerClone == innerOrig {
		t.Fatalf("expected children to be deep-copied")
	}
	if innerClone.(*Network).Owner() != model.Container(clone) {
		t.Fatalf("expected cloned child to be owned by the clone")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig, c := buildNested(t)
	clone, err := orig.Clone()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	cloned := clone.(*Network)

	if err := cloned.RemoveNode("a"); err != nil {
		t.Fatalf("remove node from clone: %v", err)
	}
	if len(orig.Nodes()) != 3 || len(orig.Projections()) != 2 {
		t.Fatalf("expected original topology unchanged, got %d nodes and %d projections", len(orig.Nodes()), len(orig.Projections()))
	}

	if err := orig.Simulate(context.Background(), 0, 0.3); err != nil {
		t.Fatalf("simulate original: %v", err)
	}
	history, err := c.History(nodes.LinearOrigin)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if v := lastValue(t, history); math.Abs(v-1) > 1e-2 {
		t.Fatalf("expected original output near 1, got %v", v)
	}
	clonedC, _ := cloned.Node("c")
	clonedHistory, err := clonedC.(model.Probeable).History(nodes.LinearOrigin)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if v := lastValue(t, clonedHistory); v != 0 {
		t.Fatalf("expected clone state untouched by the original run, got %v", v)
	}
}

func TestCloneReportsUnresolvableProjection(t *testing.T) {
	orig, _ := buildNested(t)
	innerNode, _ := orig.Node("inner")
	inner := innerNode.(*Network)
	if err := inner.HideOrigin("output"); err != nil {
		t.Fatalf("hide origin: %v", err)
	}

	clone, report, err := orig.CloneWithReport()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if len(report.Skipped) != 1 {
		t.Fatalf("expected one skipped item, got %v", report.Skipped)
	}
	if got := len(clone.Projections()); got != 1 {
		t.Fatalf("expected clone to keep one projection, got %d", got)
	}
	if got := len(orig.Projections()); got != 2 {
		t.Fatalf("expected original projections unchanged, got %d", got)
	}
}

func TestCloneReattachesElementProbes(t *testing.T) {
	net := New("net", Options{})
	pop, err := nodes.NewPopulation("pop", nodes.PopulationConfig{Dimensions: 1, Size: 8, Gain: 1, Tau: 0.01, Seed: 3})
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	mustAdd(t, net, pop)
	if _, err := net.AddElementProbe("pop", 3, nodes.NeuronRate, false); err != nil {
		t.Fatalf("add element probe: %v", err)
	}

	clone, report, err := net.CloneWithReport()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if len(report.Skipped) != 0 {
		t.Fatalf("expected nothing skipped, got %v", report.Skipped)
	}
	probes := clone.Probes()
	if len(probes) != 1 {
		t.Fatalf("expected one probe, got %d", len(probes))
	}
	if addr := probes[0].Address(); addr.Node != "pop" || addr.Element != 3 || probes[0].Recording() {
		t.Fatalf("unexpected probe %s recording=%v", addr, probes[0].Recording())
	}
}
