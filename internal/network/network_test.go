package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"nengosim/internal/model"
	"nengosim/internal/nodes"
)

func constantInput(t *testing.T, name string, values ...float64) *nodes.FunctionInput {
	t.Helper()
	fns := make([]nodes.Function, len(values))
	for i, v := range values {
		fns[i] = nodes.ConstantFunction{Value: v}
	}
	n, err := nodes.NewFunctionInput(name, fns, model.UnitsUnknown)
	if err != nil {
		t.Fatalf("new function input: %v", err)
	}
	return n
}

func linearNode(t *testing.T, name string, dim int, terms map[string]float64) *nodes.LinearNode {
	t.Helper()
	n, err := nodes.NewLinearNode(name, dim)
	if err != nil {
		t.Fatalf("new linear node: %v", err)
	}
	for termName, tau := range terms {
		transform := make([][]float64, dim)
		for i := range transform {
			transform[i] = make([]float64, dim)
			transform[i][i] = 1
		}
		if _, err := n.AddTermination(termName, tau, transform); err != nil {
			t.Fatalf("add termination %s: %v", termName, err)
		}
	}
	return n
}

func mustOrigin(t *testing.T, n model.Node, name string) model.Origin {
	t.Helper()
	o, err := n.Origin(name)
	if err != nil {
		t.Fatalf("origin %s: %v", name, err)
	}
	return o
}

func mustTermination(t *testing.T, n model.Node, name string) model.Termination {
	t.Helper()
	term, err := n.Termination(name)
	if err != nil {
		t.Fatalf("termination %s: %v", name, err)
	}
	return term
}

func mustAdd(t *testing.T, n *Network, nodes ...model.Node) {
	t.Helper()
	for _, node := range nodes {
		if err := n.AddNode(node); err != nil {
			t.Fatalf("add node %s: %v", node.Name(), err)
		}
	}
}

func TestAddNodeRejectsDuplicateName(t *testing.T) {
	net := New("net", Options{})
	mustAdd(t, net, constantInput(t, "a", 1), linearNode(t, "b", 1, map[string]float64{"in": 0.01}))
	if _, err := net.AddProjection(mustOrigin(t, net.nodes["a"], nodes.FunctionOrigin), mustTermination(t, net.nodes["b"], "in")); err != nil {
		t.Fatalf("add projection: %v", err)
	}

	err := net.AddNode(constantInput(t, "a", 2))
	if !model.IsStructural(err) {
		t.Fatalf("expected structural error, got %v", err)
	}
	if got := len(net.Nodes()); got != 2 {
		t.Fatalf("expected 2 nodes, got %d", got)
	}
	if got := len(net.Projections()); got != 1 {
		t.Fatalf("expected 1 projection, got %d", got)
	}
}

func TestAddNodeRejectsSelfAndCycles(t *testing.T) {
	outer := New("outer", Options{})
	inner := New("inner", Options{})
	mustAdd(t, outer, inner)

	if err := outer.AddNode(outer); !model.IsStructural(err) {
		t.Fatalf("expected structural error adding network to itself, got %v", err)
	}
	if err := inner.AddNode(outer); !model.IsStructural(err) {
		t.Fatalf("expected structural error for cycle, got %v", err)
	}
}

func TestAddNodeDetachesFromPreviousOwner(t *testing.T) {
	first := New("first", Options{})
	second := New("second", Options{})
	a := constantInput(t, "a", 1)
	mustAdd(t, first, a)
	mustAdd(t, second, a)

	if got := len(first.Nodes()); got != 0 {
		t.Fatalf("expected node to leave its previous owner, %d nodes remain", got)
	}
	if a.Owner() != model.Container(second) {
		t.Fatalf("expected owner to be the second network")
	}
}

func TestAddProjectionRejectsDimensionMismatch(t *testing.T) {
	net := New("net", Options{})
	a := constantInput(t, "a", 1, 2)
	b := linearNode(t, "b", 1, map[string]float64{"in": 0.01})
	mustAdd(t, net, a, b)

	_, err := net.AddProjection(mustOrigin(t, a, nodes.FunctionOrigin), mustTermination(t, b, "in"))
	if !model.IsStructural(err) {
		t.Fatalf("expected structural error, got %v", err)
	}
	if got := len(net.Projections()); got != 0 {
		t.Fatalf("expected no projections, got %d", got)
	}
}

func TestAddProjectionRequiresChildEndpoints(t *testing.T) {
	net := New("net", Options{})
	a := constantInput(t, "a", 1)
	b := linearNode(t, "b", 1, map[string]float64{"in": 0.01})
	mustAdd(t, net, b)

	if _, err := net.AddProjection(mustOrigin(t, a, nodes.FunctionOrigin), mustTermination(t, b, "in")); !model.IsStructural(err) {
		t.Fatalf("expected structural error for foreign origin, got %v", err)
	}
}

func TestSecondProjectionToBoundTerminationFails(t *testing.T) {
	net := New("net", Options{})
	a := constantInput(t, "a", 1)
	c := constantInput(t, "c", 2)
	b := linearNode(t, "b", 1, map[string]float64{"in": 0.01})
	mustAdd(t, net, a, b, c)

	term := mustTermination(t, b, "in")
	first, err := net.AddProjection(mustOrigin(t, a, nodes.FunctionOrigin), term)
	if err != nil {
		t.Fatalf("add projection: %v", err)
	}
	if _, err := net.AddProjection(mustOrigin(t, c, nodes.FunctionOrigin), term); !model.IsStructural(err) {
		t.Fatalf("expected structural error, got %v", err)
	}
	projections := net.Projections()
	if len(projections) != 1 || projections[0] != model.Projection(first) {
		t.Fatalf("expected original projection to remain, got %v", projections)
	}
	if first.Origin().Node() != model.Node(a) {
		t.Fatalf("expected original projection to still originate at a")
	}
}

func TestRemoveProjectionResetsTermination(t *testing.T) {
	net := New("net", Options{})
	a := constantInput(t, "a", 1)
	b := linearNode(t, "b", 1, map[string]float64{"in": 0.01})
	mustAdd(t, net, a, b)
	term := mustTermination(t, b, "in")
	if _, err := net.AddProjection(mustOrigin(t, a, nodes.FunctionOrigin), term); err != nil {
		t.Fatalf("add projection: %v", err)
	}
	if err := net.Simulate(context.Background(), 0, 0.01); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if term.Input() == nil {
		t.Fatalf("expected delivered input before removal")
	}
	if err := net.RemoveProjection(term); err != nil {
		t.Fatalf("remove projection: %v", err)
	}
	if term.Input() != nil {
		t.Fatalf("expected input cleared, got %v", term.Input())
	}
	if net.IsBound(term) {
		t.Fatalf("expected termination to be unbound")
	}
	if err := net.RemoveProjection(term); !model.IsStructural(err) {
		t.Fatalf("expected structural error removing twice, got %v", err)
	}
}

func TestRemoveNodeRemovesProjectionsAndAliases(t *testing.T) {
	net := New("net", Options{})
	a := constantInput(t, "a", 1)
	b := linearNode(t, "b", 1, map[string]float64{"in": 0.01, "fb": 0.01})
	c := linearNode(t, "c", 1, map[string]float64{"in": 0.01})
	mustAdd(t, net, a, b, c)

	bOut := mustOrigin(t, b, nodes.LinearOrigin)
	for _, pair := range []struct {
		o model.Origin
		t model.Termination
	}{
		{mustOrigin(t, a, nodes.FunctionOrigin), mustTermination(t, b, "in")},
		{bOut, mustTermination(t, b, "fb")},
		{bOut, mustTermination(t, c, "in")},
	} {
		if _, err := net.AddProjection(pair.o, pair.t); err != nil {
			t.Fatalf("add projection: %v", err)
		}
	}
	if _, err := net.ExposeOrigin(bOut, "out"); err != nil {
		t.Fatalf("expose origin: %v", err)
	}
	if _, err := net.ExposeTermination(mustTermination(t, b, "fb"), "feedback"); err != nil {
		t.Fatalf("expose termination: %v", err)
	}

	if err := net.RemoveNode("b"); err != nil {
		t.Fatalf("remove node: %v", err)
	}
	if got := len(net.Projections()); got != 0 {
		t.Fatalf("expected no projections, got %d", got)
	}
	for _, p := range net.Projections() {
		if p.Origin().Node() == model.Node(b) || p.Termination().Node() == model.Node(b) {
			t.Fatalf("dangling projection %v", p)
		}
	}
	if len(net.Origins()) != 0 || len(net.Terminations()) != 0 {
		t.Fatalf("expected aliases of b to be hidden")
	}
	if _, ok := net.ListStates()["out"]; ok {
		t.Fatalf("expected state alias of b to be hidden")
	}
	if b.Owner() != nil {
		t.Fatalf("expected removed node to have no owner")
	}
	if mustTermination(t, c, "in").Input() != nil {
		t.Fatalf("expected c's termination to be reset")
	}
	if err := net.RemoveNode("b"); !model.IsStructural(err) {
		t.Fatalf("expected structural error removing twice, got %v", err)
	}
}

func TestRemoveNodeWithProbeFails(t *testing.T) {
	net := New("net", Options{})
	b := linearNode(t, "b", 1, map[string]float64{"in": 0.01})
	mustAdd(t, net, b)
	p, err := net.AddProbe("b", nodes.LinearOrigin, true)
	if err != nil {
		t.Fatalf("add probe: %v", err)
	}
	if err := net.RemoveNode("b"); !model.IsStructural(err) {
		t.Fatalf("expected structural error, got %v", err)
	}
	if err := net.RemoveProbe(p); err != nil {
		t.Fatalf("remove probe: %v", err)
	}
	if err := net.RemoveNode("b"); err != nil {
		t.Fatalf("remove node: %v", err)
	}
}

func TestRemoveNestedNetworkDetachesItsProbes(t *testing.T) {
	outer := New("outer", Options{})
	inner := New("inner", Options{})
	b := linearNode(t, "b", 1, map[string]float64{"in": 0.01})
	mustAdd(t, inner, b)
	p, err := inner.AddProbe("b", nodes.LinearOrigin, true)
	if err != nil {
		t.Fatalf("add probe: %v", err)
	}
	mustAdd(t, outer, inner)

	if err := outer.RemoveNode("inner"); err != nil {
		t.Fatalf("remove node: %v", err)
	}
	if p.Attached() {
		t.Fatalf("expected inner probe to be detached")
	}
	if got := len(inner.Nodes()); got != 0 {
		t.Fatalf("expected inner network to be emptied, got %d nodes", got)
	}
}

func TestExposeOriginAliases(t *testing.T) {
	net := New("net", Options{})
	b := linearNode(t, "b", 1, map[string]float64{"in": 0.01})
	mustAdd(t, net, b)
	bOut := mustOrigin(t, b, nodes.LinearOrigin)

	exposed, err := net.ExposeOrigin(bOut, "out")
	if err != nil {
		t.Fatalf("expose origin: %v", err)
	}
	if exposed.Node() != model.Node(net) || exposed.Base() != bOut || exposed.Child() != "b" {
		t.Fatalf("unexpected alias record %+v", exposed)
	}
	if _, err := net.ExposeOrigin(bOut, "other"); !model.IsStructural(err) {
		t.Fatalf("expected structural error exposing twice, got %v", err)
	}
	if _, err := net.ExposeOrigin(bOut, "out"); !model.IsStructural(err) {
		t.Fatalf("expected structural error for duplicate alias, got %v", err)
	}
	if got := net.ExposedOriginName(bOut); got != "out" {
		t.Fatalf("expected reverse lookup to return out, got %q", got)
	}
	if _, ok := net.ListStates()["out"]; !ok {
		t.Fatalf("expected state alias created with origin alias")
	}

	if err := net.HideOrigin("out"); err != nil {
		t.Fatalf("hide origin: %v", err)
	}
	if _, err := net.Origin("out"); !model.IsStructural(err) {
		t.Fatalf("expected alias to be gone, got %v", err)
	}
	if _, ok := net.ListStates()["out"]; ok {
		t.Fatalf("expected state alias to be hidden with the origin")
	}
	if err := net.HideOrigin("out"); !model.IsStructural(err) {
		t.Fatalf("expected structural error hiding twice, got %v", err)
	}
}

func TestExposeOriginSkipsUnknownState(t *testing.T) {
	net := New("net", Options{})
	pass := nodes.NewPassthroughNode("p", 1)
	mustAdd(t, net, pass)
	if _, err := net.ExposeOrigin(mustOrigin(t, pass, nodes.PassthroughOriginName), "out"); err != nil {
		t.Fatalf("expose origin: %v", err)
	}
	if len(net.ListStates()) != 0 {
		t.Fatalf("expected no state alias for a non-probeable node")
	}
}

func TestExposeStateValidates(t *testing.T) {
	net := New("net", Options{})
	b := linearNode(t, "b", 1, map[string]float64{"in": 0.01})
	mustAdd(t, net, b)
	if err := net.ExposeState(b, "nope", "x"); !model.IsStructural(err) {
		t.Fatalf("expected structural error for unknown state, got %v", err)
	}
	if err := net.ExposeState(b, nodes.LinearOrigin, "x"); err != nil {
		t.Fatalf("expose state: %v", err)
	}
	if err := net.ExposeState(b, nodes.LinearOrigin, "x"); !model.IsStructural(err) {
		t.Fatalf("expected structural error for duplicate alias, got %v", err)
	}
	if _, err := net.History("x"); err != nil {
		t.Fatalf("history: %v", err)
	}
	if err := net.HideState("x"); err != nil {
		t.Fatalf("hide state: %v", err)
	}
	if _, err := net.History("x"); err == nil {
		t.Fatalf("expected error for hidden state")
	}
}

func TestRenameNode(t *testing.T) {
	net := New("net", Options{})
	a := constantInput(t, "a", 1)
	b := linearNode(t, "b", 1, map[string]float64{"in": 0.01})
	mustAdd(t, net, a, b)
	if _, err := net.AddProjection(mustOrigin(t, a, nodes.FunctionOrigin), mustTermination(t, b, "in")); err != nil {
		t.Fatalf("add projection: %v", err)
	}

	if err := net.RenameNode("a", "b"); !model.IsStructural(err) {
		t.Fatalf("expected structural error on collision, got %v", err)
	}
	if err := net.RenameNode("a", "source"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if a.Name() != "source" {
		t.Fatalf("expected node to carry its new name, got %q", a.Name())
	}
	if _, err := net.Node("source"); err != nil {
		t.Fatalf("lookup renamed node: %v", err)
	}
	if _, err := net.Node("a"); !model.IsStructural(err) {
		t.Fatalf("expected old name to be gone, got %v", err)
	}
	if _, err := net.AddProbe("source", nodes.FunctionOrigin, true); err != nil {
		t.Fatalf("probe renamed node: %v", err)
	}
}

func TestRenameNestedNetworkThroughOwner(t *testing.T) {
	outer := New("outer", Options{})
	inner := New("inner", Options{})
	sibling := New("sibling", Options{})
	mustAdd(t, outer, inner, sibling)

	if err := inner.Rename("sibling"); !model.IsStructural(err) {
		t.Fatalf("expected structural error on collision, got %v", err)
	}
	inner.SetName("renamed")
	if inner.Name() != "renamed" {
		t.Fatalf("expected renamed network, got %q", inner.Name())
	}
	if _, err := outer.Node("renamed"); err != nil {
		t.Fatalf("lookup renamed network: %v", err)
	}
}

func TestStructuralEditsPublishChanges(t *testing.T) {
	net := New("net", Options{})
	defer net.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := net.Subscribe(ctx, 16)

	a := constantInput(t, "a", 1)
	b := linearNode(t, "b", 1, map[string]float64{"in": 0.01})
	mustAdd(t, net, a, b)
	if _, err := net.AddProjection(mustOrigin(t, a, nodes.FunctionOrigin), mustTermination(t, b, "in")); err != nil {
		t.Fatalf("add projection: %v", err)
	}
	if err := net.RemoveNode("a"); err != nil {
		t.Fatalf("remove node: %v", err)
	}

	want := []model.ChangeKind{model.NodeAdded, model.NodeAdded, model.ProjectionAdded, model.ProjectionRemoved, model.NodeRemoved}
	for i, kind := range want {
		select {
		case change := <-sub.C():
			if change.Kind != kind {
				t.Fatalf("change %d: expected %s, got %s", i, kind, change.Kind)
			}
			if change.Network != "net" {
				t.Fatalf("change %d: expected network net, got %q", i, change.Network)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for change %d", i)
		}
	}
}

func TestMetadataRequiresCopyContract(t *testing.T) {
	net := New("net", Options{})
	net.SetMetadata("gains", []float64{1, 2})
	clone, _, err := net.CloneWithReport()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	gains, _ := clone.Metadata("gains")
	gains.([]float64)[0] = 9
	original, _ := net.Metadata("gains")
	if original.([]float64)[0] != 1 {
		t.Fatalf("expected metadata to be copied, original changed to %v", original)
	}

	net.SetMetadata("opaque", struct{ ch chan int }{})
	if _, _, err := net.CloneWithReport(); !errors.Is(err, model.ErrNotCopyable) {
		t.Fatalf("expected ErrNotCopyable, got %v", err)
	}
}

func TestSetModeRespectsFixedModes(t *testing.T) {
	outer := New("outer", Options{})
	inner := New("inner", Options{})
	b := linearNode(t, "b", 1, nil)
	mustAdd(t, inner, b)
	mustAdd(t, outer, inner)

	outer.SetMode(model.ModeRate)
	if inner.Mode() != model.ModeRate || b.Mode() != model.ModeRate {
		t.Fatalf("expected mode to propagate, got %s and %s", inner.Mode(), b.Mode())
	}

	inner.FixMode(model.ModeRate)
	outer.SetMode(model.ModeApproximate)
	if outer.Mode() != model.ModeApproximate {
		t.Fatalf("expected outer mode to change, got %s", outer.Mode())
	}
	if inner.Mode() != model.ModeRate || b.Mode() != model.ModeRate {
		t.Fatalf("expected fixed network to keep its mode, got %s and %s", inner.Mode(), b.Mode())
	}
}

func TestNeuronCountAndKillNeurons(t *testing.T) {
	outer := New("outer", Options{})
	inner := New("inner", Options{})
	popA, err := nodes.NewPopulation("a", nodes.PopulationConfig{Dimensions: 1, Size: 10, Gain: 1, Tau: 0.01, Seed: 1})
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	popB, err := nodes.NewPopulation("b", nodes.PopulationConfig{Dimensions: 1, Size: 20, Gain: 1, Tau: 0.01, Seed: 2})
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	mustAdd(t, inner, popB)
	mustAdd(t, outer, popA, inner)

	if got := outer.NeuronCount(); got != 30 {
		t.Fatalf("expected 30 neurons, got %d", got)
	}
	outer.KillAllNeurons(0.5)
	if popA.AliveCount() != 5 || popB.AliveCount() != 10 {
		t.Fatalf("expected half of each population alive, got %d and %d", popA.AliveCount(), popB.AliveCount())
	}
}

func TestSetUseAcceleratorIsRecursive(t *testing.T) {
	outer := New("outer", Options{})
	inner := New("inner", Options{})
	b := linearNode(t, "b", 1, nil)
	c := linearNode(t, "c", 1, nil)
	mustAdd(t, inner, b)
	mustAdd(t, outer, inner, c)

	outer.SetUseAccelerator(true)
	if !inner.UseAccelerator() || !b.UseAccelerator() || !c.UseAccelerator() {
		t.Fatalf("expected accelerator toggle to reach every descendant")
	}
	if err := outer.SetNodeAccelerator("c", false); err != nil {
		t.Fatalf("set node accelerator: %v", err)
	}
	if c.UseAccelerator() {
		t.Fatalf("expected c to be serial")
	}
	if err := outer.SetNodeAccelerator("missing", true); !model.IsStructural(err) {
		t.Fatalf("expected structural error, got %v", err)
	}
}
