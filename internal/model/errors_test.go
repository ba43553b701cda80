package model

import (
	"errors"
	"testing"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	structural := Structuralf("duplicate node %q", "a")
	if !errors.Is(structural, ErrStructural) || errors.Is(structural, ErrSimulation) {
		t.Fatalf("unexpected structural classification: %v", structural)
	}
	var typed *StructuralError
	if !errors.As(structural, &typed) {
		t.Fatal("expected StructuralError via errors.As")
	}
	if structural.Error() != `duplicate node "a"` {
		t.Fatalf("unexpected message: %s", structural.Error())
	}

	simulation := Simulationf("diverged at t=%g", 0.5)
	if !IsSimulation(simulation) || IsStructural(simulation) {
		t.Fatalf("unexpected simulation classification: %v", simulation)
	}
}

func TestAsSimulationPreservesCauseAndDoesNotDoubleWrap(t *testing.T) {
	cause := errors.New("boom")
	wrapped := AsSimulation(cause)
	if !errors.Is(wrapped, cause) || !IsSimulation(wrapped) {
		t.Fatalf("expected wrapped simulation error, got %v", wrapped)
	}
	if AsSimulation(wrapped) != wrapped {
		t.Fatal("expected existing simulation error to be returned unchanged")
	}
	if AsSimulation(nil) != nil {
		t.Fatal("expected nil passthrough")
	}
}

type copyableTag struct{ value string }

func (c copyableTag) Copy() (any, error) { return copyableTag{value: c.value}, nil }

func TestCopyValue(t *testing.T) {
	src := []float64{1, 2}
	out, err := CopyValue(src)
	if err != nil {
		t.Fatalf("copy slice: %v", err)
	}
	src[0] = 9
	if out.([]float64)[0] != 1 {
		t.Fatal("slice copy aliases source")
	}

	tag, err := CopyValue(copyableTag{value: "x"})
	if err != nil || tag.(copyableTag).value != "x" {
		t.Fatalf("copier copy: %v %v", tag, err)
	}

	if _, err := CopyValue(struct{ A int }{A: 1}); !errors.Is(err, ErrNotCopyable) {
		t.Fatalf("expected not copyable error, got %v", err)
	}
}

func TestChangeAffectsPlan(t *testing.T) {
	if !(Change{Kind: NodeAdded}).AffectsPlan() || !(Change{Kind: ProjectionRemoved}).AffectsPlan() {
		t.Fatal("expected node/projection changes to affect the plan")
	}
	if (Change{Kind: OriginExposed}).AffectsPlan() || (Change{Kind: NameChanged}).AffectsPlan() {
		t.Fatal("expected alias and rename changes to leave the plan intact")
	}
	if NodeRemoved.String() != "node_removed" || ChangeKind(99).String() != "unknown" {
		t.Fatal("unexpected change kind names")
	}
}
