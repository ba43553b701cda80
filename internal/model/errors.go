package model

import (
	"errors"
	"fmt"
)

var (
	// ErrStructural matches every StructuralError via errors.Is.
	ErrStructural = errors.New("structural error")
	// ErrSimulation matches every SimulationError via errors.Is.
	ErrSimulation = errors.New("simulation error")
	// ErrNotCopyable is wrapped when a metadata value has no copy contract.
	ErrNotCopyable = errors.New("value cannot be copied")
)

// StructuralError reports a graph invariant violation: duplicate names,
// dimension mismatches, bound terminations, unknown references, time constant
// changes on non-LTI dynamics, or unresolved names during cloning. The graph
// is left unchanged by the operation that returned it.
type StructuralError struct {
	Err error
}

func (e *StructuralError) Error() string {
	if e == nil || e.Err == nil {
		return ErrStructural.Error()
	}
	return e.Err.Error()
}

func (e *StructuralError) Unwrap() error { return e.Err }

func (e *StructuralError) Is(target error) bool { return target == ErrStructural }

// SimulationError reports a run-time failure: integration divergence or a
// node whose computation failed.
type SimulationError struct {
	Err error
}

func (e *SimulationError) Error() string {
	if e == nil || e.Err == nil {
		return ErrSimulation.Error()
	}
	return e.Err.Error()
}

func (e *SimulationError) Unwrap() error { return e.Err }

func (e *SimulationError) Is(target error) bool { return target == ErrSimulation }

func Structuralf(format string, args ...any) error {
	return &StructuralError{Err: fmt.Errorf(format, args...)}
}

func Simulationf(format string, args ...any) error {
	return &SimulationError{Err: fmt.Errorf(format, args...)}
}

// AsSimulation wraps err as a SimulationError unless it already is one.
func AsSimulation(err error) error {
	if err == nil {
		return nil
	}
	var simErr *SimulationError
	if errors.As(err, &simErr) {
		return err
	}
	return &SimulationError{Err: err}
}

func IsStructural(err error) bool { return errors.Is(err, ErrStructural) }

func IsSimulation(err error) bool { return errors.Is(err, ErrSimulation) }
