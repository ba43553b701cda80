package nodes

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var (
	ErrFunctionExists   = errors.New("function already registered")
	ErrFunctionNotFound = errors.New("function not found")
	ErrFunctionParams   = errors.New("invalid function parameters")
)

// Function maps simulation time to one output dimension of a FunctionInput.
// Implementations must be immutable; clones share them.
type Function interface {
	Map(t float64) float64
}

type ConstantFunction struct {
	Value float64
}

func (f ConstantFunction) Map(float64) float64 { return f.Value }

type SineFunction struct {
	Amplitude float64
	Frequency float64
	Phase     float64
}

func (f SineFunction) Map(t float64) float64 {
	return f.Amplitude * math.Sin(2*math.Pi*f.Frequency*t+f.Phase)
}

// StepFunction is Before until Onset and After from Onset on.
type StepFunction struct {
	Onset  float64
	Before float64
	After  float64
}

func (f StepFunction) Map(t float64) float64 {
	if t < f.Onset {
		return f.Before
	}
	return f.After
}

// FunctionFunc adapts a plain func to Function.
type FunctionFunc func(t float64) float64

func (f FunctionFunc) Map(t float64) float64 { return f(t) }

// FunctionFactory builds a Function from named numeric parameters, as found
// in model files.
type FunctionFactory func(params map[string]float64) (Function, error)

var functionRegistry = struct {
	mu sync.RWMutex
	m  map[string]FunctionFactory
}{
	m: make(map[string]FunctionFactory),
}

func init() {
	initializeBuiltInFunctions()
}

func initializeBuiltInFunctions() {
	MustRegisterFunction("constant", func(p map[string]float64) (Function, error) {
		if err := allowParams(p, "value"); err != nil {
			return nil, err
		}
		return ConstantFunction{Value: p["value"]}, nil
	})
	MustRegisterFunction("sine", func(p map[string]float64) (Function, error) {
		if err := allowParams(p, "amplitude", "frequency", "phase"); err != nil {
			return nil, err
		}
		amplitude, ok := p["amplitude"]
		if !ok {
			amplitude = 1
		}
		return SineFunction{Amplitude: amplitude, Frequency: p["frequency"], Phase: p["phase"]}, nil
	})
	MustRegisterFunction("step", func(p map[string]float64) (Function, error) {
		if err := allowParams(p, "onset", "before", "after"); err != nil {
			return nil, err
		}
		after, ok := p["after"]
		if !ok {
			after = 1
		}
		return StepFunction{Onset: p["onset"], Before: p["before"], After: after}, nil
	})
}

func allowParams(params map[string]float64, allowed ...string) error {
	for key := range params {
		found := false
		for _, name := range allowed {
			if key == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: unknown parameter %q", ErrFunctionParams, key)
		}
	}
	return nil
}

func RegisterFunction(name string, factory FunctionFactory) error {
	if name == "" {
		return errors.New("function name is required")
	}
	if factory == nil {
		return errors.New("function factory is required")
	}

	functionRegistry.mu.Lock()
	defer functionRegistry.mu.Unlock()

	if _, exists := functionRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrFunctionExists, name)
	}
	functionRegistry.m[name] = factory
	return nil
}

func MustRegisterFunction(name string, factory FunctionFactory) {
	if err := RegisterFunction(name, factory); err != nil {
		panic(err)
	}
}

// ResolveFunction looks up name and builds a Function from params.
func ResolveFunction(name string, params map[string]float64) (Function, error) {
	functionRegistry.mu.RLock()
	factory, ok := functionRegistry.m[name]
	functionRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	fn, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", name, err)
	}
	return fn, nil
}

func ListFunctions() []string {
	functionRegistry.mu.RLock()
	defer functionRegistry.mu.RUnlock()

	names := make([]string, 0, len(functionRegistry.m))
	for name := range functionRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetFunctionRegistryForTests() {
	functionRegistry.mu.Lock()
	functionRegistry.m = make(map[string]FunctionFactory)
	functionRegistry.mu.Unlock()
	initializeBuiltInFunctions()
}
