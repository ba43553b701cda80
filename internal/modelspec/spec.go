// Package modelspec loads network descriptions from YAML, validates them and
// builds runnable networks.
package modelspec

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	KindFunction    = "function"
	KindLinear      = "linear"
	KindPopulation  = "population"
	KindPassthrough = "passthrough"
	KindNetwork     = "network"
)

// Model is a top-level network plus its run window and probes.
type Model struct {
	Network `yaml:",inline"`
	Run     RunWindow   `yaml:"run"`
	Probes  []ProbeSpec `yaml:"probes" validate:"dive"`
}

// Network describes one network level. Nested networks use the same shape.
type Network struct {
	Name          string           `yaml:"name" validate:"required"`
	Documentation string           `yaml:"documentation,omitempty"`
	StepSize      float64          `yaml:"step_size,omitempty" validate:"omitempty,gt=0"`
	Mode          string           `yaml:"mode,omitempty" validate:"omitempty,oneof=default rate approximate"`
	Accelerate    bool             `yaml:"accelerate,omitempty"`
	Nodes         []NodeSpec       `yaml:"nodes" validate:"required,min=1,dive"`
	Projections   []ProjectionSpec `yaml:"projections,omitempty" validate:"dive"`
	Expose        ExposeSpec       `yaml:"expose,omitempty"`
}

type NodeSpec struct {
	Name         string            `yaml:"name" validate:"required"`
	Kind         string            `yaml:"kind" validate:"required,oneof=function linear population passthrough network"`
	Dimensions   int               `yaml:"dimensions,omitempty" validate:"omitempty,gt=0"`
	Functions    []FunctionSpec    `yaml:"functions,omitempty" validate:"dive"`
	Terminations []TerminationSpec `yaml:"terminations,omitempty" validate:"dive"`
	Population   *PopulationSpec   `yaml:"population,omitempty"`
	Network      *Network          `yaml:"network,omitempty"`
	Accelerate   bool              `yaml:"accelerate,omitempty"`
}

// FunctionSpec names a registered function and its parameters.
type FunctionSpec struct {
	Type   string             `yaml:"type" validate:"required"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

type TerminationSpec struct {
	Name       string      `yaml:"name" validate:"required"`
	Tau        float64     `yaml:"tau" validate:"gt=0"`
	Transform  [][]float64 `yaml:"transform" validate:"required,min=1"`
	Modulatory bool        `yaml:"modulatory,omitempty"`
}

type PopulationSpec struct {
	Dimensions int     `yaml:"dimensions" validate:"required,gt=0"`
	Size       int     `yaml:"size" validate:"required,gt=0"`
	Gain       float64 `yaml:"gain" validate:"gt=0"`
	Tau        float64 `yaml:"tau" validate:"gt=0"`
	Seed       int64   `yaml:"seed,omitempty"`
}

// ProjectionSpec connects "node.origin" to "node.termination".
type ProjectionSpec struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required"`
}

type ExposeSpec struct {
	Origins      []PortAlias  `yaml:"origins,omitempty" validate:"dive"`
	Terminations []PortAlias  `yaml:"terminations,omitempty" validate:"dive"`
	States       []StateAlias `yaml:"states,omitempty" validate:"dive"`
}

// PortAlias exposes "node.port" under As.
type PortAlias struct {
	Port string `yaml:"port" validate:"required"`
	As   string `yaml:"as" validate:"required"`
}

type StateAlias struct {
	Node  string `yaml:"node" validate:"required"`
	State string `yaml:"state" validate:"required"`
	As    string `yaml:"as" validate:"required"`
}

type RunWindow struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end" validate:"gtfield=Start"`
}

// ProbeSpec targets a top-level node, or one element of it when Element is
// set.
type ProbeSpec struct {
	Node    string `yaml:"node" validate:"required"`
	State   string `yaml:"state" validate:"required"`
	Element *int   `yaml:"element,omitempty" validate:"omitempty,gte=0"`
	Record  *bool  `yaml:"record,omitempty"`
}

// Recording reports whether the probe keeps every sample. It defaults to
// true.
func (p ProbeSpec) Recording() bool {
	return p.Record == nil || *p.Record
}

// Parse decodes a YAML model and validates it. Unknown fields are rejected.
func Parse(data []byte) (*Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Model
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return m, nil
}

// Marshal encodes m as YAML.
func Marshal(m *Model) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Example returns the integrator model: a constant input integrated by a
// linear node with a recurrent termination.
func Example() *Model {
	record := true
	return &Model{
		Network: Network{
			Name:          "integrator",
			Documentation: "Integrates a constant input of 1 over one second.",
			StepSize:      0.0002,
			Nodes: []NodeSpec{
				{
					Name:      "A",
					Kind:      KindFunction,
					Functions: []FunctionSpec{{Type: "constant", Params: map[string]float64{"value": 1}}},
				},
				{
					Name:       "B",
					Kind:       KindLinear,
					Dimensions: 1,
					Terminations: []TerminationSpec{
						{Name: "input", Tau: 0.05, Transform: [][]float64{{0.05}}},
						{Name: "feedback", Tau: 0.05, Transform: [][]float64{{1}}},
					},
				},
			},
			Projections: []ProjectionSpec{
				{From: "A.origin", To: "B.input"},
				{From: "B.X", To: "B.feedback"},
			},
		},
		Run:    RunWindow{Start: 0, End: 1},
		Probes: []ProbeSpec{{Node: "B", State: "X", Record: &record}},
	}
}
