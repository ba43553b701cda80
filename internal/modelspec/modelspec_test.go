package modelspec

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"nengosim/internal/model"
	"nengosim/internal/network"
)

const nestedModel = `
name: outer
step_size: 0.001
nodes:
  - name: src
    kind: function
    functions:
      - type: step
        params: {onset: 0.01, after: 2}
  - name: filter
    kind: network
    network:
      name: filter
      nodes:
        - name: lp
          kind: linear
          dimensions: 1
          terminations:
            - name: in
              tau: 0.01
              transform: [[1]]
      expose:
        origins:
          - {port: lp.X, as: out}
        terminations:
          - {port: lp.in, as: in}
  - name: pop
    kind: population
    population: {dimensions: 1, size: 10, gain: 1, tau: 0.01, seed: 7}
projections:
  - {from: src.origin, to: filter.in}
  - {from: filter.out, to: pop.input}
run:
  start: 0
  end: 0.2
probes:
  - {node: filter, state: out}
  - {node: pop, state: rate, element: 0, record: false}
`

func TestParseAndBuildNestedModel(t *testing.T) {
	m, err := Parse([]byte(nestedModel))
	require.NoError(t, err)
	require.Len(t, m.Nodes, 3)
	require.True(t, m.Probes[0].Recording())
	require.False(t, m.Probes[1].Recording())

	built, err := Build(m, network.Options{})
	require.NoError(t, err)
	require.Len(t, built.Network.Projections(), 2)
	require.Contains(t, built.Probes, "filter.out")
	require.Contains(t, built.Probes, "pop[0].rate")

	require.NoError(t, built.Network.Simulate(context.Background(), m.Run.Start, m.Run.End))
	_, v, ok := built.Probes["filter.out"].Data().Last()
	require.True(t, ok)
	require.InDelta(t, 2, v[0], 1e-3)
	require.Equal(t, 1, built.Probes["pop[0].rate"].Len())
}

func TestExampleBuildsTheIntegrator(t *testing.T) {
	data, err := Marshal(Example())
	require.NoError(t, err)

	m, err := Parse(data)
	require.NoError(t, err)
	built, err := Build(m, network.Options{})
	require.NoError(t, err)
	require.Equal(t, 0.0002, built.Network.StepSize())

	require.NoError(t, built.Network.Simulate(context.Background(), m.Run.Start, m.Run.End))
	_, v, ok := built.Probes["B.X"].Data().Last()
	require.True(t, ok)
	require.Less(t, math.Abs(v[0]-1), 0.05)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	data, err := Marshal(Example())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "integrator", m.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseRejectsInvalidModels(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown field", "name: n\nnodes: [{name: a, kind: passthrough, dimensions: 1}]\nbogus: 1\nrun: {end: 1}\n"},
		{"missing nodes", "name: n\nrun: {end: 1}\n"},
		{"bad kind", "name: n\nnodes: [{name: a, kind: wizard}]\nrun: {end: 1}\n"},
		{"empty window", "name: n\nnodes: [{name: a, kind: passthrough, dimensions: 1}]\nrun: {start: 1, end: 1}\n"},
		{"duplicate names", "name: n\nnodes: [{name: a, kind: passthrough, dimensions: 1}, {name: a, kind: passthrough, dimensions: 1}]\nrun: {end: 1}\n"},
		{"unknown function", "name: n\nnodes: [{name: a, kind: function, functions: [{type: sawtooth}]}]\nrun: {end: 1}\n"},
		{"transform rows", "name: n\nnodes: [{name: a, kind: linear, dimensions: 2, terminations: [{name: in, tau: 0.1, transform: [[1]]}]}]\nrun: {end: 1}\n"},
		{"dangling projection", "name: n\nnodes: [{name: a, kind: passthrough, dimensions: 1}]\nprojections: [{from: a.origin, to: b.termination}]\nrun: {end: 1}\n"},
		{"bad port ref", "name: n\nnodes: [{name: a, kind: passthrough, dimensions: 1}]\nprojections: [{from: a, to: a.termination}]\nrun: {end: 1}\n"},
		{"unknown probe node", "name: n\nnodes: [{name: a, kind: passthrough, dimensions: 1}]\nrun: {end: 1}\nprobes: [{node: b, state: X}]\n"},
		{"population block", "name: n\nnodes: [{name: a, kind: population}]\nrun: {end: 1}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
		})
	}
}

func TestValidateWrapsSentinel(t *testing.T) {
	err := Validate(&Model{})
	require.True(t, errors.Is(err, ErrInvalidModel), "got %v", err)
}

func TestBuildReportsStructuralErrors(t *testing.T) {
	m := Example()
	m.Projections = append(m.Projections, ProjectionSpec{From: "A.origin", To: "B.feedback"})
	_, err := Build(m, network.Options{})
	require.True(t, model.IsStructural(err), "got %v", err)
}
