package modelspec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"nengosim/internal/nodes"
)

var ErrInvalidModel = errors.New("invalid model")

var validate = validator.New()

// Validate checks struct tags first, then the cross-field rules tags can't
// express: unique names, kind-specific fields, transform shapes and
// references between nodes, projections, aliases and probes.
func Validate(m *Model) error {
	if m == nil {
		return fmt.Errorf("%w: nil model", ErrInvalidModel)
	}
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidModel, formatValidationError(err))
	}

	var problems []error
	names := validateNetwork(m.Network, m.Name, &problems)
	for i, p := range m.Probes {
		if _, ok := names[p.Node]; !ok {
			problems = append(problems, fmt.Errorf("probes[%d]: unknown node %q", i, p.Node))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidModel, errors.Join(problems...))
	}
	return nil
}

func validateNetwork(n Network, path string, problems *[]error) map[string]NodeSpec {
	report := func(format string, args ...any) {
		*problems = append(*problems, fmt.Errorf("%s: "+format, append([]any{path}, args...)...))
	}

	byName := make(map[string]NodeSpec, len(n.Nodes))
	for _, node := range n.Nodes {
		if _, dup := byName[node.Name]; dup {
			report("duplicate node name %q", node.Name)
			continue
		}
		byName[node.Name] = node
		validateNode(node, path+"/"+node.Name, report, problems)
	}

	for i, p := range n.Projections {
		if err := checkPort(p.From, byName); err != nil {
			report("projections[%d].from: %v", i, err)
		}
		if err := checkPort(p.To, byName); err != nil {
			report("projections[%d].to: %v", i, err)
		}
	}
	for i, a := range n.Expose.Origins {
		if err := checkPort(a.Port, byName); err != nil {
			report("expose.origins[%d]: %v", i, err)
		}
	}
	for i, a := range n.Expose.Terminations {
		if err := checkPort(a.Port, byName); err != nil {
			report("expose.terminations[%d]: %v", i, err)
		}
	}
	for i, s := range n.Expose.States {
		if _, ok := byName[s.Node]; !ok {
			report("expose.states[%d]: unknown node %q", i, s.Node)
		}
	}
	return byName
}

func validateNode(node NodeSpec, path string, report func(string, ...any), problems *[]error) {
	switch node.Kind {
	case KindFunction:
		if len(node.Functions) == 0 {
			report("node %q: function nodes need at least one function", node.Name)
		}
		for i, fn := range node.Functions {
			if _, err := nodes.ResolveFunction(fn.Type, fn.Params); err != nil {
				report("node %q: functions[%d]: %v", node.Name, i, err)
			}
		}
	case KindLinear:
		if node.Dimensions == 0 {
			report("node %q: linear nodes need dimensions", node.Name)
			return
		}
		seen := make(map[string]bool, len(node.Terminations))
		for _, term := range node.Terminations {
			if seen[term.Name] {
				report("node %q: duplicate termination %q", node.Name, term.Name)
			}
			seen[term.Name] = true
			if len(term.Transform) != node.Dimensions {
				report("node %q: termination %q transform has %d rows, want %d", node.Name, term.Name, len(term.Transform), node.Dimensions)
				continue
			}
			for r, row := range term.Transform {
				if len(row) == 0 || len(row) != len(term.Transform[0]) {
					report("node %q: termination %q transform row %d is ragged", node.Name, term.Name, r)
					break
				}
			}
		}
	case KindPopulation:
		if node.Population == nil {
			report("node %q: population nodes need a population block", node.Name)
		}
	case KindPassthrough:
		if node.Dimensions == 0 {
			report("node %q: passthrough nodes need dimensions", node.Name)
		}
	case KindNetwork:
		if node.Network == nil {
			report("node %q: network nodes need a network block", node.Name)
			return
		}
		if node.Network.Name != node.Name {
			report("node %q: nested network is named %q", node.Name, node.Network.Name)
		}
		validateNetwork(*node.Network, path, problems)
	}
}

// splitPort splits "node.port" at the first dot.
func splitPort(ref string) (string, string, bool) {
	node, port, ok := strings.Cut(ref, ".")
	if !ok || node == "" || port == "" {
		return "", "", false
	}
	return node, port, true
}

func checkPort(ref string, byName map[string]NodeSpec) error {
	node, _, ok := splitPort(ref)
	if !ok {
		return fmt.Errorf("%q is not of the form node.port", ref)
	}
	if _, exists := byName[node]; !exists {
		return fmt.Errorf("unknown node %q", node)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Namespace()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must have at least %s entries", field, param)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "gtfield":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
