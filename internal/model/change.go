package model

// ChangeKind enumerates structural mutations of a network.
type ChangeKind int

const (
	NodeAdded ChangeKind = iota + 1
	NodeRemoved
	NameChanged
	ProjectionAdded
	ProjectionRemoved
	OriginExposed
	OriginHidden
	TerminationExposed
	TerminationHidden
)

func (k ChangeKind) String() string {
	switch k {
	case NodeAdded:
		return "node_added"
	case NodeRemoved:
		return "node_removed"
	case NameChanged:
		return "name_changed"
	case ProjectionAdded:
		return "projection_added"
	case ProjectionRemoved:
		return "projection_removed"
	case OriginExposed:
		return "origin_exposed"
	case OriginHidden:
		return "origin_hidden"
	case TerminationExposed:
		return "termination_exposed"
	case TerminationHidden:
		return "termination_hidden"
	default:
		return "unknown"
	}
}

// Change is the typed record emitted for every structural mutation.
// Subject names the node, projection (as "origin->termination"), or alias.
// Previous carries the old name for NameChanged.
type Change struct {
	Kind     ChangeKind
	Network  string
	Subject  string
	Previous string
}

// AffectsPlan reports whether the change alters the set of nodes or
// projections the simulator executes.
func (c Change) AffectsPlan() bool {
	switch c.Kind {
	case NodeAdded, NodeRemoved, ProjectionAdded, ProjectionRemoved:
		return true
	default:
		return false
	}
}
