package model

// SimulationMode selects how a node computes its output.
type SimulationMode string

const (
	ModeDefault     SimulationMode = "default"
	ModeRate        SimulationMode = "rate"
	ModeApproximate SimulationMode = "approximate"
)

func (m SimulationMode) Valid() bool {
	switch m {
	case ModeDefault, ModeRate, ModeApproximate:
		return true
	default:
		return false
	}
}

// Node is a computational unit with named output (Origin) and input
// (Termination) ports.
type Node interface {
	Name() string
	Origins() []Origin
	Origin(name string) (Origin, error)
	Terminations() []Termination
	Termination(name string) (Termination, error)
	// Run advances internal state over [start, end], consuming termination
	// inputs and refreshing origin values.
	Run(start, end float64) error
	Reset(randomize bool)
	Mode() SimulationMode
	SetMode(mode SimulationMode)
	Documentation() string
	SetDocumentation(text string)
	Clone() (Node, error)
}

// Origin is a named output port.
type Origin interface {
	Name() string
	Dimensions() int
	Values() (InstantaneousOutput, error)
	Node() Node
}

// Termination is a named input port. Terminations that filter their input
// own a dynamical system and an integrator.
type Termination interface {
	Name() string
	Dimensions() int
	SetValues(values InstantaneousOutput) error
	Input() InstantaneousOutput
	Node() Node
	Modulatory() bool
	SetModulatory(modulatory bool)
	// Tau and SetTau are only valid for linear time-invariant dynamics and
	// return a StructuralError otherwise.
	Tau() (float64, error)
	SetTau(tau float64) error
	Reset(randomize bool)
}

// Projection binds one Origin to one Termination.
type Projection interface {
	Origin() Origin
	Termination() Termination
	Network() Node
}

// Probeable exposes named internal state histories.
type Probeable interface {
	// ListStates maps state names to a description of the recorded value.
	ListStates() map[string]string
	History(state string) (TimeSeries, error)
}

// NodeFactory instantiates externally defined nodes such as neuron
// populations.
type NodeFactory interface {
	Make(name string) (Node, error)
	TypeDescription() string
}

// Ensemble is a node composed of addressable element nodes. Probes can
// target an element by index.
type Ensemble interface {
	Node
	Elements() []Node
}

// Lesionable is an optional node capability used for robustness
// experiments: it removes a random fraction of internal degrees of freedom
// without changing graph structure.
type Lesionable interface {
	KillNeurons(fraction float64, preserveSingleNodeGroups bool)
	NeuronCount() int
}

// Offloadable is an optional node capability marking the node as eligible
// for parallel or accelerator dispatch within a step.
type Offloadable interface {
	UseAccelerator() bool
	SetUseAccelerator(use bool)
}

// Renamable is an optional node capability. An owned node forwards SetName
// to its owner's RenameNode so sibling uniqueness is preserved.
type Renamable interface {
	SetName(name string)
}

// TimeAware is an optional node capability for nodes that track absolute
// simulation time outside Run.
type TimeAware interface {
	SetTime(t float64)
}

// Owned is an optional node capability recording the container a node was
// added to, so it can be detached from a previous owner.
type Owned interface {
	Owner() Container
	SetOwner(owner Container)
}

// Container is the subset of a network a child needs from its owner.
// DetachNode releases a child without tearing it down, so it can move to
// another container; RenameNode keeps sibling names unique.
type Container interface {
	Name() string
	RemoveNode(name string) error
	DetachNode(name string) error
	RenameNode(oldName, newName string) error
}
