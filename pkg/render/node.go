package render

import (
	"github.com/aretw0/tendril/pkg/deps"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/macro"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/tree"
)

// Kind is the variant of an executed node.
type Kind int

const (
	KindText Kind = iota
	KindElement
	KindMacro
)

// State is the rendering lifecycle state of a node.
type State int

const (
	StateUnrendered State = iota
	StateExecuted
	StateRealized
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateExecuted:
		return "executed"
	case StateRealized:
		return "realized"
	case StateDetached:
		return "detached"
	default:
		return "unrendered"
	}
}

// ErrorClass is the class of the element that replaces failed macro output.
const ErrorClass = "tendril-error"

// scope is what a node executes with: the title that scopes reads and the
// chain of entities whose text is being expanded above it.
type scope struct {
	title string
	chain []string
}

// Node is an executed node.
type Node struct {
	Kind       Kind
	Text       string
	Tag        string
	Attributes map[string]string
	Block      bool
	// Name is the macro name of KindMacro nodes.
	Name string
	// Key identifies the node within a keyed collection.
	Key string
	// Children of a macro node is always exactly one root node.
	Children []*Node
	// Handle is set once realized. A macro node shares its root child's handle.
	Handle ports.Handle
	State  State
	// Outcome is what the last reconciliation did with the node.
	Outcome domain.ReconcileOutcome
	// Err is set on macro nodes whose output was replaced by an error marker.
	Err error

	ctx    scope
	parent *Node
	source *tree.Macro
	macro  *macro.Macro
	call   *macro.Call
	output *macro.Output
	own    *deps.Dependencies
	deps   *deps.Dependencies
	// frameCtx is the context collection items execute with.
	frameCtx scope
}

// Dependencies returns the node's own dependencies merged with its descendants'.
func (n *Node) Dependencies() *deps.Dependencies {
	return n.deps
}

// Context returns the context title the node executed with.
func (n *Node) Context() string {
	return n.ctx.title
}

// Parent returns the enclosing executed node, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// IsCollection reports whether the node is a keyed collection macro.
func (n *Node) IsCollection() bool {
	return n.output != nil && n.output.Collection != nil && n.Err == nil
}

// Items returns the realized items of a collection node.
func (n *Node) Items() []*Node {
	if !n.IsCollection() || len(n.Children) == 0 {
		return nil
	}
	return n.Children[0].Children
}

// recompute rebuilds the merged dependency set from the node's own and its children's.
func (n *Node) recompute() {
	merged := deps.New()
	if n.own != nil {
		merged = n.own.Clone()
	}
	for _, child := range n.Children {
		merged.Merge(child.deps, child.ctx.title, n.ctx.title)
	}
	n.deps = merged
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.Children {
		child.walk(fn)
	}
}

func (n *Node) detach() {
	n.walk(func(d *Node) {
		d.State = StateDetached
	})
}
