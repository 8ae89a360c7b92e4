package render

import (
	"github.com/aretw0/tendril/pkg/deps"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Tree is the executed forest of one parse tree or entity.
type Tree struct {
	Roots []*Node

	exec   *Executor
	title  string
	sink   ports.OutputSink
	parent ports.Handle
}

// Title returns the context title the tree was executed with.
func (t *Tree) Title() string {
	return t.title
}

// Dependencies returns the merged dependencies of every root.
func (t *Tree) Dependencies() *deps.Dependencies {
	merged := deps.New()
	for _, root := range t.Roots {
		merged.Merge(root.deps, root.ctx.title, t.title)
	}
	return merged
}

// Realize materializes the tree under parent through sink. A tree is realized once.
func (t *Tree) Realize(sink ports.OutputSink, parent ports.Handle) {
	t.sink = sink
	t.parent = parent
	for _, root := range t.Roots {
		realize(root, sink, parent, nil)
	}
}

// Realized reports whether Realize has been called and Detach has not.
func (t *Tree) Realized() bool {
	return t.sink != nil
}

// Detach removes the tree's output and marks every node detached.
func (t *Tree) Detach() {
	for _, root := range t.Roots {
		if t.sink != nil && root.Handle != nil {
			t.sink.Remove(root.Handle)
		}
		root.detach()
	}
	t.sink = nil
}

// Find returns the deepest node realized as h.
func (t *Tree) Find(h ports.Handle) *Node {
	var found *Node
	for _, root := range t.Roots {
		root.walk(func(n *Node) {
			if n.Handle == h {
				found = n
			}
		})
	}
	return found
}

// Dispatch raises msg at the node realized as h. The message travels towards the
// root until a macro with a handler for its type consumes it.
func (t *Tree) Dispatch(h ports.Handle, msg *domain.Message) bool {
	n := t.Find(h)
	if n == nil {
		return false
	}
	if msg.Title == "" {
		msg.Title = n.ctx.title
	}
	return bubble(n, msg)
}

func bubble(n *Node, msg *domain.Message) bool {
	for ; n != nil; n = n.parent {
		if n.Kind != KindMacro || n.macro == nil || n.call == nil {
			continue
		}
		if handler, ok := n.macro.Handlers[msg.Type]; ok && handler(n.call, msg) {
			return true
		}
	}
	return false
}

// realize creates output for n and inserts it under parent before ref.
func realize(n *Node, sink ports.OutputSink, parent, ref ports.Handle) {
	switch n.Kind {
	case KindText:
		h := sink.CreateNode(ports.TextTag, nil)
		sink.SetText(h, n.Text)
		n.Handle = h
		sink.InsertBefore(parent, h, ref)
	case KindElement:
		h := sink.CreateNode(n.Tag, n.Attributes)
		for _, child := range n.Children {
			realize(child, sink, h, nil)
		}
		n.Handle = h
		sink.InsertBefore(parent, h, ref)
	case KindMacro:
		root := n.Children[0]
		realize(root, sink, parent, ref)
		n.Handle = root.Handle
	}
	n.State = StateRealized
}
