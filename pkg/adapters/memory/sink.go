package memory

import (
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/tendril/pkg/ports"
)

// Node is one node of a Sink's output tree. Handles returned by the sink are *Node.
type Node struct {
	Tag        string
	Attributes map[string]string
	Text       string
	Children   []*Node

	parent *Node
}

// Parent returns the node the receiver is attached to, or nil.
func (n *Node) Parent() *Node {
	return n.parent
}

// Op kinds recorded by Sink.
const (
	OpCreate       = "create"
	OpSetAttribute = "set-attribute"
	OpInsert       = "insert"
	OpRemove       = "remove"
	OpSetText      = "set-text"
)

// Op is one recorded sink call.
type Op struct {
	Kind  string
	Node  *Node
	Name  string
	Value string
}

// Sink is an in-memory ports.OutputSink that records every call it receives.
// It is the rendering surface of tests and of the watch command.
// Not safe for concurrent use.
type Sink struct {
	Root  *Node
	ops   []Op
	focus *Node
}

// NewSink creates a sink with an empty root.
func NewSink() *Sink {
	return &Sink{Root: &Node{Tag: "root"}}
}

func (s *Sink) node(h ports.Handle) *Node {
	if h == nil {
		return s.Root
	}
	n, ok := h.(*Node)
	if !ok {
		panic(fmt.Sprintf("memory sink: foreign handle %T", h))
	}
	return n
}

func (s *Sink) CreateNode(tag string, attributes map[string]string) ports.Handle {
	n := &Node{Tag: tag, Attributes: maps.Clone(attributes)}
	s.ops = append(s.ops, Op{Kind: OpCreate, Node: n, Value: tag})
	return n
}

func (s *Sink) SetAttribute(h ports.Handle, name, value string) {
	n := s.node(h)
	if n.Attributes == nil {
		n.Attributes = make(map[string]string)
	}
	n.Attributes[name] = value
	s.ops = append(s.ops, Op{Kind: OpSetAttribute, Node: n, Name: name, Value: value})
}

func (s *Sink) InsertBefore(parent, child, ref ports.Handle) {
	p, c := s.node(parent), s.node(child)
	detach(c)
	at := len(p.Children)
	if ref != nil {
		if i := slices.Index(p.Children, s.node(ref)); i >= 0 {
			at = i
		}
	}
	p.Children = slices.Insert(p.Children, at, c)
	c.parent = p
	s.ops = append(s.ops, Op{Kind: OpInsert, Node: c})
}

func (s *Sink) Remove(h ports.Handle) {
	n := s.node(h)
	detach(n)
	if s.focus != nil && contains(n, s.focus) {
		s.focus = nil
	}
	s.ops = append(s.ops, Op{Kind: OpRemove, Node: n})
}

func (s *Sink) SetText(h ports.Handle, text string) {
	n := s.node(h)
	n.Text = text
	s.ops = append(s.ops, Op{Kind: OpSetText, Node: n, Value: text})
}

func detach(n *Node) {
	if n.parent == nil {
		return
	}
	p := n.parent
	if i := slices.Index(p.Children, n); i >= 0 {
		p.Children = slices.Delete(p.Children, i, i+1)
	}
	n.parent = nil
}

func contains(root, n *Node) bool {
	for ; n != nil; n = n.parent {
		if n == root {
			return true
		}
	}
	return false
}

// Focus gives input focus to h.
func (s *Sink) Focus(h ports.Handle) { s.focus = s.node(h) }

// Blur clears input focus.
func (s *Sink) Blur() { s.focus = nil }

// HasFocus implements ports.FocusReporter.
func (s *Sink) HasFocus(h ports.Handle) bool {
	n, ok := h.(*Node)
	return ok && n != nil && n == s.focus
}

// Ops returns the recorded calls.
func (s *Sink) Ops() []Op {
	return slices.Clone(s.ops)
}

// Count returns how many calls of kind were recorded.
func (s *Sink) Count(kind string) int {
	n := 0
	for _, op := range s.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// ResetOps clears the recorded calls, keeping the output tree.
func (s *Sink) ResetOps() {
	s.ops = nil
}

// HTML serializes the output attached to the root.
func (s *Sink) HTML() string {
	var b strings.Builder
	for _, child := range s.Root.Children {
		writeHTML(&b, child)
	}
	return b.String()
}

// Text returns the concatenated text of the output.
func (s *Sink) Text() string {
	var b strings.Builder
	var walk func(*Node)
	walk = func(n *Node) {
		b.WriteString(n.Text)
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(s.Root)
	return b.String()
}

func writeHTML(b *strings.Builder, n *Node) {
	if n.Tag == ports.TextTag {
		b.WriteString(html.EscapeString(n.Text))
		return
	}
	b.WriteString("<" + n.Tag)
	for _, name := range slices.Sorted(maps.Keys(n.Attributes)) {
		if !ports.ValidAttributeName(name) {
			continue
		}
		fmt.Fprintf(b, ` %s="%s"`, name, html.EscapeString(n.Attributes[name]))
	}
	b.WriteString(">")
	for _, child := range n.Children {
		writeHTML(b, child)
	}
	b.WriteString("</" + n.Tag + ">")
}
