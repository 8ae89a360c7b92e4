// Package tree defines the parse tree produced by the parser and consumed by the executor.
package tree

// Node is one of Text, Element or Macro.
type Node interface {
	node()
}

// Text is a literal run of characters.
type Text struct {
	Text string
}

// Element is a structural node such as a paragraph, heading or link.
type Element struct {
	Tag        string
	Attributes map[string]string
	Children   []Node
	// Block is set for elements produced by block rules.
	Block bool
}

// Macro is an invocation of a registered macro.
type Macro struct {
	Name string
	// Args is the raw argument string, parsed at execution time.
	Args string
	// Preset holds named parameters supplied by the rule that produced the node
	// (for example the target of a pretty link). They override same-named arguments.
	Preset  map[string]string
	Content []Node
	Block   bool
}

func (*Text) node()    {}
func (*Element) node() {}
func (*Macro) node()   {}

// ParseTree is the result of parsing one source text.
type ParseTree struct {
	Nodes []Node
	// Source is the title the text came from, empty for ad hoc text.
	Source string
}

// NewText is a shorthand for a Text node.
func NewText(s string) *Text {
	return &Text{Text: s}
}

// NewElement is a shorthand for an Element node.
func NewElement(tag string, attrs map[string]string, children ...Node) *Element {
	return &Element{Tag: tag, Attributes: attrs, Children: children}
}

// Walk visits every node depth first, stopping a branch when fn returns false.
func Walk(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		if !fn(n) {
			continue
		}
		switch v := n.(type) {
		case *Element:
			Walk(v.Children, fn)
		case *Macro:
			Walk(v.Content, fn)
		}
	}
}

// Count returns the number of nodes in the forest.
func Count(nodes []Node) int {
	n := 0
	Walk(nodes, func(Node) bool {
		n++
		return true
	})
	return n
}
