package ports

import "strings"

// Handle identifies a node created by an OutputSink. Handles are compared by identity.
type Handle any

// TextTag is the tag passed to CreateNode for text nodes.
const TextTag = "#text"

// OutputSink applies the edit script produced by realization and reconciliation.
type OutputSink interface {
	CreateNode(tag string, attributes map[string]string) Handle
	SetAttribute(h Handle, name, value string)
	// InsertBefore inserts child under parent before ref, or at the end when ref is nil.
	InsertBefore(parent, child, ref Handle)
	Remove(h Handle)
	SetText(h Handle, text string)
}

// FocusReporter is implemented by sinks that track input focus.
type FocusReporter interface {
	HasFocus(h Handle) bool
}

// ValidAttributeName reports whether name can be written as an HTML
// attribute name. Serializers skip attributes that fail it.
func ValidAttributeName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "\"'<>/= \t\n\f\r")
}
