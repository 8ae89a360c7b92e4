/*
Package macro defines macro capabilities and binds their parameters.

A macro is a plain capability struct stored by name in a Registry. Execute turns a
bound Call into an Output of parse tree nodes; the executor runs those nodes in turn.
Every read made through the Call is recorded as a dependency of the macro node.
*/
package macro

import (
	"errors"
	"slices"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/tree"
)

// EmptyKey is the collection key of the item shown when a collection has no items.
const EmptyKey = "\x00empty"

// ExecuteFunc produces the output of a macro invocation.
type ExecuteFunc func(c *Call) (*Output, error)

// RefreshFunc updates a realized macro node in place after its dependencies changed.
// It returns false when the node must be rebuilt instead.
type RefreshFunc func(rc *RefreshContext) bool

// HandlerFunc handles a dispatched message. Returning true consumes it.
type HandlerFunc func(c *Call, msg *domain.Message) bool

// ViewStrategy customizes how collection items leave the output.
type ViewStrategy interface {
	// Remove detaches h, possibly after an animation. It returns false to let
	// the caller remove the handle immediately.
	Remove(sink ports.OutputSink, h ports.Handle) bool
}

// Macro is the capability struct of one macro.
type Macro struct {
	Info
	Execute  ExecuteFunc
	Refresh  RefreshFunc
	View     ViewStrategy
	Handlers map[string]HandlerFunc
}

// Output is what a macro produces.
type Output struct {
	Nodes []tree.Node
	// Context switches the context title the nodes execute with.
	Context string
	// Source names the entity whose text the nodes came from. It extends the
	// transclusion chain and is checked against it for cycles.
	Source string
	// Collection, when set, makes the node a diffable keyed collection.
	Collection *Collection
	// Value is the displayed value of live macros, compared by Refresh.
	Value string
}

// Collection is an ordered list of keyed items rendered inside a frame element.
type Collection struct {
	Tag        string
	Attributes map[string]string
	Items      []Item
}

// Item is one collection entry. Keys must be unique within a collection.
type Item struct {
	Key  string
	Node tree.Node
}

// Keys returns the item keys in order.
func (c *Collection) Keys() []string {
	keys := make([]string, len(c.Items))
	for i, item := range c.Items {
		keys[i] = item.Key
	}
	return keys
}

// RefreshContext is passed to RefreshFunc.
type RefreshContext struct {
	Call     *Call
	Previous *Output
	Current  *Output
	Sink     ports.OutputSink
	// Handle is the realized root of the macro's output.
	Handle  ports.Handle
	Focused bool
}

// Registry maps names to macros. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	macros map[string]*Macro
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		macros: make(map[string]*Macro),
	}
}

// Register adds a macro. A duplicate name is a *domain.ConfigError.
func (r *Registry) Register(m Macro) error {
	if m.Name == "" || m.Execute == nil {
		return &domain.ConfigError{Kind: "macro", Name: m.Name, Err: errors.New("macro needs a name and an execute function")}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.macros[m.Name]; exists {
		return &domain.ConfigError{Kind: "macro", Name: m.Name, Err: domain.ErrDuplicateMacro}
	}
	r.macros[m.Name] = &m
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(m Macro) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Lookup returns the macro registered under name.
func (r *Registry) Lookup(name string) (*Macro, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.macros[name]
	return m, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.macros))
	for name := range r.macros {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
