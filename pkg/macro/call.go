package macro

import (
	"log/slog"

	"github.com/aretw0/tendril/pkg/deps"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/query"
	"github.com/aretw0/tendril/pkg/tree"
)

// Env is the environment a call reads from. It is implemented by the executor.
type Env interface {
	Store() ports.EntityStore
	// Parse parses ad hoc wikitext.
	Parse(text string) []tree.Node
	// ParseEntity parses an entity's text according to its type.
	ParseEntity(title string) ([]tree.Node, bool)
	Logger() *slog.Logger
}

// Call is one invocation of a macro, bound to a context.
type Call struct {
	Name      string
	Params    *Params
	Content   []tree.Node
	Block     bool
	Title     string
	Ancestors []string
	// Deps accumulates every read performed through the call.
	Deps *deps.Dependencies

	env      Env
	dispatch func(*domain.Message) bool
}

// NewCall binds an invocation to env. Entity-reference parameters are recorded
// as dependencies and query parameters make the call depend on the entire store.
func NewCall(env Env, info Info, src *tree.Macro, params *Params, title string, ancestors []string) *Call {
	c := &Call{
		Name:      info.Name,
		Params:    params,
		Content:   src.Content,
		Block:     src.Block,
		Title:     title,
		Ancestors: ancestors,
		Deps:      deps.New(),
		env:       env,
	}
	if info.DependentAll || params.HasQuery() {
		c.Deps.DependOnAll()
	}
	for _, ref := range params.References() {
		c.Deps.Add(ref)
	}
	return c
}

// SetDispatcher installs the function Dispatch forwards to.
func (c *Call) SetDispatcher(fn func(*domain.Message) bool) {
	c.dispatch = fn
}

// Dispatch raises a message from the macro node towards the root.
func (c *Call) Dispatch(msg *domain.Message) bool {
	if c.dispatch == nil {
		return false
	}
	if msg.Title == "" {
		msg.Title = c.Title
	}
	return c.dispatch(msg)
}

// Entity reads an entity and records the dependency.
func (c *Call) Entity(title string) (*domain.Entity, bool) {
	c.Deps.Add(title)
	return c.env.Store().Get(title)
}

// ContextEntity reads the context entity and records a context-relative dependency.
func (c *Call) ContextEntity() (*domain.Entity, bool) {
	c.Deps.DependOnContext()
	return c.env.Store().Get(c.Title)
}

// Exists reports whether title exists, recording the dependency.
func (c *Call) Exists(title string) bool {
	_, ok := c.Entity(title)
	return ok
}

// Filter evaluates a filter against the store. The call depends on the entire store.
func (c *Call) Filter(f *query.Filter) []string {
	c.Deps.DependOnAll()
	return f.Apply(c.env.Store())
}

// Parse parses ad hoc wikitext.
func (c *Call) Parse(text string) []tree.Node {
	return c.env.Parse(text)
}

// ParseEntity parses an entity's text and records the dependency.
func (c *Call) ParseEntity(title string) ([]tree.Node, bool) {
	c.Deps.Add(title)
	return c.env.ParseEntity(title)
}

// Store gives write access for message handlers. Reads through it are not tracked.
func (c *Call) Store() ports.EntityStore {
	return c.env.Store()
}

func (c *Call) Logger() *slog.Logger {
	return c.env.Logger()
}

// Transclude produces the output of expanding target, optionally through a template
// entity or an inline template text. The template executes with target as context.
func Transclude(c *Call, target, template, templateText string) (*Output, error) {
	if templateText != "" {
		return &Output{Nodes: c.Parse(templateText), Context: target}, nil
	}
	source := target
	if template != "" {
		source = template
	}
	nodes, ok := c.ParseEntity(source)
	if !ok {
		return &Output{Context: target}, nil
	}
	return &Output{Nodes: nodes, Context: target, Source: source}, nil
}
