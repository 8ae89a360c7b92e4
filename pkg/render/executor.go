package render

import (
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/macro"
	"github.com/aretw0/tendril/pkg/parser"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/tree"
)

const parseCacheName = "parse-tree"

// Executor binds parse trees to a store and a macro registry.
type Executor struct {
	store  ports.EntityStore
	macros *macro.Registry
	parser *parser.Parser
	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithHooks registers lifecycle hooks for execution and reconciliation events.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = hooks
	}
}

// NewExecutor creates an executor.
func NewExecutor(store ports.EntityStore, macros *macro.Registry, p *parser.Parser, opts ...Option) *Executor {
	e := &Executor{
		store:  store,
		macros: macros,
		parser: p,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Store() ports.EntityStore { return e.store }
func (e *Executor) Logger() *slog.Logger     { return e.logger }

// Parse parses ad hoc wikitext.
func (e *Executor) Parse(text string) []tree.Node {
	return e.parser.Parse(text).Nodes
}

// ParseEntity parses an entity's text according to its type. Wikitext parse
// trees are cached with the entity when the store supports caching.
func (e *Executor) ParseEntity(title string) ([]tree.Node, bool) {
	entity, ok := e.store.Get(title)
	if !ok {
		return nil, false
	}
	parse := func() any {
		if entity.Type() == domain.TypePlain {
			return &tree.ParseTree{
				Nodes:  []tree.Node{&tree.Element{Tag: "pre", Block: true, Children: []tree.Node{tree.NewText(entity.Text())}}},
				Source: title,
			}
		}
		pt := e.parser.Parse(entity.Text())
		pt.Source = title
		return pt
	}
	if cacher, ok := e.store.(ports.Cacher); ok {
		return cacher.CacheFor(title, parseCacheName, parse).(*tree.ParseTree).Nodes, true
	}
	return parse().(*tree.ParseTree).Nodes, true
}

// Execute binds pt to contextTitle. If contextTitle is already among ancestors the
// tree consists of a single error marker.
func (e *Executor) Execute(pt *tree.ParseTree, ancestors []string, contextTitle string) *Tree {
	t := &Tree{exec: e, title: contextTitle}
	if slices.Contains(ancestors, contextTitle) {
		n := &Node{Kind: KindMacro, Name: "", ctx: scope{title: contextTitle, chain: ancestors}}
		e.fail(n, &domain.RecursionError{Title: contextTitle, Chain: ancestors})
		t.Roots = []*Node{n}
		return t
	}
	sc := scope{title: contextTitle, chain: append(slices.Clone(ancestors), contextTitle)}
	for _, src := range pt.Nodes {
		t.Roots = append(t.Roots, e.executeNode(src, sc, nil))
	}
	return t
}

// rootMacro expands an entity at the top of a mounted tree.
var rootMacro = &macro.Macro{
	Info: macro.Info{
		Name:   "$root",
		Params: []macro.ParamSpec{{Name: "target", Mode: macro.ByName, Type: macro.TypeEntityRef, Required: true}},
	},
	Execute: func(c *macro.Call) (*macro.Output, error) {
		return macro.Transclude(c, c.Params.Get("target"), "", "")
	},
}

// ExecuteEntity executes the text of title with title as context. The root of the
// tree is a transclusion, so changes to the entity itself rebuild it.
func (e *Executor) ExecuteEntity(title string) *Tree {
	src := &tree.Macro{Name: rootMacro.Name, Preset: map[string]string{"target": title}, Block: true}
	n := &Node{Kind: KindMacro, Name: src.Name, source: src, ctx: scope{title: title}}
	e.run(n, rootMacro)
	return &Tree{exec: e, title: title, Roots: []*Node{n}}
}

func (e *Executor) executeNode(src tree.Node, sc scope, parent *Node) *Node {
	var n *Node
	switch v := src.(type) {
	case *tree.Text:
		n = &Node{Kind: KindText, Text: v.Text, ctx: sc, parent: parent}
	case *tree.Element:
		n = &Node{Kind: KindElement, Tag: v.Tag, Attributes: maps.Clone(v.Attributes), Block: v.Block, ctx: sc, parent: parent}
		for _, child := range v.Children {
			n.Children = append(n.Children, e.executeNode(child, sc, n))
		}
	case *tree.Macro:
		n = e.executeMacro(v, sc, parent)
		return n
	default:
		n = &Node{Kind: KindText, ctx: sc, parent: parent}
	}
	n.State = StateExecuted
	n.recompute()
	return n
}

func (e *Executor) executeMacro(src *tree.Macro, sc scope, parent *Node) *Node {
	n := &Node{Kind: KindMacro, Name: src.Name, source: src, ctx: sc, parent: parent}
	m, ok := e.macros.Lookup(src.Name)
	if !ok {
		e.fail(n, &domain.UnknownMacroError{Name: src.Name})
		e.emitExecute(n, time.Now())
		return n
	}
	e.run(n, m)
	return n
}

// evaluation is a bound and executed macro call whose output has not been expanded yet.
type evaluation struct {
	call  *macro.Call
	out   *macro.Output
	scope scope
	err   error
	start time.Time
}

// run binds and executes macro m into n, replacing n's children.
func (e *Executor) run(n *Node, m *macro.Macro) {
	e.expand(n, e.evaluate(n, m))
}

func (e *Executor) evaluate(n *Node, m *macro.Macro) evaluation {
	ev := evaluation{start: time.Now()}
	n.macro = m
	params, err := macro.Bind(m.Info, n.source.Args, n.source.Preset)
	if err != nil {
		ev.err = err
		return ev
	}
	ev.call = e.newCall(n, m, params)
	ev.out, ev.err = m.Execute(ev.call)
	if ev.err != nil {
		return ev
	}
	ev.scope, ev.err = e.childScope(n.ctx, ev.out)
	return ev
}

// expand executes the output of ev as n's children.
func (e *Executor) expand(n *Node, ev evaluation) {
	n.Err = nil
	n.call, n.own = ev.call, nil
	if ev.call != nil {
		n.own = ev.call.Deps
	}
	switch {
	case ev.err != nil:
		e.fail(n, ev.err)
	case ev.out.Collection != nil:
		n.output = ev.out
		n.frameCtx = ev.scope
		n.Children = []*Node{e.executeFrame(ev.out.Collection, ev.scope, n)}
	default:
		n.output = ev.out
		n.Children = []*Node{e.executeNode(wrap(ev.out.Nodes, n.source.Block), ev.scope, n)}
	}
	n.State = StateExecuted
	n.recompute()
	e.emitExecute(n, ev.start)
}

func (e *Executor) newCall(n *Node, m *macro.Macro, params *macro.Params) *macro.Call {
	call := macro.NewCall(e, m.Info, n.source, params, n.ctx.title, n.ctx.chain)
	call.SetDispatcher(func(msg *domain.Message) bool {
		return bubble(n.parent, msg)
	})
	return call
}

// childScope derives the scope macro output executes with, enforcing the cycle guard.
func (e *Executor) childScope(sc scope, out *macro.Output) (scope, error) {
	child := sc
	if out.Context != "" {
		child.title = out.Context
	}
	if out.Source != "" {
		if slices.Contains(sc.chain, out.Source) {
			return scope{}, &domain.RecursionError{Title: out.Source, Chain: sc.chain}
		}
		child.chain = append(slices.Clone(sc.chain), out.Source)
	}
	return child, nil
}

func (e *Executor) executeFrame(c *macro.Collection, sc scope, owner *Node) *Node {
	tag := c.Tag
	if tag == "" {
		tag = "div"
	}
	frame := &Node{Kind: KindElement, Tag: tag, Attributes: maps.Clone(c.Attributes), Block: true, ctx: sc, parent: owner}
	for _, item := range c.Items {
		frame.Children = append(frame.Children, e.executeItem(item, sc, frame))
	}
	frame.State = StateExecuted
	frame.recompute()
	return frame
}

func (e *Executor) executeItem(item macro.Item, sc scope, frame *Node) *Node {
	n := e.executeNode(item.Node, sc, frame)
	n.Key = item.Key
	return n
}

// fail replaces a macro node's output with an error marker.
func (e *Executor) fail(n *Node, err error) {
	n.Err = err
	n.output = nil
	e.logger.Debug("macro failed", "macro", n.Name, "title", n.ctx.title, "error", err)
	marker := &Node{
		Kind:       KindElement,
		Tag:        "span",
		Attributes: map[string]string{"class": ErrorClass},
		ctx:        n.ctx,
		parent:     n,
		State:      StateExecuted,
	}
	marker.Children = []*Node{{Kind: KindText, Text: err.Error(), ctx: n.ctx, parent: marker, State: StateExecuted}}
	for _, c := range marker.Children {
		c.recompute()
	}
	marker.recompute()
	n.Children = []*Node{marker}
	n.State = StateExecuted
	n.recompute()
}

func (e *Executor) emitExecute(n *Node, start time.Time) {
	if e.hooks.OnExecute != nil {
		e.hooks.OnExecute(&domain.ExecuteEvent{Title: n.ctx.title, Macro: n.Name, Duration: time.Since(start), Err: n.Err})
	}
}

// wrap gives macro output a single root node.
func wrap(nodes []tree.Node, block bool) tree.Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	tag := "span"
	if block {
		tag = "div"
	}
	return &tree.Element{Tag: tag, Children: nodes, Block: block}
}
