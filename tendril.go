package tendril

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/deps"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/grammar"
	"github.com/aretw0/tendril/pkg/macro"
	"github.com/aretw0/tendril/pkg/parser"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/render"
	"github.com/aretw0/tendril/pkg/tree"
	"github.com/aretw0/tendril/pkg/wikitext"
)

// Version is the library version reported by the CLI.
const Version = "0.1.0"

type extraRule struct {
	class grammar.Class
	rule  grammar.Rule
}

// Wiki bundles a store, the default grammar and macro set, and an executor.
// Mutations and reconciliation are serialized: listeners run on the goroutine
// that calls Tick.
type Wiki struct {
	mu sync.Mutex

	store    *memory.Store
	repo     ports.EntityRepository
	grammar  *grammar.Grammar
	macros   *macro.Registry
	parser   *parser.Parser
	executor *render.Executor

	// external holds titles applied by Sync that Persist must not write back.
	externalMu sync.Mutex
	external   map[string]struct{}

	disabled []string
	rules    []extraRule
	extra    []macro.Macro
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// Option defines a functional option for configuring the Wiki.
type Option func(*Wiki)

// WithLogger sets a structured logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wiki) {
		w.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(w *Wiki) {
		w.hooks = w.hooks.Merge(hooks)
	}
}

// WithRepository sets the durable backend used by Load and Persist.
func WithRepository(repo ports.EntityRepository) Option {
	return func(w *Wiki) {
		w.repo = repo
	}
}

// WithDisabledRules leaves the named grammar rules out.
func WithDisabledRules(names ...string) Option {
	return func(w *Wiki) {
		w.disabled = append(w.disabled, names...)
	}
}

// WithRule registers an extra grammar rule after the default ones.
func WithRule(class grammar.Class, rule grammar.Rule) Option {
	return func(w *Wiki) {
		w.rules = append(w.rules, extraRule{class: class, rule: rule})
	}
}

// WithMacro registers an extra macro.
func WithMacro(m macro.Macro) Option {
	return func(w *Wiki) {
		w.extra = append(w.extra, m)
	}
}

// New builds a wiki. Grammar or macro registration conflicts are returned as
// *domain.ConfigError.
func New(opts ...Option) (*Wiki, error) {
	w := &Wiki{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(w)
	}

	rules := grammar.NewRegistry()
	if err := wikitext.RegisterRules(rules); err != nil {
		return nil, err
	}
	for _, r := range w.rules {
		if err := rules.Register(r.class, r.rule); err != nil {
			return nil, err
		}
	}
	g, err := rules.Build(grammar.WithDisabled(w.disabled...))
	if err != nil {
		return nil, err
	}

	w.macros = macro.NewRegistry()
	if err := wikitext.RegisterMacros(w.macros); err != nil {
		return nil, err
	}
	for _, m := range w.extra {
		if err := w.macros.Register(m); err != nil {
			return nil, err
		}
	}

	w.grammar = g
	w.store = memory.NewStore(memory.WithLogger(w.logger))
	w.parser = parser.New(g, parser.WithLogger(w.logger), parser.WithHooks(w.hooks))
	w.executor = render.NewExecutor(w.store, w.macros, w.parser,
		render.WithLogger(w.logger),
		render.WithHooks(w.hooks),
	)
	return w, nil
}

// Store returns the wiki's entity store.
func (w *Wiki) Store() *memory.Store { return w.store }

// Macros returns the macro registry.
func (w *Wiki) Macros() *macro.Registry { return w.macros }

// Grammar returns the built grammar.
func (w *Wiki) Grammar() *grammar.Grammar { return w.grammar }

// Repository returns the durable backend, or nil.
func (w *Wiki) Repository() ports.EntityRepository { return w.repo }

// Put stores an entity. Listeners see it on the next Tick.
func (w *Wiki) Put(e *domain.Entity) { w.store.Put(e) }

// Delete removes an entity. Listeners see it on the next Tick.
func (w *Wiki) Delete(title string) { w.store.Delete(title) }

// Get returns an entity.
func (w *Wiki) Get(title string) (*domain.Entity, bool) { return w.store.Get(title) }

// Titles returns every title in case-insensitive order.
func (w *Wiki) Titles() []string { return w.store.AllTitles(nil) }

// OnChange registers a listener for every delivered batch of changes.
func (w *Wiki) OnChange(listener func(domain.ChangeSet)) ports.Subscription {
	return w.store.OnChange(listener)
}

// Tick delivers pending change notifications, running any reconciliation they trigger.
func (w *Wiki) Tick() int { return w.store.Flush() }

// Parse parses wikitext with the wiki's grammar.
func (w *Wiki) Parse(text string) *tree.ParseTree { return w.parser.Parse(text) }

// RenderEntity renders the text of title in a static format.
func (w *Wiki) RenderEntity(title, format string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.store.Get(title); !ok {
		return "", fmt.Errorf("render %q: %w", title, domain.ErrEntityNotFound)
	}
	return w.executor.ExecuteEntity(title).Render(format)
}

// RenderText renders ad hoc wikitext with contextTitle as its context.
func (w *Wiki) RenderText(text, contextTitle, format string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.executor.Execute(w.parser.Parse(text), nil, contextTitle).Render(format)
}

// Dependencies executes title and returns what its rendering depends on.
func (w *Wiki) Dependencies(title string) *deps.Dependencies {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.executor.ExecuteEntity(title).Dependencies()
}

// Mount is a realized entity kept current by reconciliation.
type Mount struct {
	wiki  *Wiki
	tree  *render.Tree
	sub   ports.Subscription
	stats render.Stats
	last  render.Stats
}

// Mount executes title, realizes it under parent in sink and keeps it
// reconciled with every subsequent batch of changes.
func (w *Wiki) Mount(title string, sink ports.OutputSink, parent ports.Handle) *Mount {
	w.mu.Lock()
	defer w.mu.Unlock()

	m := &Mount{wiki: w, tree: w.executor.ExecuteEntity(title)}
	m.tree.Realize(sink, parent)
	m.sub = w.store.OnChange(func(cs domain.ChangeSet) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if !m.tree.Realized() {
			return
		}
		m.last = m.tree.Reconcile(cs)
		m.stats.Add(m.last)
		w.logger.Debug("reconciled", "title", title, "changes", len(cs),
			"reused", m.last.Reused, "refreshed", m.last.Refreshed, "rebuilt", m.last.Rebuilt,
			"inserted", m.last.Inserted, "removed", m.last.Removed)
	})
	return m
}

// Tree returns the mounted render tree.
func (m *Mount) Tree() *render.Tree { return m.tree }

// Stats returns the accumulated reconciliation counts.
func (m *Mount) Stats() render.Stats {
	m.wiki.mu.Lock()
	defer m.wiki.mu.Unlock()
	return m.stats
}

// LastStats returns the counts of the most recent reconciliation.
func (m *Mount) LastStats() render.Stats {
	m.wiki.mu.Lock()
	defer m.wiki.mu.Unlock()
	return m.last
}

// Dispatch sends msg from the node realized as h towards the root, then
// delivers the changes the handlers made. It reports whether a handler consumed it.
func (m *Mount) Dispatch(h ports.Handle, msg *domain.Message) bool {
	m.wiki.mu.Lock()
	handled := m.tree.Dispatch(h, msg)
	m.wiki.mu.Unlock()
	m.wiki.Tick()
	return handled
}

// Unmount stops reconciliation and detaches the tree.
func (m *Mount) Unmount() {
	m.sub.Unsubscribe()
	m.wiki.mu.Lock()
	defer m.wiki.mu.Unlock()
	m.tree.Detach()
}

// ErrNoRepository is returned by Load and Persist when no repository is configured.
var ErrNoRepository = errors.New("no repository configured")

// Load reads every entity from the repository into the store and delivers the
// resulting changes. It returns how many entities were loaded.
func (w *Wiki) Load(ctx context.Context) (int, error) {
	if w.repo == nil {
		return 0, ErrNoRepository
	}
	titles, err := w.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list repository: %w", err)
	}
	for _, title := range titles {
		e, err := w.repo.Load(ctx, title)
		if err != nil {
			return 0, fmt.Errorf("load %q: %w", title, err)
		}
		w.store.Put(e)
	}
	w.Tick()
	w.logger.Info("wiki loaded", "entities", len(titles))
	return len(titles), nil
}

// Persist writes every subsequent batch of store changes through to the
// repository until the returned subscription is cancelled.
func (w *Wiki) Persist(ctx context.Context) (ports.Subscription, error) {
	if w.repo == nil {
		return nil, ErrNoRepository
	}
	return w.store.OnChange(func(cs domain.ChangeSet) {
		for _, title := range cs.Titles() {
			if w.takeExternal(title) {
				continue
			}
			var err error
			if cs[title].Deleted {
				err = w.repo.Delete(ctx, title)
			} else if e, ok := w.store.Get(title); ok {
				err = w.repo.Save(ctx, e)
			}
			if err != nil {
				w.logger.Error("persist failed", "title", title, "error", err)
			}
		}
	}), nil
}

// Sync applies batches of changes made to the repository behind the wiki's
// back (for example files edited on disk) until changes is closed or ctx is done.
func (w *Wiki) Sync(ctx context.Context, changes <-chan domain.ChangeSet) error {
	if w.repo == nil {
		return ErrNoRepository
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cs, ok := <-changes:
			if !ok {
				return nil
			}
			for _, title := range cs.Titles() {
				w.syncTitle(ctx, title, cs[title].Deleted)
			}
			w.Tick()
		}
	}
}

func (w *Wiki) syncTitle(ctx context.Context, title string, deleted bool) {
	if !deleted {
		e, err := w.repo.Load(ctx, title)
		switch {
		case err == nil:
			w.markExternal(title)
			w.store.Put(e)
			return
		case !errors.Is(err, domain.ErrEntityNotFound):
			w.logger.Error("sync failed", "title", title, "error", err)
			return
		}
	}
	if _, ok := w.store.Get(title); ok {
		w.markExternal(title)
		w.store.Delete(title)
	}
}

func (w *Wiki) markExternal(title string) {
	w.externalMu.Lock()
	defer w.externalMu.Unlock()
	if w.external == nil {
		w.external = make(map[string]struct{})
	}
	w.external[title] = struct{}{}
}

func (w *Wiki) takeExternal(title string) bool {
	w.externalMu.Lock()
	defer w.externalMu.Unlock()
	_, ok := w.external[title]
	delete(w.external, title)
	return ok
}
