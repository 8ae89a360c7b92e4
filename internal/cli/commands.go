package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/tendril/internal/presentation/graph"
	"github.com/aretw0/tendril/internal/presentation/tui"
	httpAdapter "github.com/aretw0/tendril/pkg/adapters/http"
	"github.com/aretw0/tendril/pkg/adapters/mcp"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/deps"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/render"
)

// FormatNames maps the short names accepted by --format to output formats.
var FormatNames = map[string]string{
	"html":     render.FormatHTML,
	"text":     render.FormatPlain,
	"plain":    render.FormatPlain,
	"markdown": render.FormatMarkdown,
	"md":       render.FormatMarkdown,
}

// ResolveFormat accepts a short name or a MIME type.
func ResolveFormat(name string) string {
	if format, ok := FormatNames[name]; ok {
		return format
	}
	return name
}

// RunRender writes the rendering of title. Markdown is styled with glamour
// when pretty is set.
func RunRender(env *Env, title, format string, w io.Writer, pretty bool, width int) error {
	if title == "" {
		title = env.Config.DefaultTitle
	}
	if format == "" {
		format = env.Config.Format
	}
	format = ResolveFormat(format)
	out, err := env.Wiki.RenderEntity(title, format)
	if err != nil {
		return err
	}
	if format == render.FormatMarkdown {
		return tui.WriteMarkdown(w, out, pretty, width)
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

type recentLister interface {
	RecentlyModified(ctx context.Context, limit int) ([]string, error)
}

// RunList writes every title, or with recent > 0 the most recently modified ones.
func RunList(ctx context.Context, env *Env, recent int, w io.Writer) error {
	titles := env.Wiki.Titles()
	if recent > 0 {
		repo, ok := env.Repo.(recentLister)
		if !ok {
			return fmt.Errorf("--recent needs the sqlite store, not %q", env.Config.Store.Kind)
		}
		var err error
		if titles, err = repo.RecentlyModified(ctx, recent); err != nil {
			return err
		}
	}
	for _, title := range titles {
		fmt.Fprintln(w, title)
	}
	return nil
}

// RunGraph writes a Mermaid graph of what the rendering of each title depends
// on. With title set only that entity is graphed and highlighted.
func RunGraph(env *Env, title string, w io.Writer) error {
	titles := env.Wiki.Titles()
	var overlay *graph.GraphOverlay
	if title != "" {
		if _, ok := env.Wiki.Get(title); !ok {
			return fmt.Errorf("graph %q: %w", title, domain.ErrEntityNotFound)
		}
		titles = []string{title}
		overlay = &graph.GraphOverlay{Current: title}
	}
	dependencies := make(map[string]*deps.Dependencies, len(titles))
	for _, t := range titles {
		dependencies[t] = env.Wiki.Dependencies(t)
	}
	exists := func(t string) bool {
		_, ok := env.Wiki.Get(t)
		return ok
	}
	_, err := io.WriteString(w, graph.GenerateMermaid(graph.Build(dependencies, exists), overlay))
	return err
}

type watcher interface {
	Watch(ctx context.Context) (<-chan domain.ChangeSet, error)
}

// RunWatch mounts title into a recording sink and applies every change made to
// the store on disk until ctx is done, printing what each reconciliation did.
func RunWatch(ctx context.Context, env *Env, title string, w io.Writer, colour bool) error {
	repo, ok := env.Repo.(watcher)
	if !ok {
		return fmt.Errorf("watch needs the loam store, not %q", env.Config.Store.Kind)
	}
	if title == "" {
		title = env.Config.DefaultTitle
	}
	changes, err := repo.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	sink := memory.NewSink()
	m := env.Wiki.Mount(title, sink, nil)
	defer m.Unmount()
	printSystemMessage(w, "Watching '%s' (%d ops realized).", title, len(sink.Ops()))

	sub := env.Wiki.OnChange(func(cs domain.ChangeSet) {
		fmt.Fprintln(w, tui.FormatStats(title, m.LastStats(), colour))
	})
	defer sub.Unsubscribe()

	env.Logger.Info("watching", "store", env.Config.Store.Kind, "title", title)
	if err := env.Wiki.Sync(ctx, changes); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// RunServe serves the wiki over HTTP on addr until ctx is done, writing
// changes through to the repository.
func RunServe(ctx context.Context, env *Env, addr string) error {
	persist, err := env.Wiki.Persist(ctx)
	if err != nil {
		return err
	}
	defer persist.Unsubscribe()

	handler, sub := httpAdapter.NewHandler(env.Wiki,
		httpAdapter.WithLogger(env.Logger),
		httpAdapter.WithMetrics(env.Registry),
	)
	defer sub.Unsubscribe()

	srv := &http.Server{Addr: addr, Handler: handler}
	serverErrors := make(chan error, 1)
	go func() {
		env.Logger.Info("HTTP server listening", "address", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

// RunMCP serves the wiki as an MCP server over transport ("stdio" or "sse").
func RunMCP(ctx context.Context, env *Env, transport string, port int) error {
	persist, err := env.Wiki.Persist(ctx)
	if err != nil {
		return err
	}
	defer persist.Unsubscribe()

	srv := mcp.NewServer(env.Wiki, mcp.WithLogger(env.Logger))
	switch transport {
	case "stdio":
		return srv.ServeStdio()
	case "sse":
		if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
	}
}
