// Package loam stores entities as markdown files with YAML frontmatter.
// The entity text is the document body; every other field is frontmatter.
package loam

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
)

const ext = ".md"

// WatchPattern selects the files Watch reports.
const WatchPattern = "**/*.md"

// Repository implements ports.EntityRepository on a loam directory.
type Repository struct {
	dir    string
	repo   core.Repository
	typed  *loam.TypedRepository[map[string]any]
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the repository's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// Open initializes a loam repository in dir.
func Open(dir string, opts ...Option) (*Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(abs, loam.WithVersioning(false), loam.WithForceTemp(false))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	r := &Repository{
		dir:    abs,
		repo:   repo,
		typed:  loam.NewTypedRepository[map[string]any](repo),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Dir returns the directory holding the entity files.
func (r *Repository) Dir() string { return r.dir }

// docID maps a title to a document ID. Titles may contain path separators,
// so they are escaped into a single file name.
func docID(title string) string {
	return url.PathEscape(title)
}

func titleFromID(id string) string {
	id = filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
	if title, err := url.PathUnescape(id); err == nil {
		return title
	}
	return id
}

// Save writes the entity file.
func (r *Repository) Save(ctx context.Context, entity *domain.Entity) error {
	doc := core.Document{
		ID:       docID(entity.Title()) + ext,
		Content:  entity.Text(),
		Metadata: core.Metadata(frontmatter(entity)),
	}
	if err := r.repo.Save(ctx, doc); err != nil {
		r.logger.Error("loam save failed", "title", entity.Title(), "error", err)
		return fmt.Errorf("loam save %q: %w", entity.Title(), err)
	}
	return nil
}

// Load reads an entity file.
func (r *Repository) Load(ctx context.Context, title string) (*domain.Entity, error) {
	if !r.exists(title) {
		return nil, fmt.Errorf("load %q: %w", title, domain.ErrEntityNotFound)
	}
	doc, err := r.typed.Get(ctx, docID(title))
	if err != nil {
		return nil, fmt.Errorf("loam get %q: %w", title, err)
	}
	meta, err := decodeMetadata(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", title, err)
	}
	return meta.entity(title, doc.Content)
}

// Delete removes the entity file. Deleting a missing title is not an error.
func (r *Repository) Delete(_ context.Context, title string) error {
	err := os.Remove(r.path(title))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", title, err)
	}
	return nil
}

// List returns the titles of every entity file.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	docs, err := r.typed.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	titles := make([]string, 0, len(docs))
	for _, doc := range docs {
		title := titleFromID(doc.ID)
		if t, ok := doc.Data[domain.FieldTitle].(string); ok && t != "" {
			title = t
		}
		if other, ok := seen[title]; ok {
			return nil, fmt.Errorf("collision detected: title %q is defined in both %q and %q", title, other, doc.ID)
		}
		seen[title] = doc.ID
		titles = append(titles, title)
	}
	return titles, nil
}

// Watch reports entity files changed on disk until ctx is done, one
// single-title batch per event. A title whose file disappeared is recorded as deleted.
func (r *Repository) Watch(ctx context.Context) (<-chan domain.ChangeSet, error) {
	events, err := r.typed.Watch(ctx, WatchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan domain.ChangeSet, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				title := titleFromID(evt.ID)
				deleted := !r.exists(title)
				r.logger.Debug("entity file changed", "title", title, "deleted", deleted)
				change := domain.ChangeSet{}
				change.Record(title, deleted)
				select {
				case ch <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func (r *Repository) path(title string) string {
	return filepath.Join(r.dir, docID(title)+ext)
}

func (r *Repository) exists(title string) bool {
	_, err := os.Stat(r.path(title))
	return err == nil
}
