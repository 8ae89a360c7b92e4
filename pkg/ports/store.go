package ports

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// Subscription is returned by EntityStore.OnChange.
type Subscription interface {
	Unsubscribe()
}

// EntityStore holds immutable entity snapshots keyed by title.
// Mutations apply synchronously; listeners receive them coalesced, once per tick.
type EntityStore interface {
	// Get returns the entity with the given title.
	Get(title string) (*domain.Entity, bool)

	// Put adds or replaces an entity.
	Put(entity *domain.Entity)

	// Delete removes an entity. Deleting a missing title is a no-op.
	Delete(title string)

	// OnChange registers a listener for batched changes.
	OnChange(listener func(domain.ChangeSet)) Subscription

	// AllTitles returns titles in case-insensitive order, optionally filtered.
	AllTitles(predicate func(*domain.Entity) bool) []string
}

// Cacher is implemented by stores that keep per-entity caches evicted on mutation.
type Cacher interface {
	CacheFor(title, name string, init func() any) any
}

// EntityRepository persists entities durably.
type EntityRepository interface {
	// Save persists the entity, replacing any previous version.
	Save(ctx context.Context, entity *domain.Entity) error

	// Load retrieves an entity.
	// Returns domain.ErrEntityNotFound if the title does not exist.
	Load(ctx context.Context, title string) (*domain.Entity, error)

	// Delete removes an entity.
	Delete(ctx context.Context, title string) error

	// List returns every stored title.
	List(ctx context.Context) ([]string, error)
}
