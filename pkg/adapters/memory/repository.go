package memory

import (
	"context"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

// Repository implements ports.EntityRepository in memory.
// Safe for concurrent use.
type Repository struct {
	data map[string]*domain.Entity
	mu   sync.RWMutex
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		data: make(map[string]*domain.Entity),
	}
}

// Save stores the entity. Entities are immutable, so no copy is needed.
func (r *Repository) Save(ctx context.Context, entity *domain.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[entity.Title()] = entity
	return nil
}

func (r *Repository) Load(ctx context.Context, title string) (*domain.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.data[title]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	return e, nil
}

func (r *Repository) Delete(ctx context.Context, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, title)
	return nil
}

func (r *Repository) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	titles := make([]string, 0, len(r.data))
	for title := range r.data {
		titles = append(titles, title)
	}
	return titles, nil
}
