package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "tendril:entity:"

// Repository implements ports.EntityRepository using Redis.
// Each entity is stored as a JSON string; a sorted set indexes the titles.
type Repository struct {
	client  *backend.Client
	prefix  string
	locker  *Locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithPrefix sets the key prefix for entities and the title index.
func WithPrefix(prefix string) Option {
	return func(r *Repository) {
		r.prefix = prefix
	}
}

// WithLocking makes Save and Delete hold a per-title lock for at most ttl, so
// concurrent writers sharing one Redis do not interleave their pipelines.
func WithLocking(ttl time.Duration) Option {
	return func(r *Repository) {
		r.lockTTL = ttl
	}
}

// WithLogger sets the repository's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// New creates a repository connected to address.
func New(address, password string, db int, opts ...Option) *Repository {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a repository from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Repository {
	r := &Repository{
		client: client,
		prefix: DefaultPrefix,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.lockTTL > 0 {
		r.locker = NewLocker(client, r.prefix)
	}
	return r
}

func (r *Repository) key(title string) string {
	return r.prefix + title
}

func (r *Repository) indexKey() string {
	return r.prefix + "index"
}

// Save persists the entity.
func (r *Repository) Save(ctx context.Context, entity *domain.Entity) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	title := entity.Title()

	return r.guard(ctx, title, func() error {
		pipe := r.client.TxPipeline()
		pipe.Set(ctx, r.key(title), data, 0)
		// Equal scores keep the index in lexical member order.
		pipe.ZAdd(ctx, r.indexKey(), backend.Z{Score: 0, Member: title})
		if _, err := pipe.Exec(ctx); err != nil {
			r.logger.Error("redis save failed", "title", title, "error", err)
			return fmt.Errorf("failed to save %q to redis: %w", title, err)
		}
		return nil
	})
}

// Load retrieves an entity.
func (r *Repository) Load(ctx context.Context, title string) (*domain.Entity, error) {
	val, err := r.client.Get(ctx, r.key(title)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("load %q: %w", title, domain.ErrEntityNotFound)
		}
		return nil, fmt.Errorf("failed to get %q from redis: %w", title, err)
	}

	var entity domain.Entity
	if err := json.Unmarshal(val, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %q: %w", title, err)
	}
	return &entity, nil
}

// Delete removes an entity. Deleting a missing title is not an error.
func (r *Repository) Delete(ctx context.Context, title string) error {
	return r.guard(ctx, title, func() error {
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, r.key(title))
		pipe.ZRem(ctx, r.indexKey(), title)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete %q from redis: %w", title, err)
		}
		return nil
	})
}

// List returns every stored title in lexical order.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	titles, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return titles, nil
}

// Close closes the redis client.
func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) guard(ctx context.Context, title string, fn func() error) error {
	if r.locker == nil {
		return fn()
	}
	unlock, err := r.locker.Lock(ctx, title, r.lockTTL)
	if err != nil {
		return fmt.Errorf("lock %q: %w", title, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			r.logger.Error("redis unlock failed", "title", title, "error", err)
		}
	}()
	return fn()
}
