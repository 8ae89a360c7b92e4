package memory

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/tick"
)

// Store implements ports.EntityStore in memory.
// Mutations apply immediately; listeners are notified once per tick with
// every change made since the previous notification.
// Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	entities  map[string]*domain.Entity
	caches    map[string]map[string]any
	counts    map[string]int
	pending   domain.ChangeSet
	listeners map[int]func(domain.ChangeSet)
	nextID    int

	scheduler tick.Scheduler
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithScheduler sets the tick scheduler notifications are deferred to.
func WithScheduler(s tick.Scheduler) Option {
	return func(st *Store) {
		st.scheduler = s
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(st *Store) {
		st.logger = logger
	}
}

// NewStore creates an empty store. Without WithScheduler notifications are
// queued on a private tick.Queue drained by Flush.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entities:  make(map[string]*domain.Entity),
		caches:    make(map[string]map[string]any),
		counts:    make(map[string]int),
		listeners: make(map[int]func(domain.ChangeSet)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scheduler == nil {
		s.scheduler = tick.NewQueue()
	}
	return s
}

// Flush runs pending notifications when the store owns its tick queue.
func (s *Store) Flush() int {
	if q, ok := s.scheduler.(*tick.Queue); ok {
		return q.Flush()
	}
	return 0
}

func (s *Store) Get(title string) (*domain.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[title]
	return e, ok
}

func (s *Store) Put(entity *domain.Entity) {
	s.mu.Lock()
	title := entity.Title()
	s.entities[title] = entity
	schedule := s.record(title, false)
	s.mu.Unlock()

	if schedule {
		s.scheduler.Defer(s.notify)
	}
}

func (s *Store) Delete(title string) {
	s.mu.Lock()
	if _, ok := s.entities[title]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entities, title)
	schedule := s.record(title, true)
	s.mu.Unlock()

	if schedule {
		s.scheduler.Defer(s.notify)
	}
}

// record evicts caches and notes the change. It reports whether this is the
// first change of a batch. Callers hold the write lock.
func (s *Store) record(title string, deleted bool) bool {
	delete(s.caches, title)
	s.counts[title]++
	first := s.pending == nil
	if first {
		s.pending = make(domain.ChangeSet)
	}
	s.pending.Record(title, deleted)
	return first
}

func (s *Store) notify() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	ids := slices.Sorted(maps.Keys(s.listeners))
	listeners := make([]func(domain.ChangeSet), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	s.logger.Debug("store changes", "titles", batch.Titles(), "listeners", len(listeners))
	for _, listener := range listeners {
		listener(maps.Clone(batch))
	}
}

type subscription struct {
	once  sync.Once
	store *Store
	id    int
}

func (sub *subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.store.mu.Lock()
		defer sub.store.mu.Unlock()
		delete(sub.store.listeners, sub.id)
	})
}

func (s *Store) OnChange(listener func(domain.ChangeSet)) ports.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.listeners[s.nextID] = listener
	return &subscription{store: s, id: s.nextID}
}

func (s *Store) AllTitles(predicate func(*domain.Entity) bool) []string {
	s.mu.RLock()
	titles := make([]string, 0, len(s.entities))
	for title, e := range s.entities {
		if predicate == nil || predicate(e) {
			titles = append(titles, title)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(titles, domain.CompareTitles)
	return titles
}

// CacheFor returns the value cached under name for title, computing it with init
// on first use. Caches are dropped whenever the entity changes.
func (s *Store) CacheFor(title, name string, init func() any) any {
	s.mu.RLock()
	v, ok := s.caches[title][name]
	s.mu.RUnlock()
	if ok {
		return v
	}

	v = init()
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.caches[title][name]; ok {
		return existing
	}
	if s.caches[title] == nil {
		s.caches[title] = make(map[string]any)
	}
	s.caches[title][name] = v
	return v
}

// ChangeCount returns how many times title has been put or deleted.
func (s *Store) ChangeCount(title string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[title]
}

// Len returns the number of entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}
