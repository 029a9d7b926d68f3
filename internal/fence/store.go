package fence

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/events"
	"github.com/fraktlabs/fencewatch/internal/logger"
)

// Detacher clears references to a removed fence.
type Detacher interface {
	DetachFence(ctx context.Context, name string)
}

// Store is the local view of the fences. Local state changes only after the
// persistence backend accepted the change.
type Store struct {
	mu     sync.RWMutex
	fences map[string]Fence

	// writeMu orders mutations so a name check and its save are atomic.
	writeMu sync.Mutex

	persistence Persistence
	detacher    Detacher
	publisher   events.Publisher
}

// NewStore creates an empty store. Call Load to populate it.
func NewStore(p Persistence, publisher events.Publisher) *Store {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Store{
		fences:      make(map[string]Fence),
		persistence: p,
		publisher:   publisher,
	}
}

// SetDetacher sets the cascade target for Remove.
func (s *Store) SetDetacher(d Detacher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detacher = d
}

// Load replaces local state with the backend's full mapping.
func (s *Store) Load(ctx context.Context) error {
	all, err := s.persistence.LoadAll(ctx)
	if err != nil {
		return persistenceError(err, "load", "")
	}
	s.replace(all)
	GetLogger().Info("fences loaded", logger.Int("count", len(all)))
	return nil
}

// Create validates f and saves it under its name. It fails with a conflict
// when the name is already taken.
func (s *Store) Create(ctx context.Context, f Fence) error {
	return s.save(ctx, f, false)
}

// Upsert validates f and saves it under its name, replacing any fence with
// the same name.
func (s *Store) Upsert(ctx context.Context, f Fence) error {
	return s.save(ctx, f, true)
}

func (s *Store) save(ctx context.Context, f Fence, overwrite bool) error {
	if err := f.Validate(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !overwrite && s.Exists(f.Name) {
		return errors.New(&ValidationError{Field: "name", Message: "is already taken"}).
			Category(errors.CategoryConflict).
			Context("field", "name").
			Context("fence", f.Name).
			Build()
	}

	all, err := s.persistence.Save(ctx, f.Name, f)
	if err != nil {
		return persistenceError(err, "save", f.Name)
	}
	s.replace(all)

	GetLogger().Info("fence saved",
		logger.String("fence", f.Name),
		logger.String("source_id", f.SourceID))
	return nil
}

// Remove deletes the named fence and clears it from every source. The
// cascade runs even when the name was unknown.
func (s *Store) Remove(ctx context.Context, name string) error {
	s.writeMu.Lock()
	all, err := s.persistence.Remove(ctx, name)
	if err == nil {
		s.replace(all)
	}
	s.writeMu.Unlock()
	if err != nil {
		return persistenceError(err, "remove", name)
	}

	s.mu.RLock()
	d := s.detacher
	s.mu.RUnlock()
	if d != nil {
		d.DetachFence(ctx, name)
	}

	GetLogger().Info("fence removed", logger.String("fence", name))
	return nil
}

// FindByName returns the named fence.
func (s *Store) FindByName(name string) (Fence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fences[name]
	return f, ok
}

// Exists reports whether the named fence is known.
func (s *Store) Exists(name string) bool {
	_, ok := s.FindByName(name)
	return ok
}

// List returns all fences sorted by name.
func (s *Store) List() []Fence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Collect(maps.Values(s.fences))
	slices.SortFunc(out, func(a, b Fence) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (s *Store) replace(all map[string]Fence) {
	next := make(map[string]Fence, len(all))
	for k, f := range all {
		if f.Name == "" {
			f.Name = k
		}
		next[k] = f
	}

	s.mu.Lock()
	s.fences = next
	s.mu.Unlock()

	s.publisher.Publish(events.New(events.TypeFenceListChanged, s.List()))
}

func persistenceError(err error, op, name string) error {
	return errors.New(err).
		Category(errors.CategoryPersistence).
		Context("operation", op).
		Context("fence", name).
		Build()
}
