package source

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/events"
	"github.com/fraktlabs/fencewatch/internal/logger"
	"github.com/fraktlabs/fencewatch/internal/snapshot"
)

// FenceChecker reports whether a fence exists. The registry uses it to
// reject references to unknown fences.
type FenceChecker func(name string) bool

// Registry owns the ordered source list. All methods are safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources []Source

	store     snapshot.Store
	publisher events.Publisher
	fenceOK   FenceChecker
}

// Option configures a Registry.
type Option func(*Registry)

// WithPublisher sets the event publisher for registry-changed events.
func WithPublisher(p events.Publisher) Option {
	return func(r *Registry) { r.publisher = p }
}

// WithFenceChecker enables fence reference validation on Update.
func WithFenceChecker(fn FenceChecker) Option {
	return func(r *Registry) { r.fenceOK = fn }
}

// NewRegistry creates an empty registry that mirrors to store.
func NewRegistry(store snapshot.Store, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		publisher: events.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore loads the snapshot. A missing or unreadable snapshot leaves the
// registry empty and is not an error.
func (r *Registry) Restore(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok, err := r.store.Get(ctx, SnapshotKey)
	if err != nil || !ok {
		GetLogger().Debug("no session snapshot, starting empty",
			logger.Bool("found", ok),
			logger.Error(err))
		r.sources = nil
		return
	}

	var sources []Source
	if err := json.Unmarshal(data, &sources); err != nil {
		GetLogger().Debug("session snapshot unreadable, starting empty", logger.Error(err))
		r.sources = nil
		return
	}
	r.sources = sources
	GetLogger().Info("restored sources", logger.Int("count", len(sources)))
}

// Add appends src. Its flags are taken as given.
func (r *Registry) Add(ctx context.Context, src Source) error {
	if src.ID == "" {
		return errors.Newf("source id is required").
			Category(errors.CategoryValidation).
			Context("field", "id").
			Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(src.ID) >= 0 {
		return errors.New(ErrDuplicateSource).
			Category(errors.CategoryConflict).
			Context("source_id", src.ID).
			Build()
	}
	if err := r.checkFenceLocked(src.FenceName); err != nil {
		return err
	}

	r.sources = append(r.sources, src)
	r.commitLocked(ctx)
	return nil
}

// Update merges patch into the source with id.
func (r *Registry) Update(ctx context.Context, id string, patch Patch) (Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return Source{}, notFound(id)
	}
	if patch.FenceName != nil {
		if err := r.checkFenceLocked(*patch.FenceName); err != nil {
			return Source{}, err
		}
	}

	patch.apply(&r.sources[i])
	updated := r.sources[i]
	r.commitLocked(ctx)
	return updated, nil
}

// Remove deletes the source with id. Removing an unknown id does nothing.
func (r *Registry) Remove(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return
	}
	r.sources = slices.Delete(r.sources, i, i+1)
	r.commitLocked(ctx)
}

// Get returns a copy of the source with id.
func (r *Registry) Get(id string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexLocked(id)
	if i < 0 {
		return Source{}, notFound(id)
	}
	return r.sources[i], nil
}

// List returns copies of the sources matching every filter, in insertion order.
func (r *Registry) List(filters ...Filter) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		if matches(s, filters) {
			out = append(out, s)
		}
	}
	return out
}

// DetachFence clears the fence reference on every source using name.
func (r *Registry) DetachFence(ctx context.Context, name string) {
	r.detach(ctx, func(s *Source) bool {
		if s.FenceName != name {
			return false
		}
		s.FenceName = ""
		return true
	})
}

// DetachAlert clears the alert reference on every source using name.
func (r *Registry) DetachAlert(ctx context.Context, name string) {
	r.detach(ctx, func(s *Source) bool {
		if s.AlertName != name {
			return false
		}
		s.AlertName = ""
		return true
	})
}

func (r *Registry) detach(ctx context.Context, reset func(*Source) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for i := range r.sources {
		if reset(&r.sources[i]) {
			changed = true
		}
	}
	if changed {
		r.commitLocked(ctx)
	}
}

// commitLocked writes the snapshot and emits registry-changed. A failed
// snapshot write is logged; the in-memory change stands.
func (r *Registry) commitLocked(ctx context.Context) {
	data, err := json.Marshal(r.sources)
	if err == nil {
		err = r.store.Put(ctx, SnapshotKey, data)
	}
	if err != nil {
		GetLogger().Warn("failed to write session snapshot", logger.Error(err))
	}

	r.publisher.Publish(events.New(events.TypeRegistryChanged, slices.Clone(r.sources)))
}

func (r *Registry) checkFenceLocked(name string) error {
	if name == "" || r.fenceOK == nil || r.fenceOK(name) {
		return nil
	}
	return errors.Newf("fence %q does not exist", name).
		Category(errors.CategoryValidation).
		Context("field", "fenceName").
		Context("fence", name).
		Build()
}

func (r *Registry) indexLocked(id string) int {
	return slices.IndexFunc(r.sources, func(s Source) bool { return s.ID == id })
}

func matches(s Source, filters []Filter) bool {
	for _, f := range filters {
		if !f(s) {
			return false
		}
	}
	return true
}

func notFound(id string) error {
	return errors.New(ErrSourceNotFound).
		Category(errors.CategoryNotFound).
		Context("source_id", id).
		Build()
}
