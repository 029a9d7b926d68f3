package alert

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

// Persistence is the authoritative alert storage. Every call returns the
// complete mapping after the operation.
type Persistence interface {
	Save(ctx context.Context, name string, a Alert) (map[string]Alert, error)
	Remove(ctx context.Context, name string) (map[string]Alert, error)
	LoadAll(ctx context.Context) (map[string]Alert, error)
}

// Detacher clears references to a removed alert.
type Detacher interface {
	DetachAlert(ctx context.Context, name string)
}

// Catalog owns the alert definitions.
type Catalog struct {
	mu     sync.RWMutex
	alerts map[string]Alert

	// writeMu orders mutations so a name check and its save are atomic.
	writeMu sync.Mutex

	persistence Persistence
	detacher    Detacher
	publisher   events.Publisher
}

// NewCatalog creates an empty catalog. Call Load to populate it.
func NewCatalog(p Persistence, publisher events.Publisher) *Catalog {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Catalog{
		alerts:      make(map[string]Alert),
		persistence: p,
		publisher:   publisher,
	}
}

// SetDetacher sets the cascade target for Remove.
func (c *Catalog) SetDetacher(d Detacher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detacher = d
}

// Load replaces the catalog with the backend's full mapping.
func (c *Catalog) Load(ctx context.Context) error {
	all, err := c.persistence.LoadAll(ctx)
	if err != nil {
		return persistenceError(err, "load", "")
	}
	c.replace(all)
	GetLogger().Info("alerts loaded", logger.Int("count", len(all)))
	return nil
}

// Create validates d and stores it. Nothing is stored on failure.
func (c *Catalog) Create(ctx context.Context, d Draft) (Alert, error) {
	if ve := d.check(); ve != nil {
		return Alert{}, errors.New(ve).
			Category(errors.CategoryValidation).
			Context("field", ve.Field).
			Build()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, exists := c.lookup(d.Name); exists {
		return Alert{}, errors.New(&ValidationError{Field: "name", Message: "is already taken"}).
			Category(errors.CategoryConflict).
			Context("field", "name").
			Context("alert", d.Name).
			Build()
	}

	a := d.alert()
	all, err := c.persistence.Save(ctx, a.Name, a)
	if err != nil {
		return Alert{}, persistenceError(err, "save", a.Name)
	}
	c.replace(all)

	GetLogger().Info("alert created",
		logger.String("alert", a.Name),
		logger.String("type", string(a.Type)))
	return a, nil
}

// Remove deletes the named alert and clears it from every source.
func (c *Catalog) Remove(ctx context.Context, name string) error {
	c.writeMu.Lock()
	all, err := c.persistence.Remove(ctx, name)
	if err == nil {
		c.replace(all)
	}
	c.writeMu.Unlock()
	if err != nil {
		return persistenceError(err, "remove", name)
	}

	c.mu.RLock()
	d := c.detacher
	c.mu.RUnlock()
	if d != nil {
		d.DetachAlert(ctx, name)
	}
	return nil
}

// Get returns the named alert.
func (c *Catalog) Get(name string) (Alert, error) {
	a, ok := c.lookup(name)
	if !ok {
		return Alert{}, errors.New(ErrAlertNotFound).
			Category(errors.CategoryNotFound).
			Context("alert", name).
			Build()
	}
	return a, nil
}

// List returns all alerts sorted by name.
func (c *Catalog) List() []Alert {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := slices.Collect(maps.Values(c.alerts))
	slices.SortFunc(out, func(a, b Alert) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (c *Catalog) lookup(name string) (Alert, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.alerts[name]
	return a, ok
}

func (c *Catalog) replace(all map[string]Alert) {
	next := make(map[string]Alert, len(all))
	for k, a := range all {
		if a.Name == "" {
			a.Name = k
		}
		next[k] = a
	}

	c.mu.Lock()
	c.alerts = next
	c.mu.Unlock()

	c.publisher.Publish(events.New(events.TypeAlertListChanged, c.List()))
}

func persistenceError(err error, op, name string) error {
	return errors.New(err).
		Category(errors.CategoryPersistence).
		Context("operation", op).
		Context("alert", name).
		Build()
}
