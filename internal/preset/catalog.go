package preset

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Logger defines the logging interface used by the Catalog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Catalog is the ordered, in-memory preset catalog queried by detection.
//
// It starts from the presets it is built with and can be reloaded from a
// Repository with RefreshCache. Lookups never touch the repository.
//
// All public methods are thread-safe. Returned presets are copies.
type Catalog struct {
	repo    Repository
	mu      sync.RWMutex // protects presets and index
	presets []Preset
	index   map[string]int // id -> position in presets
	logger  Logger
}

// NewCatalog creates a catalog holding the given presets in order.
// repo may be nil for a catalog that is never reloaded.
func NewCatalog(repo Repository, presets []Preset) *Catalog {
	c := &Catalog{
		repo:   repo,
		logger: noopLogger{},
	}
	c.replace(presets)
	return c
}

// NewDefaultCatalog returns a catalog of the built-in presets with no persistence.
func NewDefaultCatalog() *Catalog {
	return NewCatalog(nil, DefaultPresets())
}

// SetLogger sets the logger for the catalog.
func (c *Catalog) SetLogger(logger Logger) {
	c.logger = logger
}

// RefreshCache reloads the catalog from the repository.
// An empty repository leaves the current presets in place.
func (c *Catalog) RefreshCache(ctx context.Context) error {
	if c.repo == nil {
		return ErrNoRepository
	}

	presets, err := c.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading presets: %w", err)
	}

	if len(presets) == 0 {
		c.logger.Warn("preset repository is empty, keeping current catalog", "count", c.Len())
		return nil
	}

	c.replace(presets)
	c.logger.Info("preset catalog refreshed", "count", len(presets))
	return nil
}

func (c *Catalog) replace(presets []Preset) {
	list := make([]Preset, len(presets))
	copy(list, presets)
	index := make(map[string]int, len(list))
	for i, p := range list {
		if _, dup := index[p.ID]; !dup {
			index[p.ID] = i
		}
	}

	c.mu.Lock()
	c.presets = list
	c.index = index
	c.mu.Unlock()
}

// List returns every preset in catalog order.
func (c *Catalog) List() []Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Preset, len(c.presets))
	copy(out, c.presets)
	return out
}

// Len returns the number of presets in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.presets)
}

// Lookup returns the preset with exactly this id.
func (c *Catalog) Lookup(id string) (Preset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		return Preset{}, false
	}
	return c.presets[i], true
}

// FilterByManufacturer returns, in catalog order, every preset whose
// manufacturer contains key, ignoring case. An empty key matches all.
func (c *Catalog) FilterByManufacturer(key string) []Preset {
	needle := strings.ToLower(key)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Preset
	for _, p := range c.presets {
		if strings.Contains(strings.ToLower(p.Manufacturer), needle) {
			out = append(out, p)
		}
	}
	return out
}
