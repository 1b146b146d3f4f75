package preset

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func presetIDs(presets []Preset) []string {
	ids := make([]string, 0, len(presets))
	for _, p := range presets {
		ids = append(ids, p.ID)
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCatalog_FilterByManufacturer(t *testing.T) {
	c := NewDefaultCatalog()

	tests := []struct {
		key  string
		want []string
	}{
		{"aidon", []string{"aidon-rj45-han", "aidon-rj12"}},
		{"AIDON", []string{"aidon-rj45-han", "aidon-rj12"}},
		{"kaifa", []string{"kaifa-rj45"}},
		{"kamstrup", []string{"kamstrup-han"}},
		{"gyr", []string{"lng-rj45"}},
		{"nobody", nil},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := presetIDs(c.FilterByManufacturer(tt.key))
			if !equalIDs(got, tt.want) {
				t.Errorf("FilterByManufacturer(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestCatalog_Lookup(t *testing.T) {
	c := NewDefaultCatalog()

	p, ok := c.Lookup("kamstrup-han")
	if !ok {
		t.Fatal("Lookup(kamstrup-han) not found")
	}
	if p.Baud != 9600 || p.Parity != "8N2" {
		t.Errorf("Lookup(kamstrup-han) = %d %s, want 9600 8N2", p.Baud, p.Parity)
	}

	if _, ok := c.Lookup("does-not-exist"); ok {
		t.Error("Lookup(does-not-exist) should miss")
	}
}

func TestCatalog_ListIsCopy(t *testing.T) {
	c := NewDefaultCatalog()

	list := c.List()
	list[0].Name = "mutated"

	if p, _ := c.Lookup(list[0].ID); p.Name == "mutated" {
		t.Error("mutating List() result changed the catalog")
	}
}

func TestCatalog_RefreshCache(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))
	c := NewCatalog(repo, DefaultPresets())

	// Empty repository keeps the built-in presets.
	if err := c.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if c.Len() != len(DefaultPresets()) {
		t.Errorf("Len() = %d, want %d", c.Len(), len(DefaultPresets()))
	}

	if err := repo.Create(ctx, testPreset("only-one", 1)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := c.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if got := presetIDs(c.List()); !equalIDs(got, []string{"only-one"}) {
		t.Errorf("List() after refresh = %v, want [only-one]", got)
	}
	if _, ok := c.Lookup("aidon-rj45-han"); ok {
		t.Error("stale preset still present after refresh")
	}
}

func TestCatalog_RefreshCache_NoRepository(t *testing.T) {
	err := NewDefaultCatalog().RefreshCache(context.Background())
	if !errors.Is(err, ErrNoRepository) {
		t.Errorf("RefreshCache() error = %v, want ErrNoRepository", err)
	}
}

func TestCatalog_ConcurrentAccess(t *testing.T) {
	c := NewDefaultCatalog()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.FilterByManufacturer("aidon")
			c.Lookup("kaifa-rj45")
		}()
		go func() {
			defer wg.Done()
			c.replace(DefaultPresets())
		}()
	}
	wg.Wait()
}

func TestDefaultPresets_Valid(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range DefaultPresets() {
		if err := p.Validate(); err != nil {
			t.Errorf("default preset %s invalid: %v", p.ID, err)
		}
		if seen[p.ID] {
			t.Errorf("duplicate default preset id %s", p.ID)
		}
		seen[p.ID] = true
	}
}
