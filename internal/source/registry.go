package source

import (
	"fmt"

	"github.com/IshaanNene/NewsHarvest/internal/config"
)

// Registry keeps adapters in registration order, which is the phase order
// of a run.
type Registry struct {
	order    []string
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register appends an adapter. Names must be unique.
func (r *Registry) Register(a Adapter) error {
	if _, exists := r.adapters[a.Name()]; exists {
		return fmt.Errorf("adapter %q already registered", a.Name())
	}
	r.order = append(r.order, a.Name())
	r.adapters[a.Name()] = a
	return nil
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// All returns the adapters in phase order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.order)
}

// DefaultRegistry registers every enabled family in the fixed phase order:
// government sites, news portals, search engine, social search proxy.
func DefaultRegistry(cfg *config.Config) (*Registry, error) {
	r := NewRegistry()
	src := cfg.Sources

	if src.Government.Enabled {
		if err := r.Register(NewGovernmentPortal(src.Government, cfg.Pacing)); err != nil {
			return nil, err
		}
	}
	if src.News.Enabled {
		if err := r.Register(NewNewsPortal(src.News, cfg.Pacing)); err != nil {
			return nil, err
		}
	}
	if src.Search.Enabled {
		a, err := NewSearchAdapter(src.Search, cfg.Crawl.Keywords, cfg.Pacing)
		if err != nil {
			return nil, err
		}
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	if src.Social.Enabled {
		a, err := NewSocialAdapter(src.Social, cfg.Crawl.Keywords, cfg.Pacing)
		if err != nil {
			return nil, err
		}
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}
