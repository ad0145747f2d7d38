package fetcher

import (
	"context"
	"fmt"
	"sync"

	"mfledger/internal/config"
	apperrors "mfledger/internal/errors"
	"mfledger/internal/extract"
	"mfledger/internal/layout"
	"mfledger/internal/locator"
	"mfledger/pkg/contracts/domain"
)

// Locator finds a period's document for one fund.
type Locator interface {
	Locate(ctx context.Context, p domain.Period) (locator.Document, bool)
}

// Source is everything needed to turn a (fund, period) into holdings.
type Source struct {
	Fund     config.FundConfig
	Locator  Locator
	Selector layout.Selector
	Markers  []string
	Options  extract.Options
}

// ID returns the fund id.
func (s *Source) ID() string { return s.Fund.ID }

// NewSource builds a source from its registry entry.
func NewSource(fund config.FundConfig, deps locator.Deps) (*Source, error) {
	chain, err := locator.NewChain(fund, deps)
	if err != nil {
		return nil, err
	}
	return &Source{
		Fund:     fund,
		Locator:  chain,
		Selector: layout.SelectorFrom(fund.Layout),
		Markers:  fund.Layout.HeaderMarkers,
		Options:  extract.OptionsFrom(fund.Extract),
	}, nil
}

// Registry maps fund ids to sources, keeping registration order.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*Source
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]*Source),
		order:   make([]string, 0),
	}
}

// NewRegistryFrom builds a source for every fund in funds.
func NewRegistryFrom(funds *config.FundRegistry, deps locator.Deps) (*Registry, error) {
	r := NewRegistry()
	for _, f := range funds.Funds {
		src, err := NewSource(f, deps)
		if err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("fund %s", f.ID), err)
		}
		if err := r.Register(src); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a source.
func (r *Registry) Register(src *Source) error {
	if src == nil {
		return fmt.Errorf("cannot register nil source")
	}
	id := src.ID()
	if id == "" {
		return fmt.Errorf("source id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[id]; exists {
		return fmt.Errorf("source %s already registered", id)
	}
	r.sources[id] = src
	r.order = append(r.order, id)
	return nil
}

// Get returns the source for a fund id.
func (r *Registry) Get(id string) (*Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.sources[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("fund " + id)
	}
	return src, nil
}

// List returns sources in registration order.
func (r *Registry) List() []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sources[id])
	}
	return out
}

// IDs returns fund ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}
