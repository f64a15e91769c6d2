package stores

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"farm-monitor-agent/internal/client"
	"farm-monitor-agent/internal/model"
	"farm-monitor-agent/internal/parse"
)

const grainbinEndpoint = "grainbin/"

// GrainbinStore caches the known grain bins keyed by id.
type GrainbinStore struct {
	client  *client.Client
	loading atomic.Bool

	mu        sync.RWMutex
	grainbins map[int]model.Grainbin
}

// NewGrainbinStore creates an empty grain bin cache.
func NewGrainbinStore(c *client.Client) *GrainbinStore {
	return &GrainbinStore{
		client:    c,
		grainbins: make(map[int]model.Grainbin),
	}
}

// FetchGrainbins retrieves the full grain bin list and replaces matching
// cache entries.
func (s *GrainbinStore) FetchGrainbins(ctx context.Context) error {
	s.loading.Store(true)
	defer s.loading.Store(false)

	grainbins, err := client.Get[[]model.Grainbin](ctx, s.client, grainbinEndpoint, client.TokenAccess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range grainbins {
		normalizeGrainbin(&g)
		s.grainbins[g.ID] = g
	}
	return nil
}

// GetGrainbinByID returns the cached grain bin when present, otherwise
// fetches it from the upstream API and caches the result.
func (s *GrainbinStore) GetGrainbinByID(ctx context.Context, id int) (model.Grainbin, error) {
	s.mu.RLock()
	g, ok := s.grainbins[id]
	s.mu.RUnlock()
	if ok {
		return g, nil
	}

	s.loading.Store(true)
	defer s.loading.Store(false)

	endpoint := fmt.Sprintf("%s%d", grainbinEndpoint, id)
	g, err := client.Get[model.Grainbin](ctx, s.client, endpoint, client.TokenAccess)
	if err != nil {
		return model.Grainbin{}, err
	}
	if g.ID == 0 {
		return model.Grainbin{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	normalizeGrainbin(&g)
	s.grainbins[g.ID] = g
	return g, nil
}

// Grainbins returns a snapshot of the cached grain bins.
func (s *GrainbinStore) Grainbins() []model.Grainbin {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Grainbin, 0, len(s.grainbins))
	for _, g := range s.grainbins {
		out = append(out, g)
	}
	return out
}

// Get returns one cached grain bin by id without touching the network.
func (s *GrainbinStore) Get(id int) (model.Grainbin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grainbins[id]
	return g, ok
}

// Clear empties the cache.
func (s *GrainbinStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grainbins = make(map[int]model.Grainbin)
}

// IsLoading reports whether a fetch is in flight.
func (s *GrainbinStore) IsLoading() bool {
	return s.loading.Load()
}

func normalizeGrainbin(g *model.Grainbin) {
	if g.LastUpdated == "" {
		return
	}
	t, err := parse.NaiveUTC(g.LastUpdated)
	if err != nil {
		log.Printf("Warning: could not parse last_updated for grainbin %d: %v", g.ID, err)
		return
	}
	g.LastUpdatedParsed = t
}
