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

// GrainbinUpdateStore caches per-sensor grain bin readings.
type GrainbinUpdateStore struct {
	client  *client.Client
	loading atomic.Bool

	mu      sync.RWMutex
	updates map[int]model.GrainbinUpdate
}

// NewGrainbinUpdateStore creates an empty grain bin update cache.
func NewGrainbinUpdateStore(c *client.Client) *GrainbinUpdateStore {
	return &GrainbinUpdateStore{
		client:  c,
		updates: make(map[int]model.GrainbinUpdate),
	}
}

// FetchLatestGrainbinUpdates retrieves the latest reading from every sensor
// on the given grain bin. The upstream returns one update per sensor cable.
func (s *GrainbinUpdateStore) FetchLatestGrainbinUpdates(ctx context.Context, grainbinID int) error {
	s.loading.Store(true)
	defer s.loading.Store(false)

	endpoint := fmt.Sprintf("%s%d/updates/latest", grainbinEndpoint, grainbinID)
	updates, err := client.Get[[]model.GrainbinUpdate](ctx, s.client, endpoint, client.TokenAccess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, update := range updates {
		normalizeGrainbinUpdate(&update)
		s.updates[update.ID] = update
	}
	return nil
}

// GetLatestGrainbinUpdates returns the cached updates belonging to the given
// grain bin, in no guaranteed order. No network call is made.
func (s *GrainbinUpdateStore) GetLatestGrainbinUpdates(grainbinID int) []model.GrainbinUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.GrainbinUpdate, 0)
	for _, u := range s.updates {
		if u.Grainbin == grainbinID {
			out = append(out, u)
		}
	}
	return out
}

// Clear empties the cache.
func (s *GrainbinUpdateStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = make(map[int]model.GrainbinUpdate)
}

// IsLoading reports whether a fetch is in flight.
func (s *GrainbinUpdateStore) IsLoading() bool {
	return s.loading.Load()
}

func normalizeGrainbinUpdate(u *model.GrainbinUpdate) {
	if u.Timestamp == "" {
		return
	}
	t, err := parse.NaiveUTC(u.Timestamp)
	if err != nil {
		log.Printf("Warning: could not parse timestamp for grainbin update %d: %v", u.ID, err)
		return
	}
	u.TimestampParsed = t
}
