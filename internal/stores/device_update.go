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

// DeviceUpdateStore caches device telemetry updates across all devices.
type DeviceUpdateStore struct {
	client  *client.Client
	loading atomic.Bool

	mu      sync.RWMutex
	updates map[int]model.DeviceUpdate
}

// NewDeviceUpdateStore creates an empty device update cache.
func NewDeviceUpdateStore(c *client.Client) *DeviceUpdateStore {
	return &DeviceUpdateStore{
		client:  c,
		updates: make(map[int]model.DeviceUpdate),
	}
}

// FetchLatestDeviceUpdate retrieves the most recent update for one device.
func (s *DeviceUpdateStore) FetchLatestDeviceUpdate(ctx context.Context, deviceID int) error {
	s.loading.Store(true)
	defer s.loading.Store(false)

	endpoint := fmt.Sprintf("%s%d/updates/latest", deviceEndpoint, deviceID)
	update, err := client.Get[model.DeviceUpdate](ctx, s.client, endpoint, client.TokenAccess)
	if err != nil {
		return err
	}
	if update.ID == 0 {
		// Swallowed auth failure or a device with no updates yet.
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	normalizeDeviceUpdate(&update)
	s.updates[update.ID] = update
	return nil
}

// FetchDeviceUpdatePage retrieves one page of updates for a device and
// returns the pagination header describing the full result set.
func (s *DeviceUpdateStore) FetchDeviceUpdatePage(ctx context.Context, deviceID, page, pageSize int) (client.PaginationHeader, error) {
	s.loading.Store(true)
	defer s.loading.Store(false)

	endpoint := fmt.Sprintf("%s%d/updates", deviceEndpoint, deviceID)
	updates, header, err := client.GetPaginate[[]model.DeviceUpdate](ctx, s.client, endpoint, page, pageSize, client.TokenAccess)
	if err != nil {
		return header, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, update := range updates {
		normalizeDeviceUpdate(&update)
		s.updates[update.ID] = update
	}
	return header, nil
}

// GetLatestDeviceUpdates returns the cached updates belonging to the given
// device, in no guaranteed order. No network call is made.
func (s *DeviceUpdateStore) GetLatestDeviceUpdates(deviceID int) []model.DeviceUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.DeviceUpdate, 0)
	for _, u := range s.updates {
		if u.Device == deviceID {
			out = append(out, u)
		}
	}
	return out
}

// Clear empties the cache.
func (s *DeviceUpdateStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = make(map[int]model.DeviceUpdate)
}

// IsLoading reports whether a fetch is in flight.
func (s *DeviceUpdateStore) IsLoading() bool {
	return s.loading.Load()
}

func normalizeDeviceUpdate(u *model.DeviceUpdate) {
	if u.Timestamp == "" {
		return
	}
	t, err := parse.NaiveUTC(u.Timestamp)
	if err != nil {
		log.Printf("Warning: could not parse timestamp for device update %d: %v", u.ID, err)
		return
	}
	u.TimestampParsed = t
}
