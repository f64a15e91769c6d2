// Package stores holds the in-memory caches for upstream telemetry entities.
// Each store owns one cache keyed by entity id; entries are replaced whole on
// every fetch and only removed by a bulk Clear.
package stores

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"farm-monitor-agent/internal/client"
	"farm-monitor-agent/internal/model"
	"farm-monitor-agent/internal/parse"
)

const deviceEndpoint = "device/"

// DeviceStore caches monitoring devices.
type DeviceStore struct {
	client  *client.Client
	loading atomic.Bool

	mu      sync.RWMutex
	devices map[int]model.Device
}

// NewDeviceStore creates an empty device cache over the given client.
func NewDeviceStore(c *client.Client) *DeviceStore {
	return &DeviceStore{
		client:  c,
		devices: make(map[int]model.Device),
	}
}

// FetchDevices retrieves all devices from the upstream and upserts them.
func (s *DeviceStore) FetchDevices(ctx context.Context) error {
	s.loading.Store(true)
	defer s.loading.Store(false)

	devices, err := client.Get[[]model.Device](ctx, s.client, deviceEndpoint, client.TokenAccess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, device := range devices {
		normalizeDevice(&device)
		s.devices[device.ID] = device
	}
	return nil
}

// Devices returns a snapshot of all cached devices in no particular order.
func (s *DeviceStore) Devices() []model.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	return out
}

// Get returns the cached device with the given id.
func (s *DeviceStore) Get(id int) (model.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	return d, ok
}

// Clear empties the cache.
func (s *DeviceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = make(map[int]model.Device)
}

// IsLoading reports whether a fetch is in flight.
func (s *DeviceStore) IsLoading() bool {
	return s.loading.Load()
}

// normalizeDevice interprets the naive upstream timestamps as UTC.
func normalizeDevice(d *model.Device) {
	if d.LastUpdated != "" {
		t, err := parse.NaiveUTC(d.LastUpdated)
		if err != nil {
			log.Printf("Warning: could not parse lastUpdated for device %d: %v", d.ID, err)
		} else {
			d.LastUpdatedParsed = t
		}
	}
	if d.LastUpdateReceived != "" {
		t, err := parse.NaiveUTC(d.LastUpdateReceived)
		if err != nil {
			log.Printf("Warning: could not parse lastUpdateReceived for device %d: %v", d.ID, err)
		} else {
			d.LastUpdateReceivedParsed = t
		}
	}
}
