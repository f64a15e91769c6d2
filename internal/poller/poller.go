// Package poller drives the periodic synchronization with the upstream farm
// monitor API and raises notification jobs when device connectivity changes.
package poller

import (
	"context"
	"log"
	"time"

	"farm-monitor-agent/config"
	"farm-monitor-agent/internal/auth"
	"farm-monitor-agent/internal/model"
	"farm-monitor-agent/internal/notification"
	"farm-monitor-agent/internal/stores"
)

// Service orchestrates the polling process.
type Service struct {
	cfg             *config.Config
	auth            *auth.Manager
	devices         *stores.DeviceStore
	deviceUpdates   *stores.DeviceUpdateStore
	grainbins       *stores.GrainbinStore
	grainbinUpdates *stores.GrainbinUpdateStore
	workerPool      *notification.WorkerPool

	// lastConnected remembers the effective connectivity observed on the
	// previous cycle, keyed by device id. A device seen for the first time
	// never triggers a notification.
	lastConnected map[int]bool

	// now is swapped out in tests.
	now func() time.Time
}

// NewService creates and initializes a new poller service.
func NewService(
	cfg *config.Config,
	mgr *auth.Manager,
	devices *stores.DeviceStore,
	deviceUpdates *stores.DeviceUpdateStore,
	grainbins *stores.GrainbinStore,
	grainbinUpdates *stores.GrainbinUpdateStore,
	workerPool *notification.WorkerPool,
) *Service {
	return &Service{
		cfg:             cfg,
		auth:            mgr,
		devices:         devices,
		deviceUpdates:   deviceUpdates,
		grainbins:       grainbins,
		grainbinUpdates: grainbinUpdates,
		workerPool:      workerPool,
		lastConnected:   make(map[int]bool),
		now:             time.Now,
	}
}

// Run starts the polling process in a loop.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Poller.Enabled {
		log.Println("Poller is disabled. Not starting.")
		return
	}
	log.Println("Starting poller service...")

	if s.workerPool != nil {
		s.workerPool.Start(ctx)
	}

	s.PollOnce(ctx)

	timer := time.NewTimer(s.cfg.Poller.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Poller service shutting down.")
			return
		case <-timer.C:
			s.PollOnce(ctx)
			timer.Reset(s.cfg.Poller.Interval)
		}
	}
}

// PollOnce performs a single synchronization round.
func (s *Service) PollOnce(ctx context.Context) {
	log.Println("Executing poll cycle...")

	if err := s.auth.Login(ctx, s.cfg.Auth.Username, s.cfg.Auth.Password); err != nil {
		log.Printf("Error establishing session: %v", err)
		return
	}
	if !s.auth.Tokens().IsAccessTokenValid() {
		log.Printf("Poll cycle aborted: no valid session (%s)", s.auth.Tokens().ErrorMessage())
		return
	}

	if err := s.devices.FetchDevices(ctx); err != nil {
		log.Printf("Error fetching devices: %v", err)
		return
	}

	devices := s.devices.Devices()
	for _, d := range devices {
		if err := s.deviceUpdates.FetchLatestDeviceUpdate(ctx, d.ID); err != nil {
			log.Printf("Error fetching latest update for device %d: %v", d.ID, err)
		}
		if _, err := s.deviceUpdates.FetchDeviceUpdatePage(ctx, d.ID, 1, s.cfg.Poller.UpdatePageSize); err != nil {
			log.Printf("Error fetching update history for device %d: %v", d.ID, err)
		}
	}

	if err := s.grainbins.FetchGrainbins(ctx); err != nil {
		log.Printf("Error fetching grainbins: %v", err)
	} else {
		for _, g := range s.grainbins.Grainbins() {
			if err := s.grainbinUpdates.FetchLatestGrainbinUpdates(ctx, g.ID); err != nil {
				log.Printf("Error fetching latest updates for grainbin %d: %v", g.ID, err)
			}
		}
	}

	jobs := s.detectConnectivityChanges(devices)
	if len(jobs) > 0 {
		log.Printf("Dispatching notifications for %d devices", len(jobs))
		for _, job := range jobs {
			s.workerPool.Dispatch(job)
		}
	}

	log.Println("Poll cycle finished.")
}

// detectConnectivityChanges compares the effective connectivity of each
// device against the previous cycle and returns a job per transition.
func (s *Service) detectConnectivityChanges(devices []model.Device) []notification.Job {
	var jobs []notification.Job
	for _, d := range devices {
		connected := s.effectiveConnected(d)
		previous, seen := s.lastConnected[d.ID]
		s.lastConnected[d.ID] = connected

		if seen && previous != connected && s.workerPool != nil {
			jobs = append(jobs, notification.Job{
				DeviceID:   d.ID,
				DeviceName: d.Name,
				Connected:  connected,
			})
		}
	}
	return jobs
}

// effectiveConnected treats a device whose last report is older than the
// configured staleness window as disconnected even when the upstream still
// flags it connected.
func (s *Service) effectiveConnected(d model.Device) bool {
	if !d.Connected {
		return false
	}
	if !d.LastUpdateReceivedParsed.IsZero() &&
		s.now().UTC().Sub(d.LastUpdateReceivedParsed) > s.cfg.Poller.StaleAfter {
		return false
	}
	return true
}
