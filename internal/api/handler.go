package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"farm-monitor-agent/internal/auth"
	"farm-monitor-agent/internal/stores"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	db              *gorm.DB
	auth            *auth.Manager
	devices         *stores.DeviceStore
	deviceUpdates   *stores.DeviceUpdateStore
	grainbins       *stores.GrainbinStore
	grainbinUpdates *stores.GrainbinUpdateStore
	webpush         *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(
	db *gorm.DB,
	mgr *auth.Manager,
	devices *stores.DeviceStore,
	deviceUpdates *stores.DeviceUpdateStore,
	grainbins *stores.GrainbinStore,
	grainbinUpdates *stores.GrainbinUpdateStore,
	webpushOptions *webpush.Options,
) *Handler {
	return &Handler{
		db:              db,
		auth:            mgr,
		devices:         devices,
		deviceUpdates:   deviceUpdates,
		grainbins:       grainbins,
		grainbinUpdates: grainbinUpdates,
		webpush:         webpushOptions,
	}
}
