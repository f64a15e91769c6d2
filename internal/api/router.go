package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"farm-monitor-agent/config"
	"farm-monitor-agent/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, handler *Handler) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/devices", caching, handler.GetDevices)
		api.GET("/devices/:device_id", caching, handler.GetDevice)
		api.GET("/devices/:device_id/updates", handler.GetDeviceUpdates)

		api.GET("/grainbins", caching, handler.GetGrainbins)
		api.GET("/grainbins/:grainbin_id", caching, handler.GetGrainbin)
		api.GET("/grainbins/:grainbin_id/updates", caching, handler.GetGrainbinUpdates)

		api.GET("/auth/status", handler.GetAuthStatus)
		api.POST("/auth/retry", handler.PostAuthRetry)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
