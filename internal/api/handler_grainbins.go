package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetGrainbins handles the GET /api/grainbins request.
func (h *Handler) GetGrainbins(c *gin.Context) {
	grainbins := h.grainbins.Grainbins()
	sort.Slice(grainbins, func(i, j int) bool { return grainbins[i].ID < grainbins[j].ID })
	c.JSON(http.StatusOK, grainbins)
}

// GetGrainbin handles the GET /api/grainbins/:grainbin_id request. A grain bin
// missing from the cache is fetched from the upstream API.
func (h *Handler) GetGrainbin(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("grainbin_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid grainbin id"})
		return
	}

	g, err := h.grainbins.GetGrainbinByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if g.ID == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "grainbin not found"})
		return
	}
	c.JSON(http.StatusOK, g)
}

// GetGrainbinUpdates handles the GET /api/grainbins/:grainbin_id/updates
// request, serving the cached latest reading per sensor.
func (h *Handler) GetGrainbinUpdates(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("grainbin_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid grainbin id"})
		return
	}

	updates := h.grainbinUpdates.GetLatestGrainbinUpdates(id)
	sort.Slice(updates, func(i, j int) bool { return updates[i].SensorName < updates[j].SensorName })
	c.JSON(http.StatusOK, updates)
}
