package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"farm-monitor-agent/internal/model"
)

// DeviceResponse represents the API response for a single device.
type DeviceResponse struct {
	ID                 int        `json:"id"`
	DeviceID           string     `json:"deviceId"`
	Name               string     `json:"name"`
	Location           string     `json:"location"`
	Connected          bool       `json:"connected"`
	GrainbinCount      int        `json:"grainbinCount"`
	TotalUpdates       int        `json:"totalUpdates"`
	LastUpdated        *time.Time `json:"lastUpdated"`
	LastUpdateReceived *time.Time `json:"lastUpdateReceived"`
}

func deviceResponse(d model.Device) DeviceResponse {
	resp := DeviceResponse{
		ID:            d.ID,
		DeviceID:      d.DeviceID,
		Name:          d.Name,
		Location:      d.Location,
		Connected:     d.Connected,
		GrainbinCount: d.GrainbinCount,
		TotalUpdates:  d.TotalUpdates,
	}
	if !d.LastUpdatedParsed.IsZero() {
		t := d.LastUpdatedParsed
		resp.LastUpdated = &t
	}
	if !d.LastUpdateReceivedParsed.IsZero() {
		t := d.LastUpdateReceivedParsed
		resp.LastUpdateReceived = &t
	}
	return resp
}

// GetDevices handles the GET /api/devices request.
func (h *Handler) GetDevices(c *gin.Context) {
	devices := h.devices.Devices()
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	responses := make([]DeviceResponse, 0, len(devices))
	for _, d := range devices {
		responses = append(responses, deviceResponse(d))
	}
	c.JSON(http.StatusOK, responses)
}

// GetDevice handles the GET /api/devices/:device_id request.
func (h *Handler) GetDevice(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	d, ok := h.devices.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	c.JSON(http.StatusOK, deviceResponse(d))
}

// GetDeviceUpdates handles the GET /api/devices/:device_id/updates request.
// Without paging parameters it serves the cached latest updates; with page or
// page_size set it fetches a page from the upstream API.
func (h *Handler) GetDeviceUpdates(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	pageStr := c.Query("page")
	pageSizeStr := c.Query("page_size")
	if pageStr == "" && pageSizeStr == "" {
		updates := h.deviceUpdates.GetLatestDeviceUpdates(id)
		sort.Slice(updates, func(i, j int) bool { return updates[i].ID < updates[j].ID })
		c.JSON(http.StatusOK, updates)
		return
	}

	page, _ := strconv.Atoi(pageStr)
	pageSize, _ := strconv.Atoi(pageSizeStr)
	header, err := h.deviceUpdates.FetchDeviceUpdatePage(c.Request.Context(), id, page, pageSize)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	updates := h.deviceUpdates.GetLatestDeviceUpdates(id)
	sort.Slice(updates, func(i, j int) bool { return updates[i].ID < updates[j].ID })
	c.JSON(http.StatusOK, gin.H{
		"updates":    updates,
		"pagination": header,
	})
}
