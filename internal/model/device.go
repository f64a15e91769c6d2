package model

import "time"

// Device represents a monitoring device as returned by the upstream API.
// Timestamps arrive as naive date-time strings; the parsed fields hold their
// UTC interpretation and are filled in by the resource stores.
type Device struct {
	ID                 int    `json:"id"`
	DeviceID           string `json:"deviceId"`
	Name               string `json:"name"`
	Location           string `json:"location"`
	Description        string `json:"description"`
	HardwareVersion    string `json:"hardwareVersion"`
	SoftwareVersion    string `json:"softwareVersion"`
	Connected          bool   `json:"connected"`
	UserConfigured     bool   `json:"userConfigured"`
	TotalUpdates       int    `json:"totalUpdates"`
	GrainbinCount      int    `json:"grainbinCount"`
	URL                string `json:"url"`
	LastUpdated        string `json:"lastUpdated"`
	LastUpdateReceived string `json:"lastUpdateReceived"`

	LastUpdatedParsed        time.Time `json:"-"`
	LastUpdateReceivedParsed time.Time `json:"-"`
}

// DeviceUpdate is a single telemetry reading reported by a device.
type DeviceUpdate struct {
	ID           int     `json:"id"`
	Device       int     `json:"device"`
	UpdateIndex  int     `json:"updateIndex"`
	Timestamp    string  `json:"timestamp"`
	DeviceTemp   float64 `json:"deviceTemp"`
	InteriorTemp float64 `json:"interiorTemp"`
	ExteriorTemp float64 `json:"exteriorTemp"`
	DiskTotal    int64   `json:"diskTotal"`
	DiskUsed     int64   `json:"diskUsed"`
	DiskFree     int64   `json:"diskFree"`
	Uptime       float64 `json:"uptime"`
	LoadAvg      float64 `json:"loadAvg"`

	TimestampParsed time.Time `json:"-"`
}
