package model

import "time"

// Grainbin represents a grain storage bin attached to a device.
type Grainbin struct {
	ID              int    `json:"id"`
	Device          int    `json:"device"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	BusNumber       int    `json:"busNumber"`
	BusNumberString string `json:"busNumberString"`
	SensorType      string `json:"sensorType"`
	GrainbinType    string `json:"grainbinType"`
	AverageTemp     string `json:"averageTemp"`
	TotalUpdates    int    `json:"totalUpdates"`
	UserConfigured  bool   `json:"userConfigured"`
	URL             string `json:"url"`
	LastUpdated     string `json:"lastUpdated"`

	LastUpdatedParsed time.Time `json:"-"`
}

// GrainbinUpdate is a single temperature reading from one cable sensor.
// Sensor fields are pointers because the upstream reports null for sensors
// that failed to read.
type GrainbinUpdate struct {
	ID          int      `json:"id"`
	Grainbin    int      `json:"grainbin"`
	UpdateIndex int      `json:"updateIndex"`
	Timestamp   string   `json:"timestamp"`
	Temperature *float64 `json:"temperature"`
	TempHigh    *int     `json:"temphigh"`
	TempLow     *int     `json:"templow"`
	SensorName  string   `json:"sensorName"`

	TimestampParsed time.Time `json:"-"`
}
