package domain

import (
	"encoding/json"
	"time"
)

// Sample is one unit of domain telemetry data plus the local receipt
// timestamp. The timestamp is assigned at ingestion, not by the sender.
type Sample struct {
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// NewSample wraps an inbound frame payload with its receipt time.
func NewSample(event string, payload json.RawMessage, receivedAt time.Time) Sample {
	return Sample{
		Event:      event,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}
}

// Telemetry decodes the sample payload as a TelemetryData reading.
func (s Sample) Telemetry() (*TelemetryData, error) {
	var td TelemetryData
	if err := json.Unmarshal(s.Payload, &td); err != nil {
		return nil, err
	}
	return &td, nil
}

// TelemetryData is the decoded "telemetry_data" payload broadcast to
// consumers. Speed is km/h; throttle and brake are normalized 0..1.
type TelemetryData struct {
	Timestamp float64     `json:"timestamp"`
	Speed     float64     `json:"speed"`
	RPM       float64     `json:"rpm"`
	Gear      string      `json:"gear"`
	Throttle  float64     `json:"throttle"`
	Brake     float64     `json:"brake"`
	Position  Position    `json:"position"`
	Vehicle   VehicleData `json:"vehicle"`
	Flags     StatusFlags `json:"flags"`
	Status    string      `json:"status"`
}

// Position is the car's world position.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// VehicleData carries per-vehicle readings that remain meaningful even
// while the game is paused.
type VehicleData struct {
	CarID            int64            `json:"car_id"`
	Name             string           `json:"name"`
	Manufacturer     string           `json:"manufacturer"`
	OilPressure      float64          `json:"oil_pressure"`
	OilTemperature   float64          `json:"oil_temperature"`
	WaterTemperature float64          `json:"water_temperature"`
	FuelLevel        float64          `json:"fuel_level"`
	FuelCapacity     float64          `json:"fuel_capacity"`
	FuelPercentage   float64          `json:"fuel_percentage"`
	TurboBoost       float64          `json:"turbo_boost"`
	TireTemperatures TireTemperatures `json:"tire_temperatures"`
}

// TireTemperatures holds the four tire surface temperatures.
type TireTemperatures struct {
	FrontLeft  float64 `json:"front_left"`
	FrontRight float64 `json:"front_right"`
	RearLeft   float64 `json:"rear_left"`
	RearRight  float64 `json:"rear_right"`
}

// StatusFlags is the subset of packet flags surfaced to consumers.
type StatusFlags struct {
	OnTrack bool `json:"on_track"`
	Paused  bool `json:"paused"`
}

// Telemetry status values.
const (
	TelemetryStatusActive = "active"
	TelemetryStatusPaused = "paused"
)
