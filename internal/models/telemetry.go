package models

import "time"

// ObservationType classifies an object the vehicle perceived
type ObservationType string

const (
	ObservationPedestrian    ObservationType = "pedestrian"
	ObservationVehicle       ObservationType = "vehicle"
	ObservationObstacle      ObservationType = "obstacle"
	ObservationTrafficSignal ObservationType = "traffic_signal"
)

// Position is where an observation sits relative to the vehicle
type Position string

const (
	PositionFront Position = "front"
	PositionLeft  Position = "left"
	PositionRight Position = "right"
)

// VehicleObservation represents one object reported by the perception stack
type VehicleObservation struct {
	Type       ObservationType `json:"type"`
	Distance   float64         `json:"distance"` // meters
	Position   Position        `json:"position"`
	Details    string          `json:"details"`
	Confidence float64         `json:"confidence"` // 0..1
}

// TelemetrySample represents a single telemetry record at a fixed point of the incident video
type TelemetrySample struct {
	Timestamp         float64              `json:"timestamp"` // seconds from video start
	Speed             float64              `json:"speed"`     // mph
	Acceleration      float64              `json:"acceleration"`
	ImpactForce       float64              `json:"impact_force"` // G
	AirbagDeployed    bool                 `json:"airbag_deployed"`
	Observations      []VehicleObservation `json:"observations"`
	VehicleActions    []string             `json:"vehicleActions"`
	AutopilotActive   bool                 `json:"autopilotActive"`
	BrakeForce        float64              `json:"brakeForce"`      // 0..1
	DamageSeverity    float64              `json:"damage_severity"` // 0..1
	WeatherConditions string               `json:"weather_conditions"`
	Visibility        string               `json:"visibility"`
	Reports           []Report             `json:"reports,omitempty"`
}

// Incident groups a sample sequence, its reports and the video under review
type Incident struct {
	ID         string    `json:"id"`
	CaseNumber string    `json:"case_number"`
	Title      string    `json:"title"`
	VideoURL   string    `json:"video_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// IncidentSummary provides aggregated statistics for one incident
type IncidentSummary struct {
	IncidentID    string  `json:"incident_id"`
	SampleCount   int     `json:"sample_count"`
	ReportCount   int     `json:"report_count"`
	Duration      float64 `json:"duration"`
	MaxSpeed      float64 `json:"max_speed"`
	MaxImpact     float64 `json:"max_impact"`
	ImpactAt      float64 `json:"impact_at"`
	AirbagFirstAt float64 `json:"airbag_first_at"`
}
