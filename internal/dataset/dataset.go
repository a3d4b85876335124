// Package dataset builds the reference incident: a highway rear-end collision
// recorded at 2 Hz, with the impact at 25.0s.
package dataset

import (
	"math"
	"time"

	"incident-review/internal/models"
	"incident-review/internal/timeline"
)

const (
	// IncidentID is the case number of the reference incident.
	IncidentID = "TES-2024-0123"

	// DefaultVideoURL is the dashcam recording of the reference incident.
	DefaultVideoURL = "https://storage.googleapis.com/gtv-videos-bucket/sample/ForBiggerBlazes.mp4"

	sampleCount = 100
	sampleStep  = 0.5
	impactIndex = 50
)

// Incident returns the metadata of the reference incident.
func Incident(videoURL string) models.Incident {
	if videoURL == "" {
		videoURL = DefaultVideoURL
	}
	return models.Incident{
		ID:         IncidentID,
		CaseNumber: "#" + IncidentID,
		Title:      "Tesla Incident Analysis",
		VideoURL:   videoURL,
		CreatedAt:  time.Date(2024, time.January, 23, 0, 0, 0, 0, time.UTC),
	}
}

func score(v float64) *float64 { return &v }

// Reports returns the witness and police statements of the reference incident.
func Reports() []models.Report {
	return []models.Report{
		{
			Type:             models.ReportWitness,
			Timestamp:        20.0,
			Source:           "James Wilson",
			Statement:        "The Tesla was maintaining a safe distance from the vehicle ahead.",
			CredibilityScore: score(0.88),
			WitnessContact:   "+1 (555) 0121",
		},
		{
			Type:         models.ReportPolice,
			Timestamp:    22.5,
			Source:       "Officer Mike Chen",
			Statement:    "Traffic camera footage confirms normal traffic flow at this point.",
			OfficerBadge: "LAPD-2234",
		},
		{
			Type:             models.ReportWitness,
			Timestamp:        35.0,
			Source:           "Emily Rodriguez",
			Statement:        "Traffic began to slow down suddenly. The Tesla's brake lights activated immediately.",
			CredibilityScore: score(0.95),
			WitnessContact:   "+1 (555) 0122",
		},
		{
			Type:             models.ReportWitness,
			Timestamp:        48.5,
			Source:           "John Smith",
			Statement:        "I saw the Tesla slow down gradually before the impact. The car in front stopped suddenly.",
			CredibilityScore: score(0.85),
			WitnessContact:   "+1 (555) 0123",
		},
		{
			Type:         models.ReportPolice,
			Timestamp:    49.0,
			Source:       "Officer Sarah Johnson",
			Statement:    "Dash cam from nearby patrol car shows rapid deceleration of traffic.",
			OfficerBadge: "LAPD-7845",
		},
		{
			Type:             models.ReportWitness,
			Timestamp:        49.5,
			Source:           "David Chang",
			Statement:        "Multiple vehicles were involved in sudden braking.",
			CredibilityScore: score(0.91),
			WitnessContact:   "+1 (555) 0124",
		},
		{
			Type:         models.ReportPolice,
			Timestamp:    50.0,
			Source:       "Officer Sarah Johnson",
			Statement:    "Upon arrival at the scene, the Tesla's automatic emergency braking system had engaged. Both airbags were deployed.",
			OfficerBadge: "LAPD-7845",
		},
		{
			Type:             models.ReportWitness,
			Timestamp:        50.5,
			Source:           "Maria Garcia",
			Statement:        "There was a loud crash sound. The Tesla's emergency lights came on immediately after impact.",
			CredibilityScore: score(0.92),
			WitnessContact:   "+1 (555) 0456",
		},
		{
			Type:         models.ReportPolice,
			Timestamp:    51.0,
			Source:       "Officer Tom Wilson",
			Statement:    "Emergency response initiated. Tesla's automatic emergency call system activated.",
			OfficerBadge: "LAPD-9922",
		},
		{
			Type:             models.ReportWitness,
			Timestamp:        52.0,
			Source:           "Robert Lee",
			Statement:        "The Tesla remained stationary after impact, hazard lights were active.",
			CredibilityScore: score(0.87),
			WitnessContact:   "+1 (555) 0125",
		},
	}
}

// Samples returns the telemetry of the reference incident without reports.
func Samples() []models.TelemetrySample {
	samples := make([]models.TelemetrySample, sampleCount)
	for i := range samples {
		samples[i] = sampleAt(i)
	}
	return samples
}

// Generate returns the samples with the reports attached.
func Generate() ([]models.TelemetrySample, []models.Report) {
	reports := Reports()
	return timeline.AttachReports(Samples(), reports), reports
}

func sampleAt(i int) models.TelemetrySample {
	f := float64(i)
	s := models.TelemetrySample{
		Timestamp:         f * sampleStep,
		AirbagDeployed:    i >= impactIndex,
		AutopilotActive:   i < impactIndex,
		WeatherConditions: "Clear",
		Visibility:        "Good",
	}

	switch {
	case i < impactIndex:
		s.Speed = 45 - f/50*5
		s.Acceleration = -2
		s.BrakeForce = f / 50 * 0.5
		s.Observations = []models.VehicleObservation{{
			Type:       models.ObservationVehicle,
			Distance:   50 - f/2,
			Position:   models.PositionFront,
			Details:    "Decelerating vehicle ahead",
			Confidence: 0.95,
		}}
		s.VehicleActions = []string{"Gradual braking", "Forward collision warning active"}
	case i == impactIndex:
		s.Speed = 40
		s.Acceleration = -15
		s.ImpactForce = 20
		s.BrakeForce = 1.0
		s.Observations = []models.VehicleObservation{{
			Type:       models.ObservationVehicle,
			Position:   models.PositionFront,
			Details:    "Collision detected",
			Confidence: 0.99,
		}}
		s.VehicleActions = []string{"Emergency braking engaged", "Airbag deployment initiated"}
	default:
		s.Speed = 40 - (f-50)/50*40
		s.Acceleration = -1
		s.ImpactForce = 20 * math.Exp(-(f-50)/10)
		s.BrakeForce = 0.8
		s.DamageSeverity = 0.6
		s.Observations = []models.VehicleObservation{{
			Type:       models.ObservationObstacle,
			Position:   models.PositionFront,
			Details:    "Accident scene",
			Confidence: 0.98,
		}}
		s.VehicleActions = []string{"Post-collision safety measures active"}
	}
	return s
}
