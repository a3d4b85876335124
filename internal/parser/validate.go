package parser

import (
	"fmt"

	"incident-review/internal/models"
)

var (
	observationTypes = map[models.ObservationType]bool{
		models.ObservationPedestrian:    true,
		models.ObservationVehicle:       true,
		models.ObservationObstacle:      true,
		models.ObservationTrafficSignal: true,
	}
	positions = map[models.Position]bool{
		models.PositionFront: true,
		models.PositionLeft:  true,
		models.PositionRight: true,
	}
)

// ValidateSample validates a telemetry sample
func ValidateSample(s *models.TelemetrySample) []string {
	var errors []string

	if s.Timestamp < 0 {
		errors = append(errors, "timestamp cannot be negative")
	}
	if s.Speed < 0 {
		errors = append(errors, "speed cannot be negative")
	}
	if s.ImpactForce < 0 {
		errors = append(errors, "impact_force cannot be negative")
	}
	if s.BrakeForce < 0 || s.BrakeForce > 1 {
		errors = append(errors, "brakeForce must be between 0 and 1")
	}
	if s.DamageSeverity < 0 || s.DamageSeverity > 1 {
		errors = append(errors, "damage_severity must be between 0 and 1")
	}
	for i, o := range s.Observations {
		if !observationTypes[o.Type] {
			errors = append(errors, fmt.Sprintf("observation %d: unknown type %q", i, o.Type))
		}
		if !positions[o.Position] {
			errors = append(errors, fmt.Sprintf("observation %d: unknown position %q", i, o.Position))
		}
		if o.Confidence < 0 || o.Confidence > 1 {
			errors = append(errors, fmt.Sprintf("observation %d: confidence must be between 0 and 1", i))
		}
	}

	return errors
}

// ValidateReport validates a witness or police report
func ValidateReport(r *models.Report) []string {
	var errors []string

	if r.Type != models.ReportWitness && r.Type != models.ReportPolice {
		errors = append(errors, fmt.Sprintf("type must be witness or police, got %q", r.Type))
	}
	if r.Source == "" {
		errors = append(errors, "source is required")
	}
	if r.Statement == "" {
		errors = append(errors, "statement is required")
	}
	if r.Timestamp < 0 {
		errors = append(errors, "timestamp cannot be negative")
	}
	if r.CredibilityScore != nil && (*r.CredibilityScore < 0 || *r.CredibilityScore > 1) {
		errors = append(errors, "credibilityScore must be between 0 and 1")
	}

	return errors
}
