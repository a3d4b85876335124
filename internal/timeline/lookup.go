// Package timeline derives every time-indexed view of an incident from the
// sample sequence and a playback position. All functions are pure; callers
// pass the samples and the current time explicitly.
package timeline

import (
	"errors"
	"fmt"
	"math"

	"incident-review/internal/models"
)

const (
	// Tolerance is the band within which a playback position matches a sample.
	Tolerance = 0.1

	// ReportWindow is the half-width, in seconds, of the reports panel window.
	ReportWindow = 5.0

	// TableRows is the size of the table window.
	TableRows = 50
)

// ErrOutOfOrder is returned when a sequence is not strictly ascending.
var ErrOutOfOrder = errors.New("samples are not in ascending timestamp order")

// Matches reports whether a timestamp is within tolerance of t.
func Matches(ts, t float64) bool {
	return math.Abs(ts-t) < Tolerance
}

// IndexAt returns the index of the first sample within tolerance of t, or -1.
func IndexAt(samples []models.TelemetrySample, t float64) int {
	for i := range samples {
		if Matches(samples[i].Timestamp, t) {
			return i
		}
	}
	return -1
}

// Lookup returns the current sample for t.
func Lookup(samples []models.TelemetrySample, t float64) (*models.TelemetrySample, bool) {
	i := IndexAt(samples, t)
	if i < 0 {
		return nil, false
	}
	return &samples[i], true
}

// Validate checks the sequence is strictly ascending by timestamp.
func Validate(samples []models.TelemetrySample) error {
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp <= samples[i-1].Timestamp {
			return fmt.Errorf("sample %d at %.2fs follows %.2fs: %w",
				i, samples[i].Timestamp, samples[i-1].Timestamp, ErrOutOfOrder)
		}
	}
	return nil
}

// Duration is the timestamp of the last sample, or zero for an empty sequence.
func Duration(samples []models.TelemetrySample) float64 {
	if len(samples) == 0 {
		return 0
	}
	return samples[len(samples)-1].Timestamp
}

// AttachReports returns a copy of samples where each sample carries every
// report within tolerance of its timestamp. A report may attach to zero, one
// or several samples.
func AttachReports(samples []models.TelemetrySample, reports []models.Report) []models.TelemetrySample {
	out := make([]models.TelemetrySample, len(samples))
	for i, s := range samples {
		s.Reports = nil
		for _, r := range reports {
			if Matches(r.Timestamp, s.Timestamp) {
				s.Reports = append(s.Reports, r)
			}
		}
		out[i] = s
	}
	return out
}

// Summarize computes headline statistics over a sequence.
func Summarize(incidentID string, samples []models.TelemetrySample, reportCount int) models.IncidentSummary {
	sum := models.IncidentSummary{
		IncidentID:    incidentID,
		SampleCount:   len(samples),
		ReportCount:   reportCount,
		Duration:      Duration(samples),
		AirbagFirstAt: -1,
	}
	for _, s := range samples {
		if s.Speed > sum.MaxSpeed {
			sum.MaxSpeed = s.Speed
		}
		if s.ImpactForce > sum.MaxImpact {
			sum.MaxImpact = s.ImpactForce
			sum.ImpactAt = s.Timestamp
		}
		if s.AirbagDeployed && sum.AirbagFirstAt < 0 {
			sum.AirbagFirstAt = s.Timestamp
		}
	}
	return sum
}
