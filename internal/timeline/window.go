package timeline

import (
	"fmt"
	"math"
	"sort"

	"incident-review/internal/models"
)

// TableRow is a sample shown in the table window.
type TableRow struct {
	models.TelemetrySample
	Current bool `json:"current"`
}

// TableWindow is a bounded slice of the sequence around the current sample.
type TableWindow struct {
	Start int        `json:"start"`
	End   int        `json:"end"`
	Rows  []TableRow `json:"rows"`
}

// Window returns up to TableRows rows around the sample matching t: the 25
// before it through the 25 after, clamped to the sequence. Without a match it
// returns the first TableRows rows.
func Window(samples []models.TelemetrySample, t float64) TableWindow {
	half := TableRows / 2
	var start, end int
	if idx := IndexAt(samples, t); idx >= 0 {
		start = max(0, idx-half)
		end = min(len(samples), idx+half)
	} else {
		end = min(len(samples), TableRows)
	}

	rows := make([]TableRow, 0, end-start)
	for _, s := range samples[start:end] {
		rows = append(rows, TableRow{TelemetrySample: s, Current: Matches(s.Timestamp, t)})
	}
	return TableWindow{Start: start, End: end, Rows: rows}
}

// ReportEntry is a report as shown in the reports panel.
type ReportEntry struct {
	models.Report
	Name    string  `json:"name"`
	Current bool    `json:"current"`
	Delta   float64 `json:"delta"`
}

// Credibility formats the witness credibility score as a percentage, or ""
// when none is recorded.
func (e ReportEntry) Credibility() string {
	if e.Type != models.ReportWitness || e.CredibilityScore == nil || *e.CredibilityScore == 0 {
		return ""
	}
	return Percent(*e.CredibilityScore)
}

// ReportsNear collects the reports attached to samples within ReportWindow of
// t, drops duplicates by (timestamp, source) keeping the first, and orders
// them by distance from t. Ties keep their relative order.
func ReportsNear(samples []models.TelemetrySample, t float64) []ReportEntry {
	seen := make(map[models.ReportKey]bool)
	var entries []ReportEntry
	for _, s := range samples {
		if math.Abs(s.Timestamp-t) > ReportWindow {
			continue
		}
		for _, r := range s.Reports {
			if seen[r.Key()] {
				continue
			}
			seen[r.Key()] = true
			entries = append(entries, ReportEntry{
				Report:  r,
				Name:    r.DisplayName(),
				Current: Matches(r.Timestamp, t),
				Delta:   math.Abs(r.Timestamp - t),
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Delta < entries[j].Delta
	})
	return entries
}

// Metrics are the headline numbers for the current sample.
type Metrics struct {
	Timestamp      float64 `json:"timestamp"`
	DamageSeverity float64 `json:"damage_severity_pct"`
	ImpactForce    float64 `json:"impact_force"`
}

// MetricCard is one labelled headline value.
type MetricCard struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Cards renders the metrics in display order.
func (m Metrics) Cards() []MetricCard {
	return []MetricCard{
		{Label: "Damage Severity", Value: fmt.Sprintf("%.0f%%", m.DamageSeverity)},
		{Label: "Impact Force", Value: fmt.Sprintf("%.1fG", m.ImpactForce)},
	}
}

// MetricsAt returns the metrics for the sample matching t.
func MetricsAt(samples []models.TelemetrySample, t float64) (*Metrics, bool) {
	s, ok := Lookup(samples, t)
	if !ok {
		return nil, false
	}
	return &Metrics{
		Timestamp:      s.Timestamp,
		DamageSeverity: math.Round(s.DamageSeverity * 100),
		ImpactForce:    s.ImpactForce,
	}, true
}

// Percent formats a 0..1 ratio as a whole percentage, rounding halves up.
func Percent(v float64) string {
	return fmt.Sprintf("%.0f%%", math.Round(v*100))
}
