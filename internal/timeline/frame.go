package timeline

import "incident-review/internal/models"

// Placeholder messages for panels with nothing to show.
const (
	NoSampleMessage  = "No telemetry sample at this time"
	NoReportsMessage = "No reports available for this timeframe"
)

// Frame is every panel of the dashboard derived for one playback position.
type Frame struct {
	CurrentTime float64                 `json:"current_time"`
	Found       bool                    `json:"found"`
	Sample      *models.TelemetrySample `json:"sample,omitempty"`
	Metrics     *Metrics                `json:"metrics,omitempty"`
	Cards       []MetricCard            `json:"cards,omitempty"`
	Table       TableWindow             `json:"table"`
	Reports     []ReportEntry           `json:"reports"`
	Notice      string                  `json:"notice,omitempty"`
	ReportsNote string                  `json:"reports_notice,omitempty"`
}

// Snapshot derives a full Frame for t. A position with no matching sample
// yields Found=false and a notice instead of metrics.
func Snapshot(samples []models.TelemetrySample, t float64) Frame {
	f := Frame{
		CurrentTime: t,
		Table:       Window(samples, t),
		Reports:     ReportsNear(samples, t),
	}
	if s, ok := Lookup(samples, t); ok {
		m, _ := MetricsAt(samples, t)
		f.Found = true
		f.Sample = s
		f.Metrics = m
		f.Cards = m.Cards()
	} else {
		f.Notice = NoSampleMessage
	}
	if len(f.Reports) == 0 {
		f.Reports = []ReportEntry{}
		f.ReportsNote = NoReportsMessage
	}
	return f
}
