package timeline

import (
	"errors"
	"reflect"
	"testing"

	"incident-review/internal/models"
)

func makeSamples(n int) []models.TelemetrySample {
	samples := make([]models.TelemetrySample, n)
	for i := range samples {
		samples[i] = models.TelemetrySample{
			Timestamp: float64(i) * 0.5,
			Speed:     45 - float64(i)*0.1,
		}
	}
	return samples
}

func TestLookupTolerance(t *testing.T) {
	samples := makeSamples(100)

	tests := []struct {
		t       float64
		wantIdx int
	}{
		{25.0, 50},
		{25.05, 50},
		{24.95, 50},
		{25.1, -1},
		{25.25, -1},
		{0, 0},
		{49.5, 99},
		{-3, -1},
		{500, -1},
	}
	for _, tt := range tests {
		if got := IndexAt(samples, tt.t); got != tt.wantIdx {
			t.Errorf("IndexAt(%v): expected %d, got %d", tt.t, tt.wantIdx, got)
		}
		s, ok := Lookup(samples, tt.t)
		if ok != (tt.wantIdx >= 0) {
			t.Errorf("Lookup(%v): expected found=%v, got %v", tt.t, tt.wantIdx >= 0, ok)
		}
		if ok && s.Timestamp != samples[tt.wantIdx].Timestamp {
			t.Errorf("Lookup(%v): expected timestamp %v, got %v", tt.t, samples[tt.wantIdx].Timestamp, s.Timestamp)
		}
	}
}

func TestAtMostOneCurrentSample(t *testing.T) {
	samples := makeSamples(100)
	for step := -100; step <= 5100; step++ {
		now := float64(step) / 100
		count := 0
		for _, s := range samples {
			if Matches(s.Timestamp, now) {
				count++
			}
		}
		if count > 1 {
			t.Fatalf("expected at most one current sample at %v, got %d", now, count)
		}
	}
}

func TestWindowBounds(t *testing.T) {
	samples := makeSamples(100)

	tests := []struct {
		name       string
		t          float64
		start, end int
		currentRow int
	}{
		{"clamped low", 1.0, 0, 27, 2},
		{"centered", 25.0, 25, 75, 25},
		{"clamped high", 49.0, 73, 100, 25},
		{"first sample", 0, 0, 25, 0},
		{"no match", 500, 0, 50, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Window(samples, tt.t)
			if w.Start != tt.start || w.End != tt.end {
				t.Fatalf("expected [%d,%d), got [%d,%d)", tt.start, tt.end, w.Start, w.End)
			}
			if len(w.Rows) != tt.end-tt.start {
				t.Fatalf("expected %d rows, got %d", tt.end-tt.start, len(w.Rows))
			}
			for i, row := range w.Rows {
				if row.Current != (i == tt.currentRow) {
					t.Errorf("row %d: expected current=%v, got %v", i, i == tt.currentRow, row.Current)
				}
			}
		})
	}
}

func TestWindowShortSequence(t *testing.T) {
	samples := makeSamples(10)
	w := Window(samples, 100)
	if len(w.Rows) != 10 {
		t.Errorf("expected 10 rows, got %d", len(w.Rows))
	}
	if len(Window(nil, 0).Rows) != 0 {
		t.Errorf("expected no rows for empty sequence")
	}
}

func witness(ts float64, source, statement string) models.Report {
	return models.Report{Type: models.ReportWitness, Timestamp: ts, Source: source, Statement: statement}
}

func timestamps(entries []ReportEntry) []float64 {
	out := make([]float64, len(entries))
	for i, e := range entries {
		out[i] = e.Timestamp
	}
	return out
}

func TestReportsNearOrdersByDistance(t *testing.T) {
	samples := []models.TelemetrySample{{
		Timestamp: 40.0,
		Reports: []models.Report{
			witness(20.0, "James Wilson", "a"),
			witness(35.0, "Emily Rodriguez", "b"),
			witness(49.5, "David Chang", "c"),
		},
	}}

	got := timestamps(ReportsNear(samples, 40.0))
	want := []float64{35.0, 49.5, 20.0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestReportsNearWindowIsInclusive(t *testing.T) {
	samples := []models.TelemetrySample{
		{Timestamp: 34.5, Reports: []models.Report{witness(34.5, "Outside", "x")}},
		{Timestamp: 35.0, Reports: []models.Report{witness(35.0, "Edge", "y")}},
		{Timestamp: 45.0, Reports: []models.Report{witness(45.0, "Other edge", "z")}},
	}

	entries := ReportsNear(samples, 40.0)
	if len(entries) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Source == "Outside" {
			t.Errorf("report at 34.5 should be outside the window")
		}
	}
}

func TestReportsNearDeduplicatesKeepingFirst(t *testing.T) {
	samples := []models.TelemetrySample{
		{Timestamp: 48.5, Reports: []models.Report{witness(48.5, "John Smith", "first")}},
		{Timestamp: 49.0, Reports: []models.Report{witness(48.5, "John Smith", "second")}},
	}

	entries := ReportsNear(samples, 48.5)
	if len(entries) != 1 {
		t.Fatalf("expected 1 report, got %d", len(entries))
	}
	if entries[0].Statement != "first" {
		t.Errorf("expected first occurrence to be kept, got %q", entries[0].Statement)
	}
	if !entries[0].Current {
		t.Errorf("expected report at 48.5 to be current")
	}
}

func TestReportsNearStableTies(t *testing.T) {
	samples := []models.TelemetrySample{
		{Timestamp: 49.5, Reports: []models.Report{witness(49.5, "Before", "a")}},
		{Timestamp: 50.0, Reports: []models.Report{witness(50.0, "Now", "b")}},
		{Timestamp: 50.5, Reports: []models.Report{witness(50.5, "After", "c")}},
	}

	entries := ReportsNear(samples, 50.0)
	var names []string
	for _, e := range entries {
		names = append(names, e.Source)
	}
	want := []string{"Now", "Before", "After"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}
}

func TestReportsNearIdempotent(t *testing.T) {
	reports := []models.Report{
		witness(20.0, "James Wilson", "a"),
		witness(48.5, "John Smith", "b"),
		{Type: models.ReportPolice, Timestamp: 49.0, Source: "Officer Sarah Johnson", Statement: "c"},
		witness(49.5, "David Chang", "d"),
	}
	samples := AttachReports(makeSamples(100), reports)

	first := ReportsNear(samples, 49.0)
	second := ReportsNear(samples, 49.0)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical results on repeated runs")
	}
	if len(first) != 3 {
		t.Errorf("expected 3 reports near 49.0, got %d", len(first))
	}
	if first[0].Name != "Officer Sarah Johnson" {
		t.Errorf("expected closest report first, got %q", first[0].Name)
	}
}

func TestAttachReportsByProximity(t *testing.T) {
	samples := []models.TelemetrySample{{Timestamp: 0}, {Timestamp: 0.05}, {Timestamp: 0.5}}
	reports := []models.Report{witness(0.02, "Close", "x"), witness(3.0, "Orphan", "y")}

	attached := AttachReports(samples, reports)
	if len(attached[0].Reports) != 1 || len(attached[1].Reports) != 1 {
		t.Fatalf("expected the report on both nearby samples")
	}
	if len(attached[2].Reports) != 0 {
		t.Errorf("expected no reports on distant sample")
	}
	if samples[0].Reports != nil {
		t.Errorf("input samples must not be modified")
	}

	entries := ReportsNear(attached, 0)
	if len(entries) != 1 {
		t.Errorf("expected duplicate attachments to collapse, got %d", len(entries))
	}
}

func TestMetricsAt(t *testing.T) {
	samples := []models.TelemetrySample{
		{Timestamp: 25.5, ImpactForce: 18.1, DamageSeverity: 0.6},
	}

	m, ok := MetricsAt(samples, 25.5)
	if !ok {
		t.Fatal("expected metrics")
	}
	if m.DamageSeverity != 60 {
		t.Errorf("expected 60, got %v", m.DamageSeverity)
	}
	cards := m.Cards()
	if cards[0].Value != "60%" || cards[1].Value != "18.1G" {
		t.Errorf("unexpected cards: %+v", cards)
	}

	if _, ok := MetricsAt(samples, 30); ok {
		t.Errorf("expected no metrics away from any sample")
	}
}

func TestSnapshotWithoutSample(t *testing.T) {
	f := Snapshot(makeSamples(100), 1000)
	if f.Found || f.Metrics != nil || f.Sample != nil {
		t.Errorf("expected no current sample")
	}
	if f.Notice != NoSampleMessage {
		t.Errorf("expected notice %q, got %q", NoSampleMessage, f.Notice)
	}
	if f.ReportsNote != NoReportsMessage || len(f.Reports) != 0 {
		t.Errorf("expected empty reports placeholder")
	}
	if len(f.Table.Rows) != TableRows {
		t.Errorf("expected fallback table of %d rows, got %d", TableRows, len(f.Table.Rows))
	}
}

func TestSnapshotWithSample(t *testing.T) {
	f := Snapshot(makeSamples(100), 25.0)
	if !f.Found || f.Sample.Timestamp != 25.0 {
		t.Fatalf("expected sample at 25.0")
	}
	if len(f.Cards) != 2 || f.Notice != "" {
		t.Errorf("expected two cards and no notice")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(makeSamples(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []models.TelemetrySample{{Timestamp: 0}, {Timestamp: 1}, {Timestamp: 1}}
	if err := Validate(bad); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("expected ErrOutOfOrder, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	samples := []models.TelemetrySample{
		{Timestamp: 0, Speed: 45},
		{Timestamp: 0.5, Speed: 40, ImpactForce: 20, AirbagDeployed: true},
		{Timestamp: 1.0, Speed: 39, ImpactForce: 18},
	}
	sum := Summarize("TES-1", samples, 2)
	if sum.MaxSpeed != 45 || sum.MaxImpact != 20 || sum.ImpactAt != 0.5 || sum.AirbagFirstAt != 0.5 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if sum.Duration != 1.0 || sum.SampleCount != 3 || sum.ReportCount != 2 {
		t.Errorf("unexpected counts: %+v", sum)
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(0.25); got != "25%" {
		t.Errorf("expected 25%%, got %s", got)
	}
	if got := Percent(0.88); got != "88%" {
		t.Errorf("expected 88%%, got %s", got)
	}
}
