package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"incident-review/internal/models"
)

const samplesCSV = `timestamp,speed,acceleration,impact_force,airbag_deployed,autopilot_active,brake_force,damage_severity,weather_conditions,visibility,vehicle_actions
0.0,45,-2,0,false,true,0,0,Clear,Good,Gradual braking;Forward collision warning active
0.5,44.9,-2,0,false,true,0.005,0,Clear,Good,Gradual braking
bad,1,1,1,false,false,0,0,,,
25.0,40,-15,20,true,false,1,0,Clear,Good,Emergency braking engaged
`

func TestParseSamplesCSV(t *testing.T) {
	p := NewParser("")
	samples, err := p.ParseSamples(strings.NewReader(samplesCSV), "csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples (bad row skipped), got %d", len(samples))
	}
	first := samples[0]
	if first.Speed != 45 || !first.AutopilotActive || first.WeatherConditions != "Clear" {
		t.Errorf("unexpected first sample: %+v", first)
	}
	if len(first.VehicleActions) != 2 || first.VehicleActions[1] != "Forward collision warning active" {
		t.Errorf("unexpected actions: %v", first.VehicleActions)
	}
	if !samples[2].AirbagDeployed || samples[2].ImpactForce != 20 {
		t.Errorf("unexpected impact sample: %+v", samples[2])
	}
}

func TestParseSamplesJSONArrayAndLines(t *testing.T) {
	array := `[{"timestamp":0,"speed":45,"observations":[{"type":"vehicle","distance":50,"position":"front","details":"ahead","confidence":0.95}],"vehicleActions":["Gradual braking"],"autopilotActive":true,"brakeForce":0}]`
	lines := `{"timestamp":0,"speed":45}
{"timestamp":0.5,"speed":44.9}
not json
{"timestamp":1.0,"speed":44.8}
`
	p := NewParser("")

	samples, err := p.ParseSamples(strings.NewReader(array), "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 1 || len(samples[0].Observations) != 1 || samples[0].Observations[0].Type != models.ObservationVehicle {
		t.Errorf("unexpected samples: %+v", samples)
	}

	samples, err = p.ParseSamples(strings.NewReader(lines), "jsonl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 3 {
		t.Errorf("expected 3 samples, got %d", len(samples))
	}

	// json falls back to lines
	samples, err = p.ParseSamples(strings.NewReader(lines), "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 3 {
		t.Errorf("expected fallback to parse 3 samples, got %d", len(samples))
	}
}

func TestParseReportsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports.csv")
	content := `type,timestamp,source,statement,credibility_score,officer_badge,witness_contact
witness,48.5,John Smith,I saw the Tesla slow down,0.85,,+1 (555) 0123
police,49.0,Officer Sarah Johnson,Dash cam shows deceleration,,LAPD-7845,
witness,oops,Nobody,Broken row,,,
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	reports, err := NewParser("").ParseReportsFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].CredibilityScore == nil || *reports[0].CredibilityScore != 0.85 {
		t.Errorf("expected credibility 0.85, got %v", reports[0].CredibilityScore)
	}
	if reports[1].Type != models.ReportPolice || reports[1].OfficerBadge != "LAPD-7845" {
		t.Errorf("unexpected police report: %+v", reports[1])
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := NewParser("xml").ParseSamples(strings.NewReader(""), "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestValidateSample(t *testing.T) {
	good := models.TelemetrySample{
		Timestamp:  1,
		Speed:      40,
		BrakeForce: 0.5,
		Observations: []models.VehicleObservation{
			{Type: models.ObservationObstacle, Position: models.PositionFront, Confidence: 0.9},
		},
	}
	if errs := ValidateSample(&good); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}

	bad := models.TelemetrySample{
		Speed:          -1,
		BrakeForce:     1.5,
		DamageSeverity: 2,
		Observations: []models.VehicleObservation{
			{Type: "cat", Position: "above", Confidence: 3},
		},
	}
	if errs := ValidateSample(&bad); len(errs) != 6 {
		t.Errorf("expected 6 errors, got %d: %v", len(errs), errs)
	}
}

func TestValidateReport(t *testing.T) {
	score := 1.2
	r := models.Report{Type: "bystander", Timestamp: 1, CredibilityScore: &score}
	errs := ValidateReport(&r)
	if len(errs) != 4 {
		t.Errorf("expected 4 errors, got %d: %v", len(errs), errs)
	}
}
