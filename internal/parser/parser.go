package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"incident-review/internal/models"
)

// Parser handles parsing of incident telemetry and report files
type Parser struct {
	format string
}

// NewParser creates a new parser with the specified format. An empty format
// is inferred from each file's extension.
func NewParser(format string) *Parser {
	return &Parser{format: format}
}

func (p *Parser) formatFor(filename string) string {
	if p.format != "" {
		return strings.ToLower(p.format)
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// ParseSamplesFile parses a telemetry sample file
func (p *Parser) ParseSamplesFile(filename string) ([]models.TelemetrySample, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.ParseSamples(file, p.formatFor(filename))
}

// ParseSamples parses telemetry samples from r
func (p *Parser) ParseSamples(r io.Reader, format string) ([]models.TelemetrySample, error) {
	switch format {
	case "csv":
		return parseCSV(r, recordToSample)
	case "json":
		return parseJSON[models.TelemetrySample](r)
	case "jsonl", "ndjson":
		return parseJSONLines[models.TelemetrySample](r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// ParseReportsFile parses a witness/police report file
func (p *Parser) ParseReportsFile(filename string) ([]models.Report, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.ParseReports(file, p.formatFor(filename))
}

// ParseReports parses reports from r
func (p *Parser) ParseReports(r io.Reader, format string) ([]models.Report, error) {
	switch format {
	case "csv":
		return parseCSV(r, recordToReport)
	case "json":
		return parseJSON[models.Report](r)
	case "jsonl", "ndjson":
		return parseJSONLines[models.Report](r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

type fieldGetter func(key string) string

// parseCSV reads a header-indexed CSV file, converting each row with convert
func parseCSV[T any](r io.Reader, convert func(get fieldGetter) (T, error)) ([]T, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	indices := make(map[string]int)
	for i, h := range header {
		indices[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var results []T
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return results, fmt.Errorf("error at line %d: %w", lineNum, err)
		}
		lineNum++

		get := func(key string) string {
			if idx, ok := indices[key]; ok && idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
			return ""
		}

		item, err := convert(get)
		if err != nil {
			slog.Warn("skipping row", "line", lineNum, "error", err)
			continue
		}
		results = append(results, item)
	}

	return results, nil
}

// recordToSample converts a CSV row to a TelemetrySample. Vehicle actions are
// separated by semicolons; observations are only carried by JSON input.
func recordToSample(get fieldGetter) (models.TelemetrySample, error) {
	var s models.TelemetrySample

	ts := get("timestamp")
	if ts == "" {
		return s, fmt.Errorf("missing timestamp")
	}
	var err error
	if s.Timestamp, err = strconv.ParseFloat(ts, 64); err != nil {
		return s, fmt.Errorf("invalid timestamp: %w", err)
	}

	s.Speed, _ = strconv.ParseFloat(get("speed"), 64)
	s.Acceleration, _ = strconv.ParseFloat(get("acceleration"), 64)
	s.ImpactForce, _ = strconv.ParseFloat(get("impact_force"), 64)
	s.AirbagDeployed, _ = strconv.ParseBool(get("airbag_deployed"))
	s.AutopilotActive, _ = strconv.ParseBool(get("autopilot_active"))
	s.BrakeForce, _ = strconv.ParseFloat(get("brake_force"), 64)
	s.DamageSeverity, _ = strconv.ParseFloat(get("damage_severity"), 64)
	s.WeatherConditions = get("weather_conditions")
	s.Visibility = get("visibility")

	if actions := get("vehicle_actions"); actions != "" {
		for _, a := range strings.Split(actions, ";") {
			if a = strings.TrimSpace(a); a != "" {
				s.VehicleActions = append(s.VehicleActions, a)
			}
		}
	}

	return s, nil
}

// recordToReport converts a CSV row to a Report
func recordToReport(get fieldGetter) (models.Report, error) {
	var r models.Report

	r.Type = models.ReportType(strings.ToLower(get("type")))
	r.Source = get("source")
	r.Statement = get("statement")
	if r.Source == "" {
		return r, fmt.Errorf("missing source")
	}

	ts, err := strconv.ParseFloat(get("timestamp"), 64)
	if err != nil {
		return r, fmt.Errorf("invalid timestamp: %w", err)
	}
	r.Timestamp = ts

	if v := get("credibility_score"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return r, fmt.Errorf("invalid credibility_score: %w", err)
		}
		r.CredibilityScore = &score
	}
	r.OfficerBadge = get("officer_badge")
	r.WitnessContact = get("witness_contact")

	return r, nil
}

// parseJSON parses a JSON array, falling back to newline-delimited JSON
func parseJSON[T any](r io.Reader) ([]T, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var results []T
	if err := json.Unmarshal(data, &results); err == nil {
		return results, nil
	}

	return parseJSONLines[T](bytes.NewReader(data))
}

// parseJSONLines parses newline-delimited JSON
func parseJSONLines[T any](r io.Reader) ([]T, error) {
	var results []T
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "[" || line == "]" {
			continue
		}

		line = strings.TrimSuffix(line, ",")

		var item T
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			slog.Warn("skipping line", "line", lineNum, "error", err)
			continue
		}
		results = append(results, item)
	}

	return results, scanner.Err()
}
