package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"incident-review/internal/models"
	"incident-review/internal/timeline"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested incident does not exist
var ErrNotFound = errors.New("not found")

// Database wraps the SQLite connection
type Database struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dbPath string) (*Database, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1) // single writer
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &Database{conn: conn}

	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates tables and indexes
func (db *Database) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		case_number TEXT NOT NULL,
		title TEXT NOT NULL,
		video_url TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS samples (
		incident_id TEXT NOT NULL,
		timestamp REAL NOT NULL,
		speed REAL NOT NULL,
		acceleration REAL NOT NULL,
		impact_force REAL NOT NULL,
		airbag_deployed INTEGER NOT NULL,
		autopilot_active INTEGER NOT NULL,
		brake_force REAL NOT NULL,
		damage_severity REAL NOT NULL,
		weather_conditions TEXT NOT NULL,
		visibility TEXT NOT NULL,
		observations TEXT NOT NULL,
		vehicle_actions TEXT NOT NULL,
		PRIMARY KEY (incident_id, timestamp),
		FOREIGN KEY (incident_id) REFERENCES incidents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		incident_id TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('witness', 'police')),
		timestamp REAL NOT NULL,
		source TEXT NOT NULL,
		statement TEXT NOT NULL,
		credibility_score REAL,
		officer_badge TEXT,
		witness_contact TEXT,
		UNIQUE (incident_id, timestamp, source),
		FOREIGN KEY (incident_id) REFERENCES incidents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		incident_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (incident_id) REFERENCES incidents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		playback_time REAL NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_reports_incident_timestamp ON reports(incident_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, seq);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// UpsertIncident adds or updates an incident
func (db *Database) UpsertIncident(ctx context.Context, inc *models.Incident) error {
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO incidents (id, case_number, title, video_url, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			case_number = excluded.case_number,
			title = excluded.title,
			video_url = excluded.video_url
	`
	if _, err := db.conn.ExecContext(ctx, query, inc.ID, inc.CaseNumber, inc.Title, inc.VideoURL, inc.CreatedAt); err != nil {
		return fmt.Errorf("upsert incident %s: %w", inc.ID, err)
	}
	return nil
}

// GetIncident retrieves an incident by ID
func (db *Database) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	query := `SELECT id, case_number, title, video_url, created_at FROM incidents WHERE id = ?`

	var inc models.Incident
	err := db.conn.QueryRowContext(ctx, query, id).Scan(&inc.ID, &inc.CaseNumber, &inc.Title, &inc.VideoURL, &inc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get incident %s: %w", id, err)
	}
	return &inc, nil
}

// ListIncidents returns all incidents
func (db *Database) ListIncidents(ctx context.Context) ([]models.Incident, error) {
	query := `SELECT id, case_number, title, video_url, created_at FROM incidents ORDER BY created_at, id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incidents []models.Incident
	for rows.Next() {
		var inc models.Incident
		if err := rows.Scan(&inc.ID, &inc.CaseNumber, &inc.Title, &inc.VideoURL, &inc.CreatedAt); err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// ReplaceSamples swaps the sample sequence of an incident in one transaction.
// The sequence must be ascending and free of duplicate timestamps.
func (db *Database) ReplaceSamples(ctx context.Context, incidentID string, samples []models.TelemetrySample) (int64, error) {
	if err := timeline.Validate(samples); err != nil {
		return 0, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM samples WHERE incident_id = ?`, incidentID); err != nil {
		return 0, fmt.Errorf("clear samples: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples
		(incident_id, timestamp, speed, acceleration, impact_force, airbag_deployed, autopilot_active,
		 brake_force, damage_severity, weather_conditions, visibility, observations, vehicle_actions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var count int64
	for _, s := range samples {
		observations, err := json.Marshal(nonNil(s.Observations))
		if err != nil {
			return count, fmt.Errorf("encode observations at %.2fs: %w", s.Timestamp, err)
		}
		actions, err := json.Marshal(nonNil(s.VehicleActions))
		if err != nil {
			return count, fmt.Errorf("encode actions at %.2fs: %w", s.Timestamp, err)
		}

		_, err = stmt.ExecContext(ctx,
			incidentID, s.Timestamp, s.Speed, s.Acceleration, s.ImpactForce, s.AirbagDeployed,
			s.AutopilotActive, s.BrakeForce, s.DamageSeverity, s.WeatherConditions, s.Visibility,
			string(observations), string(actions),
		)
		if err != nil {
			return count, fmt.Errorf("insert sample at %.2fs: %w", s.Timestamp, err)
		}
		count++
	}

	return count, tx.Commit()
}

// LoadSamples returns the samples of an incident in ascending order
func (db *Database) LoadSamples(ctx context.Context, incidentID string) ([]models.TelemetrySample, error) {
	query := `
		SELECT timestamp, speed, acceleration, impact_force, airbag_deployed, autopilot_active,
		       brake_force, damage_severity, weather_conditions, visibility, observations, vehicle_actions
		FROM samples
		WHERE incident_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.TelemetrySample
	for rows.Next() {
		var s models.TelemetrySample
		var observations, actions string

		err := rows.Scan(
			&s.Timestamp, &s.Speed, &s.Acceleration, &s.ImpactForce, &s.AirbagDeployed,
			&s.AutopilotActive, &s.BrakeForce, &s.DamageSeverity, &s.WeatherConditions,
			&s.Visibility, &observations, &actions,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(observations), &s.Observations); err != nil {
			return nil, fmt.Errorf("decode observations at %.2fs: %w", s.Timestamp, err)
		}
		if err := json.Unmarshal([]byte(actions), &s.VehicleActions); err != nil {
			return nil, fmt.Errorf("decode actions at %.2fs: %w", s.Timestamp, err)
		}
		results = append(results, s)
	}

	return results, rows.Err()
}

// InsertReports stores reports for an incident, ignoring ones already present
// with the same timestamp and source
func (db *Database) InsertReports(ctx context.Context, incidentID string, reports []models.Report) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO reports
		(incident_id, type, timestamp, source, statement, credibility_score, officer_badge, witness_contact)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var count int64
	for _, r := range reports {
		res, err := stmt.ExecContext(ctx,
			incidentID, r.Type, r.Timestamp, r.Source, r.Statement,
			r.CredibilityScore, nullString(r.OfficerBadge), nullString(r.WitnessContact),
		)
		if err != nil {
			return count, fmt.Errorf("insert report %s at %.2fs: %w", r.Source, r.Timestamp, err)
		}
		n, _ := res.RowsAffected()
		count += n
	}

	return count, tx.Commit()
}

// LoadReports returns the reports of an incident in insertion order
func (db *Database) LoadReports(ctx context.Context, incidentID string) ([]models.Report, error) {
	query := `
		SELECT type, timestamp, source, statement, credibility_score, officer_badge, witness_contact
		FROM reports
		WHERE incident_id = ?
		ORDER BY id ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.Report
	for rows.Next() {
		var r models.Report
		var score sql.NullFloat64
		var badge, contact sql.NullString

		if err := rows.Scan(&r.Type, &r.Timestamp, &r.Source, &r.Statement, &score, &badge, &contact); err != nil {
			return nil, err
		}
		if score.Valid {
			v := score.Float64
			r.CredibilityScore = &v
		}
		r.OfficerBadge = badge.String
		r.WitnessContact = contact.String
		results = append(results, r)
	}

	return results, rows.Err()
}

// LoadIncidentData loads an incident with its samples, attaching each report
// to the samples within tolerance of its timestamp
func (db *Database) LoadIncidentData(ctx context.Context, incidentID string) (*models.Incident, []models.TelemetrySample, []models.Report, error) {
	inc, err := db.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, nil, nil, err
	}
	samples, err := db.LoadSamples(ctx, incidentID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load samples: %w", err)
	}
	reports, err := db.LoadReports(ctx, incidentID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load reports: %w", err)
	}
	return inc, timeline.AttachReports(samples, reports), reports, nil
}

// GetIncidentSummary returns aggregated statistics for an incident
func (db *Database) GetIncidentSummary(ctx context.Context, incidentID string) (*models.IncidentSummary, error) {
	_, samples, reports, err := db.LoadIncidentData(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	sum := timeline.Summarize(incidentID, samples, len(reports))
	return &sum, nil
}

// GetStats returns database statistics
func (db *Database) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	counts := []struct {
		key   string
		query string
	}{
		{"total_incidents", "SELECT COUNT(*) FROM incidents"},
		{"total_samples", "SELECT COUNT(*) FROM samples"},
		{"total_reports", "SELECT COUNT(*) FROM reports"},
		{"chat_sessions", "SELECT COUNT(*) FROM chat_sessions"},
		{"chat_messages", "SELECT COUNT(*) FROM chat_messages"},
	}
	for _, c := range counts {
		var n int64
		if err := db.conn.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.key, err)
		}
		stats[c.key] = n
	}

	return stats, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
