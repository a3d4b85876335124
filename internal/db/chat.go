package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"incident-review/internal/models"
)

// CreateChatSession stores a new chat session
func (db *Database) CreateChatSession(ctx context.Context, s *models.ChatSession) error {
	query := `INSERT INTO chat_sessions (id, incident_id, channel, created_at) VALUES (?, ?, ?, ?)`
	if _, err := db.conn.ExecContext(ctx, query, s.ID, s.IncidentID, s.Channel, s.CreatedAt); err != nil {
		return fmt.Errorf("insert chat session: %w", err)
	}
	return nil
}

// GetChatSession retrieves a chat session, or nil when it does not exist
func (db *Database) GetChatSession(ctx context.Context, id string) (*models.ChatSession, error) {
	query := `SELECT id, incident_id, channel, created_at FROM chat_sessions WHERE id = ?`

	var s models.ChatSession
	err := db.conn.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.IncidentID, &s.Channel, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// AppendMessages appends messages to their sessions in one transaction
func (db *Database) AppendMessages(ctx context.Context, msgs ...*models.ChatMessage) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, playback_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range msgs {
		if _, err := stmt.ExecContext(ctx, m.ID, m.SessionID, m.Role, m.Content, m.PlaybackTime, m.CreatedAt); err != nil {
			return fmt.Errorf("insert %s message: %w", m.Role, err)
		}
	}
	return tx.Commit()
}

// ListMessages returns the messages of a session in the order they were appended
func (db *Database) ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	query := `
		SELECT id, session_id, role, content, playback_time, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY seq ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.PlaybackTime, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
