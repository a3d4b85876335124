package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"incident-review/internal/models"
)

var (
	// ErrSessionNotFound is returned for an unknown chat session.
	ErrSessionNotFound = errors.New("chat session not found")
	ErrEmptyMessage    = errors.New("message content is required")
)

// Store persists chat sessions and their append-only message log.
// GetChatSession returns nil, nil when the session does not exist.
type Store interface {
	CreateChatSession(ctx context.Context, s *models.ChatSession) error
	GetChatSession(ctx context.Context, id string) (*models.ChatSession, error)
	AppendMessages(ctx context.Context, msgs ...*models.ChatMessage) error
	ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
}

// Service runs chat sessions for one incident.
type Service struct {
	store      Store
	responder  *Responder
	incidentID string
	samples    []models.TelemetrySample
	now        func() time.Time
}

// NewService creates a chat service answering from samples.
func NewService(store Store, incidentID string, samples []models.TelemetrySample, responder *Responder) *Service {
	if responder == nil {
		responder = NewResponder()
	}
	return &Service{
		store:      store,
		responder:  responder,
		incidentID: incidentID,
		samples:    samples,
		now:        time.Now,
	}
}

// StartSession opens a session on channel and writes the greeting.
func (s *Service) StartSession(ctx context.Context, channel string) (*models.ChatSession, []models.ChatMessage, error) {
	session := &models.ChatSession{
		ID:         uuid.NewString(),
		IncidentID: s.incidentID,
		Channel:    channel,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateChatSession(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("create chat session: %w", err)
	}

	greeting := s.message(session.ID, models.RoleAssistant, Greeting, 0)
	if err := s.store.AppendMessages(ctx, greeting); err != nil {
		return nil, nil, fmt.Errorf("store greeting: %w", err)
	}
	return session, []models.ChatMessage{*greeting}, nil
}

// Ask appends the user's question and exactly one assistant reply computed
// for playback time t.
func (s *Service) Ask(ctx context.Context, sessionID string, t float64, text string) (models.ChatMessage, models.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return models.ChatMessage{}, models.ChatMessage{}, ErrEmptyMessage
	}
	if _, err := s.session(ctx, sessionID); err != nil {
		return models.ChatMessage{}, models.ChatMessage{}, err
	}

	user := s.message(sessionID, models.RoleUser, text, t)
	reply := s.message(sessionID, models.RoleAssistant, s.responder.Reply(s.samples, t, text), t)
	if err := s.store.AppendMessages(ctx, user, reply); err != nil {
		return models.ChatMessage{}, models.ChatMessage{}, fmt.Errorf("store exchange: %w", err)
	}
	return *user, *reply, nil
}

// History returns a session and its messages in order.
func (s *Service) History(ctx context.Context, sessionID string) (*models.ChatSession, []models.ChatMessage, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", err)
	}
	return session, msgs, nil
}

// Reply answers without recording anything.
func (s *Service) Reply(t float64, text string) string {
	return s.responder.Reply(s.samples, t, text)
}

func (s *Service) session(ctx context.Context, id string) (*models.ChatSession, error) {
	session, err := s.store.GetChatSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get chat session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) message(sessionID string, role models.ChatRole, content string, t float64) *models.ChatMessage {
	return &models.ChatMessage{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Role:         role,
		Content:      content,
		PlaybackTime: t,
		CreatedAt:    s.now().UTC(),
	}
}
