package models

import (
	"strings"
	"time"
)

// ReportType distinguishes eyewitness statements from police statements
type ReportType string

const (
	ReportWitness ReportType = "witness"
	ReportPolice  ReportType = "police"
)

// Report represents a witness or police statement tied to a moment of the video
type Report struct {
	Type             ReportType `json:"type"`
	Timestamp        float64    `json:"timestamp"`
	Source           string     `json:"source"`
	Statement        string     `json:"statement"`
	CredibilityScore *float64   `json:"credibilityScore,omitempty"`
	OfficerBadge     string     `json:"officerBadge,omitempty"`
	WitnessContact   string     `json:"witnessContact,omitempty"`
}

// ReportKey is the identity used to collapse duplicate reports
type ReportKey struct {
	Timestamp float64
	Source    string
}

// Key returns the dedup identity of the report.
func (r Report) Key() ReportKey {
	return ReportKey{Timestamp: r.Timestamp, Source: r.Source}
}

// DisplayName prefixes the source with its role. Police sources that already
// carry the "Officer" title are not prefixed twice.
func (r Report) DisplayName() string {
	if r.Type == ReportPolice {
		if strings.HasPrefix(r.Source, "Officer ") {
			return r.Source
		}
		return "Officer " + r.Source
	}
	return "Witness " + r.Source
}

// ChatRole is the author of a chat message
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatSession is one conversation with the incident assistant
type ChatSession struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	Channel    string    `json:"channel"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatMessage is an append-only entry in a chat session
type ChatMessage struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Role         ChatRole  `json:"role"`
	Content      string    `json:"content"`
	PlaybackTime float64   `json:"playback_time"`
	CreatedAt    time.Time `json:"created_at"`
}
