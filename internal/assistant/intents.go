// Package assistant answers questions about the incident at the current
// playback time using a fixed, ordered keyword table.
package assistant

import (
	"fmt"
	"strings"

	"incident-review/internal/models"
	"incident-review/internal/timeline"
)

// Greeting opens every chat session.
const Greeting = "Hello! I can help analyze this incident. What would you like to know?"

// Intent is one entry of the dispatch table. It matches when the lower-cased
// question contains any of its keywords.
type Intent struct {
	Name     string
	Keywords []string
	Respond  func(s *models.TelemetrySample, t float64) string
}

// Matches reports whether the lower-cased text triggers the intent.
func (in Intent) Matches(text string) bool {
	for _, k := range in.Keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// DefaultIntents is the priority order of the assistant. The first match wins.
var DefaultIntents = []Intent{
	{Name: "speed", Keywords: []string{"speed"}, Respond: speedReply},
	{Name: "brake", Keywords: []string{"brake", "braking"}, Respond: brakeReply},
	{Name: "impact", Keywords: []string{"impact", "collision"}, Respond: impactReply},
	{Name: "reports", Keywords: []string{"witness", "report"}, Respond: reportsReply},
	{Name: "autopilot", Keywords: []string{"autopilot"}, Respond: autopilotReply},
	{Name: "airbag", Keywords: []string{"airbag"}, Respond: airbagReply},
}

// Summary is the reply used when no intent matches.
var Summary = Intent{Name: "summary", Respond: summaryReply}

// Responder evaluates an intent table in order.
type Responder struct {
	intents  []Intent
	fallback Intent
}

// NewResponder creates a responder over intents, or DefaultIntents when none
// are given.
func NewResponder(intents ...Intent) *Responder {
	if len(intents) == 0 {
		intents = DefaultIntents
	}
	return &Responder{intents: intents, fallback: Summary}
}

// Match returns the intent that answers text.
func (r *Responder) Match(text string) Intent {
	lower := strings.ToLower(text)
	for _, in := range r.intents {
		if in.Matches(lower) {
			return in
		}
	}
	return r.fallback
}

// Reply answers text for the sample current at t. Without a current sample
// the reply is empty.
func (r *Responder) Reply(samples []models.TelemetrySample, t float64, text string) string {
	s, ok := timeline.Lookup(samples, t)
	if !ok {
		return ""
	}
	return r.Match(text).Respond(s, t)
}

func speedReply(s *models.TelemetrySample, t float64) string {
	return fmt.Sprintf("At %.1fs, the vehicle was traveling at %.1f mph.", t, s.Speed)
}

func brakeReply(s *models.TelemetrySample, _ float64) string {
	return fmt.Sprintf("Brake force was at %s with %s.",
		timeline.Percent(s.BrakeForce), strings.Join(s.VehicleActions, ", "))
}

func impactReply(s *models.TelemetrySample, _ float64) string {
	return fmt.Sprintf("Impact force was %.1fG with damage severity at %s.",
		s.ImpactForce, timeline.Percent(s.DamageSeverity))
}

func reportsReply(s *models.TelemetrySample, t float64) string {
	if len(s.Reports) == 0 {
		return fmt.Sprintf("No witness or police reports available for timestamp %.1fs.", t)
	}
	parts := make([]string, len(s.Reports))
	for i, r := range s.Reports {
		parts[i] = fmt.Sprintf("%s reported: %s", r.DisplayName(), r.Statement)
	}
	return fmt.Sprintf("At %.1fs: %s", t, strings.Join(parts, " "))
}

func autopilotReply(s *models.TelemetrySample, t float64) string {
	state := "inactive"
	if s.AutopilotActive {
		state = "active"
	}
	return fmt.Sprintf("At %.1fs, Autopilot was %s.", t, state)
}

func airbagReply(s *models.TelemetrySample, t float64) string {
	state := "not deployed"
	if s.AirbagDeployed {
		state = "deployed"
	}
	return fmt.Sprintf("At %.1fs, airbags were %s.", t, state)
}

func summaryReply(s *models.TelemetrySample, t float64) string {
	autopilot := "Inactive"
	if s.AutopilotActive {
		autopilot = "Active"
	}
	return fmt.Sprintf("At %.1fs: Speed %.1f mph, Impact %.1fG, Autopilot %s", t, s.Speed, s.ImpactForce, autopilot)
}
