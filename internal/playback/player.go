package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNoMedia is returned when playing a player with nothing loaded.
var ErrNoMedia = errors.New("no media loaded")

// VirtualPlayer is a Controller with no decoder behind it. Positions are
// clamped silently to [0, duration], and playback stops at the end.
type VirtualPlayer struct {
	mu       sync.Mutex
	position float64
	duration float64
	paused   bool
}

// NewVirtualPlayer creates a paused player at position zero.
func NewVirtualPlayer(duration float64) *VirtualPlayer {
	return &VirtualPlayer{duration: duration, paused: true}
}

func (p *VirtualPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *VirtualPlayer) SetPosition(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = p.clamp(t)
}

func (p *VirtualPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *VirtualPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.duration <= 0 {
		return ErrNoMedia
	}
	if p.position >= p.duration {
		p.position = 0
	}
	p.paused = false
	return nil
}

func (p *VirtualPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
}

// Duration returns the media length in seconds.
func (p *VirtualPlayer) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// Advance moves a playing player forward by dt seconds and returns the new
// position. It returns false when the player is paused.
func (p *VirtualPlayer) Advance(dt float64) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return p.position, false
	}
	p.position = p.clamp(p.position + dt)
	if p.position >= p.duration {
		p.paused = true
	}
	return p.position, true
}

// Sync mirrors the state of an external player. The external media may be
// longer than the telemetry, so pos is taken as reported.
func (p *VirtualPlayer) Sync(pos float64, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = pos
	p.paused = paused
}

func (p *VirtualPlayer) clamp(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > p.duration {
		return p.duration
	}
	return t
}

// State is a point-in-time view of a session.
type State struct {
	CurrentTime float64 `json:"current_time"`
	Position    float64 `json:"position"`
	Duration    float64 `json:"duration"`
	Paused      bool    `json:"paused"`
	External    bool    `json:"external"`
}

// Session pairs a Clock with a VirtualPlayer and drives progress ticks.
// Once an external player reports progress it becomes the only source of
// ticks until Detach is called.
type Session struct {
	Clock  *Clock
	Player *VirtualPlayer

	external atomic.Bool
}

// NewSession creates a paused session over media of the given duration.
func NewSession(duration float64) *Session {
	player := NewVirtualPlayer(duration)
	return &Session{Clock: NewClock(player), Player: player}
}

// Run emits a progress tick every interval while the player is playing and
// no external player is attached, until ctx is cancelled.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.external.Load() {
				continue
			}
			if pos, ok := s.Player.Advance(interval.Seconds()); ok {
				s.Clock.OnProgress(pos)
			}
		}
	}
}

// ReportProgress records a progress tick from an external player and
// attaches it.
func (s *Session) ReportProgress(pos float64, paused bool) {
	s.external.Store(true)
	s.Player.Sync(pos, paused)
	s.Clock.OnProgress(pos)
}

// Detach hands progress back to the internal ticker.
func (s *Session) Detach() {
	s.external.Store(false)
}

// External reports whether an external player drives progress.
func (s *Session) External() bool {
	return s.external.Load()
}

// Seek applies an external time change.
func (s *Session) Seek(t float64) {
	s.Clock.SetCurrentTime(t)
}

// Toggle flips between playing and paused.
func (s *Session) Toggle() error {
	return s.Clock.TogglePlay()
}

// Skip moves playback by delta seconds.
func (s *Session) Skip(delta float64) {
	s.Clock.Skip(delta)
}

// State returns the current session state.
func (s *Session) State() State {
	return State{
		CurrentTime: s.Clock.CurrentTime(),
		Position:    s.Player.Position(),
		Duration:    s.Player.Duration(),
		Paused:      s.Player.Paused(),
		External:    s.External(),
	}
}
