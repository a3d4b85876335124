// Package websocket pushes dashboard frames to browsers and accepts
// transport commands from them.
package websocket

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"incident-review/internal/models"
	"incident-review/internal/playback"
	"incident-review/internal/timeline"
)

// Hub tracks connected clients and broadcasts a frame on every playback
// change.
type Hub struct {
	session *playback.Session
	samples []models.TelemetrySample

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	changed    chan struct{}
	done       chan struct{}
	mu         sync.RWMutex

	framesSent atomic.Int64
}

// NewHub creates a hub over session and the incident's samples.
func NewHub(session *playback.Session, samples []models.TelemetrySample) *Hub {
	return &Hub{
		session:    session,
		samples:    samples,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, sendBufferSize),
		changed:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Run serves clients until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	slog.Info("websocket hub started")
	cancel := h.session.Clock.Subscribe(func(float64) { h.Notify() })
	defer func() {
		cancel()
		close(h.done)
		h.closeAll()
		slog.Info("websocket hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			slog.Info("websocket client connected", "client", client.id, "clients", count)

			client.sendMessage(newMessage(TypeWelcome, map[string]interface{}{
				"message":   "Connected to incident review",
				"client_id": client.id,
			}))
			client.sendMessage(newMessage(TypeFrame, h.CurrentFrame()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				slog.Info("websocket client disconnected", "client", client.id, "clients", len(h.clients))
				if len(h.clients) == 0 {
					h.session.Detach()
				}
			}
			h.mu.Unlock()

		case <-h.changed:
			data, err := Serialize(newMessage(TypeFrame, h.CurrentFrame()))
			if err != nil {
				slog.Error("serialize frame", "error", err)
				continue
			}
			h.fanOut(data)
			h.framesSent.Add(1)

		case data := <-h.broadcast:
			h.fanOut(data)
		}
	}
}

func (h *Hub) fanOut(data []byte) {
	h.mu.RLock()
	var dead []*Client
	for client := range h.clients {
		if !client.enqueue(data) {
			dead = append(dead, client)
		}
	}
	h.mu.RUnlock()

	if len(dead) == 0 {
		return
	}
	h.mu.Lock()
	for _, client := range dead {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			client.close()
			slog.Warn("dropping slow websocket client", "client", client.id)
		}
	}
	h.mu.Unlock()
}

// Notify schedules a frame broadcast. Bursts collapse into one frame.
func (h *Hub) Notify() {
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// Broadcast sends m to every client.
func (h *Hub) Broadcast(m Message) error {
	data, err := Serialize(m)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
	return nil
}

// CurrentFrame derives the frame for the session's current time.
func (h *Hub) CurrentFrame() FramePayload {
	state := h.session.State()
	return FramePayload{
		Frame:    timeline.Snapshot(h.samples, state.CurrentTime),
		Playback: state,
	}
}

func (h *Hub) handleCommand(c *Client, cmd Command) {
	switch cmd.Type {
	case CmdTimeUpdate:
		if cmd.Time == nil {
			c.sendMessage(errorMessage("timeupdate requires time"))
			return
		}
		paused := h.session.Player.Paused()
		if cmd.Paused != nil {
			paused = *cmd.Paused
		}
		h.session.ReportProgress(*cmd.Time, paused)

	case CmdSeek:
		if cmd.Time == nil {
			c.sendMessage(errorMessage("seek requires time"))
			return
		}
		h.session.Seek(*cmd.Time)

	case CmdToggle:
		if err := h.session.Toggle(); err != nil {
			c.sendMessage(errorMessage(err.Error()))
			return
		}
		h.Notify()

	case CmdSkip:
		delta := playback.SkipStep
		if cmd.Seconds != nil {
			delta = *cmd.Seconds
		}
		h.session.Skip(delta)

	case CmdPing:
		var t float64
		if cmd.Time != nil {
			t = *cmd.Time
		}
		c.sendMessage(newMessage(TypePong, PongPayload{Time: t, ServerTime: time.Now().UnixMilli()}))

	default:
		slog.Warn("unknown websocket command", "client", c.id, "type", cmd.Type)
		c.sendMessage(errorMessage("unknown command: " + cmd.Type))
	}
}

func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.close()
		delete(h.clients, client)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns hub counters.
func (h *Hub) Stats() map[string]interface{} {
	return map[string]interface{}{
		"clients":     h.ClientCount(),
		"frames_sent": h.framesSent.Load(),
	}
}
