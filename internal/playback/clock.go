// Package playback owns the authoritative playback position and keeps it
// loosely synchronized with a media controller.
package playback

import (
	"math"
	"sync"
)

const (
	// ResyncThreshold is the drift, in seconds, beyond which an external
	// time change moves the media position.
	ResyncThreshold = 0.5

	// SkipStep is the transport skip distance in seconds.
	SkipStep = 10.0
)

// Controller is the minimal surface of a media player.
type Controller interface {
	Position() float64
	SetPosition(t float64)
	Paused() bool
	Play() error
	Pause()
}

// Listener receives the new current time after every change.
type Listener func(t float64)

// Clock is the single owner of currentTime. Mutations and listener calls are
// serialized under one lock, so listeners observe changes in order and must
// not call back into the Clock.
type Clock struct {
	mu        sync.Mutex
	ctrl      Controller
	current   float64
	listeners map[uint64]Listener
	nextID    uint64
}

// NewClock creates a clock driving ctrl.
func NewClock(ctrl Controller) *Clock {
	return &Clock{
		ctrl:      ctrl,
		current:   ctrl.Position(),
		listeners: make(map[uint64]Listener),
	}
}

// CurrentTime returns the authoritative playback time.
func (c *Clock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnProgress is the sink for native progress ticks. It never moves the media.
func (c *Clock) OnProgress(pos float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(pos)
}

// SetCurrentTime applies an external time change. The media is moved only
// when it has drifted more than ResyncThreshold from t. It reports whether
// the media was moved.
func (c *Clock) SetCurrentTime(t float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	moved := false
	if math.Abs(c.ctrl.Position()-t) > ResyncThreshold {
		c.ctrl.SetPosition(t)
		moved = true
	}
	c.set(t)
	return moved
}

// TogglePlay starts playback when paused and pauses it otherwise.
func (c *Clock) TogglePlay() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctrl.Paused() {
		return c.ctrl.Play()
	}
	c.ctrl.Pause()
	return nil
}

// Skip moves the media by delta seconds without clamping; the controller
// decides the resulting position, which then becomes the current time.
func (c *Clock) Skip(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ctrl.SetPosition(c.ctrl.Position() + delta)
	c.set(c.ctrl.Position())
}

// Subscribe registers fn for every time change. The returned func removes it.
func (c *Clock) Subscribe(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Clock) set(t float64) {
	c.current = t
	for _, fn := range c.listeners {
		fn(t)
	}
}
