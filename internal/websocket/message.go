package websocket

import (
	"encoding/json"
	"time"

	"incident-review/internal/playback"
	"incident-review/internal/timeline"
)

// Outbound message types.
const (
	TypeWelcome = "welcome"
	TypeFrame   = "frame"
	TypePong    = "pong"
	TypeError   = "error"
)

// Inbound command types.
const (
	CmdTimeUpdate = "timeupdate"
	CmdSeek       = "seek"
	CmdToggle     = "toggle"
	CmdSkip       = "skip"
	CmdPing       = "ping"
)

// Message is the envelope of every server to client message.
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Command is a client to server request.
type Command struct {
	Type    string   `json:"type"`
	ID      string   `json:"id,omitempty"`
	Time    *float64 `json:"time,omitempty"`
	Seconds *float64 `json:"seconds,omitempty"`
	Paused  *bool    `json:"paused,omitempty"`
}

// FramePayload is the data of a frame message: every dashboard panel plus
// the playback state it was derived for.
type FramePayload struct {
	timeline.Frame
	Playback playback.State `json:"playback"`
}

// PongPayload answers a ping, echoing the client's time.
type PongPayload struct {
	Time       float64 `json:"time"`
	ServerTime int64   `json:"server_time"`
}

func newMessage(typ string, data interface{}) Message {
	return Message{Type: typ, Timestamp: time.Now(), Data: data}
}

func errorMessage(text string) Message {
	return Message{Type: TypeError, Timestamp: time.Now(), Error: text}
}

// Serialize encodes m as JSON.
func Serialize(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeCommand parses a client command.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	err := json.Unmarshal(data, &cmd)
	return cmd, err
}
