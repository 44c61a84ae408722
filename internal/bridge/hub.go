// Package bridge connects the voice agent over a WebSocket and implements
// the delivery modes of the context emitter.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Frame types sent to the agent.
const (
	TypeUserMessage      = "user_message"
	TypeContextualUpdate = "contextual_update"
	TypeUserActivity     = "user_activity"
)

// Frame types received from the agent.
const (
	TypeAgentSpeaking = "agent_speaking"
	TypeMusicStatus   = "music_status"
)

// Frame is the envelope of every WebSocket message.
type Frame struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Speaking *bool  `json:"speaking,omitempty"`
}

type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub holds the single voice agent connection. A new connection replaces
// the previous one.
type Hub struct {
	log *slog.Logger

	mu       sync.RWMutex
	cur      *conn
	speaking bool
	music    string
	onStatus func(connected bool)

	// writeMu serializes writes on the current connection.
	writeMu sync.Mutex
}

// NewHub creates a hub with no agent connected.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log}
}

// SetStatusHandler registers fn to be called on every connect and
// disconnect.
func (h *Hub) SetStatusHandler(fn func(connected bool)) {
	h.mu.Lock()
	h.onStatus = fn
	h.mu.Unlock()
}

// HandleWS upgrades the request and serves the agent until it disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin checked by the API key middleware
	})
	if err != nil {
		h.log.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, cancel: cancel}

	h.mu.Lock()
	prev := h.cur
	h.cur = c
	h.speaking = false
	notify := h.onStatus
	h.mu.Unlock()
	if prev != nil {
		prev.cancel()
		_ = prev.ws.Close(websocket.StatusPolicyViolation, "replaced by a new connection")
	}

	h.log.Info("voice agent connected", "remote", r.RemoteAddr)
	if notify != nil {
		notify(true)
	}

	defer func() {
		h.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		h.receive(data)
	}
}

func (h *Hub) receive(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		h.log.Debug("ignoring malformed agent frame", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	switch f.Type {
	case TypeAgentSpeaking:
		if f.Speaking != nil {
			h.speaking = *f.Speaking
		}
	case TypeMusicStatus:
		h.music = f.Text
	default:
		h.log.Debug("ignoring agent frame", "type", f.Type)
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	if h.cur != c {
		h.mu.Unlock()
		return
	}
	c.cancel()
	h.cur = nil
	h.speaking = false
	notify := h.onStatus
	h.mu.Unlock()

	h.log.Info("voice agent disconnected")
	if notify != nil {
		notify(false)
	}
}

// Connected reports whether an agent is attached.
func (h *Hub) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur != nil
}

// Speaking reports the last speaking state the agent announced.
func (h *Hub) Speaking() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.speaking
}

// MusicStatus returns the last music status the agent reported.
func (h *Hub) MusicStatus() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.music
}

func (h *Hub) send(ctx context.Context, f Frame) bool {
	h.mu.RLock()
	c := h.cur
	h.mu.RUnlock()
	if c == nil {
		return false
	}
	data, err := json.Marshal(f)
	if err != nil {
		h.log.Error("marshal agent frame", "type", f.Type, "error", err)
		return false
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		h.log.Debug("agent write failed", "type", f.Type, "error", err)
		return false
	}
	return true
}

// SendMessage sends text as a conversational turn.
func (h *Hub) SendMessage(ctx context.Context, text string) bool {
	return h.send(ctx, Frame{Type: TypeUserMessage, Text: text})
}

// SendContextualUpdate adds text to the agent context without a reply.
func (h *Hub) SendContextualUpdate(ctx context.Context, text string) bool {
	return h.send(ctx, Frame{Type: TypeContextualUpdate, Text: text})
}

// SendSmart avoids interrupting the agent: while it speaks the text is a
// contextual update, otherwise a message.
func (h *Hub) SendSmart(ctx context.Context, text string) bool {
	if h.Speaking() {
		return h.SendContextualUpdate(ctx, text)
	}
	return h.SendMessage(ctx, text)
}

// NotifyUserActivity keeps the agent session from timing out.
func (h *Hub) NotifyUserActivity(ctx context.Context) bool {
	return h.send(ctx, Frame{Type: TypeUserActivity})
}
