// Package contextevent turns session transitions into status messages for
// the voice agent and keeps the log of what was sent.
package contextevent

import (
	"context"
	"time"
)

// Mode selects how a message is delivered to the agent.
type Mode int

const (
	// ModeMessage is a conversational turn; the agent responds to it.
	ModeMessage Mode = iota
	// ModeContextual silently updates the agent's context.
	ModeContextual
	// ModeSmart is contextual while the agent is speaking, a message otherwise.
	ModeSmart
)

func (m Mode) String() string {
	switch m {
	case ModeMessage:
		return "message"
	case ModeContextual:
		return "contextual"
	case ModeSmart:
		return "smart"
	default:
		return "unknown"
	}
}

// Event describes one notable transition.
type Event struct {
	Name    string
	Message string
	Data    map[string]any
	Mode    Mode
}

// Message is an entry of the context log.
type Message struct {
	Event   string         `json:"event"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Mode    string         `json:"mode"`
	Sent    bool           `json:"sent"`
	At      time.Time      `json:"at"`
}

// Bridge delivers text to the voice agent. Each call reports whether the
// text was handed over.
type Bridge interface {
	SendMessage(ctx context.Context, text string) bool
	SendContextualUpdate(ctx context.Context, text string) bool
	SendSmart(ctx context.Context, text string) bool
}

// ActivityNotifier is implemented by bridges that accept user liveness pings.
type ActivityNotifier interface {
	NotifyUserActivity(ctx context.Context) bool
}

// Publisher mirrors delivered messages to an event stream.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}
