package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/spotter/internal/engine"
	"github.com/claude/spotter/internal/session"
)

// statusView is the agent-facing shape of a snapshot.
type statusView struct {
	At             time.Time        `json:"at"`
	Status         session.Status   `json:"status"`
	StatusLine     string           `json:"status_line"`
	Workout        string           `json:"workout,omitempty"`
	Exercise       string           `json:"exercise,omitempty"`
	SetNumber      int              `json:"set_number,omitempty"`
	TargetReps     int              `json:"target_reps,omitempty"`
	TargetWeight   float64          `json:"target_weight,omitempty"`
	SetRemaining   *float64         `json:"set_seconds_remaining,omitempty"`
	RestRemaining  *float64         `json:"rest_seconds_remaining,omitempty"`
	CompletedSets  int              `json:"completed_sets"`
	TotalSets      int              `json:"total_sets"`
	AgentConnected bool             `json:"agent_connected"`
	Summary        *session.Summary `json:"summary,omitempty"`
}

func remainingSeconds(t *session.TimerState, now time.Time) *float64 {
	if t == nil {
		return nil
	}
	c := *t
	c.Refresh(now)
	s := c.Remaining.Seconds()
	return &s
}

func newStatusView(snap *engine.Snapshot) statusView {
	st := snap.State
	v := statusView{
		At:             snap.At,
		Status:         st.Status,
		StatusLine:     st.StatusLine(snap.At),
		SetRemaining:   remainingSeconds(st.Timers.Set, snap.At),
		RestRemaining:  remainingSeconds(st.Timers.Rest, snap.At),
		AgentConnected: snap.AgentConnected,
		Summary:        snap.Summary,
	}
	if st.Session != nil {
		v.Workout = st.Session.Name
	}
	if st.Workout != nil {
		v.CompletedSets = st.Workout.CompletedSets
		v.TotalSets = st.Workout.TotalSets
	}
	if ex := st.CurrentExercise(); ex != nil {
		v.Exercise = ex.Name
	}
	if set := st.CurrentSet(); set != nil {
		v.SetNumber = set.Number
		v.TargetReps = set.TargetReps
		v.TargetWeight = set.TargetWeight
	}
	return v
}

func (h *handlers) workoutStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snap, err := h.ctrl.Status(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(newStatusView(snap))
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
