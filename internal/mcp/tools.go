package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/spotter/internal/engine"
	"github.com/claude/spotter/internal/session"
)

// --- Tool definitions ---

var toolStartSet = mcp.NewTool("start_set",
	mcp.WithDescription("Start the current set once the user says they are ready."),
)

var toolCompleteSet = mcp.NewTool("complete_set",
	mcp.WithDescription("Mark the current set as done. Rest starts automatically unless it was the last set of the exercise."),
	mcp.WithNumber("actual_reps", mcp.Description("Reps the user actually did. Defaults to the target reps.")),
)

var toolPauseSet = mcp.NewTool("pause_set",
	mcp.WithDescription("Pause the running set or rest timer."),
	mcp.WithString("reason", mcp.Description("Why the user paused")),
)

var toolResumeSet = mcp.NewTool("resume_set",
	mcp.WithDescription("Resume a paused set or rest."),
)

var toolAdjustWeight = mcp.NewTool("adjust_weight",
	mcp.WithDescription("Change the target weight of the current set."),
	mcp.WithNumber("new_weight", mcp.Required(), mcp.Description("New weight")),
	mcp.WithString("reason", mcp.Description("Why the weight changed")),
)

var toolAdjustReps = mcp.NewTool("adjust_reps",
	mcp.WithDescription("Change the target reps of the current set."),
	mcp.WithNumber("new_reps", mcp.Required(), mcp.Description("New target reps")),
	mcp.WithString("reason", mcp.Description("Why the reps changed")),
)

var toolAdjustRestTime = mcp.NewTool("adjust_rest_time",
	mcp.WithDescription("Change the rest time after the current set."),
	mcp.WithNumber("new_rest_time", mcp.Required(), mcp.Description("New rest time in seconds")),
	mcp.WithString("reason", mcp.Description("Why the rest changed")),
)

var toolExtendRest = mcp.NewTool("extend_rest",
	mcp.WithDescription("Add time to the running rest."),
	mcp.WithNumber("additional_seconds", mcp.Description("Seconds to add. Defaults to 30.")),
)

var toolJumpToSet = mcp.NewTool("jump_to_set",
	mcp.WithDescription("Move to a set of the current exercise by its 1-based number."),
	mcp.WithNumber("set_number", mcp.Required(), mcp.Description("Set number, starting at 1")),
)

var toolNextSet = mcp.NewTool("next_set",
	mcp.WithDescription("Skip to the next set of the current exercise."),
)

var toolPreviousSet = mcp.NewTool("previous_set",
	mcp.WithDescription("Go back to the previous set of the current exercise."),
)

var toolCompleteExercise = mcp.NewTool("complete_exercise",
	mcp.WithDescription("Finish the current exercise and move on to the next one."),
)

var toolFinishWorkoutEarly = mcp.NewTool("finish_workout_early",
	mcp.WithDescription("End the workout now and save the progress so far."),
)

var toolGetWorkoutStatus = mcp.NewTool("get_workout_status",
	mcp.WithDescription("Return the full workout status as JSON: state, timers, progress and agent connection."),
)

// --- Handlers ---

// run sends cmd and reports the resulting status line. Rejected commands
// become tool errors the agent can read back to the user.
func (h *handlers) run(ctx context.Context, cmd session.Command) (*mcp.CallToolResult, error) {
	snap, err := h.ctrl.Do(ctx, cmd)
	if err != nil {
		if errors.Is(err, engine.ErrIgnored) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		h.log.Error("mcp "+cmd.Name(), "error", err)
		return mcp.NewToolResultError("command failed: " + err.Error()), nil
	}
	return mcp.NewToolResultText(snap.State.StatusLine(snap.At)), nil
}

func (h *handlers) startSet(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.run(ctx, session.ConfirmReadyAndStartSet{})
}

func (h *handlers) completeSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var cmd session.CompleteSet
	if _, ok := req.GetArguments()["actual_reps"]; ok {
		reps := req.GetInt("actual_reps", 0)
		cmd.ActualReps = &reps
	}
	return h.run(ctx, cmd)
}

func (h *handlers) pauseSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.run(ctx, session.PauseSet{Reason: req.GetString("reason", "")})
}

func (h *handlers) resumeSet(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.run(ctx, session.ResumeSet{})
}

func (h *handlers) adjustWeight(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	w, err := req.RequireFloat("new_weight")
	if err != nil {
		return mcp.NewToolResultError("new_weight parameter is required"), nil
	}
	return h.run(ctx, session.AdjustWeight{NewWeight: w, Reason: req.GetString("reason", "")})
}

func (h *handlers) adjustReps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reps, err := req.RequireInt("new_reps")
	if err != nil {
		return mcp.NewToolResultError("new_reps parameter is required"), nil
	}
	return h.run(ctx, session.AdjustReps{NewReps: reps, Reason: req.GetString("reason", "")})
}

func (h *handlers) adjustRestTime(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	secs, err := req.RequireInt("new_rest_time")
	if err != nil {
		return mcp.NewToolResultError("new_rest_time parameter is required"), nil
	}
	return h.run(ctx, session.AdjustRestTime{NewRestTime: secs, Reason: req.GetString("reason", "")})
}

func (h *handlers) extendRest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.run(ctx, session.ExtendRest{AdditionalSeconds: req.GetInt("additional_seconds", 30)})
}

func (h *handlers) jumpToSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := req.RequireInt("set_number")
	if err != nil {
		return mcp.NewToolResultError("set_number parameter is required"), nil
	}
	return h.run(ctx, session.JumpToSet{SetNumber: n})
}

func (h *handlers) nextSet(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.run(ctx, session.NextSet{})
}

func (h *handlers) previousSet(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.run(ctx, session.PreviousSet{})
}

func (h *handlers) completeExercise(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.run(ctx, session.CompleteExercise{})
}

func (h *handlers) finishWorkoutEarly(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.run(ctx, session.FinishWorkoutEarly{})
}

func (h *handlers) getWorkoutStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := h.ctrl.Status(ctx)
	if err != nil {
		h.log.Error("mcp get_workout_status", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(newStatusView(snap))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
