// Package mcp exposes the workout controls as MCP tools so a voice agent
// can drive the session by function calls.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ctrl Controller, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("Spotter", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Spotter workout session controller. Use the tools to complete sets, pause and resume, adjust weight, reps and rest, and move between sets while the user trains. Every tool returns the current workout status."),
	)

	h := &handlers{ctrl: ctrl, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolStartSet, Handler: h.startSet},
		server.ServerTool{Tool: toolCompleteSet, Handler: h.completeSet},
		server.ServerTool{Tool: toolPauseSet, Handler: h.pauseSet},
		server.ServerTool{Tool: toolResumeSet, Handler: h.resumeSet},
		server.ServerTool{Tool: toolAdjustWeight, Handler: h.adjustWeight},
		server.ServerTool{Tool: toolAdjustReps, Handler: h.adjustReps},
		server.ServerTool{Tool: toolAdjustRestTime, Handler: h.adjustRestTime},
		server.ServerTool{Tool: toolExtendRest, Handler: h.extendRest},
		server.ServerTool{Tool: toolJumpToSet, Handler: h.jumpToSet},
		server.ServerTool{Tool: toolNextSet, Handler: h.nextSet},
		server.ServerTool{Tool: toolPreviousSet, Handler: h.previousSet},
		server.ServerTool{Tool: toolCompleteExercise, Handler: h.completeExercise},
		server.ServerTool{Tool: toolFinishWorkoutEarly, Handler: h.finishWorkoutEarly},
		server.ServerTool{Tool: toolGetWorkoutStatus, Handler: h.getWorkoutStatus},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resWorkoutStatus, Handler: h.workoutStatus},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ctrl Controller
	log  *slog.Logger
}

var resWorkoutStatus = mcp.NewResource(
	"spotter://workout_status",
	"Workout Status",
	mcp.WithResourceDescription("The active workout: status, current exercise and set, running timers and progress"),
	mcp.WithMIMEType("application/json"),
)
