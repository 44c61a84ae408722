package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/spotter/internal/engine"
	"github.com/claude/spotter/internal/session"
)

// HTTPClient implements Controller by calling the Spotter REST API.
// Used for remote MCP mode where the binary runs next to the agent (stdio)
// but the engine runs on the server (reached over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Controller = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// commandPath maps a user command to its REST route.
func commandPath(cmd session.Command) (string, error) {
	var p string
	switch cmd.(type) {
	case session.ConfirmReadyAndStartSet:
		p = "start"
	case session.CompleteSet:
		p = "complete-set"
	case session.PauseSet:
		p = "pause"
	case session.ResumeSet:
		p = "resume"
	case session.AdjustWeight:
		p = "adjust-weight"
	case session.AdjustReps:
		p = "adjust-reps"
	case session.AdjustRestTime:
		p = "adjust-rest"
	case session.ExtendRest:
		p = "extend-rest"
	case session.JumpToSet:
		p = "jump"
	case session.PreviousSet:
		p = "previous-set"
	case session.NextSet:
		p = "next-set"
	case session.CompleteExercise:
		p = "complete-exercise"
	case session.CompleteWorkout:
		p = "complete-workout"
	case session.FinishWorkoutEarly:
		p = "finish-early"
	case session.Cleanup:
		p = "cleanup"
	default:
		return "", fmt.Errorf("httpclient: %s cannot be sent remotely", cmd.Name())
	}
	return "/api/v1/session/" + p, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*engine.Snapshot, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusConflict, http.StatusUnprocessableEntity:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return nil, fmt.Errorf("%w: %s", engine.ErrIgnored, strings.TrimPrefix(e.Error, engine.ErrIgnored.Error()+": "))
	default:
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, data)
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("httpclient: decode snapshot: %w", err)
	}
	return &snap, nil
}

func (c *HTTPClient) Do(ctx context.Context, cmd session.Command) (*engine.Snapshot, error) {
	path, err := commandPath(cmd)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, path, cmd)
}

func (c *HTTPClient) Status(ctx context.Context) (*engine.Snapshot, error) {
	return c.do(ctx, http.MethodGet, "/api/v1/session", nil)
}
