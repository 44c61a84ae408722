// Package upload sends workout plans to a remote Spotter server, for
// importing from a machine without database access.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/spotter/internal/session"
	"github.com/claude/spotter/internal/storage"
)

const maxAttempts = 3

// Client talks to the Spotter sessions API over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the Spotter server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// ListSessions fetches the most recent sessions.
func (c *Client) ListSessions(ctx context.Context, limit int) ([]storage.SessionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/sessions?limit=%d", c.serverURL, limit), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list request failed (status %d): %s", resp.StatusCode, body)
	}

	var list []storage.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding sessions: %w", err)
	}
	return list, nil
}

// CreateSession POSTs a session to the server and returns the stored copy.
// Network failures and 5xx responses are retried with exponential backoff.
func (c *Client) CreateSession(ctx context.Context, s session.Session) (session.Session, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return session.Session{}, fmt.Errorf("marshaling session: %w", err)
	}

	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return session.Session{}, ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/sessions", bytes.NewReader(data))
		if err != nil {
			return session.Session{}, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusCreated:
			var created session.Session
			if err := json.Unmarshal(body, &created); err != nil {
				return session.Session{}, fmt.Errorf("decoding created session: %w", err)
			}
			return created, nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("create failed (status %d): %s", resp.StatusCode, body)
		default:
			return session.Session{}, fmt.Errorf("create rejected (status %d): %s", resp.StatusCode, body)
		}
	}

	return session.Session{}, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}
