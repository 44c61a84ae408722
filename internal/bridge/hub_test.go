package bridge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHub(t *testing.T) (*Hub, *httptest.Server, chan bool) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	status := make(chan bool, 4)
	hub.SetStatusHandler(func(connected bool) { status <- connected })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, srv, status
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	require.NoError(t, err)
	return c
}

func readFrame(t *testing.T, c *websocket.Conn) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func writeFrame(t *testing.T, c *websocket.Conn, f Frame) {
	t.Helper()
	data, err := json.Marshal(f)
	require.NoError(t, err)
	require.NoError(t, c.Write(context.Background(), websocket.MessageText, data))
}

func waitStatus(t *testing.T, status chan bool, want bool) {
	t.Helper()
	select {
	case got := <-status:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("no status %v", want)
	}
}

func TestSendWithoutAgent(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	assert.False(t, hub.Connected())
	assert.False(t, hub.SendMessage(ctx, "hi"))
	assert.False(t, hub.SendContextualUpdate(ctx, "hi"))
	assert.False(t, hub.SendSmart(ctx, "hi"))
	assert.False(t, hub.NotifyUserActivity(ctx))
}

func TestDeliveryModes(t *testing.T) {
	hub, srv, status := newHub(t)
	c := dial(t, srv)
	defer c.CloseNow()
	waitStatus(t, status, true)
	require.True(t, hub.Connected())

	ctx := context.Background()
	require.True(t, hub.SendMessage(ctx, "Starting set 1"))
	assert.Equal(t, Frame{Type: TypeUserMessage, Text: "Starting set 1"}, readFrame(t, c))

	require.True(t, hub.SendContextualUpdate(ctx, "Rest 90s"))
	assert.Equal(t, TypeContextualUpdate, readFrame(t, c).Type)

	require.True(t, hub.NotifyUserActivity(ctx))
	assert.Equal(t, TypeUserActivity, readFrame(t, c).Type)

	require.True(t, hub.SendSmart(ctx, "quiet agent"))
	assert.Equal(t, TypeUserMessage, readFrame(t, c).Type)

	speaking := true
	writeFrame(t, c, Frame{Type: TypeAgentSpeaking, Speaking: &speaking})
	require.Eventually(t, hub.Speaking, 2*time.Second, 5*time.Millisecond)

	require.True(t, hub.SendSmart(ctx, "busy agent"))
	assert.Equal(t, Frame{Type: TypeContextualUpdate, Text: "busy agent"}, readFrame(t, c))
}

func TestMusicStatus(t *testing.T) {
	hub, srv, status := newHub(t)
	c := dial(t, srv)
	defer c.CloseNow()
	waitStatus(t, status, true)

	writeFrame(t, c, Frame{Type: TypeMusicStatus, Text: "playing Eye of the Tiger"})
	require.Eventually(t, func() bool {
		return hub.MusicStatus() == "playing Eye of the Tiger"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDisconnect(t *testing.T) {
	hub, srv, status := newHub(t)
	c := dial(t, srv)
	waitStatus(t, status, true)

	require.NoError(t, c.Close(websocket.StatusNormalClosure, ""))
	waitStatus(t, status, false)
	assert.False(t, hub.Connected())
	assert.False(t, hub.SendMessage(context.Background(), "anyone?"))
}

func TestNewConnectionReplacesOld(t *testing.T) {
	hub, srv, status := newHub(t)
	first := dial(t, srv)
	defer first.CloseNow()
	waitStatus(t, status, true)

	second := dial(t, srv)
	defer second.CloseNow()
	waitStatus(t, status, true)

	require.True(t, hub.SendMessage(context.Background(), "to the new agent"))
	assert.Equal(t, "to the new agent", readFrame(t, second).Text)

	// The replaced connection leaving must not mark the agent offline.
	first.CloseNow()
	select {
	case got := <-status:
		t.Fatalf("unexpected status %v", got)
	case <-time.After(100 * time.Millisecond):
	}
	assert.True(t, hub.Connected())
}
