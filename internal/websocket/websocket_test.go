package websocket

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agmipx/internal/config"
	"agmipx/internal/operations"
)

type mockConn struct {
	mu      sync.Mutex
	written [][]byte
	reads   chan []byte
	closed  bool
}

func newMockConn() *mockConn {
	return &mockConn{reads: make(chan []byte, 8)}
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("closed")
	}
	if messageType == websocket.TextMessage {
		m.written = append(m.written, data)
	}
	return nil
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-m.reads
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, msg, nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) SetReadDeadline(time.Time) error { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error { return nil }
func (m *mockConn) SetReadLimit(int64) {}
func (m *mockConn) SetPongHandler(func(string) error) {}
func (m *mockConn) RemoteAddr() string { return "127.0.0.1:5555" }

var testKeepalive = newKeepalive(0, 0)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return Message{}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger(), nil)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHubRegisterAndBroadcast(t *testing.T) {
	hub := startHub(t)
	client := newClient(hub, newMockConn(), testKeepalive, "trace-1", testLogger())

	require.True(t, hub.Register(client))
	hello := receive(t, client)
	assert.Equal(t, TypeConnection, hello.Type)
	assert.Equal(t, "connected", hello.Status)
	assert.Equal(t, 1, hub.ClientCount())

	hub.BroadcastUpdate(operations.EventTypeSearchComplete, operations.StepIDSearch, "completed",
		map[string]int{"count": 3})
	msg := receive(t, client)
	assert.Equal(t, operations.EventTypeSearchComplete, msg.Type)
	assert.Equal(t, operations.StepIDSearch, msg.Step)
	assert.Equal(t, map[string]interface{}{"count": float64(3)}, msg.Data)
	assert.NotEmpty(t, msg.Timestamp)

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
	_, open := <-client.send
	assert.False(t, open)
}

func TestHubReplaysLatestSnapshot(t *testing.T) {
	hub := startHub(t)

	hub.BroadcastUpdate(operations.EventTypeOperationSnapshot, "run-1", "update",
		map[string]string{"run_id": "run-1"})
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return hub.latest != nil
	}, time.Second, 10*time.Millisecond)

	late := newClient(hub, newMockConn(), testKeepalive, "", testLogger())
	require.True(t, hub.Register(late))
	assert.Equal(t, TypeConnection, receive(t, late).Type)
	replay := receive(t, late)
	assert.Equal(t, operations.EventTypeOperationSnapshot, replay.Type)
	assert.Equal(t, "run-1", replay.Step)

	hub.BroadcastUpdate(operations.EventTypeSessionReset, "", "reset", nil)
	assert.Equal(t, operations.EventTypeSessionReset, receive(t, late).Type)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	assert.Nil(t, hub.latest)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := newClient(hub, newMockConn(), testKeepalive, "", testLogger())
	require.True(t, hub.Register(slow))

	// Nothing drains slow.send, so the buffer overflows
	for i := 0; i < sendBuffer+1; i++ {
		hub.BroadcastUpdate("tick", "", "", i)
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubStop(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	hub.Start()
	client := newClient(hub, newMockConn(), testKeepalive, "", testLogger())
	require.True(t, hub.Register(client))

	hub.Stop()
	hub.Stop()

	assert.False(t, hub.Register(newClient(hub, newMockConn(), testKeepalive, "", testLogger())))
	assert.Equal(t, 0, hub.ClientCount())
	assert.NotPanics(t, func() { hub.BroadcastUpdate("late", "", "", nil) })
}

func TestClientPumps(t *testing.T) {
	hub := startHub(t)
	conn := newMockConn()
	client := newClient(hub, conn, testKeepalive, "", testLogger())
	require.True(t, hub.Register(client))

	go client.WritePump()
	go client.ReadPump()

	conn.reads <- heartbeat
	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.written) == 1
	}, time.Second, 10*time.Millisecond)

	close(conn.reads)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestKeepalive(t *testing.T) {
	tests := []struct {
		name       string
		ping, pong time.Duration
		wantPing   time.Duration
		wantPong   time.Duration
	}{
		{"defaults", 0, 0, 54 * time.Second, 60 * time.Second},
		{"configured", 10 * time.Second, 30 * time.Second, 10 * time.Second, 30 * time.Second},
		{"ping not below pong", 30 * time.Second, 30 * time.Second, 27 * time.Second, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newKeepalive(tt.ping, tt.pong)
			assert.Equal(t, tt.wantPing, k.pingPeriod)
			assert.Equal(t, tt.wantPong, k.pongWait)
		})
	}
}

func TestHandlerEndToEnd(t *testing.T) {
	hub := startHub(t)
	server := httptest.NewServer(NewHandler(hub, config.Default().WebSocket, nil, testLogger()))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello Message
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, TypeConnection, hello.Type)

	hub.BroadcastUpdate(operations.EventTypeSearchComplete, operations.StepIDSearch, "completed", nil)
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, operations.EventTypeSearchComplete, msg.Type)
}

func TestHandlerRejectsOrigin(t *testing.T) {
	hub := startHub(t)
	server := httptest.NewServer(NewHandler(hub, config.Default().WebSocket, []string{"http://allowed.example"}, testLogger()))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
