package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"agmipx/internal/infrastructure"
	"agmipx/internal/operations"
)

// TypeConnection is sent to each client once it is registered
const TypeConnection = "connection"

// Message is the envelope of every frame the hub sends
type Message struct {
	Type      string      `json:"type"`
	Step      string      `json:"step,omitempty"`
	Status    string      `json:"status,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

var _ operations.Hub = (*Hub)(nil)

// Hub maintains the set of active clients and fans out broadcasts to them.
// The most recent operation snapshot is replayed to clients that join late.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan broadcastMessage
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	latest  []byte
	running bool

	logger  *slog.Logger
	metrics *infrastructure.Metrics

	quit     chan struct{}
	stopOnce sync.Once
}

type broadcastMessage struct {
	eventType string
	payload   []byte
}

// NewHub creates a hub; metrics may be nil
func NewHub(logger *slog.Logger, metrics *infrastructure.Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan broadcastMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		quit:       make(chan struct{}),
	}
}

// Start runs the hub loop in its own goroutine
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	hello, err := encode(TypeConnection, "", "connected", map[string]string{
		"client_id": client.id,
		"message":   "Connected to AgMIP Explorer",
	})

	h.mu.Lock()
	if !h.running {
		close(client.send)
		h.mu.Unlock()
		return
	}
	h.clients[client] = true
	count := len(h.clients)
	if err == nil {
		client.enqueue(hello)
	}
	if h.latest != nil {
		client.enqueue(h.latest)
	}
	h.mu.Unlock()

	ctx := client.context()
	h.logger.InfoContext(ctx, "client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	if h.metrics != nil {
		h.metrics.WebSocketClients.Add(ctx, 1)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	h.logger.InfoContext(ctx, "client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", time.Since(client.connectedAt)))

	if h.metrics != nil {
		h.metrics.WebSocketClients.Add(ctx, -1)
	}
}

// fanOut sends under the lock so Stop cannot close a channel mid-send;
// enqueue never blocks.
func (h *Hub) fanOut(msg broadcastMessage) {
	var dropped []*Client

	h.mu.Lock()
	switch msg.eventType {
	case operations.EventTypeOperationSnapshot:
		h.latest = msg.payload
	case operations.EventTypeSessionReset:
		h.latest = nil
	}
	total := len(h.clients)
	for client := range h.clients {
		if !client.enqueue(msg.payload) {
			// Send buffer full; the client is too slow to keep
			delete(h.clients, client)
			close(client.send)
			dropped = append(dropped, client)
		}
	}
	h.mu.Unlock()

	ctx := context.Background()
	for _, client := range dropped {
		h.logger.WarnContext(client.context(), "client send buffer full, disconnecting",
			slog.String("client_id", client.id))
	}
	sent := total - len(dropped)

	h.logger.Debug("broadcast message",
		slog.String("type", msg.eventType),
		slog.Int("client_count", total),
		slog.Int("sent", sent),
		slog.Int("message_size", len(msg.payload)))

	if h.metrics == nil {
		return
	}
	if len(dropped) > 0 {
		h.metrics.WebSocketClients.Add(ctx, -int64(len(dropped)))
		h.metrics.WebSocketDropped.Add(ctx, int64(len(dropped)))
	}
	if sent > 0 {
		h.metrics.WebSocketMessages.Add(ctx, int64(sent), metric.WithAttributes(
			attribute.String("direction", "out"),
			attribute.String("type", msg.eventType),
		))
	}
}

// BroadcastUpdate queues an event for every connected client. Events are
// dropped once the hub is stopped or its queue is full.
func (h *Hub) BroadcastUpdate(eventType, step, status string, metadata interface{}) {
	payload, err := encode(eventType, step, status, metadata)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message",
			slog.String("type", eventType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case <-h.quit:
		return
	default:
	}

	select {
	case h.broadcast <- broadcastMessage{eventType: eventType, payload: payload}:
	case <-h.quit:
	default:
		h.logger.Warn("broadcast queue full, dropping message", slog.String("type", eventType))
	}
}

// Register adds a client; it returns false once the hub is stopped
func (h *Hub) Register(client *Client) bool {
	select {
	case <-h.quit:
		return false
	default:
	}

	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop ends the hub loop and disconnects every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)

		h.mu.Lock()
		defer h.mu.Unlock()
		h.running = false
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
	})
}

func encode(eventType, step, status string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{
		Type:      eventType,
		Step:      step,
		Status:    status,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
