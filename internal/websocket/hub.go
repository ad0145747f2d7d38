package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"mfledger/internal/fetcher"
	"mfledger/internal/infrastructure"
	"mfledger/internal/updater"
)

// Message types
const (
	TypeConnection    = "connection"
	TypeFetchEvent    = "fetch:event"
	TypeSyncProgress  = "sync:progress"
	TypeSyncStarted   = "sync:started"
	TypeSyncCompleted = "sync:completed"
	TypeError         = "error"
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
	TraceID   string `json:"trace_id,omitempty"`
}

type envelope struct {
	msgType string
	payload []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
// It satisfies fetcher.Sink.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	logger  *slog.Logger
	metrics *hubMetrics
}

// NewHub creates a hub. meter may be nil to use the global provider.
func NewHub(logger *slog.Logger, meter metric.Meter) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
		metrics:    newHubMetrics(meter),
	}
}

// Start runs the hub loop in the background. It is idempotent.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop ends the hub loop and disconnects every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.quit)
	h.mu.Unlock()

	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	ctx := context.Background()

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.logger.Info("Hub shutting down")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.connected(ctx, 1)

			h.logger.InfoContext(c.context(), "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", c.id),
				slog.String("remote_addr", c.remoteAddr))

			hello, err := h.encode(TypeConnection, map[string]any{
				"status":    "connected",
				"client_id": c.id,
			}, c.traceID)
			if err == nil {
				select {
				case c.send <- hello:
				default:
				}
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.metrics.connected(ctx, -1)
				h.logger.InfoContext(c.context(), "Client unregistered",
					slog.Int("total_clients", len(h.clients)),
					slog.String("client_id", c.id),
					slog.Duration("connection_duration", time.Since(c.connectedAt)))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			delivered := 0
			for c := range h.clients {
				select {
				case c.send <- msg.payload:
					delivered++
				default:
					close(c.send)
					delete(h.clients, c)
					h.metrics.connected(ctx, -1)
					h.metrics.drop(ctx)
					h.logger.WarnContext(c.context(), "Client send buffer full, disconnecting",
						slog.String("client_id", c.id))
				}
			}
			h.mu.Unlock()
			h.metrics.broadcast(ctx, msg.msgType, len(msg.payload), delivered)
		}
	}
}

func (h *Hub) encode(msgType string, data any, traceID string) ([]byte, error) {
	return json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TraceID:   traceID,
	})
}

// Broadcast sends a message to every client. The trace id is taken from ctx.
// Messages are dropped when the hub is not running.
func (h *Hub) Broadcast(ctx context.Context, msgType string, data any) {
	payload, err := h.encode(msgType, data, infrastructure.GetTraceID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", msgType))
		return
	}

	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		h.logger.DebugContext(ctx, "Hub not running, message dropped", slog.String("message_type", msgType))
		return
	}

	select {
	case h.broadcast <- envelope{msgType: msgType, payload: payload}:
	case <-h.quit:
	}
}

// HandleEvent forwards fetch events to clients.
func (h *Hub) HandleEvent(ctx context.Context, e fetcher.Event) {
	h.Broadcast(ctx, TypeFetchEvent, e)
}

// Progress forwards update run progress to clients. Its signature matches
// updater.ProgressFunc.
func (h *Hub) Progress(ctx context.Context, p updater.Progress) {
	h.Broadcast(ctx, TypeSyncProgress, p)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
