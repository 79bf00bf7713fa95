// Package hub fans out emergency lifecycle events to connected caregiver
// clients over websockets. Delivery is best-effort: a client that is slow or
// disconnected misses events and only receives the current snapshot when it
// reconnects. There is no backlog replay.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"procodus.dev/carewatch/internal/store"
	"procodus.dev/carewatch/pkg/metrics"
)

// Event types sent to clients.
const (
	// EventActiveEmergencies carries the full session snapshot, sent once on connect.
	EventActiveEmergencies = "active_emergencies"
	// EventNewEmergency carries a complete emergency record.
	EventNewEmergency = "new_emergency"
	// EventEmergencyResolved carries {"id": ...} of the resolved emergency.
	EventEmergencyResolved = "emergency_resolved"
)

// Message is the wire format for all websocket events.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of connected clients and broadcasts messages to them.
type Hub struct {
	logger     *slog.Logger
	snapshot   func() []store.Emergency
	metrics    *metrics.ServerMetrics
	clients    map[*Client]bool
	count      atomic.Int64
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
}

// Config holds the configuration for a Hub.
type Config struct {
	// Logger is the structured logger.
	Logger *slog.Logger
	// Snapshot returns the current emergency list sent to newly connected
	// clients.
	Snapshot func() []store.Emergency
	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.ServerMetrics
}

// New creates a Hub. Run must be called before clients are attached.
func New(cfg *Config) (*Hub, error) {
	if cfg == nil {
		return nil, errors.New("hub config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Snapshot == nil {
		return nil, errors.New("snapshot func cannot be nil")
	}

	return &Hub{
		logger:     cfg.Logger,
		snapshot:   cfg.Snapshot,
		metrics:    cfg.Metrics,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}, nil
}

// Run owns the client set and processes lifecycle and broadcast events until
// the context is canceled, then closes every remaining client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.setClientGauge()
			h.logger.Info("hub stopped, closed all websocket clients")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setClientGauge()
			h.logger.Info("websocket client connected", "total_clients", len(h.clients))

			// The join snapshot goes only to the new client; everyone else
			// already saw these emergencies as live events.
			select {
			case client.send <- Message{Type: EventActiveEmergencies, Data: h.snapshot()}:
			default:
				h.dropClient(client)
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.dropClient(client)
				h.logger.Info("websocket client disconnected", "total_clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Send buffer full: the client is too slow, cut it loose.
					h.dropClient(client)
				}
			}
		}
	}
}

// EmergencyRaised broadcasts a new_emergency event. Implements store.Notifier.
func (h *Hub) EmergencyRaised(e store.Emergency) {
	h.enqueue(Message{Type: EventNewEmergency, Data: e})
}

// EmergencyResolved broadcasts an emergency_resolved event. Implements
// store.Notifier.
func (h *Hub) EmergencyResolved(id string) {
	h.enqueue(Message{Type: EventEmergencyResolved, Data: map[string]string{"id": id}})
}

func (h *Hub) enqueue(msg Message) {
	select {
	case h.broadcast <- msg:
		if h.metrics != nil {
			h.metrics.BroadcastsTotal.WithLabelValues(msg.Type).Inc()
		}
	default:
		if h.metrics != nil {
			h.metrics.BroadcastsDropped.Inc()
		}
		h.logger.Warn("broadcast channel full, dropping message", "type", msg.Type)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

func (h *Hub) dropClient(client *Client) {
	close(client.send)
	delete(h.clients, client)
	h.setClientGauge()
}

func (h *Hub) setClientGauge() {
	h.count.Store(int64(len(h.clients)))
	if h.metrics != nil {
		h.metrics.WebsocketClients.Set(float64(len(h.clients)))
	}
}
