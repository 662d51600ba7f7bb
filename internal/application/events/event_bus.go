package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
)

// Event types published on the bus.
const (
	TypeProfileUpdated = "profile_updated"
	TypeProbeFailed    = "probe_failed"
	TypeSeriesReset    = "series_reset"
	TypeRoundCompleted = "round_completed"
	TypeMonitoring     = "monitoring_status"
)

// Event is one message pushed to stream subscribers.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventBus fans events out to SSE and websocket clients.
type EventBus struct {
	clients map[chan Event]bool
	mutex   sync.RWMutex
	log     *slog.Logger
}

func NewEventBus(log *slog.Logger) *EventBus {
	if log == nil {
		log = slog.Default()
	}
	return &EventBus{
		clients: make(map[chan Event]bool),
		log:     log,
	}
}

// Subscribe registers a new client channel.
func (eb *EventBus) Subscribe() chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	client := make(chan Event, 32)
	eb.clients[client] = true

	eb.log.Debug("event client subscribed", "total_clients", len(eb.clients))
	return client
}

// Unsubscribe removes and closes a client channel.
func (eb *EventBus) Unsubscribe(client chan Event) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if _, exists := eb.clients[client]; exists {
		close(client)
		delete(eb.clients, client)
		eb.log.Debug("event client unsubscribed", "total_clients", len(eb.clients))
	}
}

// Broadcast delivers event to every client. A client whose buffer is full
// misses the event; the publisher never blocks.
func (eb *EventBus) Broadcast(event Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for client := range eb.clients {
		select {
		case client <- event:
		default:
			eb.log.Debug("slow event client, dropping event", "type", event.Type)
		}
	}
}

// ObserveRound publishes the round summary.
func (eb *EventBus) ObserveRound(report domain.RoundReport) {
	eb.Broadcast(Event{
		Type: TypeRoundCompleted,
		Data: report,
	})
}

// GetClientCount returns the number of connected clients.
func (eb *EventBus) GetClientCount() int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.clients)
}
