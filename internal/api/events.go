package api

import (
	"encoding/json"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Event types published during an analysis
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// AnalysisEvent is one progress notification streamed to SSE clients
type AnalysisEvent struct {
	EventType string    `json:"event_type"`
	RequestID string    `json:"request_id"`
	ReportID  string    `json:"report_id,omitempty"`
	Target    string    `json:"target,omitempty"`
	Runs      int       `json:"runs,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventHub fans analysis events out to every connected SSE client
type EventHub struct {
	clients    map[chan AnalysisEvent]bool
	clientsMu  sync.RWMutex
	register   chan chan AnalysisEvent
	unregister chan chan AnalysisEvent
	broadcast  chan AnalysisEvent
	done       chan struct{}
}

// NewEventHub creates a hub and starts its dispatch loop
func NewEventHub() *EventHub {
	hub := &EventHub{
		clients:    make(map[chan AnalysisEvent]bool),
		register:   make(chan chan AnalysisEvent, 10),
		unregister: make(chan chan AnalysisEvent, 10),
		broadcast:  make(chan AnalysisEvent, 100),
		done:       make(chan struct{}),
	}
	go hub.run()
	return hub
}

func (h *EventHub) run() {
	for {
		select {
		case ch := <-h.register:
			h.clientsMu.Lock()
			h.clients[ch] = true
			log.Printf("[SSE] Client registered (total clients: %d)", len(h.clients))
			h.clientsMu.Unlock()

		case ch := <-h.unregister:
			h.clientsMu.Lock()
			if h.clients[ch] {
				delete(h.clients, ch)
				close(ch)
				log.Printf("[SSE] Client unregistered (remaining clients: %d)", len(h.clients))
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for ch := range h.clients {
				select {
				case ch <- event:
				default:
					log.Printf("[SSE] Client channel full, skipping %s event", event.EventType)
				}
			}
			h.clientsMu.RUnlock()

		case <-h.done:
			return
		}
	}
}

// Close stops the dispatch loop
func (h *EventHub) Close() {
	close(h.done)
}

// Subscribe registers a new client channel
func (h *EventHub) Subscribe() chan AnalysisEvent {
	ch := make(chan AnalysisEvent, 10)
	h.register <- ch
	return ch
}

// Unsubscribe removes and closes a client channel
func (h *EventHub) Unsubscribe(ch chan AnalysisEvent) {
	select {
	case h.unregister <- ch:
	default:
		log.Printf("[SSE] Unregister queue full, client dropped lazily")
	}
}

// Publish queues an event for every client; it never blocks
func (h *EventHub) Publish(event AnalysisEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[SSE] Broadcast channel full, dropping event: %s", event.EventType)
	}
}

// ClientCount returns the number of connected clients
func (h *EventHub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// HandleSSE streams analysis events until the client disconnects
func (h *EventHub) HandleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("[SSE] Failed to marshal event: %v", err)
				return true
			}
			c.SSEvent("analysis", string(data))
			return true

		case <-time.After(30 * time.Second):
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}
