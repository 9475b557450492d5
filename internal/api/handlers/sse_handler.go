package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
)

const heartbeatInterval = 30 * time.Second

// SSEHandler streams notification and request events to signed-in browsers
type SSEHandler struct {
	eventBus  providers.EventBus
	clients   map[string]map[chan *entities.RequestEvent]bool // channel -> clients
	mu        sync.RWMutex
	heartbeat time.Duration
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		clients:   make(map[string]map[chan *entities.RequestEvent]bool),
		heartbeat: heartbeatInterval,
	}
}

// StreamNotifications handles GET /api/notifications/stream. Every caller
// follows their own channel; admins also follow all request updates.
func (h *SSEHandler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	principal, err := session.RequirePrincipal(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	logger := observability.LoggerFromContext(r.Context()).With().Str("user_id", principal.UserID).Logger()

	channels := []string{providers.GetUserChannel(principal.UserID)}
	if principal.IsAdmin() {
		channels = append(channels, providers.EventChannelRequestUpdates)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	clientChan := make(chan *entities.RequestEvent, 50)
	for _, channel := range channels {
		eventChan, err := h.eventBus.Subscribe(ctx, channel)
		if err != nil {
			logger.Error().Err(err).Str("channel", channel).Msg("Failed to subscribe to channel")
			respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
			return
		}
		h.registerClient(channel, clientChan)
		defer h.unregisterClient(channel, clientChan)
		go h.forwardEvents(ctx, eventChan, clientChan)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	h.sendEvent(w, "connected", map[string]interface{}{
		"user_id":   principal.UserID,
		"channels":  channels,
		"timestamp": time.Now(),
	})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Client disconnected from notification stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event := <-clientChan:
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.Type), event)
			flusher.Flush()
		}
	}
}

// forwardEvents forwards events from the event bus to a client channel
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.RequestEvent, clientChan chan<- *entities.RequestEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			select {
			case clientChan <- event:
			default:
				// Client channel full, skip event
			}
		}
	}
}

// registerClient registers a client for a channel
func (h *SSEHandler) registerClient(channel string, clientChan chan *entities.RequestEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[channel] == nil {
		h.clients[channel] = make(map[chan *entities.RequestEvent]bool)
	}
	h.clients[channel][clientChan] = true
}

// unregisterClient unregisters a client from a channel
func (h *SSEHandler) unregisterClient(channel string, clientChan chan *entities.RequestEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[channel]; exists {
		delete(clients, clientChan)
		if len(clients) == 0 {
			delete(h.clients, channel)
		}
	}
}

// sendEvent sends an SSE event to the client
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients across channels
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
