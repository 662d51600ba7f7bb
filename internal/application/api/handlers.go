package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luispfcanales/daemon-dnsq/internal/application/events"
	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
)

// LiveProfiles is the in-memory engine view.
type LiveProfiles interface {
	Profile(name string) (domain.DomainProfile, bool)
}

// StatusSource reports the scheduler state.
type StatusSource interface {
	Status() domain.MonitoringStatus
}

type APIHandler struct {
	store    ports.ProfileReader
	live     LiveProfiles
	status   StatusSource
	stop     context.CancelFunc
	eventBus *events.EventBus
	upgrader websocket.Upgrader
	log      *slog.Logger
}

type MonitoringControlRequest struct {
	Action string `json:"action"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// heartbeatInterval keeps idle streams alive through proxies.
var heartbeatInterval = 30 * time.Second

// GetProfiles lists every profile as persisted by the record store.
func (h *APIHandler) GetProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.GetAll(r.Context())
	if err != nil {
		h.sendError(w, fmt.Sprintf("reading profiles: %v", err), http.StatusServiceUnavailable)
		return
	}
	if profiles == nil {
		profiles = []domain.DomainProfile{}
	}

	h.sendJSON(w, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	}, http.StatusOK)
}

// GetProfile returns the live engine profile of one domain.
func (h *APIHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("domain")
	profile, ok := h.live.Profile(name)
	if !ok {
		h.sendError(w, fmt.Sprintf("%s: %v", name, domain.ErrProfileNotFound), http.StatusNotFound)
		return
	}
	h.sendJSON(w, profile, http.StatusOK)
}

func (h *APIHandler) ControlMonitoring(w http.ResponseWriter, r *http.Request) {
	var req MonitoringControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	status := h.status.Status()
	switch req.Action {
	case "status":
		h.sendJSON(w, status, http.StatusOK)
	case "stop":
		h.handleStop(w, status)
	default:
		h.sendError(w, "invalid action, use: status, stop", http.StatusBadRequest)
	}
}

func (h *APIHandler) handleStop(w http.ResponseWriter, status domain.MonitoringStatus) {
	if !status.IsRunning {
		status.Message = "monitoring is not running"
		h.sendJSON(w, status, http.StatusConflict)
		return
	}

	h.log.Info("stop requested over HTTP")
	h.stop()

	status.Message = "stop requested, the round in progress will complete"
	h.eventBus.Broadcast(events.Event{Type: events.TypeMonitoring, Data: status})
	h.sendJSON(w, status, http.StatusAccepted)
}

// MonitoringEvents streams bus events as server-sent events.
func (h *APIHandler) MonitoringEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.sendError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.eventBus.Subscribe()
	defer h.eventBus.Unsubscribe(client)
	h.log.Debug("SSE client connected", "remote_addr", r.RemoteAddr)

	if err := writeSSE(w, h.initialEvent()); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client:
			if !ok {
				return
			}
			if err := writeSSE(w, event); err != nil {
				h.log.Debug("SSE write failed", "error", err)
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			h.log.Debug("SSE client disconnected", "remote_addr", r.RemoteAddr)
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// MonitoringSocket streams the same events over a websocket.
func (h *APIHandler) MonitoringSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	client := h.eventBus.Subscribe()
	defer h.eventBus.Unsubscribe(client)

	// The read loop only detects the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(h.initialEvent()); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.log.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *APIHandler) initialEvent() events.Event {
	return events.Event{
		Type:      "initial_status",
		Data:      h.status.Status(),
		Timestamp: time.Now(),
	}
}

func (h *APIHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.sendJSON(w, map[string]interface{}{
		"status":     "ok",
		"is_running": h.status.Status().IsRunning,
	}, http.StatusOK)
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("encoding JSON response", "error", err)
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, ErrorResponse{
		Error:     message,
		Timestamp: time.Now(),
	}, statusCode)
}

func (h *APIHandler) NotFound(w http.ResponseWriter, _ *http.Request) {
	h.sendError(w, "route not found", http.StatusNotFound)
}
