package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/luispfcanales/daemon-dnsq/internal/application/events"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
)

type RouterConfig struct {
	Store    ports.ProfileReader
	Live     LiveProfiles
	Status   StatusSource
	Stop     context.CancelFunc
	EventBus *events.EventBus
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Log     *slog.Logger
}

type Router struct {
	handler *APIHandler
	metrics http.Handler
	log     *slog.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Stop == nil {
		cfg.Stop = func() {}
	}
	return &Router{
		handler: &APIHandler{
			store:    cfg.Store,
			live:     cfg.Live,
			status:   cfg.Status,
			stop:     cfg.Stop,
			eventBus: cfg.EventBus,
			upgrader: websocket.Upgrader{
				ReadBufferSize:  1024,
				WriteBufferSize: 1024,
			},
			log: cfg.Log,
		},
		metrics: cfg.Metrics,
		log:     cfg.Log,
	}
}

func (r *Router) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Profiles
	mux.HandleFunc("GET /profiles", r.handler.GetProfiles)
	mux.HandleFunc("GET /profiles/{domain}", r.handler.GetProfile)

	// Real-time events
	mux.HandleFunc("GET /monitoring/events", r.handler.MonitoringEvents)
	mux.HandleFunc("GET /monitoring/ws", r.handler.MonitoringSocket)

	// Control
	mux.HandleFunc("POST /monitoring/control", r.handler.sameOrigin(r.handler.ControlMonitoring))

	mux.HandleFunc("GET /healthz", r.handler.Healthz)
	if r.metrics != nil {
		mux.Handle("GET /metrics", r.metrics)
	}

	mux.HandleFunc("/", r.handler.NotFound)

	return mux
}

// Handler returns the routes wrapped in the middleware chain.
func (r *Router) Handler() http.Handler {
	return LoggingMiddleware(r.log)(CorsMiddleware(r.SetupRoutes()))
}
