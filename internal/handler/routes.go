package handler

import (
	"net/http"

	"github.com/rs/cors"

	"who-is-live/internal/logger"
	"who-is-live/internal/metrics"
	"who-is-live/internal/middleware"
)

// RouterConfig holds the settings that shape the HTTP surface
type RouterConfig struct {
	AllowedOrigins []string
	MetricsEnabled bool
}

// NewRouter builds the application's HTTP handler
func NewRouter(h *APIHandler, rec metrics.Recorder, cfg RouterConfig, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, endpoint string, fn http.HandlerFunc) {
		mux.Handle(pattern, middleware.Instrument(rec, endpoint, fn))
	}
	route("GET /api/streamers", "streamers", h.HandleStreamers)
	route("GET /api/streamers/{platform}/{name}", "streamer", h.HandleStreamer)
	route("POST /api/refresh", "refresh", h.HandleRefresh)
	route("POST /refresh", "dashboard_refresh", h.HandleDashboardRefresh)
	route("GET /healthz", "healthz", h.HandleHealth)
	route("GET /", "dashboard", h.HandleDashboard)

	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", rec.Handler())
	}

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})

	return middleware.RequestID(log)(c.Handler(mux))
}
