package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers bundles everything the HTTP surface serves.
type Handlers struct {
	WebSocket     http.Handler
	Activity      *ActivityHandler
	Notifications *NotificationHandler
	Connections   *ConnectionsHandler
	Health        http.HandlerFunc
	Metrics       http.Handler
}

// NewRouter creates and configures the HTTP router.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for dashboards served from another origin
	r.Use(corsMiddleware)

	// WebSocket endpoints; a bare /ws joins the users group.
	r.Get("/ws", h.WebSocket.ServeHTTP)
	r.Get("/ws/{group}", h.WebSocket.ServeHTTP)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/activity", func(r chi.Router) {
			r.Post("/", h.Activity.Create)
			r.Get("/", h.Activity.List)
			r.Get("/user/{userID}", h.Activity.ByUser)
			r.Get("/suspicious", h.Activity.Suspicious)
			r.Get("/by-action", h.Activity.ByAction)
			r.Get("/time-range", h.Activity.TimeRange)
			r.Get("/recent", h.Activity.Recent)
			r.Get("/summary", h.Activity.Summary)
		})

		r.Post("/notifications", h.Notifications.Create)
		r.Get("/connections", h.Connections.Get)
		r.Handle("/metrics", h.Metrics)
	})

	return r
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
