package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/Priya8975/admin-activity-hub/internal/domain"
	"github.com/Priya8975/admin-activity-hub/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from other origins
	},
}

// Endpoint upgrades HTTP requests on /ws and /ws/{group} and hands each
// connection to the ingest loop.
type Endpoint struct {
	ingest    *Ingest
	admission *Admission
	opts      ClientOptions
	baseCtx   context.Context
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewEndpoint builds the upgrade handler. Connections outlive the request
// that opened them and are bound to baseCtx instead; cancelling it closes
// every connection served here.
func NewEndpoint(baseCtx context.Context, ingest *Ingest, admission *Admission, opts ClientOptions, logger *slog.Logger, m *metrics.Metrics) *Endpoint {
	return &Endpoint{
		ingest:    ingest,
		admission: admission,
		opts:      opts,
		baseCtx:   baseCtx,
		logger:    logger.With("component", "ws-endpoint"),
		metrics:   m,
	}
}

// ServeHTTP handles GET /ws/{group}. Without a group segment the connection
// joins the users group.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	if group == "" {
		group = domain.GroupUsers
	}

	ip := clientIP(r)
	release, err := e.admission.Admit(ip)
	if err != nil {
		e.reject(w, ip, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		release()
		e.logger.Error("websocket upgrade failed", "error", err, "remote_ip", ip)
		return
	}

	client := NewClient(conn, e.opts, e.logger)
	go func() {
		defer release()
		e.ingest.Serve(e.baseCtx, client, group)
	}()
}

func (e *Endpoint) reject(w http.ResponseWriter, ip string, err error) {
	status := http.StatusServiceUnavailable
	reason := "max_connections"
	if errors.Is(err, ErrHandshakeRateLimited) {
		status = http.StatusTooManyRequests
		reason = "handshake_rate"
	}

	e.metrics.ConnectionsRejected.WithLabelValues(reason).Inc()
	e.logger.Warn("websocket handshake rejected", "remote_ip", ip, "reason", reason)
	http.Error(w, err.Error(), status)
}

// clientIP expects chi's RealIP middleware to have normalized RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
