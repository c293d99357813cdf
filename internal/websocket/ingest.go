package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Priya8975/admin-activity-hub/internal/broadcast"
	"github.com/Priya8975/admin-activity-hub/internal/metrics"
	"github.com/gorilla/websocket"
)

// ErrRateLimited is reported to a sender exceeding its message rate.
var ErrRateLimited = errors.New("message rate limit exceeded")

// MessageHandler processes one inbound frame from a connection in group.
type MessageHandler interface {
	Handle(ctx context.Context, group string, raw []byte) error
}

// Limiter throttles inbound frames per connection.
type Limiter interface {
	Allow(ctx context.Context, connID string, limit int) bool
	Forget(ctx context.Context, connID string)
}

// Peer is a registered connection that can also be read from.
type Peer interface {
	Conn
	Receive() ([]byte, error)
}

// Ingest runs the per-connection read loop. A connection is Open from
// registration until its first receive failure, after which it is Closed:
// deregistered, closed, and never sent to again.
type Ingest struct {
	registry  *Registry
	handler   MessageHandler
	limiter   Limiter
	rateLimit int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewIngest builds the read loop. limiter may be nil, in which case inbound
// messages are never throttled.
func NewIngest(registry *Registry, handler MessageHandler, limiter Limiter, rateLimit int, logger *slog.Logger, m *metrics.Metrics) *Ingest {
	return &Ingest{
		registry:  registry,
		handler:   handler,
		limiter:   limiter,
		rateLimit: rateLimit,
		logger:    logger.With("component", "ingest"),
		metrics:   m,
	}
}

// Serve registers peer under group and processes its frames in arrival
// order until the transport fails or ctx is cancelled. Handling errors are
// reported to the peer and do not end the loop.
func (in *Ingest) Serve(ctx context.Context, peer Peer, group string) {
	logger := in.logger.With("conn_id", peer.ID(), "group", group)
	if !in.registry.Register(peer, group) {
		return
	}
	logger.Info("websocket connected")

	defer func() {
		in.registry.Deregister(peer, group)
		peer.Close()
		if in.limiter != nil {
			in.limiter.Forget(context.WithoutCancel(ctx), peer.ID())
		}
		logger.Info("websocket disconnected")
	}()

	// Closing the peer unblocks Receive when the server shuts down.
	stop := context.AfterFunc(ctx, func() { peer.Close() })
	defer stop()

	for {
		raw, err := peer.Receive()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("websocket read error", "error", err)
			}
			return
		}

		if in.limiter != nil && !in.limiter.Allow(ctx, peer.ID(), in.rateLimit) {
			in.metrics.MessagesRateLimited.Inc()
			in.reply(peer, broadcast.EncodeErrorCode(broadcast.CodeRateLimited, ErrRateLimited.Error()), logger)
			continue
		}

		if err := in.dispatch(ctx, group, raw); err != nil {
			in.reply(peer, broadcast.EncodeError(err), logger)
		}
	}
}

func (in *Ingest) dispatch(ctx context.Context, group string, raw []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			in.metrics.HandlerPanics.Inc()
			in.logger.Error("panic while handling message", "panic", rec, "group", group)
			err = fmt.Errorf("handling message: %v", rec)
		}
	}()
	return in.handler.Handle(ctx, group, raw)
}

func (in *Ingest) reply(peer Peer, frame []byte, logger *slog.Logger) {
	if err := peer.Send(frame); err != nil {
		logger.Debug("failed to send error frame", "error", err)
	}
}
