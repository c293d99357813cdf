package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Priya8975/admin-activity-hub/internal/domain"
)

// ErrCircuitOpen is returned without calling the dependency while its
// circuit is open.
var ErrCircuitOpen = errors.New("circuit open")

// EventAppender durably appends activity events.
type EventAppender interface {
	Append(ctx context.Context, rec domain.EventRecord) (domain.EventID, error)
}

// GuardedGateway fronts an EventAppender with a circuit breaker so a
// struggling database is not hammered once per inbound message.
type GuardedGateway struct {
	next      EventAppender
	cb        *CircuitBreaker
	component string
	logger    *slog.Logger
}

func NewGuardedGateway(next EventAppender, cb *CircuitBreaker, component string, logger *slog.Logger) *GuardedGateway {
	return &GuardedGateway{
		next:      next,
		cb:        cb,
		component: component,
		logger:    logger,
	}
}

// Append forwards to the wrapped appender unless the circuit is open.
func (g *GuardedGateway) Append(ctx context.Context, rec domain.EventRecord) (domain.EventID, error) {
	if _, ok := g.cb.AllowRequest(ctx, g.component); !ok {
		g.logger.Warn("skipping append, circuit open", "component", g.component, "kind", rec.Kind)
		return 0, fmt.Errorf("%s: %w", g.component, ErrCircuitOpen)
	}

	id, err := g.next.Append(ctx, rec)
	if err != nil {
		// A cancelled caller says nothing about the database.
		if ctx.Err() == nil {
			g.cb.RecordFailure(ctx, g.component)
		}
		return 0, err
	}

	g.cb.RecordSuccess(ctx, g.component)
	return id, nil
}

// State exposes the breaker for dashboards.
func (g *GuardedGateway) State(ctx context.Context) CircuitBreakerState {
	return g.cb.GetState(ctx, g.component)
}
