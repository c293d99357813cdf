package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Priya8975/admin-activity-hub/internal/domain"
	"github.com/Priya8975/admin-activity-hub/internal/metrics"
	"github.com/jonboulle/clockwork"
)

// Gateway durably appends activity events.
type Gateway interface {
	Append(ctx context.Context, rec domain.EventRecord) (domain.EventID, error)
}

// Deliverer fans a payload out to live connections and returns how many
// sends succeeded.
type Deliverer interface {
	DeliverToGroup(group string, payload []byte) int
	DeliverToAll(payload []byte) int
}

// Router classifies inbound messages, persists activity events and decides
// which groups receive what.
type Router struct {
	gateway   Gateway
	deliverer Deliverer
	stamper   *domain.Stamper
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewRouter(gateway Gateway, deliverer Deliverer, clock clockwork.Clock, logger *slog.Logger, m *metrics.Metrics) *Router {
	return &Router{
		gateway:   gateway,
		deliverer: deliverer,
		stamper:   domain.NewStamper(clock),
		clock:     clock,
		logger:    logger.With("component", "router"),
		metrics:   m,
	}
}

// Handle processes one raw frame received from a connection in group.
//
// A decode failure returns ErrMalformedMessage and has no side effects.
// A failed append returns ErrPersistenceFailure, but only after any
// delivery for the message has been attempted.
func (r *Router) Handle(ctx context.Context, group string, raw []byte) error {
	msg, err := Decode(raw)
	if err != nil {
		r.metrics.MessagesMalformed.Inc()
		r.logger.Debug("rejected inbound message", "group", group, "error", err)
		return err
	}

	switch m := msg.(type) {
	case ActivityLog:
		r.metrics.MessagesReceived.WithLabelValues(TypeActivityLog).Inc()
		rec := domain.EventRecord{
			Kind:         m.Kind,
			SourceUserID: m.UserID,
			Detail:       m.Details,
			OccurredAt:   r.stamper.Now(),
		}
		_, persistErr := r.persist(ctx, rec, group)
		if rec.Kind.IsSensitive() {
			r.PublishSecurityAlert(rec)
		}
		return persistErr

	case SystemStatus:
		r.metrics.MessagesReceived.WithLabelValues(TypeSystemStatus).Inc()
		r.deliverer.DeliverToGroup(domain.GroupAdmin, m.Raw)
		return nil

	case Notification:
		r.metrics.MessagesReceived.WithLabelValues(TypeNotification).Inc()
		r.deliverTo(m.Target, m.Raw)
		return nil

	case Unknown:
		r.metrics.MessagesReceived.WithLabelValues("unknown").Inc()
		r.logger.Debug("ignoring unknown message type", "group", group, "type", m.Type)
		return nil

	default:
		return fmt.Errorf("unhandled message variant %T", msg)
	}
}

// RecordActivity persists rec, pushes an activity_update to every group and
// alerts admins when the kind is sensitive. The returned record carries the
// server-assigned timestamp and, when stored, its ID.
func (r *Router) RecordActivity(ctx context.Context, rec domain.EventRecord) (domain.EventRecord, error) {
	rec.ID = 0
	rec.OccurredAt = r.stamper.Now()

	id, err := r.persist(ctx, rec, "")
	if err == nil {
		rec.ID = id
	}

	r.PublishActivityUpdate(rec)
	if rec.Kind.IsSensitive() {
		r.PublishSecurityAlert(rec)
	}
	return rec, err
}

// PublishActivityUpdate sends data to every group as an activity_update.
func (r *Router) PublishActivityUpdate(data any) int {
	return r.publish(domain.GroupAll, ActivityUpdate{
		Type:      TypeActivityUpdate,
		Timestamp: r.clock.Now().UTC(),
		Data:      data,
	})
}

// PublishSecurityAlert sends a security_alert for rec to admins only.
func (r *Router) PublishSecurityAlert(rec domain.EventRecord) int {
	r.metrics.SecurityAlerts.WithLabelValues(string(rec.Kind)).Inc()
	r.logger.Warn("security alert",
		"kind", rec.Kind,
		userIDAttr(rec.SourceUserID),
	)
	return r.publish(domain.GroupAdmin, newSecurityAlert(rec))
}

// PublishSystemNotification sends message to target, or to every group when
// target is empty or domain.GroupAll.
func (r *Router) PublishSystemNotification(message, target string) int {
	if target == "" {
		target = domain.GroupAll
	}
	return r.publish(target, SystemNotification{
		Type:      TypeSystemNotification,
		Timestamp: r.clock.Now().UTC(),
		Message:   message,
	})
}

func (r *Router) persist(ctx context.Context, rec domain.EventRecord, group string) (domain.EventID, error) {
	id, err := r.gateway.Append(ctx, rec)
	if err != nil {
		r.metrics.PersistenceFailures.Inc()
		r.logger.Error("failed to persist activity event",
			"error", err,
			"kind", rec.Kind,
			userIDAttr(rec.SourceUserID),
			"group", group,
		)
		return 0, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	return id, nil
}

func (r *Router) publish(target string, v any) int {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("failed to marshal outbound message", "error", err)
		return 0
	}
	return r.deliverTo(target, payload)
}

func (r *Router) deliverTo(target string, payload []byte) int {
	if target == domain.GroupAll {
		return r.deliverer.DeliverToAll(payload)
	}
	return r.deliverer.DeliverToGroup(target, payload)
}

func userIDAttr(id *int64) slog.Attr {
	if id == nil {
		return slog.Any("user_id", nil)
	}
	return slog.Int64("user_id", *id)
}
