package api

import (
	"context"
	"net/http"

	"github.com/Priya8975/admin-activity-hub/internal/engine"
)

// ConnectionCounter reports live connections per group.
type ConnectionCounter interface {
	Counts() map[string]int
}

// BreakerReporter exposes the persistence circuit breaker.
type BreakerReporter interface {
	State(ctx context.Context) engine.CircuitBreakerState
}

type ConnectionsHandler struct {
	counter ConnectionCounter
	breaker BreakerReporter
}

func NewConnectionsHandler(counter ConnectionCounter, breaker BreakerReporter) *ConnectionsHandler {
	return &ConnectionsHandler{counter: counter, breaker: breaker}
}

type connectionsResponse struct {
	Groups             map[string]int            `json:"groups"`
	Total              int                       `json:"total"`
	PersistenceCircuit engine.CircuitBreakerState `json:"persistence_circuit"`
}

// Get returns live connection counts per group alongside the state of the
// circuit guarding event persistence.
func (h *ConnectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	counts := h.counter.Counts()
	total := 0
	for _, n := range counts {
		total += n
	}

	respondJSON(w, http.StatusOK, connectionsResponse{
		Groups:             counts,
		Total:              total,
		PersistenceCircuit: h.breaker.State(r.Context()),
	})
}
