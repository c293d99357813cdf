package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Priya8975/admin-activity-hub/internal/broadcast"
	"github.com/Priya8975/admin-activity-hub/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
)

// ActivityReader queries the stored activity log.
type ActivityReader interface {
	ListActivities(ctx context.Context, filter domain.ActivityFilter) ([]domain.EventRecord, error)
	Summary(ctx context.Context, days int, now time.Time) (*domain.ActivitySummary, error)
}

// ActivityRecorder stores an activity and broadcasts it.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, rec domain.EventRecord) (domain.EventRecord, error)
}

type ActivityHandler struct {
	reader   ActivityReader
	recorder ActivityRecorder
	clock    clockwork.Clock
}

func NewActivityHandler(reader ActivityReader, recorder ActivityRecorder, clock clockwork.Clock) *ActivityHandler {
	return &ActivityHandler{reader: reader, recorder: recorder, clock: clock}
}

type createActivityRequest struct {
	UserID  *int64  `json:"user_id"`
	Action  string  `json:"action"`
	Details *string `json:"details,omitempty"`
}

// Create logs an activity. The event is broadcast even if it could not be
// stored, in which case the response is a 503.
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Action = strings.TrimSpace(req.Action)
	if req.Action == "" {
		respondError(w, http.StatusBadRequest, "action is required")
		return
	}

	rec, err := h.recorder.RecordActivity(r.Context(), domain.EventRecord{
		Kind:         domain.EventKind(req.Action),
		SourceUserID: req.UserID,
		Detail:       req.Details,
	})
	if err != nil {
		if errors.Is(err, broadcast.ErrPersistenceFailure) {
			respondError(w, http.StatusServiceUnavailable, "activity broadcast but not stored")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to record activity")
		return
	}

	respondJSON(w, http.StatusCreated, rec)
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(r, "limit", 100, 1, 1000)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
		return
	}
	h.list(w, r, domain.ActivityFilter{Limit: limit})
}

func (h *ActivityHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	limit, ok := intQuery(r, "limit", 50, 1, 200)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}
	h.list(w, r, domain.ActivityFilter{UserID: &userID, Limit: limit})
}

func (h *ActivityHandler) Suspicious(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(r, "limit", 50, 1, 200)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}
	h.list(w, r, domain.ActivityFilter{Kinds: domain.SensitiveKinds, Limit: limit})
}

func (h *ActivityHandler) ByAction(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action == "" {
		respondError(w, http.StatusBadRequest, "action is required")
		return
	}
	limit, ok := intQuery(r, "limit", 100, 1, 1000)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
		return
	}
	h.list(w, r, domain.ActivityFilter{Kinds: []domain.EventKind{domain.EventKind(action)}, Limit: limit})
}

func (h *ActivityHandler) TimeRange(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "start must be an RFC 3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "end must be an RFC 3339 timestamp")
		return
	}
	if end.Before(start) {
		respondError(w, http.StatusBadRequest, "end is before start")
		return
	}
	h.list(w, r, domain.ActivityFilter{From: start.UTC(), To: end.UTC()})
}

func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	hours, ok := intQuery(r, "hours", 24, 1, 168)
	if !ok {
		respondError(w, http.StatusBadRequest, "hours must be between 1 and 168")
		return
	}
	end := h.clock.Now().UTC()
	h.list(w, r, domain.ActivityFilter{From: end.Add(-time.Duration(hours) * time.Hour), To: end})
}

func (h *ActivityHandler) Summary(w http.ResponseWriter, r *http.Request) {
	days, ok := intQuery(r, "days", 7, 1, 365)
	if !ok {
		respondError(w, http.StatusBadRequest, "days must be between 1 and 365")
		return
	}

	summary, err := h.reader.Summary(r.Context(), days, h.clock.Now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to summarize activity")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *ActivityHandler) list(w http.ResponseWriter, r *http.Request, filter domain.ActivityFilter) {
	records, err := h.reader.ListActivities(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	respondJSON(w, http.StatusOK, records)
}
