package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Priya8975/admin-activity-hub/internal/domain"
)

// Notifier sends a server-originated announcement to a group, or to every
// group when target is empty.
type Notifier interface {
	PublishSystemNotification(message, target string) int
}

type NotificationHandler struct {
	notifier Notifier
}

func NewNotificationHandler(n Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: n}
}

type createNotificationRequest struct {
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
}

type createNotificationResponse struct {
	Target    string `json:"target"`
	Delivered int    `json:"delivered"`
}

func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	target := req.Target
	if target == "" {
		target = domain.GroupAll
	}

	delivered := h.notifier.PublishSystemNotification(req.Message, req.Target)
	respondJSON(w, http.StatusAccepted, createNotificationResponse{
		Target:    target,
		Delivered: delivered,
	})
}
