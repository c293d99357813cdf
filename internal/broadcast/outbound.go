package broadcast

import (
	"encoding/json"
	"time"

	"github.com/Priya8975/admin-activity-hub/internal/domain"
)

// Outbound message types.
const (
	TypeSecurityAlert      = "security_alert"
	TypeActivityUpdate     = "activity_update"
	TypeSystemNotification = "system_notification"
	TypeError              = "error"
)

// SecurityAlert is sent to admins when a sensitive event is observed.
type SecurityAlert struct {
	Type      string           `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	UserID    *int64           `json:"user_id,omitempty"`
	Action    domain.EventKind `json:"action"`
	Details   *string          `json:"details,omitempty"`
}

// ActivityUpdate pushes an activity payload to every group.
type ActivityUpdate struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// SystemNotification is a server-originated announcement.
type SystemNotification struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// ErrorFrame reports a rejected inbound message back to its sender.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newSecurityAlert(rec domain.EventRecord) SecurityAlert {
	return SecurityAlert{
		Type:      TypeSecurityAlert,
		Timestamp: rec.OccurredAt,
		UserID:    rec.SourceUserID,
		Action:    rec.Kind,
		Details:   rec.Detail,
	}
}

// EncodeError renders the error frame for err.
func EncodeError(err error) []byte {
	return EncodeErrorCode(ErrorCode(err), err.Error())
}

// EncodeErrorCode renders an error frame with an explicit code.
func EncodeErrorCode(code, message string) []byte {
	data, _ := json.Marshal(ErrorFrame{
		Type:    TypeError,
		Code:    code,
		Message: message,
	})
	return data
}
