package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/Priya8975/admin-activity-hub/internal/domain"
)

// Inbound message types.
const (
	TypeActivityLog  = "activity_log"
	TypeSystemStatus = "system_status"
	TypeNotification = "notification"
)

// Message is a decoded inbound frame. The set of variants is closed:
// ActivityLog, SystemStatus, Notification and Unknown.
type Message interface {
	isMessage()
}

// ActivityLog asks for an activity event to be recorded.
type ActivityLog struct {
	Kind    domain.EventKind
	UserID  *int64
	Details *string
}

// SystemStatus is relayed verbatim to admins.
type SystemStatus struct {
	Raw []byte
}

// Notification is relayed verbatim to Target, or to every group when
// Target is domain.GroupAll. An absent target means domain.GroupAll; an
// empty one names a group like any other.
type Notification struct {
	Target string
	Raw    []byte
}

// Unknown carries a type this version does not understand. It is ignored.
type Unknown struct {
	Type string
}

func (ActivityLog) isMessage()  {}
func (SystemStatus) isMessage() {}
func (Notification) isMessage() {}
func (Unknown) isMessage()      {}

type activityLogFields struct {
	UserID  *int64  `json:"user_id"`
	Action  *string `json:"action"`
	Details *string `json:"details"`
}

type notificationFields struct {
	Target *string `json:"target"`
}

// Decode parses a raw inbound frame. Any error wraps ErrMalformedMessage.
func Decode(raw []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedMessage)
	}

	// A type that is not a string can never match a known variant.
	var typ string
	if v, ok := fields["type"]; ok {
		if err := json.Unmarshal(v, &typ); err != nil {
			return Unknown{Type: string(v)}, nil
		}
	}

	switch typ {
	case TypeActivityLog:
		var f activityLogFields
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if f.Action == nil || *f.Action == "" {
			return nil, fmt.Errorf("%w: activity_log requires action", ErrMalformedMessage)
		}
		return ActivityLog{
			Kind:    domain.EventKind(*f.Action),
			UserID:  f.UserID,
			Details: f.Details,
		}, nil

	case TypeSystemStatus:
		return SystemStatus{Raw: raw}, nil

	case TypeNotification:
		var f notificationFields
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		target := domain.GroupAll
		if f.Target != nil {
			target = *f.Target
		}
		return Notification{Target: target, Raw: raw}, nil

	default:
		return Unknown{Type: typ}, nil
	}
}
