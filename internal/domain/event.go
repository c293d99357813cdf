package domain

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// EventID identifies a persisted activity record.
type EventID int64

// EventKind classifies an activity ("failed_login", "profile_updated", ...).
// The set is open: any non-empty string is a valid kind.
type EventKind string

const (
	KindFailedLogin               EventKind = "failed_login"
	KindUnauthorizedAccess        EventKind = "unauthorized_access"
	KindSuspiciousActivity        EventKind = "suspicious_activity"
	KindFileAccessDenied          EventKind = "file_access_denied"
	KindUnauthorizedAccessAttempt EventKind = "unauthorized_access_attempt"
	KindMultipleFailedLogins      EventKind = "multiple_failed_logins"
	KindSuspiciousFileAccess      EventKind = "suspicious_file_access"
	KindAdminActionAttempted      EventKind = "admin_action_attempted"
)

// SensitiveKinds are the kinds that raise a security alert to admins.
var SensitiveKinds = []EventKind{
	KindFailedLogin,
	KindUnauthorizedAccess,
	KindSuspiciousActivity,
	KindFileAccessDenied,
	KindUnauthorizedAccessAttempt,
	KindMultipleFailedLogins,
	KindSuspiciousFileAccess,
	KindAdminActionAttempted,
}

var sensitiveKinds = func() map[EventKind]struct{} {
	m := make(map[EventKind]struct{}, len(SensitiveKinds))
	for _, k := range SensitiveKinds {
		m[k] = struct{}{}
	}
	return m
}()

// IsSensitive reports whether events of this kind trigger a security alert.
func (k EventKind) IsSensitive() bool {
	_, ok := sensitiveKinds[k]
	return ok
}

// EventRecord is one activity occurrence. It is immutable once persisted.
type EventRecord struct {
	ID           EventID   `json:"id,omitempty"`
	Kind         EventKind `json:"action"`
	SourceUserID *int64    `json:"user_id,omitempty"`
	Detail       *string   `json:"details,omitempty"`
	OccurredAt   time.Time `json:"timestamp"`
}

// Stamper hands out ingest timestamps from the server clock. Successive
// stamps never go backwards, even if the wall clock does.
type Stamper struct {
	clock clockwork.Clock
	mu    sync.Mutex
	last  time.Time
}

func NewStamper(clock clockwork.Clock) *Stamper {
	return &Stamper{clock: clock}
}

// Now returns the next ingest timestamp in UTC.
func (s *Stamper) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	if !now.After(s.last) && !s.last.IsZero() {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}
