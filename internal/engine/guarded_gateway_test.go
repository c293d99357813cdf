package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/Priya8975/admin-activity-hub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAppender struct {
	calls int
	err   error
}

func (s *stubAppender) Append(_ context.Context, _ domain.EventRecord) (domain.EventID, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return domain.EventID(s.calls), nil
}

func TestGuardedGateway_PassesThrough(t *testing.T) {
	cb, _ := setupTestCB(t)
	next := &stubAppender{}
	g := NewGuardedGateway(next, cb, "event-store", testLogger())

	id, err := g.Append(context.Background(), domain.EventRecord{Kind: "login"})

	require.NoError(t, err)
	assert.Equal(t, domain.EventID(1), id)
	assert.Equal(t, StateClosed, g.State(context.Background()).State)
}

func TestGuardedGateway_OpensAfterRepeatedFailures(t *testing.T) {
	cb, _ := setupTestCB(t)
	dbErr := errors.New("connection refused")
	next := &stubAppender{err: dbErr}
	g := NewGuardedGateway(next, cb, "event-store", testLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := g.Append(ctx, domain.EventRecord{Kind: "login"})
		assert.ErrorIs(t, err, dbErr)
	}

	_, err := g.Append(ctx, domain.EventRecord{Kind: "login"})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 5, next.calls, "open circuit must not reach the store")
}

func TestGuardedGateway_CancelledContextNotCounted(t *testing.T) {
	cb, _ := setupTestCB(t)
	next := &stubAppender{err: context.Canceled}
	g := NewGuardedGateway(next, cb, "event-store", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Append(ctx, domain.EventRecord{Kind: "login"})

	assert.Error(t, err)
	assert.Equal(t, 0, g.State(context.Background()).Failures)
}
