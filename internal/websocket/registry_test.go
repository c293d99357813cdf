package websocket

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/Priya8975/admin-activity-hub/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records every payload it is sent. A failing fakeConn rejects all
// sends, standing in for a peer that has gone away.
type fakeConn struct {
	id   string
	fail bool

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return ErrConnectionClosed
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestRegistry(t *testing.T) (*Registry, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewNop()
	return NewRegistry(testLogger(), m), m
}

func TestRegistry_PrecreatesAdminAndStaff(t *testing.T) {
	r, _ := setupTestRegistry(t)

	assert.Equal(t, []string{"admin", "staff"}, r.Groups())
	assert.Equal(t, map[string]int{"admin": 0, "staff": 0}, r.Counts())
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r, m := setupTestRegistry(t)
	c := newFakeConn("c1")

	r.Register(c, "staff")
	r.Register(c, "staff")

	assert.Equal(t, 1, r.Count("staff"))
	assert.Equal(t, 1, r.DeliverToGroup("staff", []byte("x")))
	assert.Len(t, c.messages(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsActive.WithLabelValues("staff")))
}

func TestRegistry_RegisterCreatesUnknownGroup(t *testing.T) {
	r, _ := setupTestRegistry(t)

	r.Register(newFakeConn("c1"), "auditors")

	assert.Equal(t, 1, r.Count("auditors"))
	assert.Contains(t, r.Groups(), "auditors")
}

func TestRegistry_RegisterMovesBetweenGroups(t *testing.T) {
	r, _ := setupTestRegistry(t)
	c := newFakeConn("c1")

	r.Register(c, "staff")
	r.Register(c, "admin")

	assert.Equal(t, 0, r.Count("staff"))
	assert.Equal(t, 1, r.Count("admin"))

	r.DeliverToAll([]byte("x"))
	assert.Len(t, c.messages(), 1, "a connection lives in one group only")
}

func TestRegistry_RegisterThenDeregisterLeavesNoReference(t *testing.T) {
	r, _ := setupTestRegistry(t)
	c := newFakeConn("c1")

	r.Register(c, "admin")
	r.Deregister(c, "admin")

	assert.Equal(t, 0, r.Count("admin"))
	assert.Equal(t, 0, r.DeliverToGroup("admin", []byte("x")))
	assert.Empty(t, c.messages())

	r.mu.RLock()
	_, tracked := r.member[c]
	r.mu.RUnlock()
	assert.False(t, tracked)
}

func TestRegistry_DeregisterAbsentIsNoOp(t *testing.T) {
	r, _ := setupTestRegistry(t)
	c := newFakeConn("c1")
	r.Register(c, "staff")

	r.Deregister(newFakeConn("stranger"), "staff")
	r.Deregister(c, "admin")
	r.Deregister(c, "nowhere")

	assert.Equal(t, 1, r.Count("staff"))
	assert.False(t, c.isClosed())
}

func TestRegistry_DeliverToGroup_OneSendPerMember(t *testing.T) {
	r, _ := setupTestRegistry(t)
	a, b := newFakeConn("a"), newFakeConn("b")
	other := newFakeConn("other")
	r.Register(a, "admin")
	r.Register(b, "admin")
	r.Register(other, "staff")

	n := r.DeliverToGroup("admin", []byte("alert"))

	assert.Equal(t, 2, n)
	assert.Equal(t, [][]byte{[]byte("alert")}, a.messages())
	assert.Equal(t, [][]byte{[]byte("alert")}, b.messages())
	assert.Empty(t, other.messages())
}

func TestRegistry_DeliverToGroup_PrunesOnlyFailed(t *testing.T) {
	r, m := setupTestRegistry(t)
	good1, good2 := newFakeConn("good1"), newFakeConn("good2")
	dead := &fakeConn{id: "dead", fail: true}
	r.Register(good1, "admin")
	r.Register(dead, "admin")
	r.Register(good2, "admin")

	n := r.DeliverToGroup("admin", []byte("alert"))

	assert.Equal(t, 2, n)
	assert.Equal(t, 2, r.Count("admin"))
	assert.True(t, dead.isClosed())
	assert.False(t, good1.isClosed())
	assert.False(t, good2.isClosed())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsPruned.WithLabelValues("admin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("admin", "failed")))

	// The pruned connection is never attempted again.
	r.DeliverToGroup("admin", []byte("again"))
	assert.Len(t, good1.messages(), 2)
	assert.Len(t, good2.messages(), 2)
}

func TestRegistry_DeliverToGroup_UnknownOrEmpty(t *testing.T) {
	r, _ := setupTestRegistry(t)

	assert.Equal(t, 0, r.DeliverToGroup("nobody", []byte("x")))
	assert.Equal(t, 0, r.DeliverToGroup("admin", []byte("x")))
	assert.NotContains(t, r.Groups(), "nobody", "delivery must not create groups")
}

func TestRegistry_DeliverToAll_ConcurrentRegistration(t *testing.T) {
	r, _ := setupTestRegistry(t)
	const n = 100

	conns := make([]*fakeConn, n)
	var wg sync.WaitGroup
	for i := range n {
		conns[i] = newFakeConn(fmt.Sprintf("c%d", i))
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			r.Register(c, "users")
		}(conns[i])
	}
	wg.Wait()

	delivered := r.DeliverToAll([]byte("hello"))

	assert.Equal(t, n, delivered)
	for _, c := range conns {
		require.Len(t, c.messages(), 1, "conn %s", c.id)
	}
}

func TestRegistry_DeliverToAll_EveryGroup(t *testing.T) {
	r, _ := setupTestRegistry(t)
	admin, staff, user := newFakeConn("a"), newFakeConn("s"), newFakeConn("u")
	r.Register(admin, "admin")
	r.Register(staff, "staff")
	r.Register(user, "users")

	assert.Equal(t, 3, r.DeliverToAll([]byte("x")))
	for _, c := range []*fakeConn{admin, staff, user} {
		assert.Len(t, c.messages(), 1)
	}
}

func TestRegistry_ConcurrentDeliveryAndChurn(t *testing.T) {
	r, _ := setupTestRegistry(t)
	stable := newFakeConn("stable")
	r.Register(stable, "staff")

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c := newFakeConn(fmt.Sprintf("churn%d", i))
			r.Register(c, "staff")
			r.Deregister(c, "staff")
		}(i)
		go func() {
			defer wg.Done()
			r.DeliverToGroup("staff", []byte("x"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.Count("staff"))
	assert.Len(t, stable.messages(), 50)
}

func TestRegistry_Close(t *testing.T) {
	r, _ := setupTestRegistry(t)
	a, b := newFakeConn("a"), newFakeConn("b")
	r.Register(a, "admin")
	r.Register(b, "users")

	r.Close()

	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.Equal(t, 0, r.DeliverToAll([]byte("x")))

	late := newFakeConn("late")
	assert.False(t, r.Register(late, "admin"))
	assert.True(t, late.isClosed(), "closed registry rejects new connections")
	assert.Equal(t, 0, r.Count("admin"))

	r.Close()
}

func TestRegistry_ActiveGaugeSettlesAfterConcurrentClose(t *testing.T) {
	for range 20 {
		r, m := setupTestRegistry(t)

		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r.Register(newFakeConn(fmt.Sprintf("c%d", i)), "users")
			}(i)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Close()
		}()
		wg.Wait()

		for _, g := range r.Groups() {
			assert.Equal(t, 0.0, testutil.ToFloat64(m.ConnectionsActive.WithLabelValues(g)), "group %s", g)
			assert.Equal(t, 0, r.Count(g))
		}
	}
}
