package websocket

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/Priya8975/admin-activity-hub/internal/domain"
	"github.com/Priya8975/admin-activity-hub/internal/metrics"
)

// Conn is a delivery target held by the Registry.
type Conn interface {
	ID() string
	// Send queues payload for the peer. An error means the connection is
	// dead or cannot keep up; it is never retried.
	Send(payload []byte) error
	Close() error
}

// Registry tracks live connections by group. A connection belongs to at
// most one group; members of a group are kept in registration order.
//
// Deliveries take a snapshot of the target group and send outside the lock,
// so a delivery reaches exactly the members present when it started.
// Members whose send fails are removed afterwards and closed.
type Registry struct {
	mu      sync.RWMutex
	groups  map[string][]Conn
	member  map[Conn]string
	closed  bool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRegistry(logger *slog.Logger, m *metrics.Metrics) *Registry {
	r := &Registry{
		groups:  make(map[string][]Conn),
		member:  make(map[Conn]string),
		logger:  logger.With("component", "registry"),
		metrics: m,
	}
	for _, g := range []string{domain.GroupAdmin, domain.GroupStaff} {
		r.groups[g] = nil
		m.ConnectionsActive.WithLabelValues(g).Set(0)
	}
	return r
}

// Register makes conn a delivery target of group, creating the group if it
// does not exist. Registering twice is a no-op; registering under a new
// group moves the connection. It returns false, after closing conn, when
// the registry has been closed.
func (r *Registry) Register(conn Conn, group string) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("registry closed, rejecting connection", "conn_id", conn.ID(), "group", group)
		conn.Close()
		return false
	}

	if current, ok := r.member[conn]; ok {
		if current == group {
			r.mu.Unlock()
			return true
		}
		r.removeLocked(conn, current)
	}

	r.groups[group] = append(r.groups[group], conn)
	r.member[conn] = group
	r.metrics.ConnectionsActive.WithLabelValues(group).Inc()
	total := len(r.groups[group])
	r.mu.Unlock()

	r.logger.Debug("connection registered", "conn_id", conn.ID(), "group", group, "group_size", total)
	return true
}

// Deregister removes conn from group. Absent connections are ignored.
func (r *Registry) Deregister(conn Conn, group string) {
	r.mu.Lock()
	removed := r.removeLocked(conn, group)
	r.mu.Unlock()

	if removed {
		r.logger.Debug("connection deregistered", "conn_id", conn.ID(), "group", group)
	}
}

// DeliverToGroup sends payload to every connection in group and returns the
// number of successful sends. Connections whose send fails are removed from
// the group and closed; the rest of the group is unaffected.
func (r *Registry) DeliverToGroup(group string, payload []byte) int {
	members := r.snapshot(group)
	if len(members) == 0 {
		return 0
	}

	var failed []Conn
	delivered := 0
	for _, c := range members {
		if err := c.Send(payload); err != nil {
			r.logger.Debug("send failed, pruning connection", "conn_id", c.ID(), "group", group, "error", err)
			failed = append(failed, c)
			continue
		}
		delivered++
	}

	r.metrics.Deliveries.WithLabelValues(group, "ok").Add(float64(delivered))
	if len(failed) > 0 {
		r.metrics.Deliveries.WithLabelValues(group, "failed").Add(float64(len(failed)))
		r.prune(group, failed)
	}
	return delivered
}

// DeliverToAll runs DeliverToGroup for every known group.
func (r *Registry) DeliverToAll(payload []byte) int {
	delivered := 0
	for _, g := range r.Groups() {
		delivered += r.DeliverToGroup(g, payload)
	}
	return delivered
}

// Groups returns the known group names in sorted order.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.groups))
	for g := range r.groups {
		names = append(names, g)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Count returns the number of connections in group.
func (r *Registry) Count(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

// Counts returns the number of connections per known group.
func (r *Registry) Counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.groups))
	for g, members := range r.groups {
		counts[g] = len(members)
	}
	return counts
}

// Close closes every connection and stops accepting registrations.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true

	var all []Conn
	for g, members := range r.groups {
		all = append(all, members...)
		r.groups[g] = nil
		r.metrics.ConnectionsActive.WithLabelValues(g).Set(0)
	}
	r.member = make(map[Conn]string)
	r.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	r.logger.Info("registry closed", "connections_closed", len(all))
}

func (r *Registry) snapshot(group string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.groups[group]
	if len(members) == 0 {
		return nil
	}
	out := make([]Conn, len(members))
	copy(out, members)
	return out
}

func (r *Registry) prune(group string, failed []Conn) {
	var pruned []Conn

	r.mu.Lock()
	for _, c := range failed {
		if r.removeLocked(c, group) {
			pruned = append(pruned, c)
		}
	}
	r.mu.Unlock()

	for _, c := range pruned {
		c.Close()
	}
	if len(pruned) > 0 {
		r.metrics.ConnectionsPruned.WithLabelValues(group).Add(float64(len(pruned)))
		r.logger.Info("pruned dead connections", "group", group, "count", len(pruned))
	}
}

// removeLocked removes conn from group if it is a member there.
// Must be called with mu held.
func (r *Registry) removeLocked(conn Conn, group string) bool {
	if current, ok := r.member[conn]; !ok || current != group {
		return false
	}

	members := r.groups[group]
	for i, c := range members {
		if c == conn {
			r.groups[group] = append(members[:i:i], members[i+1:]...)
			delete(r.member, conn)
			r.metrics.ConnectionsActive.WithLabelValues(group).Dec()
			return true
		}
	}
	return false
}
