package websocket

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrTooManyConnections   = errors.New("too many connections")
	ErrHandshakeRateLimited = errors.New("handshake rate limited")
)

// Admission gates new websocket handshakes: a per-IP token bucket limits how
// fast a single client can reconnect, and a global cap bounds how many
// connections this instance holds. A zero cap or rate disables that check.
type Admission struct {
	current atomic.Int64
	max     int64

	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewAdmission(maxConnections int, handshakesPerSecond float64, burst int) *Admission {
	if burst <= 0 {
		burst = 1
	}
	return &Admission{
		max:       int64(maxConnections),
		limiters:  make(map[string]*ipLimiter),
		rate:      rate.Limit(handshakesPerSecond),
		burst:     burst,
		cleanupAt: time.Now().Add(5 * time.Minute),
	}
}

// Admit reserves a connection slot for ip. The returned release func must be
// called exactly once when the connection ends.
func (a *Admission) Admit(ip string) (func(), error) {
	if !a.allowHandshake(ip) {
		return nil, ErrHandshakeRateLimited
	}

	for {
		current := a.current.Load()
		if a.max > 0 && current >= a.max {
			return nil, ErrTooManyConnections
		}
		if a.current.CompareAndSwap(current, current+1) {
			break
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { a.current.Add(-1) })
	}, nil
}

// Current returns the number of admitted connections.
func (a *Admission) Current() int64 {
	return a.current.Load()
}

func (a *Admission) allowHandshake(ip string) bool {
	if a.rate <= 0 {
		return true
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if now.After(a.cleanupAt) {
		cutoff := now.Add(-10 * time.Minute)
		for k, e := range a.limiters {
			if e.lastSeen.Before(cutoff) {
				delete(a.limiters, k)
			}
		}
		a.cleanupAt = now.Add(5 * time.Minute)
	}

	entry, ok := a.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(a.rate, a.burst)}
		a.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}
