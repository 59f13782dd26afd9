package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Eviction tuning. A client that has not sent a decision or note in
// idleEviction is forgotten entirely; its next request starts with a
// fresh burst allowance, which is fine at these timescales.
const (
	sweepInterval = time.Minute
	idleEviction  = 10 * time.Minute
)

// clientBucket tracks the remaining allowance for one client key.
type clientBucket struct {
	remaining float64
	seenAt    time.Time
}

// take refills the bucket for the time elapsed since the last request,
// then tries to spend one token.
func (b *clientBucket) take(now time.Time, rate, burst float64) bool {
	b.remaining += now.Sub(b.seenAt).Seconds() * rate
	if b.remaining > burst {
		b.remaining = burst
	}
	b.seenAt = now
	if b.remaining < 1 {
		return false
	}
	b.remaining--
	return true
}

// MemoryLimiter is a per-key token bucket held in process memory. It
// guards the write paths (decisions and notes) of a single game server;
// a multi-instance deployment needs a shared Limiter implementation
// instead, since each instance would otherwise grant its own burst.
type MemoryLimiter struct {
	rate  float64 // sustained requests per second per key
	burst float64 // bucket capacity

	mu      sync.Mutex
	clients map[string]*clientBucket

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryLimiter creates a token bucket limiter allowing rate requests
// per second per key with bursts up to burst. A background sweeper
// forgets idle clients; call Close to stop it.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		clients: make(map[string]*clientBucket),
		done:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Allow spends one token from the key's bucket, reporting whether the
// request may proceed. An unseen key starts with a full burst.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.clients[key]
	if !ok {
		b = &clientBucket{remaining: m.burst, seenAt: now}
		m.clients[key] = b
	}
	return b.take(now, m.rate, m.burst), nil
}

// Close stops the sweeper. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-idleEviction)
			m.mu.Lock()
			for key, b := range m.clients {
				if b.seenAt.Before(cutoff) {
					delete(m.clients, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
