package bot

import (
	"sync"
	"time"
)

// RateLimiter counts messages per user in a fixed window and blocks a user
// for a cooldown once they exceed it.
type RateLimiter struct {
	mu          sync.Mutex
	maxMessages int
	interval    time.Duration
	blockTime   time.Duration
	counts      map[string]int
	resetAt     time.Time
	blocked     map[string]time.Time

	now func() time.Time
}

// NewRateLimiter creates a limiter allowing maxMessages per interval, with a
// blockTime cooldown once exceeded.
func NewRateLimiter(maxMessages int, interval, blockTime time.Duration) *RateLimiter {
	return &RateLimiter{
		maxMessages: maxMessages,
		interval:    interval,
		blockTime:   blockTime,
		counts:      make(map[string]int),
		blocked:     make(map[string]time.Time),
		now:         time.Now,
	}
}

// Limited records one message from userID and reports whether it should be
// dropped.
func (r *RateLimiter) Limited(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if blockedAt, ok := r.blocked[userID]; ok {
		if now.Sub(blockedAt) >= r.blockTime {
			delete(r.blocked, userID)
		} else {
			return true
		}
	}

	if now.After(r.resetAt) {
		r.counts = make(map[string]int)
		r.resetAt = now.Add(r.interval)
	}

	if r.counts[userID] >= r.maxMessages {
		r.blocked[userID] = now
		return true
	}
	r.counts[userID]++
	return false
}

// BlockedUntil returns when userID's block expires, if they are blocked.
func (r *RateLimiter) BlockedUntil(userID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	blockedAt, ok := r.blocked[userID]
	if !ok {
		return time.Time{}, false
	}
	return blockedAt.Add(r.blockTime), true
}
