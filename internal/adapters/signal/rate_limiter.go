package signal

import (
	"sync"
	"time"

	"github.com/dkeye/relay/internal/domain"
)

// JoinRateLimiter bounds session-create/join attempts per client over a
// sliding window. A nil limiter, or one with a non-positive limit, allows
// everything.
type JoinRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.ClientID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewJoinRateLimiter(limit int, interval time.Duration) *JoinRateLimiter {
	return &JoinRateLimiter{
		history:  make(map[domain.ClientID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *JoinRateLimiter) Allow(id domain.ClientID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[id]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}

	rl.history[id] = append(fresh, now)
	return true
}

// Forget drops the history of a client that went away.
func (rl *JoinRateLimiter) Forget(id domain.ClientID) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.history, id)
	rl.mu.Unlock()
}
