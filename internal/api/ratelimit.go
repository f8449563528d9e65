package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// AccountLimiter throttles order intake per account with a token bucket.
type AccountLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewAccountLimiter allows rps orders per second per account with the given
// burst. rps <= 0 disables throttling.
func NewAccountLimiter(rps float64, burst int) *AccountLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &AccountLimiter{limiters: make(map[string]*rate.Limiter), rps: limit, burst: burst}
}

func (l *AccountLimiter) get(account string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[account]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[account]; ok {
		return lim
	}
	lim = rate.NewLimiter(l.rps, l.burst)
	l.limiters[account] = lim
	return lim
}

// Allow reports whether account may place an order now.
func (l *AccountLimiter) Allow(account string) bool {
	return l.get(account).Allow()
}
