package automation

import (
	"sync"
	"time"
)

const (
	DefaultRateLimit  = 5
	DefaultRateWindow = time.Second
)

// RateLimiter caps how often each rule may execute within a sliding window.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	recent map[string][]time.Time
}

// NewRateLimiter creates a limiter allowing limit executions per window.
// Non-positive arguments select the defaults.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		recent: make(map[string][]time.Time),
	}
}

// SetClock replaces the time source. Used by tests.
func (l *RateLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Check records an execution attempt for ruleID and reports whether it is
// allowed. Rejected attempts are not recorded.
func (l *RateLimiter) Check(ruleID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.recent[ruleID][:0]
	for _, ts := range l.recent[ruleID] {
		if now.Sub(ts) < l.window {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.recent[ruleID] = kept
		return false
	}
	l.recent[ruleID] = append(kept, now)
	return true
}

// Reset forgets all recorded executions for ruleID.
func (l *RateLimiter) Reset(ruleID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.recent, ruleID)
}

// Retain drops state for every rule id not in keep.
func (l *RateLimiter) Retain(keep map[string]struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.recent {
		if _, ok := keep[id]; !ok {
			delete(l.recent, id)
		}
	}
}

// Tracked returns how many rules currently hold state.
func (l *RateLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recent)
}

// Limit returns the maximum executions allowed per window.
func (l *RateLimiter) Limit() int { return l.limit }

// Window returns the sliding window length.
func (l *RateLimiter) Window() time.Duration { return l.window }
