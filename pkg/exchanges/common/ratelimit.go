package common

import (
	"log"
	"sync"
	"time"
)

// RateLimiter tracks API request usage over a rolling window. Bitget does
// not echo usage headers, so requests are counted locally at call sites.
type RateLimiter struct {
	used          int
	limit         int
	lastReset     time.Time
	resetInterval time.Duration
	mu            sync.RWMutex
}

// NewRateLimiter creates a request counter.
// limit: maximum requests allowed per window (e.g., 10/s for order endpoints)
// resetInterval: window length
func NewRateLimiter(limit int, resetInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:         limit,
		resetInterval: resetInterval,
		lastReset:     time.Now(),
	}
}

// Record counts one outgoing request.
func (rl *RateLimiter) Record() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastReset) >= rl.resetInterval {
		rl.used = 0
		rl.lastReset = time.Now()
	}
	rl.used++

	percentage := float64(rl.used) / float64(rl.limit) * 100
	if percentage >= 95 {
		log.Printf("rate limit critical: %d/%d (%.1f%%) - approaching ban threshold", rl.used, rl.limit, percentage)
	} else if percentage >= 80 {
		log.Printf("rate limit warning: %d/%d (%.1f%%)", rl.used, rl.limit, percentage)
	}
}

// GetUsage returns current usage information.
func (rl *RateLimiter) GetUsage() (used int, limit int, percentage float64) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if time.Since(rl.lastReset) >= rl.resetInterval {
		return 0, rl.limit, 0
	}
	return rl.used, rl.limit, float64(rl.used) / float64(rl.limit) * 100
}

// ShouldDelay returns true if the next request should back off.
func (rl *RateLimiter) ShouldDelay() bool {
	_, _, pct := rl.GetUsage()
	return pct >= 90
}
