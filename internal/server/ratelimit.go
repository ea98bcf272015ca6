package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter bounds uploads per client: a request count per minute and a
// byte quota per calendar day. Zero limits are disabled.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	maxDataPerDay     int64 // bytes

	clients map[string]*ClientUsage
	now     func() time.Time
}

// ClientUsage tracks usage for one client address.
type ClientUsage struct {
	RequestsThisMinute int
	DataToday          int64

	minuteStart time.Time
	dayStart    time.Time
}

// NewRateLimiter creates a limiter with the given limits.
func NewRateLimiter(requestsPerMinute int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*ClientUsage),
		now:               time.Now,
	}
}

// Allow records one request of size bytes from client, or returns a
// *RateLimitError / *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage, ok := rl.clients[client]
	if !ok {
		usage = &ClientUsage{minuteStart: now, dayStart: now}
		rl.clients[client] = usage
	}

	if now.Sub(usage.minuteStart) >= time.Minute {
		usage.RequestsThisMinute = 0
		usage.minuteStart = now
	}
	if !sameDay(now, usage.dayStart) {
		usage.DataToday = 0
		usage.dayStart = now
	}

	if rl.requestsPerMinute > 0 && usage.RequestsThisMinute >= rl.requestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.minuteStart),
		}
	}
	if rl.maxDataPerDay > 0 && usage.DataToday+size > rl.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.maxDataPerDay,
			Used:   usage.DataToday,
			Resets: time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location()),
		}
	}

	usage.RequestsThisMinute++
	usage.DataToday += size
	return nil
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Usage returns a copy of the usage recorded for client.
func (rl *RateLimiter) Usage(client string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clients[client]; ok {
		return *u
	}
	return ClientUsage{}
}

// RateLimitError represents a request rate violation.
type RateLimitError struct {
	Type       string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
