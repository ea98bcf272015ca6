package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNow is a settable clock for the limiter.
type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time { return f.t }

func newTestLimiter(perMinute int, perDay int64) (*RateLimiter, *fakeNow) {
	clock := &fakeNow{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMinute, perDay)
	rl.now = clock.now
	return rl, clock
}

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 1024*1024)

	assert.NotNil(t, rl)
	assert.Equal(t, 10, rl.requestsPerMinute)
	assert.Equal(t, int64(1024*1024), rl.maxDataPerDay)
	assert.NotNil(t, rl.clients)
}

func TestRateLimiter_Allow_NoLimits(t *testing.T) {
	rl, _ := newTestLimiter(0, 0)

	for range 100 {
		require.NoError(t, rl.Allow("client", 1<<20))
	}
	usage := rl.Usage("client")
	assert.Equal(t, 100, usage.RequestsThisMinute)
	assert.Equal(t, int64(100<<20), usage.DataToday)
}

func TestRateLimiter_Allow_RequestsPerMinute(t *testing.T) {
	rl, clock := newTestLimiter(2, 0)

	require.NoError(t, rl.Allow("client", 0))
	clock.t = clock.t.Add(20 * time.Second)
	require.NoError(t, rl.Allow("client", 0))

	err := rl.Allow("client", 0)
	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, "minute", rateErr.Type)
	assert.Equal(t, 2, rateErr.Limit)
	assert.Equal(t, 40*time.Second, rateErr.RetryAfter)

	// Rejected requests are not counted.
	assert.Equal(t, 2, rl.Usage("client").RequestsThisMinute)

	clock.t = clock.t.Add(41 * time.Second)
	assert.NoError(t, rl.Allow("client", 0))
}

func TestRateLimiter_Allow_MaxDataPerDay(t *testing.T) {
	rl, _ := newTestLimiter(0, 1000)

	require.NoError(t, rl.Allow("client", 500))
	require.NoError(t, rl.Allow("client", 400))

	err := rl.Allow("client", 200)
	var quotaErr *QuotaExceededError
	require.True(t, errors.As(err, &quotaErr))
	assert.Equal(t, "data", quotaErr.Type)
	assert.Equal(t, int64(1000), quotaErr.Limit)
	assert.Equal(t, int64(900), quotaErr.Used)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), quotaErr.Resets)

	// A smaller upload still fits.
	assert.NoError(t, rl.Allow("client", 100))
}

func TestRateLimiter_Allow_DayReset(t *testing.T) {
	rl, clock := newTestLimiter(0, 100)

	require.NoError(t, rl.Allow("client", 100))
	require.Error(t, rl.Allow("client", 1))

	clock.t = clock.t.Add(12 * time.Hour)
	require.NoError(t, rl.Allow("client", 1))
	assert.Equal(t, int64(1), rl.Usage("client").DataToday)
}

func TestRateLimiter_MultipleClients(t *testing.T) {
	rl, _ := newTestLimiter(1, 0)

	require.NoError(t, rl.Allow("a", 0))
	assert.Error(t, rl.Allow("a", 0))
	assert.NoError(t, rl.Allow("b", 0))
}

func TestRateLimiter_Usage_UnknownClient(t *testing.T) {
	rl, _ := newTestLimiter(10, 10)
	assert.Equal(t, ClientUsage{}, rl.Usage("nobody"))
}

func TestRateLimitError_Error(t *testing.T) {
	err := &RateLimitError{Type: "minute", Limit: 10, RetryAfter: 5 * time.Minute}
	assert.Equal(t, "rate limit exceeded for minute (limit: 10, retry after: 5m0s)", err.Error())
}

func TestQuotaExceededError_Error(t *testing.T) {
	err := &QuotaExceededError{
		Type:   "data",
		Limit:  1000,
		Used:   950,
		Resets: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "quota exceeded for data (used: 950, limit: 1000, resets: 2024-01-02T00:00:00Z)", err.Error())
}

func BenchmarkRateLimiter_Allow(b *testing.B) {
	rl := NewRateLimiter(0, 0)

	b.ResetTimer()
	for range b.N {
		_ = rl.Allow("bench", 100)
	}
}
