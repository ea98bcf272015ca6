package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/metrics"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers to responses.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.config.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next(rw, r)
		metrics.HTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}

// rateLimitMiddleware enforces per-client upload limits.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil || r.Method != http.MethodPost {
			next(w, r)
			return
		}

		var size int64
		if r.ContentLength > 0 {
			size = r.ContentLength
		}
		if err := s.rateLimiter.Allow(getClientIP(r), size); err != nil {
			s.handleRateLimitError(w, err)
			return
		}
		next(w, r)
	}
}

// handleRateLimitError writes a 429 describing which limit was hit.
func (s *Server) handleRateLimitError(w http.ResponseWriter, err error) {
	var rateErr *RateLimitError
	var quotaErr *QuotaExceededError
	switch {
	case errors.As(err, &rateErr):
		metrics.RateLimitHit(rateErr.Type)
		w.Header().Set("X-RateLimit-Type", rateErr.Type)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rateErr.Limit))
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rateErr.RetryAfter.Seconds()))
		s.writeErrorResponse(w, rateErr.Error(), http.StatusTooManyRequests)
	case errors.As(err, &quotaErr):
		metrics.RateLimitHit(quotaErr.Type)
		w.Header().Set("X-Quota-Type", quotaErr.Type)
		w.Header().Set("X-Quota-Limit", strconv.FormatInt(quotaErr.Limit, 10))
		w.Header().Set("X-Quota-Used", strconv.FormatInt(quotaErr.Used, 10))
		w.Header().Set("X-Quota-Resets", quotaErr.Resets.UTC().Format(http.TimeFormat))
		s.writeErrorResponse(w, quotaErr.Error(), http.StatusTooManyRequests)
	default:
		s.writeErrorResponse(w, "rate limiting check failed", http.StatusInternalServerError)
	}
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
