package core

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"skyrisk/internal/types"
)

// RateLimit enforces a per-client request budget keyed by client IP.
//
// Every response carries X-RateLimit-Limit and X-RateLimit-Remaining; a
// rejected request also gets Retry-After and a 429 body. Store errors fail
// open. The middleware is a pass-through when no store is configured.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.RateLimitStore == nil || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		ip := extractClientIP(r)
		result, err := s.RateLimitStore.Allow(r.Context(), ip)
		if err != nil {
			s.Logger.Error("rate limit store error",
				slog.String("ip", ip),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			s.Logger.Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			Error(w, r, types.NewAppError(types.ErrCodeRateLimited,
				"Rate limit exceeded. Please retry later.", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractClientIP returns the first X-Forwarded-For entry (API Gateway and
// load balancers set it) or the RemoteAddr host.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// MemoryRateLimitStore keeps one token bucket per key in memory. Buckets
// idle for longer than idleTTL are dropped by Sweep.
type MemoryRateLimitStore struct {
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryRateLimitStore creates a store refilling rps tokens per second
// up to burst. A nil now uses time.Now.
func NewMemoryRateLimitStore(rps float64, burst int, idleTTL time.Duration, now func() time.Time) *MemoryRateLimitStore {
	if burst < 1 {
		burst = 1
	}
	if now == nil {
		now = time.Now
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &MemoryRateLimitStore{
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     now,
		buckets: make(map[string]*bucket),
	}
}

// Allow implements RateLimitStore.
func (m *MemoryRateLimitStore) Allow(_ context.Context, key string) (RateLimitResult, error) {
	now := m.now()

	m.mu.Lock()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(m.rps, m.burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	m.mu.Unlock()

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	result := RateLimitResult{
		Allowed:   allowed,
		Limit:     m.burst,
		Remaining: max(int(math.Floor(tokens)), 0),
	}
	if !allowed && m.rps > 0 {
		missing := 1 - tokens
		result.RetryAfter = time.Duration(missing / float64(m.rps) * float64(time.Second))
	}
	return result, nil
}

// Sweep drops idle buckets and returns how many were removed.
func (m *MemoryRateLimitStore) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked clients.
func (m *MemoryRateLimitStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
