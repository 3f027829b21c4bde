package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/time/rate"

	"github.com/wonny/leadscore/pkg/logger"
	"github.com/wonny/leadscore/pkg/redis"
)

// Limiter enforces per-client request rates.
// With Redis enabled the window is shared across replicas; otherwise each
// process keeps a token bucket per client.
type Limiter struct {
	perSecond float64
	burst     int
	shared    *redis.RateLimiter
	logger    *logger.Logger

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLimiter creates a new limiter. shared may be nil.
func NewLimiter(perSecond float64, burst int, shared *redis.RateLimiter, log *logger.Logger) *Limiter {
	return &Limiter{
		perSecond: perSecond,
		burst:     burst,
		shared:    shared,
		logger:    log,
		buckets:   make(map[string]*rate.Limiter),
	}
}

func (l *Limiter) bucket(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[client]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.perSecond), l.burst)
		l.buckets[client] = b
	}
	return b
}

// Allow reports whether the client may issue one more request
func (l *Limiter) Allow(r *http.Request) bool {
	client := clientKey(r)

	if l.shared != nil && l.shared.Enabled() {
		allowed, _, err := l.shared.Allow(r.Context(), redis.ClientRateLimit(client, l.perSecond, l.burst))
		if err == nil {
			return allowed
		}
		// Redis 장애 시 로컬 버킷으로 대체
		l.logger.WithError(err).Warn("Shared rate limit unavailable, using local bucket")
	}

	return l.bucket(client).Allow()
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rateLimitMiddleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(r) {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
