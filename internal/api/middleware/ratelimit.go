package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/pkg/httputil"
)

// idleLimiterTTL is how long an unused client limiter is kept
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies a token bucket per client IP
type RateLimitMiddleware struct {
	limit   int
	burst   int
	every   rate.Limit
	enabled bool
	now     func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(cfg config.RateLimitConfig) *RateLimitMiddleware {
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitMiddleware{
		limit:   cfg.RequestsPerMin,
		burst:   burst,
		every:   rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		enabled: cfg.Enabled && cfg.RequestsPerMin > 0,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

// Handler returns the middleware handler
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		// Skip for health checks
		switch r.URL.Path {
		case "/health", "/ready", "/metrics":
			next.ServeHTTP(w, r)
			return
		}

		limiter := m.limiterFor(clientKey(r))
		now := m.now()
		allowed := limiter.AllowN(now, 1)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, int(limiter.TokensAt(now)))))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(m.retryAfter()))
			httputil.ErrorFromDomain(w, domain.ErrRateLimited())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) limiterFor(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) > time.Minute {
		for k, c := range m.clients {
			if now.Sub(c.lastSeen) > idleLimiterTTL {
				delete(m.clients, k)
			}
		}
		m.lastSweep = now
	}

	c, ok := m.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(m.every, m.burst)}
		m.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// retryAfter is the whole number of seconds until one token is available
func (m *RateLimitMiddleware) retryAfter() int {
	return int(math.Ceil(1 / float64(m.every)))
}

// clientKey determines the key for rate limiting. chimw.RealIP has already
// folded forwarding headers into RemoteAddr when it runs first.
func clientKey(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip == "" {
		ip = r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
	}
	return "ip:" + ip
}
