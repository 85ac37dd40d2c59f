package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/pkg/httputil"
)

// AuthMiddleware guards the API with a single shared key. With no key
// configured every request passes.
type AuthMiddleware struct {
	key    string
	header string
}

// NewAuthMiddleware creates an auth middleware from the security settings
func NewAuthMiddleware(cfg config.SecurityConfig) *AuthMiddleware {
	header := cfg.APIKeyHeader
	if header == "" {
		header = "X-API-Key"
	}
	return &AuthMiddleware{key: cfg.APIKey, header: header}
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.key == "" {
			next.ServeHTTP(w, r)
			return
		}

		provided := extractKey(r, m.header)
		if provided == "" {
			httputil.ErrorFromDomain(w, domain.ErrUnauthorized("API key required"))
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(m.key)) != 1 {
			httputil.ErrorFromDomain(w, domain.ErrUnauthorized("Invalid API key"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractKey reads the key from the configured header or a bearer token
func extractKey(r *http.Request, header string) string {
	if key := strings.TrimSpace(r.Header.Get(header)); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
