// Package server holds HTTP plumbing shared by the API: origin policy,
// CORS and security headers.
package server

import (
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/EvanderIV/theology/internal/logging"
)

// AbsPath returns path made absolute, or path unchanged if that fails.
func AbsPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// OriginAllowed matches origin against a list of exact origins, "*", and
// "*.example.com" patterns (any subdomain, any scheme or port).
func OriginAllowed(origin string, allowed []string) bool {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	for _, a := range allowed {
		switch {
		case a == "*", a == origin:
			return true
		case strings.HasPrefix(a, "*.") && strings.HasSuffix(host, a[1:]):
			return true
		}
	}
	return false
}

// CORSConfig lists the browser origins the API answers. Empty allows all.
type CORSConfig struct {
	AllowedOrigins []string
}

// LogCORSConfig records whether the server accepts any origin.
func LogCORSConfig(component string, cfg CORSConfig) {
	if len(cfg.AllowedOrigins) == 0 {
		logging.SecurityEvent("cors_configured", component, "mode", "permissive")
		return
	}
	logging.Info("cors_configured", "component", component,
		"origins", strings.Join(cfg.AllowedOrigins, ","))
}

// CORSMiddlewareWithConfig answers preflights and tags responses for
// allowed origins. Requests from other origins are still served but get no
// CORS headers, so browsers discard the response.
func CORSMiddlewareWithConfig(cfg CORSConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowOrigin := "*"
		if len(cfg.AllowedOrigins) > 0 {
			origin := r.Header.Get("Origin")
			if !OriginAllowed(origin, cfg.AllowedOrigins) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			allowOrigin = origin
			w.Header().Add("Vary", "Origin")
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
		h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
