package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/EvanderIV/theology/internal/logging"
)

const minAPIKeyLen = 16

// AuthConfig guards the administrative endpoints. Lookups are always public.
type AuthConfig struct {
	Enabled bool
	APIKey  string
}

// ValidateAuthConfig rejects an enabled config with a missing or short key.
func ValidateAuthConfig(cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}
	switch {
	case cfg.APIKey == "":
		return fmt.Errorf("API key is required when authentication is enabled")
	case len(cfg.APIKey) < minAPIKeyLen:
		return fmt.Errorf("API key must be at least %d characters (got %d)", minAPIKeyLen, len(cfg.APIKey))
	}
	return nil
}

// presentedKey reads the key from X-API-Key, falling back to an
// "Authorization: Bearer" header.
func presentedKey(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func requireAPIKey(cfg AuthConfig, next http.HandlerFunc) http.HandlerFunc {
	if !cfg.Enabled {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := presentedKey(r)
		reason := ""
		switch {
		case key == "":
			reason = "missing API key"
		case !constantTimeCompare(key, cfg.APIKey):
			reason = "invalid API key"
		}
		if reason != "" {
			logging.SecurityEvent("unauthorized_request", "auth", "path", r.URL.Path, "reason", reason)
			w.Header().Set("WWW-Authenticate", `Bearer realm="theology"`)
			respondError(w, http.StatusUnauthorized, "Unauthorized", "A valid API key is required.")
			return
		}
		next(w, r)
	}
}

func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
