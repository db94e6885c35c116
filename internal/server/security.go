package server

import (
	"net/http"
	"regexp"
	"strings"
)

// CSPConfig holds Content-Security-Policy configuration.
type CSPConfig struct {
	DefaultSrc     []string
	ScriptSrc      []string
	StyleSrc       []string
	ConnectSrc     []string
	FrameAncestors []string
	BaseURI        []string
	FormAction     []string
}

// APICSPConfig returns a strict CSP configuration for JSON endpoints.
func APICSPConfig() CSPConfig {
	return CSPConfig{
		DefaultSrc:     []string{"'none'"},
		FrameAncestors: []string{"'none'"},
		BaseURI:        []string{"'none'"},
		FormAction:     []string{"'none'"},
	}
}

// BuildCSPHeader builds a Content-Security-Policy header value from config.
func (cfg CSPConfig) BuildCSPHeader() string {
	var directives []string
	add := func(name string, values []string) {
		if len(values) > 0 {
			directives = append(directives, name+" "+strings.Join(values, " "))
		}
	}

	add("default-src", cfg.DefaultSrc)
	add("script-src", cfg.ScriptSrc)
	add("style-src", cfg.StyleSrc)
	add("connect-src", cfg.ConnectSrc)
	add("frame-ancestors", cfg.FrameAncestors)
	add("base-uri", cfg.BaseURI)
	add("form-action", cfg.FormAction)

	return strings.Join(directives, "; ")
}

// SecurityHeadersWithCSP adds the standard security headers plus CSP.
func SecurityHeadersWithCSP(cfg CSPConfig, next http.Handler) http.Handler {
	cspHeader := cfg.BuildCSPHeader()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if cspHeader != "" {
			w.Header().Set("Content-Security-Policy", cspHeader)
		}
		next.ServeHTTP(w, r)
	})
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateIdentifier reports whether input is usable as a translation ID:
// 1 to 64 characters, starting with a letter or digit, then letters, digits,
// '_', '-' or '.'. Path separators are never allowed.
func ValidateIdentifier(input string) bool {
	if len(input) == 0 || len(input) > 64 || strings.Contains(input, "..") {
		return false
	}
	return identifierPattern.MatchString(input)
}

// SanitizeUserInput trims whitespace and removes control characters other
// than newline and tab.
func SanitizeUserInput(input string) string {
	input = strings.TrimSpace(input)

	var result strings.Builder
	for _, r := range input {
		if r >= 0x20 || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// LimitStringLength truncates a string to at most maxLength bytes without
// splitting a UTF-8 sequence.
func LimitStringLength(input string, maxLength int) string {
	if len(input) <= maxLength {
		return input
	}
	cut := maxLength
	for cut > 0 && !isRuneStart(input[cut]) {
		cut--
	}
	return input[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// ValidateContentType checks if a Content-Type header is in the allowed list.
func ValidateContentType(contentType string, allowed []string) bool {
	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	for _, allowedType := range allowed {
		if strings.EqualFold(mediaType, allowedType) {
			return true
		}
	}
	return false
}
