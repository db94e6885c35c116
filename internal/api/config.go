package api

import "time"

// Config holds server configuration.
type Config struct {
	Port               int
	TranslationsDir    string        // Directory scanned for dataset files
	DefaultTranslation string        // Used when a request omits version
	AliasFile          string        // Optional YAML alias table
	OSISAliases        bool          // Also accept OSIS book abbreviations ("Matt", "1Cor")
	PostgresDSN        string        // Optional PostgreSQL translation catalog
	Preload            bool          // Load every translation at startup
	CacheTTL           time.Duration // Lookup cache entry lifetime (0 = disabled)
	CacheSize          int           // Lookup cache bound (0 = unbounded)
	RateLimitRequests  int           // Requests per minute (0 = disabled)
	RateLimitBurst     int           // Burst size
	MaxBodyBytes       int64         // POST /citations body limit
	Auth               AuthConfig    // Protects translation reloads
	TLS                TLSConfig     // TLS configuration
	AllowedOrigins     []string      // CORS and WebSocket allowed origins (empty = allow all)
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   // Enable HTTPS
	CertFile string // Path to TLS certificate file
	KeyFile  string // Path to TLS private key file
}

// DefaultMaxBodyBytes bounds POST /citations when Config.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20
