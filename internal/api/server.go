// Package api provides the scripture lookup REST and WebSocket server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/EvanderIV/theology/core/scripture"
	"github.com/EvanderIV/theology/internal/logging"
	"github.com/EvanderIV/theology/internal/lookup"
	"github.com/EvanderIV/theology/internal/server"
	"github.com/EvanderIV/theology/internal/translations"
)

const (
	shutdownTimeout = 10 * time.Second
	preloadLimit    = 4
)

// Server serves lookups for one lookup.Service.
type Server struct {
	cfg      Config
	svc      *lookup.Service
	hub      *Hub
	upgrader *websocket.Upgrader
	limiter  *RateLimiter
}

// NewServer wires a Server around svc. Run the hub with Hub().Run.
func NewServer(cfg Config, svc *lookup.Service) *Server {
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		hub:      NewHub(),
		upgrader: newUpgrader(cfg.AllowedOrigins),
	}
	svc.Registry().OnChange(s.hub.TranslationChanged)
	if cfg.RateLimitRequests > 0 {
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
		})
	}
	return s
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Close releases background resources other than the hub.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

// routes configures all HTTP routes.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /verse", s.handleVerse)
	mux.HandleFunc("GET /verse/context", s.handleContext)
	mux.HandleFunc("GET /citations", s.handleCitations)
	mux.HandleFunc("POST /citations", s.handleCitations)
	mux.HandleFunc("GET /translations", s.handleTranslations)
	mux.HandleFunc("POST /translations/{id}/reload", requireAPIKey(s.cfg.Auth, s.handleReload))
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return mux
}

// Handler returns the routes wrapped in the middleware chain:
// logging, CORS, rate limiting, then security headers.
func (s *Server) Handler() http.Handler {
	csp := server.APICSPConfig()
	csp.ConnectSrc = []string{"'self'", "ws:", "wss:"}
	var handler http.Handler = server.SecurityHeadersWithCSP(csp, s.routes())

	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	handler = server.CORSMiddlewareWithConfig(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)
	return logging.CombinedMiddleware(handler)
}

// validate checks auth and TLS settings before anything is loaded.
func (cfg Config) validate() error {
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(cfg.TLS.CertFile); err != nil {
			return fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(cfg.TLS.KeyFile); err != nil {
			return fmt.Errorf("TLS key file not found: %w", err)
		}
	}
	return nil
}

// Resolver builds the citation resolver from the alias settings.
func (cfg Config) Resolver() (*scripture.Resolver, error) {
	aliases := scripture.DefaultAliases()
	if cfg.OSISAliases {
		aliases = aliases.Merge(scripture.OSISAliases())
	}
	if cfg.AliasFile != "" {
		extra, err := scripture.LoadAliases(cfg.AliasFile)
		if err != nil {
			return nil, err
		}
		aliases = aliases.Merge(extra)
	}
	return scripture.NewResolver(scripture.NewBookResolver(aliases)), nil
}

// OpenRegistry builds and scans the translation registry. The returned
// closer releases the Postgres pool, if any.
func (cfg Config) OpenRegistry(ctx context.Context) (*translations.Registry, func(), error) {
	closer := func() {}
	opts := translations.Options{Dir: cfg.TranslationsDir, Default: cfg.DefaultTranslation}
	if cfg.PostgresDSN != "" {
		store, err := translations.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, closer, err
		}
		opts.Postgres = store
		closer = store.Close
	}

	reg := translations.NewRegistry(opts)
	if err := reg.Scan(ctx); err != nil {
		closer()
		return nil, func() {}, err
	}
	if cfg.Preload {
		if err := reg.LoadAll(ctx, preloadLimit); err != nil {
			logging.Warn("preload incomplete", "error", err)
		}
	}
	return reg, closer, nil
}

// Start runs the API server until ctx is cancelled.
func Start(ctx context.Context, cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	resolver, err := cfg.Resolver()
	if err != nil {
		return err
	}
	reg, closeRegistry, err := cfg.OpenRegistry(ctx)
	if err != nil {
		return err
	}
	defer closeRegistry()

	svc := lookup.New(reg, resolver, lookup.Options{CacheTTL: cfg.CacheTTL, CacheSize: cfg.CacheSize})
	s := NewServer(cfg, svc)
	defer s.Close()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)

	protocol, wsProtocol := "http", "ws"
	if cfg.TLS.Enabled {
		protocol, wsProtocol = "https", "wss"
		logging.Info("TLS enabled", "cert_file", cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.SecurityEvent("authentication_configured", "api",
		"enabled", cfg.Auth.Enabled, "scope", "translation reload")
	server.LogCORSConfig("api", server.CORSConfig{AllowedOrigins: cfg.AllowedOrigins})
	if cfg.RateLimitRequests > 0 {
		logging.Info("rate limiting enabled",
			"requests_per_minute", cfg.RateLimitRequests,
			"burst_size", cfg.RateLimitBurst)
	}
	logging.ServerStartup("rest_api", protocol, cfg.Port,
		"websocket_protocol", wsProtocol,
		"translations_dir", server.AbsPath(cfg.TranslationsDir),
		"translations", len(reg.List()),
		"default_translation", reg.Default())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			errc <- srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down", "timeout", shutdownTimeout)
	stopHub()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
