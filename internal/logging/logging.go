// Package logging wraps log/slog with the process-wide logger, request ID
// propagation and one helper per structured event the service emits.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

type ctxKey struct{}

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

var current atomic.Pointer[slog.Logger]

func init() {
	Setup(os.Stderr, slog.LevelInfo, FormatJSON)
}

// ParseLevel converts a flag value ("debug", "info", "warn", "error").
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ParseFormat converts a flag value ("json", "text").
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatText:
		return f, nil
	}
	return FormatJSON, fmt.Errorf("unknown log format %q", s)
}

// Setup replaces the process logger and slog's default with one writing to w.
// Timestamps are RFC 3339 with second precision.
func Setup(w io.Writer, level slog.Level, format Format) {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if format == FormatText {
		h = slog.NewTextHandler(w, opts)
	}
	setLogger(slog.New(h))
}

func setLogger(l *slog.Logger) {
	current.Store(l)
	slog.SetDefault(l)
}

func logger() *slog.Logger { return current.Load() }

// WithRequestID stores id in ctx for FromContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromContext returns the process logger tagged with ctx's request id.
func FromContext(ctx context.Context) *slog.Logger {
	if id := RequestID(ctx); id != "" {
		return logger().With("request_id", id)
	}
	return logger()
}

func Debug(msg string, args ...any) { logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { logger().Warn(msg, args...) }
func Error(msg string, args ...any) { logger().Error(msg, args...) }

func DebugContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Info(msg, args...)
}

// event logs msg with the fixed fields first, then any caller extras.
func event(ctx context.Context, level slog.Level, msg string, fields []any, extra []any) {
	FromContext(ctx).Log(ctx, level, msg, append(fields, extra...)...)
}

// HTTPRequest is the access log line written by the logging middleware.
func HTTPRequest(ctx context.Context, method, path, remoteAddr string, status int, d time.Duration, args ...any) {
	event(ctx, slog.LevelInfo, "http_request", []any{
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"status_code", status,
		"duration_ms", d.Milliseconds(),
	}, args)
}

// DatasetLoaded records a translation parsed into memory.
func DatasetLoaded(translation, format string, books, verses int, d time.Duration, args ...any) {
	event(context.Background(), slog.LevelInfo, "dataset_loaded", []any{
		"translation", translation,
		"format", format,
		"books", books,
		"verses", verses,
		"duration_ms", d.Milliseconds(),
	}, args)
}

// DatasetError records a translation that could not be loaded.
func DatasetError(translation, source string, err error, args ...any) {
	event(context.Background(), slog.LevelError, "dataset_error", []any{
		"translation", translation,
		"source", source,
		"error", err.Error(),
	}, args)
}

// LookupFailed is logged at info: bad references are reader mistakes.
func LookupFailed(ctx context.Context, reference, translation, kind string, args ...any) {
	event(ctx, slog.LevelInfo, "lookup_failed", []any{
		"reference", reference,
		"translation", translation,
		"kind", kind,
	}, args)
}

func WebSocketEvent(name string, clients int, args ...any) {
	event(context.Background(), slog.LevelInfo, "websocket_event", []any{
		"event", name,
		"client_count", clients,
	}, args)
}

func ServerStartup(serverType, protocol string, port int, args ...any) {
	event(context.Background(), slog.LevelInfo, "server_startup", []any{
		"server_type", serverType,
		"protocol", protocol,
		"port", port,
	}, args)
}

// SecurityEvent is logged at warn so permissive settings stand out.
func SecurityEvent(name, component string, args ...any) {
	event(context.Background(), slog.LevelWarn, "security_event", []any{
		"event", name,
		"component", component,
	}, args)
}
