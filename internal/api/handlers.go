package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	cerrors "github.com/EvanderIV/theology/core/errors"
	"github.com/EvanderIV/theology/core/scripture"
	"github.com/EvanderIV/theology/internal/logging"
	"github.com/EvanderIV/theology/internal/server"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

// CitationsResponse is returned by /citations.
type CitationsResponse struct {
	Translation string           `json:"translation"`
	Citations   []citationResult `json:"citations"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	Translations int    `json:"translations"`
	Default      string `json:"default_translation"`
	Clients      int    `json:"websocket_clients"`
}

// Version is reported by /health and the CLI.
var Version = "0.1.0"

const (
	maxReferenceLen = 256
	maxVersionLen   = 64
	noReference     = "No verse reference provided."
	noText          = "No text provided."
)

var startTime = time.Now()

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NotFound", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"name":    "theology scripture API",
		"version": Version,
		"endpoints": []string{
			"GET /verse?reference=&version=",
			"GET /verse/context?reference=&version=",
			"GET /citations?text=&version=",
			"POST /citations",
			"GET /translations",
			"POST /translations/{id}/reload",
			"GET /health",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, HealthInfo{
		Status:       "healthy",
		Version:      Version,
		Uptime:       time.Since(startTime).Round(time.Second).String(),
		Translations: len(s.svc.Registry().List()),
		Default:      s.svc.Registry().Default(),
		Clients:      s.hub.ClientCount(),
	})
}

func (s *Server) handleVerse(w http.ResponseWriter, r *http.Request) {
	reference, version, ok := lookupParams(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Verse(r.Context(), reference, version)
	if err != nil {
		respondLookupError(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	reference, version, ok := lookupParams(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Context(r.Context(), reference, version)
	if err != nil {
		respondLookupError(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

// lookupParams reads reference and version from the query string and
// writes the 400 itself when reference is missing.
func lookupParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	q := r.URL.Query()
	reference := strings.TrimSpace(q.Get("reference"))
	if reference == "" {
		respondError(w, http.StatusBadRequest, scripture.InvalidFormat.String(), noReference)
		return "", "", false
	}
	reference = server.SanitizeUserInput(reference)
	version := strings.TrimSpace(q.Get("version"))
	if err := checkLookupInput(reference, version); err != nil {
		respondLookupError(w, err)
		return "", "", false
	}
	return reference, version, true
}

// checkLookupInput rejects a reference or version too long to resolve.
// Truncating either could turn an invalid request into a valid lookup.
func checkLookupInput(reference, version string) error {
	if len(reference) > maxReferenceLen {
		return &scripture.ResolveError{
			Kind:      scripture.InvalidFormat,
			Reference: server.LimitStringLength(reference, maxReferenceLen),
			Detail:    "reference too long",
		}
	}
	if len(version) > maxVersionLen {
		return cerrors.NewNotFound("translation", server.LimitStringLength(version, maxVersionLen))
	}
	return nil
}

// citationsRequest is the JSON form of a POST /citations body.
type citationsRequest struct {
	Text    string `json:"text"`
	Version string `json:"version"`
}

// citationResult reports the sanitized citation text alongside the lookup.
type citationResult struct {
	Citation  string           `json:"citation"`
	Start     int              `json:"start"`
	End       int              `json:"end"`
	Text      scripture.Verses `json:"text,omitempty"`
	ErrorKind string           `json:"error_kind,omitempty"`
	Message   string           `json:"message,omitempty"`
}

func (s *Server) handleCitations(w http.ResponseWriter, r *http.Request) {
	var req citationsRequest
	switch r.Method {
	case http.MethodGet:
		req.Text = r.URL.Query().Get("text")
		req.Version = r.URL.Query().Get("version")
	case http.MethodPost:
		contentType := r.Header.Get("Content-Type")
		if !server.ValidateContentType(contentType, []string{"text/plain", "application/json"}) {
			respondError(w, http.StatusUnsupportedMediaType, "UnsupportedMediaType",
				"Content-Type must be text/plain or application/json")
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody()))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, http.StatusRequestEntityTooLarge, "RequestTooLarge", "Request body too large")
				return
			}
			respondError(w, http.StatusBadRequest, "BadRequest", "Could not read request body")
			return
		}
		if strings.HasPrefix(contentType, "application/json") {
			if err := json.Unmarshal(body, &req); err != nil {
				respondError(w, http.StatusBadRequest, "BadRequest", "Invalid JSON body")
				return
			}
		} else {
			req.Text = string(body)
			req.Version = r.URL.Query().Get("version")
		}
	}

	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, scripture.InvalidFormat.String(), noText)
		return
	}
	version := strings.TrimSpace(req.Version)
	if err := checkLookupInput("", version); err != nil {
		respondLookupError(w, err)
		return
	}

	id, found, err := s.svc.Citations(r.Context(), req.Text, version)
	if err != nil {
		respondLookupError(w, err)
		return
	}
	out := make([]citationResult, len(found))
	for i, c := range found {
		out[i] = citationResult{
			Citation:  server.SanitizeUserInput(c.Citation),
			Start:     c.Start,
			End:       c.End,
			Text:      c.Text,
			ErrorKind: c.ErrorKind,
			Message:   c.Message,
		}
	}
	respond(w, http.StatusOK, CitationsResponse{Translation: id, Citations: out})
}

func (s *Server) handleTranslations(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"default":      s.svc.Registry().Default(),
		"translations": s.svc.Registry().List(),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !server.ValidateIdentifier(id) {
		respondError(w, http.StatusBadRequest, "BadRequest", "Invalid translation id")
		return
	}

	info, err := s.svc.Registry().Reload(r.Context(), id)
	if err != nil {
		var unsupported *cerrors.UnsupportedError
		switch {
		case errors.Is(err, cerrors.ErrNotFound):
			respondError(w, http.StatusNotFound, "TranslationNotFound", "Translation not found.")
		case errors.As(err, &unsupported):
			respondError(w, http.StatusConflict, "ReloadUnsupported", "Translation cannot be reloaded.")
		default:
			respondError(w, http.StatusInternalServerError, scripture.DatasetUnavailable.String(),
				scripture.DatasetUnavailable.Message())
		}
		return
	}
	logging.InfoContext(r.Context(), "translation reloaded", "translation", info.ID, "fingerprint", info.Fingerprint)
	respond(w, http.StatusOK, info)
}

func (s *Server) maxBody() int64 {
	if s.cfg.MaxBodyBytes > 0 {
		return s.cfg.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}

// lookupStatus maps a lookup failure onto a status code and error body.
func lookupStatus(err error) (int, ErrorResponse) {
	var nf *cerrors.NotFoundError
	if errors.As(err, &nf) && nf.Resource == "translation" {
		return http.StatusNotFound, ErrorResponse{"TranslationNotFound", "Translation not found."}
	}

	kind := scripture.KindOf(err)
	switch {
	case kind == scripture.InvalidFormat:
		return http.StatusBadRequest, ErrorResponse{kind.String(), kind.Message()}
	case kind.IsNotFound():
		return http.StatusNotFound, ErrorResponse{kind.String(), kind.Message()}
	default:
		kind = scripture.DatasetUnavailable
		return http.StatusInternalServerError, ErrorResponse{kind.String(), kind.Message()}
	}
}

func respondLookupError(w http.ResponseWriter, err error) {
	status, body := lookupStatus(err)
	respondJSON(w, status, body)
}

func respond(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, data)
}

func respondError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, ErrorResponse{ErrorKind: kind, Message: message})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Warn("response encode failed", "error", err)
	}
}
