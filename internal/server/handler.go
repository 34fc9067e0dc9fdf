// Package server exposes survey generation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"

	"github.com/at-ishikawa/surveygen/internal/cache"
	"github.com/at-ishikawa/surveygen/internal/orchestrator"
)

const maxRequestBodyBytes = 64 << 10

// SurveyGenerator is satisfied by *orchestrator.Orchestrator.
type SurveyGenerator interface {
	Generate(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
}

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	generator SurveyGenerator
	catalog   cache.Catalog
	gate      orchestrator.Authenticator
	pinger    Pinger
}

// NewHandler creates the HTTP handler. pinger may be nil when the cache has no database.
func NewHandler(generator SurveyGenerator, catalog cache.Catalog, gate orchestrator.Authenticator, pinger Pinger) *Handler {
	return &Handler{
		generator: generator,
		catalog:   catalog,
		gate:      gate,
		pinger:    pinger,
	}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/surveys/generate", h.GenerateSurvey)
	mux.HandleFunc("GET /api/surveys/stats", h.GetStats)
	mux.HandleFunc("GET /healthz", h.Healthz)
	return mux
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

// GenerateSurvey handles POST /api/surveys/generate with a {"prompt": "..."} body.
// The response body is the survey document; X-Cached tells whether it came from the cache.
func (h *Handler) GenerateSurvey(w http.ResponseWriter, r *http.Request) {
	result, err := h.generator.Generate(r.Context(), orchestrator.Request{
		Authorization: r.Header.Get("Authorization"),
		RemoteAddr:    r.RemoteAddr,
		Prompt:        readPrompt(w, r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cached", strconv.FormatBool(result.Cached()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Document.Raw()); err != nil {
		slog.Default().Warn("failed to write survey response", "error", err)
	}
}

// readPrompt returns nil unless the request is JSON with a string "prompt" field.
func readPrompt(w http.ResponseWriter, r *http.Request) *string {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		return nil
	}
	var payload struct {
		Prompt json.RawMessage `json:"prompt"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	var prompt string
	if err := json.Unmarshal(payload.Prompt, &prompt); err != nil {
		return nil
	}
	return &prompt
}

// GetStats handles GET /api/surveys/stats. It requires the same credential as generation.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.Authenticate(r.Header.Get("Authorization")); err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "UNAUTHORIZED"})
		return
	}
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		slog.Default().Error("failed to read cache stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "SERVER_ERROR", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, err error) {
	var orchErr *orchestrator.Error
	if !errors.As(err, &orchErr) {
		orchErr = &orchestrator.Error{Kind: orchestrator.KindStore, Err: err}
	}

	switch orchErr.Kind {
	case orchestrator.KindUnauthorized:
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "UNAUTHORIZED"})
	case orchestrator.KindRateLimited:
		seconds := int(math.Ceil(orchErr.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "RATE_LIMITED"})
	case orchestrator.KindInvalidInput:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "INVALID_INPUT", Details: causeOf(orchErr)})
	case orchestrator.KindInvalidOutput:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "MODEL_OUTPUT_INVALID", Raw: orchErr.Raw})
	case orchestrator.KindTransport:
		slog.Default().Warn("survey generation unavailable", "error", err)
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "GENERATION_UNAVAILABLE", Details: causeOf(orchErr)})
	default:
		slog.Default().Error("survey request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "SERVER_ERROR", Details: causeOf(orchErr)})
	}
}

func causeOf(err *orchestrator.Error) string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Warn("failed to write response", "error", err)
	}
}
