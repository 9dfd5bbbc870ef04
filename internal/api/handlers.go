package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"vibecode.dev/vibe-code/internal/core"
	"vibecode.dev/vibe-code/internal/store"
)

// ResponseService is the part of core.ResponseService the handlers need.
type ResponseService interface {
	Generate(ctx context.Context, prompt string, category store.Category) (*store.GeneratedResponse, error)
	Save(ctx context.Context, rec *store.GeneratedResponse) (*store.GeneratedResponse, error)
	History(ctx context.Context, limit int) ([]store.GeneratedResponse, error)
	Get(ctx context.Context, id string) (*store.GeneratedResponse, error)
}

// ServerInfo is reported by the health and welcome endpoints.
type ServerInfo struct {
	Environment        string
	GeminiKeyAvailable bool
	Mode               string
}

type APIHandler struct {
	service ResponseService
	info    ServerInfo
	log     *zap.Logger
	now     func() time.Time
}

func NewAPIHandler(service ResponseService, info ServerInfo, log *zap.Logger) *APIHandler {
	return &APIHandler{
		service: service,
		info:    info,
		log:     log,
		now:     time.Now,
	}
}

type generateRequest struct {
	Prompt   string `json:"prompt"`
	Category string `json:"category"`
}

// saveRequest keeps created_at as a string so an empty value means "now"
// instead of a decode error.
type saveRequest struct {
	ID        string `json:"id"`
	Prompt    string `json:"prompt"`
	Response  string `json:"response"`
	Category  string `json:"category"`
	CreatedAt string `json:"created_at"`
	UserID    string `json:"user_id"`
}

type healthResponse struct {
	Success            bool   `json:"success"`
	Message            string `json:"message"`
	Timestamp          string `json:"timestamp"`
	Environment        string `json:"environment"`
	GeminiKeyAvailable bool   `json:"geminiKeyAvailable"`
	Mode               string `json:"mode"`
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Success:            true,
		Message:            "Vibe Code API is running",
		Timestamp:          formatTimestamp(h.now()),
		Environment:        h.info.Environment,
		GeminiKeyAvailable: h.info.GeminiKeyAvailable,
		Mode:               h.info.Mode,
	})
}

func (h *APIHandler) WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Welcome to Vibe Code API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":  "/api/health",
			"ai":      "/api/ai/generate",
			"save":    "/api/ai/save",
			"history": "/api/ai/history",
		},
	})
}

func (h *APIHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	rec, err := h.service.Generate(r.Context(), req.Prompt, store.Category(strings.TrimSpace(req.Category)))
	if err != nil {
		h.respondServiceError(w, err, "Failed to generate AI response")
		return
	}
	respondData(w, http.StatusOK, rec, "AI response generated successfully")
}

func (h *APIHandler) SaveHandler(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	rec := &store.GeneratedResponse{
		ID:       req.ID,
		Prompt:   req.Prompt,
		Response: req.Response,
		Category: store.Category(strings.TrimSpace(req.Category)),
		UserID:   req.UserID,
	}
	if req.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, req.CreatedAt)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid created_at timestamp", "")
			return
		}
		rec.CreatedAt = createdAt
	}

	saved, err := h.service.Save(r.Context(), rec)
	if err != nil {
		h.respondServiceError(w, err, "Failed to save AI response")
		return
	}
	respondData(w, http.StatusOK, saved, "AI response saved successfully")
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	// Unparsable limits fall back to the default, like a missing one.
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, err, "Failed to fetch AI response history")
		return
	}
	respondData(w, http.StatusOK, records, "AI response history retrieved successfully")
}

func (h *APIHandler) GetResponseHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "Failed to fetch AI response")
		return
	}
	respondData(w, http.StatusOK, rec, "AI response retrieved successfully")
}

func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, fmt.Sprintf("Route %s not found", r.URL.Path), "")
}

func (h *APIHandler) MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
}

// decodeBody reads a JSON request body into dst. An empty body decodes to the
// zero value so that validation reports the missing fields.
func (h *APIHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		respondError(w, http.StatusRequestEntityTooLarge, "Request body too large", "")
		return false
	}
	respondError(w, http.StatusBadRequest, "Invalid request body", "")
	return false
}

// respondServiceError maps a service error to a status and envelope. The
// service has already logged the cause; clients only see the fallback text.
func (h *APIHandler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		h.log.Error(fallback, zap.Error(err))
		respondError(w, http.StatusInternalServerError, fallback, "")
		return
	}

	switch coreErr.Kind {
	case core.KindValidation:
		respondError(w, http.StatusBadRequest, coreErr.Message, "")
	case core.KindConflict:
		respondError(w, http.StatusConflict, coreErr.Message, "")
	case core.KindNotFound:
		respondError(w, http.StatusNotFound, coreErr.Message, "")
	case core.KindNotConfigured:
		respondError(w, http.StatusServiceUnavailable, "Gemini API key not configured", coreErr.Message)
	default:
		respondError(w, http.StatusInternalServerError, fallback, "")
	}
}
