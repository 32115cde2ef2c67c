// Package api provides the HTTP surface of the sports data agent.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldlab/sportsdesk/internal/config"
	"github.com/fieldlab/sportsdesk/internal/dataset"
)

// maxRequestBodySize caps POST bodies (1MB).
const maxRequestBodySize = 1 << 20

// Responder is the conversation surface the handlers need. Implemented by
// *agent.Agent.
type Responder interface {
	Respond(ctx context.Context, sessionID, userText string) (string, error)
	ClearSession(sessionID string)
	SessionCount() int
}

// Handler serves the JSON API.
type Handler struct {
	responder Responder
	loader    *dataset.Loader
	cfg       *config.Config
}

// NewHandler creates a Handler.
func NewHandler(responder Responder, loader *dataset.Loader, cfg *config.Config) *Handler {
	return &Handler{
		responder: responder,
		loader:    loader,
		cfg:       cfg,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"detail": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response with a detail message.
func Error(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, map[string]string{"detail": detail})
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.HandleChat)
	r.Post("/reset", h.HandleReset)
	r.Get("/athletes", h.HandleAthletes)
	r.Get("/events-csv", h.HandleEventsCSV)
	r.Get("/config", h.HandleConfig)
	r.Get("/health", h.HandleHealth)
	r.Get("/", h.HandleIndex)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type resetRequest struct {
	SessionID string `json:"session_id"`
}

// HandleChat handles POST /chat.
//
// An empty or whitespace-only message is rejected before any session state
// is touched; a missing session id gets a generated one so the client can
// continue the conversation.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		Error(w, http.StatusBadRequest, "Message cannot be empty.")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	slog.Info("Chat request", "session_id", sessionID, "message_length", len(message))

	reply, err := h.responder.Respond(r.Context(), sessionID, message)
	if err != nil {
		slog.Error("Chat turn failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, fmt.Sprintf("%T: %v", err, err))
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"reply":      reply,
		"session_id": sessionID,
	})
}

// HandleReset handles POST /reset. Clearing an unknown session succeeds.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	h.responder.ClearSession(req.SessionID)
	slog.Info("Session cleared", "session_id", req.SessionID)

	JSON(w, http.StatusOK, map[string]string{
		"message":    "Session cleared.",
		"session_id": req.SessionID,
	})
}

// HandleAthletes handles GET /athletes: the full athlete dataset, lat/lon
// included, for map plotting.
func (h *Handler) HandleAthletes(w http.ResponseWriter, r *http.Request) {
	h.serveDataset(w, dataset.Athletes)
}

// HandleEventsCSV handles GET /events-csv.
func (h *Handler) HandleEventsCSV(w http.ResponseWriter, r *http.Request) {
	h.serveDataset(w, dataset.Events)
}

func (h *Handler) serveDataset(w http.ResponseWriter, name dataset.Name) {
	records, err := h.loader.Records(name)
	if err != nil {
		slog.Error("Dataset load failed", "dataset", name, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, records)
}

// HandleConfig handles GET /config: non-secret configuration the browser
// client needs (the map-rendering API key).
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"arcgis_api_key": h.cfg.ArcGISAPIKey,
	})
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"title":           h.cfg.AppTitle,
		"active_sessions": h.responder.SessionCount(),
	})
}

// HandleIndex handles GET /: the landing page when the file exists, a JSON
// 404 otherwise.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(h.cfg.IndexHTMLPath); err != nil {
		JSON(w, http.StatusNotFound, map[string]string{"error": "index.html not found"})
		return
	}
	http.ServeFile(w, r, h.cfg.IndexHTMLPath)
}
