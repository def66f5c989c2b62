package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pathfinder/internal/ingest/models"
	"pathfinder/internal/ingest/service"
	"pathfinder/internal/platform/middleware"
	dErrors "pathfinder/pkg/domain-errors"
)

// Service defines the interface for webhook ingestion.
type Service interface {
	Ingest(ctx context.Context, payload models.WebhookPayload) (service.Result, error)
}

// Handler handles the webhook intake endpoint.
type Handler struct {
	ingest Service
	logger *slog.Logger
}

// New creates a new intake Handler.
func New(ingest Service, logger *slog.Logger) *Handler {
	return &Handler{ingest: ingest, logger: logger}
}

// Register registers the intake routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/community", h.handleWebhook)
}

type webhookResponse struct {
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	EventID        int64  `json:"event_id,omitempty"`
	Classification string `json:"classification,omitempty"`
	SeniorityLevel string `json:"seniority_level,omitempty"`
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var payload models.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.WarnContext(ctx, "invalid webhook body",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.ingest.Ingest(ctx, payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook ingestion failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Status:         string(result.Status),
		Reason:         result.Reason,
		EventID:        result.EventID,
		Classification: result.Classification,
		SeniorityLevel: result.Level,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses.
// Classification and persistence failures surface as 500s; everything else
// already resolved to a 200-class outcome before reaching here.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	writeJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error": string(code),
	})
}
