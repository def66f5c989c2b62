package ingest

import (
	"log/slog"

	"pathfinder/internal/classify"
	"pathfinder/internal/ingest/handler"
	"pathfinder/internal/ingest/service"
	"pathfinder/internal/ingest/store"
	"pathfinder/internal/platform/config"
)

// Service exposes the intake pipeline.
type Service = service.Service

// Handler wires HTTP endpoints to the intake service.
type Handler = handler.Handler

// NewService constructs the intake service with required dependencies.
func NewService(events store.EventStore, classifier classify.Classifier, recorder service.Recorder, dispatcher service.Dispatcher, mode config.ProcessingMode, logger *slog.Logger, opts ...service.Option) *Service {
	return service.New(events, classifier, recorder, dispatcher, mode, logger, opts...)
}

// NewHandler constructs an HTTP handler for the webhook intake route.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
