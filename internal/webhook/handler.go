package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"reconcile-service/internal/recon"
)

// OutcomePublisher receives every terminal outcome. The kafka implementation
// is nil-safe, so a handler without a broker configured still works.
type OutcomePublisher interface {
	Publish(ctx context.Context, outcome recon.Outcome)
}

// Handler is the thin transport edge for gateway webhooks. Signature
// verification happens before a body reaches this service, so the handler
// only reads the body, runs the engine and acknowledges. A failed outcome
// returns 500 so the gateway's redelivery kicks in; every other outcome is
// final for this delivery and gets 200.
type Handler struct {
	engine    *recon.Engine
	publisher OutcomePublisher
	logger    *slog.Logger
}

func NewHandler(engine *recon.Engine, publisher OutcomePublisher, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, publisher: publisher, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error reading webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	outcome := h.engine.Reconcile(ctx, body)
	h.publisher.Publish(ctx, outcome)

	if outcome.Kind == recon.KindFailed {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
