package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"reconcile-service/internal/payload"
	"reconcile-service/internal/recon"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

var (
	publisherErrorCounter   = metrics.GetOrCreateCounter(`outcome_publisher_total{result="publish_failed"}`)
	publisherSuccessCounter = metrics.GetOrCreateCounter(`outcome_publisher_total{result="published"}`)
)

// OutcomePublisher pushes every terminal reconciliation outcome to the
// outcomes topic for downstream audit. Publishing is best-effort: a failed
// publish is logged and counted but never changes the outcome of the
// reconciliation itself.
type OutcomePublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewOutcomePublisher(writer *kafka.Writer, logger *slog.Logger) *OutcomePublisher {
	return &OutcomePublisher{writer: writer, logger: logger}
}

func (p *OutcomePublisher) Publish(ctx context.Context, outcome recon.Outcome) {
	if p == nil || p.writer == nil {
		return
	}

	msg := payload.OutcomeMessage{
		DeliveryID:  uuid.New().String(),
		PaymentID:   outcome.PaymentID,
		Outcome:     string(outcome.Kind),
		OrderNumber: outcome.OrderNumber,
		Reason:      outcome.Reason,
		At:          time.Now().UTC().Format(time.RFC3339),
	}
	if outcome.Err != nil {
		msg.Error = outcome.Err.Error()
	}

	value, err := json.Marshal(msg)
	if err != nil {
		p.logger.ErrorContext(ctx, "Error marshalling outcome message", "error", err)
		publisherErrorCounter.Inc()
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(outcome.PaymentID),
		Value: value,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "Error publishing outcome message", "error", err)
		publisherErrorCounter.Inc()
		return
	}

	publisherSuccessCounter.Inc()
}
