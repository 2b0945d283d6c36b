package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reconcile-service/internal/recon"

	"github.com/VictoriaMetrics/metrics"
	"github.com/segmentio/kafka-go"
)

var (
	readerErrorCounter   = metrics.GetOrCreateCounter(`kafka_reader_total{result="read_error",type="credit_event"}`)
	readerProcessCounter = metrics.GetOrCreateCounter(`kafka_reader_total{result="processed",type="credit_event"}`)
)

func NewReader(kafkaURL, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: strings.Split(kafkaURL, ","),
		GroupID: groupID,
		Topic:   topic,
	})
}

// ReadCreditEvents consumes relayed webhook bodies from the credit-events
// topic and runs each through the engine. The message value is the raw,
// already-verified webhook body, so it goes to the engine untouched.
func ReadCreditEvents(reader *kafka.Reader, engine *recon.Engine, publisher *OutcomePublisher, logger *slog.Logger) {
	go func() {
		ctx := context.Background()
		for {
			logger.InfoContext(ctx, "Waiting for credit events from Kafka...")
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				logger.ErrorContext(ctx, fmt.Sprintf("Error reading message: %v", err))
				readerErrorCounter.Inc()
				continue
			}
			logger.InfoContext(ctx, fmt.Sprintf("Received credit event from topic %s", m.Topic))

			outcome := engine.Reconcile(ctx, m.Value)
			publisher.Publish(ctx, outcome)
			logger.InfoContext(ctx, "Processed credit event", "outcome", outcome.String())
			readerProcessCounter.Inc()
		}
	}()
}
