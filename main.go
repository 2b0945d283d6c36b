package main

import (
	"log"
	"net/http"
	"time"

	"reconcile-service/internal/config"
	"reconcile-service/internal/db"
	"reconcile-service/internal/gateway"
	"reconcile-service/internal/identity"
	"reconcile-service/internal/kafka"
	"reconcile-service/internal/logging"
	"reconcile-service/internal/metrics"
	"reconcile-service/internal/recon"
	"reconcile-service/internal/webhook"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoadConfig(".")

	logger := logging.GetLogger(cfg.Logs)
	metrics.Setup(cfg.Metrics)

	loc, err := time.LoadLocation(cfg.Recon.Timezone)
	if err != nil {
		log.Fatalf("Invalid timezone %q: %v", cfg.Recon.Timezone, err)
	}

	connStr := db.ConnString(cfg.Database)

	if err := db.RunMigrations(connStr, "migrations"); err != nil {
		log.Fatal(err)
	}

	dbpool, err := db.GetPool(connStr)
	if err != nil {
		log.Fatal(err)
	}
	defer dbpool.Close()

	repo := db.NewOrderRepository(dbpool, cfg.Recon.PaymentMethod, logger)
	directory := identity.NewDirectory(dbpool, logger)
	gatewayClient := gateway.NewClient(cfg.Gateway, logger)

	engine := recon.NewEngine(gatewayClient, directory, repo, loc, logger)

	var publisher *kafka.OutcomePublisher
	if cfg.Kafka.Broker.URL != "" {
		writer := kafka.NewWriter(cfg.Kafka)
		defer writer.Close()
		publisher = kafka.NewOutcomePublisher(writer, logger)

		if cfg.Kafka.Topic.CreditEvents != "" {
			reader := kafka.NewReader(cfg.Kafka.Broker.URL, cfg.Kafka.Topic.CreditEvents, cfg.Kafka.Reader.GroupID)
			defer reader.Close()
			kafka.ReadCreditEvents(reader, engine, publisher, logger)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /liveness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("POST /webhook/gateway", webhook.NewHandler(engine, publisher, logger))

	logger.Info("Starting reconcile-service", "port", cfg.Server.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Server.Port, mux))
}
