package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ingestion-service/internal/api"
	"ingestion-service/internal/config"
	"ingestion-service/internal/db"
	"ingestion-service/internal/health"
	"ingestion-service/internal/logging"
	"ingestion-service/internal/mqttgw"
	"ingestion-service/internal/notifier"
	"ingestion-service/internal/queue"
	"ingestion-service/internal/threshold"
	"ingestion-service/internal/worker"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// Notification fan-out
	hub := notifier.NewHub(logger)
	dispatcher := notifier.NewDispatcher(cfg, dbConn, hub, logger)

	// Rules and aggregation
	tables := threshold.DefaultTables()
	engine := threshold.NewEngine(dbConn, dispatcher, tables, threshold.Options{
		DedupWindow:     cfg.Alerting.DedupWindow,
		OfflineStale:    cfg.Alerting.OfflineStale,
		OfflineCooldown: cfg.Alerting.OfflineCooldown,
		NotifyTimeout:   cfg.Alerting.NotifyTimeout,
	}, logger)
	aggregator := health.NewAggregator(dbConn, tables, logger)

	// Worker pool
	failures := worker.NewFailureLog(cfg.Worker.FailureLogSize)
	pool := worker.NewPool(dbConn, engine, aggregator, failures, worker.Options{
		PoolSize:    cfg.Worker.PoolSize,
		MaxAttempts: cfg.Worker.MaxAttempts,
		BaseDelay:   cfg.Worker.BaseDelay,
	}, logger)
	pool.Start()
	defer pool.Stop()

	// Durable job queue
	producer := queue.NewProducer(cfg.Kafka.Broker, cfg.Kafka.Topic, logger)
	defer producer.Close()

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	consumer := queue.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Topic, cfg.Kafka.GroupID, pool, logger)
	defer consumer.Close()
	go consumer.Run(consumerCtx)

	// MQTT device gateway (optional: disabled when no broker configured)
	if cfg.MQTT.BrokerURL != "" {
		gateway := mqttgw.New(cfg, producer, logger)
		if err := gateway.Start(); err != nil {
			logger.Errorf("MQTT gateway failed to start: %v", err)
		} else {
			defer gateway.Close()
		}
	}

	// Shut the consumer down on SIGINT/SIGTERM so in-flight jobs finish
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		cancelConsumer()
	}()

	// Start API server
	handler := api.NewHandler(producer, failures, engine, hub, logger)
	router := api.NewRouter(logger, cfg, handler)
	logger.Infof("Starting API server on %s", cfg.API.Port)
	if err := router.Run(cfg.API.Port); err != nil {
		logger.Errorf("API server failed: %v", err)
	}
}
