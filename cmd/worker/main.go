// Worker consumes security events from Kafka and writes them to the audit log.
// Set KAFKA_BROKERS, KAFKA_EVENTS_TOPIC, and KAFKA_GROUP_ID.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"sessiongate/internal/config"
	"sessiongate/internal/events"
	"sessiongate/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}

	logger, err := obs.NewLogger(obs.LogConfig{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env != "production",
		App:    "sessiongate-audit",
		Env:    cfg.Env,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.KafkaEventsTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("worker shutting down")
		cancel()
	}()

	logger.Info("consuming security events",
		zap.Strings("brokers", brokers),
		zap.String("topic", cfg.KafkaEventsTopic),
		zap.String("group", cfg.KafkaGroupID),
	)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("worker stopped")
				return
			}
			logger.Warn("kafka read", zap.Error(err))
			continue
		}

		var ev events.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Warn("malformed event", zap.Error(err), zap.ByteString("payload", msg.Value))
			continue
		}
		logger.Info("security event",
			zap.String("type", ev.Type),
			zap.String("subject", ev.Subject),
			zap.String("identifier", ev.Identifier),
			zap.Time("at", ev.At),
			zap.Any("metadata", ev.Metadata),
		)
	}
}
