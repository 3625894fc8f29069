package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/relaypoint/relaypoint/pkg/config"
	"github.com/relaypoint/relaypoint/pkg/dispatch"
	"github.com/relaypoint/relaypoint/pkg/eventbus"
	"github.com/relaypoint/relaypoint/pkg/store"
	"github.com/relaypoint/relaypoint/pkg/store/clickhouse"
	"github.com/relaypoint/relaypoint/pkg/store/postgres"
	redisclient "github.com/relaypoint/relaypoint/pkg/store/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redis, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()

	bus := eventbus.NewBus(redis.Client())

	notifier := eventbus.NewKafkaNotifier(eventbus.KafkaNotifierConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID,
		Topic:    cfg.Kafka.ExecutionTopic,
	})
	defer notifier.Close()

	var deliveryLog store.DeliveryLogStore
	if cfg.DeliveryLog.StorageDriver == "clickhouse" {
		logger.Info("using clickhouse for delivery log storage")
		deliveryLog, err = clickhouse.NewClickHouseDeliveryStore(
			cfg.ClickHouse.Hosts[0],
			cfg.ClickHouse.Database,
			cfg.ClickHouse.User,
			cfg.ClickHouse.Password,
			logger,
		)
		if err != nil {
			logger.Fatal("failed to initialize clickhouse delivery store", zap.Error(err))
		}
	} else {
		logger.Info("using postgres for delivery log storage")
		deliveryLog = postgres.NewDeliveryLogRepository(db.DB())
	}
	defer deliveryLog.Close()

	webhooks := dispatch.NewWebhooks(postgres.NewSubscriptionRepository(db.DB()), deliveryLog, bus, logger, cfg.Dispatch.HTTPTimeout)
	enqueuer := dispatch.NewEnqueuer(postgres.NewWorkflowRepository(db.DB()), notifier, bus, logger)
	relay := dispatch.NewRelay(postgres.NewOutboxRepository(db.DB()), webhooks, enqueuer, logger, cfg.Dispatch.PollInterval, cfg.Dispatch.BatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := relay.Run(ctx); err != nil && err != context.Canceled {
			logger.Fatal("dispatch relay stopped with error", zap.Error(err))
		}
	}()

	// ClickHouse handles retention via TTL natively
	if cfg.DeliveryLog.StorageDriver != "clickhouse" {
		go func() {
			ticker := time.NewTicker(1 * time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				if err := deliveryLog.DeleteOld(context.Background(), cfg.DeliveryLog.RetentionDays); err != nil {
					logger.Error("failed to cleanup old delivery records", zap.Error(err))
				}
			}
		}()
	}

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("serving metrics", zap.Int("port", cfg.Server.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("dispatcher shutting down")
	metricsServer.Close()
}
