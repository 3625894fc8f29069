package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/relaypoint/relaypoint/pkg/config"
	"github.com/relaypoint/relaypoint/pkg/dispatch"
	"github.com/relaypoint/relaypoint/pkg/eventbus"
	"github.com/relaypoint/relaypoint/pkg/reminder"
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

	var deliveryLog store.DeliveryLogStore
	if cfg.DeliveryLog.StorageDriver == "clickhouse" {
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
		deliveryLog = postgres.NewDeliveryLogRepository(db.DB())
	}
	defer deliveryLog.Close()

	webhooks := dispatch.NewWebhooks(postgres.NewSubscriptionRepository(db.DB()), deliveryLog, bus, logger, cfg.Dispatch.HTTPTimeout)
	sweep := reminder.NewSweep(
		postgres.NewReminderRepository(db.DB()),
		postgres.NewEntityRepository(db.DB()),
		webhooks,
		bus,
		logger,
		cfg.Sweep.Interval,
		cfg.Sweep.BatchSize,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sweep.Run(ctx); err != nil && err != context.Canceled {
			logger.Fatal("reminder sweep stopped with error", zap.Error(err))
		}
	}()

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

	logger.Info("sweeper shutting down")
	metricsServer.Close()
}
