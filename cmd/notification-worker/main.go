package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-gate-api/internal/fanout"
	"github.com/noah-isme/classroom-gate-api/internal/handler"
	"github.com/noah-isme/classroom-gate-api/internal/repository"
	"github.com/noah-isme/classroom-gate-api/internal/service"
	"github.com/noah-isme/classroom-gate-api/pkg/config"
	"github.com/noah-isme/classroom-gate-api/pkg/database"
	"github.com/noah-isme/classroom-gate-api/pkg/kafka"
	"github.com/noah-isme/classroom-gate-api/pkg/logger"
)

// notification-worker consumes fan-out events published by the gateway in kafka mode and
// writes the notification rows. Offsets are committed only after the write.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("worker failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	store := repository.NewPostgresStore(db)
	metrics := service.NewMetricsService()
	writer := fanout.NewWriter(store.Enrollments, store.Notifications, metrics, logr)

	consumer := kafka.NewConsumer(kafka.Config{
		Brokers:     cfg.Notifications.KafkaBrokers,
		Topic:       cfg.Notifications.KafkaTopic,
		GroupID:     cfg.Notifications.KafkaGroupID,
		MaxAttempts: cfg.Notifications.QueueRetries,
	})
	defer consumer.Close() //nolint:errcheck

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return db.PingContext(ctx) },
	})
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("metrics server failed", zap.Error(err))
		}
	}()

	logr.Info("notification worker starting",
		zap.Strings("brokers", cfg.Notifications.KafkaBrokers),
		zap.String("topic", cfg.Notifications.KafkaTopic),
		zap.String("group", cfg.Notifications.KafkaGroupID),
	)
	err = consumer.Run(ctx, fanout.MessageHandler(writer, logr), func(stage string, err error) {
		logr.Warn("notification consumer error", zap.String("stage", stage), zap.Error(err))
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return err
}
