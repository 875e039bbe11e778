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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-gate-api/internal/dispatch"
	"github.com/noah-isme/classroom-gate-api/internal/fanout"
	"github.com/noah-isme/classroom-gate-api/internal/handler"
	"github.com/noah-isme/classroom-gate-api/internal/identity"
	"github.com/noah-isme/classroom-gate-api/internal/repository"
	"github.com/noah-isme/classroom-gate-api/internal/repository/memory"
	"github.com/noah-isme/classroom-gate-api/internal/service"
	"github.com/noah-isme/classroom-gate-api/pkg/cache"
	"github.com/noah-isme/classroom-gate-api/pkg/config"
	"github.com/noah-isme/classroom-gate-api/pkg/database"
	"github.com/noah-isme/classroom-gate-api/pkg/jobs"
	"github.com/noah-isme/classroom-gate-api/pkg/kafka"
	"github.com/noah-isme/classroom-gate-api/pkg/logger"
	"github.com/noah-isme/classroom-gate-api/pkg/storage"
)

// @title Classroom Gate API
// @version 1.0.0
// @description Authorization-gated action layer for course management
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]handler.ReadinessCheck{}
	store, closeStore, err := openStore(cfg, logr, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	if seeded, err := service.EnsureAdmin(ctx, store.Users, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	} else if seeded {
		logr.Info("seeded administrator", zap.String("email", cfg.Seed.AdminEmail))
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, redisClient != nil)

	resolver := identity.NewResolver(store.Users, cacheSvc, identity.Config{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		CacheTTL: cfg.Identity.CacheTTL,
	}, logr)
	authSvc := service.NewAuthService(store.Users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	writer := fanout.NewWriter(store.Enrollments, store.Notifications, metrics, logr)
	notifier, stopNotifier, err := buildNotifier(ctx, cfg, writer, logr)
	if err != nil {
		return err
	}
	defer stopNotifier()

	analytics := service.NewAnalyticsService(store.Analytics, cacheSvc, metrics, logr, cfg.Analytics.Enabled)
	exports, err := buildExports(cfg, store, metrics, logr)
	if err != nil {
		return err
	}
	go sweepExports(ctx, exports, cfg.Exports.SignedURLTTL, logr)

	dispatcher := dispatch.New(store, notifier, validate, logr, dispatch.Config{Timeout: cfg.Dispatch.Timeout},
		dispatch.WithMetrics(metrics),
		dispatch.WithAnalytics(analytics),
		dispatch.WithExports(exports),
	)

	router := newRouter(cfg, logr, routerDeps{
		dispatcher: dispatcher,
		resolver:   resolver,
		auth:       authSvc,
		users:      store.Users,
		exports:    exports,
		metrics:    metrics,
		checks:     checks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver), zap.String("notify_mode", notifier.Mode()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Dispatch.Timeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config, logr *zap.Logger, checks map[string]handler.ReadinessCheck) (*repository.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logr.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	case config.StoreDriverPostgres, "":
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(db, cfg.Database.Name); err != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		checks["postgres"] = pingDB(db)
		return repository.NewPostgresStore(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func pingDB(db *sqlx.DB) handler.ReadinessCheck {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}

func buildNotifier(ctx context.Context, cfg *config.Config, writer *fanout.Writer, logr *zap.Logger) (fanout.Notifier, func(), error) {
	switch cfg.Notifications.Mode {
	case config.NotifyModeQueue:
		queued := fanout.NewQueueNotifier(writer, jobs.QueueConfig{
			Workers:    cfg.Notifications.QueueWorkers,
			MaxRetries: cfg.Notifications.QueueRetries,
			Logger:     logr,
		})
		queued.Start(ctx)
		return queued, queued.Stop, nil
	case config.NotifyModeKafka:
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers: cfg.Notifications.KafkaBrokers,
			Topic:   cfg.Notifications.KafkaTopic,
		})
		if err != nil {
			return nil, nil, err
		}
		return fanout.NewKafkaNotifier(producer), func() { _ = producer.Close() }, nil
	case config.NotifyModeSync, "":
		return fanout.NewSyncNotifier(writer), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown notification mode %q", cfg.Notifications.Mode)
	}
}

func buildExports(cfg *config.Config, store *repository.Store, metrics *service.MetricsService, logr *zap.Logger) (*service.ExportService, error) {
	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	return service.NewExportService(store.Analytics, files, signer, metrics, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr), nil
}

// sweepExports deletes rendered files once their links can no longer be valid.
func sweepExports(ctx context.Context, exports *service.ExportService, ttl time.Duration, logr *zap.Logger) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("export cleanup", zap.Int("removed", len(removed)))
			}
		}
	}
}
