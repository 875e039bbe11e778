package main

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/classroom-gate-api/api/swagger"
	"github.com/noah-isme/classroom-gate-api/internal/dispatch"
	"github.com/noah-isme/classroom-gate-api/internal/handler"
	"github.com/noah-isme/classroom-gate-api/internal/identity"
	"github.com/noah-isme/classroom-gate-api/internal/middleware"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/repository"
	"github.com/noah-isme/classroom-gate-api/internal/service"
	"github.com/noah-isme/classroom-gate-api/pkg/config"
	"github.com/noah-isme/classroom-gate-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/classroom-gate-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classroom-gate-api/pkg/middleware/requestid"
)

type routerDeps struct {
	dispatcher *dispatch.Dispatcher
	resolver   *identity.Resolver
	auth       *service.AuthService
	users      repository.UserStore
	exports    *service.ExportService
	metrics    *service.MetricsService
	checks     map[string]handler.ReadinessCheck
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(middleware.WithResponseMeta())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	api := r.Group(prefix)

	authHandler := handler.NewAuthHandler(deps.auth, deps.users)
	exportHandler := handler.NewExportHandler(deps.exports)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/:token", exportHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.Authenticate(deps.resolver))

	actionHandler := handler.NewActionHandler(deps.dispatcher)
	secured.GET("/me", authHandler.Me)
	secured.GET("/actions", actionHandler.Catalog)
	secured.POST("/actions", actionHandler.Execute)

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/metrics", metricsHandler.Dispatch)

	return r
}
