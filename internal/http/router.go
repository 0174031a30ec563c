package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jdmirek/askhub/internal/auth"
	"github.com/jdmirek/askhub/internal/cache"
	"github.com/jdmirek/askhub/internal/config"
	"github.com/jdmirek/askhub/internal/genai"
	"github.com/jdmirek/askhub/internal/http/handlers"
	"github.com/jdmirek/askhub/internal/http/middlewares"
	"github.com/jdmirek/askhub/internal/observability"
	"github.com/jdmirek/askhub/internal/queue/redisclient"
	"github.com/jdmirek/askhub/internal/repo/postgres"
)

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, queue *redisclient.Client, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// own registry so tests can build routers without collisions
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(otelgin.Middleware("askhub"))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(1 << 20)) // 1 MiB

	// health

	pingDB := func(ctx context.Context) error {
		if pool == nil {
			return nil
		}

		cctx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()

		return pool.Ping(cctx)
	}

	pingQueue := func(ctx context.Context) error {
		if queue == nil {
			return nil
		}

		cctx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()

		return queue.Ping(cctx)
	}

	h := handlers.NewHealthHandler(pingDB, pingQueue)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// docs
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	// wire up repositories and clients

	usersRepo := postgres.NewUsersRepo(pool, prom)
	gen := genai.NewClientWithMetrics(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, prom)
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())
	profiles := cache.New(30 * time.Second)

	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, queue, profiles)
	askHandler := handlers.NewAskHandler(gen)
	authRequired := middlewares.NewAuthMiddleware(jwtManager)

	api := r.Group("/api")

	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/auth/me", authRequired.RequireAuth(), authHandler.Me)

	// the ask endpoint is deliberately open; quota lives upstream
	api.POST("/ask", askHandler.Ask)

	return r
}
