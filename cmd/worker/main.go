package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jdmirek/askhub/internal/config"
	"github.com/jdmirek/askhub/internal/db"
	"github.com/jdmirek/askhub/internal/notifications"
	"github.com/jdmirek/askhub/internal/observability"
	"github.com/jdmirek/askhub/internal/queue/redisclient"
	"github.com/jdmirek/askhub/internal/queue/worker"
	"github.com/jdmirek/askhub/internal/repo/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	queue := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	defer queue.Close()

	pingCtx, cancelPing := config.WithTimeout(2 * time.Second)
	err := queue.Ping(pingCtx)
	cancelPing()

	if err != nil {
		log.Error("redis connect failed", "err", err)
		os.Exit(1)
	}

	// postgres holds the delivery ledger that keeps duplicate queue
	// deliveries from mailing a user twice
	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	deliveries := postgres.NewWelcomeDeliveriesRepo(pool)

	// the log notifier stands in for a real mail provider; sends go
	// through the circuit breaker with its default thresholds
	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(),
		notifications.ProtectedNotifierConfig{},
	)

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	metrics := observability.NewJobMetrics()

	w := worker.New(worker.Config{
		PollInterval:  250 * time.Millisecond,
		Visibility:    30 * time.Second,
		SweepInterval: 15 * time.Second,
	}, queue, notifier, deliveries, log, metrics, prom)

	// side server for probes and counters
	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerPort),
		Handler:           w.HealthHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := healthSrv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("worker health server failed", "err", err)
		}
	}()

	log.Info("worker has started", "redis", cfg.RedisAddr, "health_port", cfg.WorkerPort)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	_ = healthSrv.Shutdown(shutdownCtx)
	cancel()

	log.Info("worker shutdown complete")
}
