package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jdmirek/askhub/internal/jobs"
	"github.com/jdmirek/askhub/internal/notifications"
	"github.com/jdmirek/askhub/internal/observability"
)

// Queue is the slice of the redis client the worker consumes jobs
// through.
type Queue interface {
	Enqueue(ctx context.Context, j jobs.Job) error
	Reserve(ctx context.Context, visibility time.Duration) (string, error)
	Ack(ctx context.Context, raw string) error
	RequeueExpired(ctx context.Context, now time.Time) ([]string, error)
	PendingDepth(ctx context.Context) (int64, error)
}

// Deliveries is the dedup ledger for outbound sends. Queue deliveries
// are at-least-once, the ledger keeps users from being mailed twice.
// A nil Deliveries disables dedup.
type Deliveries interface {
	TryStart(ctx context.Context, jobID, userID, recipient string) error
	MarkSent(ctx context.Context, userID string) error
	MarkFailed(ctx context.Context, userID, errMsg string) error
}

type Config struct {
	WorkerID      string
	PollInterval  time.Duration // idle wait when the queue is empty
	Visibility    time.Duration // how long a reserved job stays invisible
	SweepInterval time.Duration // how often lapsed reservations get requeued

	// Backoff computes the wait before retry n. Tests swap it out so
	// they do not sleep.
	Backoff func(attempt int) time.Duration
}

type Worker struct {
	cfg        Config
	queue      Queue
	notifier   notifications.Notifier
	deliveries Deliveries
	log        *slog.Logger
	metrics    *observability.JobMetrics
	prom       *observability.Prom

	ready   bool
	readyMu sync.RWMutex
}

func New(cfg Config, queue Queue, notifier notifications.Notifier, deliveries Deliveries, log *slog.Logger, metrics *observability.JobMetrics, prom *observability.Prom) *Worker {
	if cfg.WorkerID == "" {
		host, _ := os.Hostname()
		cfg.WorkerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.Visibility <= 0 {
		cfg.Visibility = 30 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 15 * time.Second
	}
	if cfg.Backoff == nil {
		cfg.Backoff = ExponentialBackoff
	}
	if metrics == nil {
		metrics = observability.NewJobMetrics()
	}

	return &Worker{
		cfg:        cfg,
		queue:      queue,
		notifier:   notifier,
		deliveries: deliveries,
		log:        log,
		metrics:    metrics,
		prom:       prom,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	w.log.Info("worker started", "id", w.cfg.WorkerID, "poll_ms", w.cfg.PollInterval.Milliseconds())

	go w.sweepLoop(ctx)

	for {
		processed, err := w.ProcessOne(ctx)

		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("worker received shutdown signal")
				return nil
			}

			w.log.Error("process job", "error", err)
		}

		// drain the queue without sleeping between jobs
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			w.log.Info("worker received shutdown signal")
			return nil

		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// sweepLoop periodically resurrects jobs whose worker died mid-flight.
func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			moved, err := w.queue.RequeueExpired(ctx, time.Now())

			if err != nil {
				if ctx.Err() == nil {
					w.log.Error("requeue expired", "error", err)
				}
				continue
			}

			if len(moved) > 0 {
				w.log.Warn("requeued expired jobs", "count", len(moved))
			}
		}
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}
