package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jdmirek/askhub/internal/domain/delivery"
	"github.com/jdmirek/askhub/internal/jobs"
	"github.com/jdmirek/askhub/internal/notifications"
)

// ProcessOne reserves and handles at most one job. The bool reports
// whether a job was available at all, so the caller knows when to idle.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	raw, err := w.queue.Reserve(ctx, w.cfg.Visibility)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	w.metrics.IncClaimed()
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	var j jobs.Job
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		// an undecodable envelope can never succeed, drop it
		w.log.Error("drop undecodable envelope", "error", err)
		w.metrics.IncFailed()
		w.metrics.IncDeadLettered()
		_ = w.queue.Ack(ctx, raw)
		return true, nil
	}

	start := time.Now()
	execErr := w.execute(ctx, j)
	took := time.Since(start)
	w.metrics.ObserveDuration(took)

	if execErr != nil {
		w.handleFailure(ctx, j, raw, execErr, took)
		return true, nil
	}

	w.metrics.IncDone()
	w.observeJob(j.Type, "done", took)

	if err := w.queue.Ack(ctx, raw); err != nil {
		return true, fmt.Errorf("ack job %s: %w", j.ID, err)
	}

	w.log.Info("job done", "job_id", j.ID, "type", string(j.Type), "duration_ms", took.Milliseconds())
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j jobs.Job) error {
	decoded, err := jobs.DecodePayload(j)
	if err != nil {
		return err
	}

	if err := jobs.ValidatePayload(j.Type, decoded); err != nil {
		return err
	}

	switch p := decoded.(type) {
	case jobs.WelcomeEmailPayload:
		return w.sendWelcomeEmail(ctx, j, p)
	default:
		return jobs.ErrInvalidJobType
	}
}

func (w *Worker) sendWelcomeEmail(ctx context.Context, j jobs.Job, p jobs.WelcomeEmailPayload) error {
	if w.deliveries != nil {
		err := w.deliveries.TryStart(ctx, j.ID, p.UserID, p.Email)

		if errors.Is(err, delivery.ErrAlreadySent) || errors.Is(err, delivery.ErrInProgress) {
			// duplicate queue delivery, someone already handled it
			w.log.Info("skip duplicate welcome email", "job_id", j.ID, "user_id", p.UserID)
			return nil
		}
		if err != nil {
			return err
		}
	}

	sendErr := w.notifier.SendWelcomeEmail(ctx, notifications.SendWelcomeEmailInput{
		UserID: p.UserID,
		Email:  p.Email,
		Name:   p.Name,
	})

	if w.deliveries != nil {
		// ledger writes are best effort, the send already happened
		if sendErr != nil {
			_ = w.deliveries.MarkFailed(ctx, p.UserID, sendErr.Error())
		} else {
			_ = w.deliveries.MarkSent(ctx, p.UserID)
		}
	}

	return sendErr
}

func (w *Worker) handleFailure(ctx context.Context, j jobs.Job, raw string, cause error, took time.Duration) {
	w.metrics.IncFailed()

	// malformed jobs never heal, retrying them just burns attempts
	permanent := errors.Is(cause, jobs.ErrInvalidJobType) ||
		errors.Is(cause, jobs.ErrInvalidJobPayload) ||
		errors.Is(cause, jobs.ErrPayloadTypeMismatch)

	j.Attempts++

	if permanent || j.Attempts >= j.MaxAttempts {
		w.metrics.IncDeadLettered()
		w.observeJob(j.Type, "failed", took)
		w.log.Error("job failed permanently",
			"job_id", j.ID, "type", string(j.Type), "attempts", j.Attempts, "error", cause)
		_ = w.queue.Ack(ctx, raw)
		return
	}

	w.metrics.IncRetried()
	w.observeJob(j.Type, "retry", took)
	w.log.Warn("job failed, retrying",
		"job_id", j.ID, "type", string(j.Type), "attempt", j.Attempts, "error", cause)

	// wait out the backoff, but never sit on a shutdown
	select {
	case <-time.After(w.cfg.Backoff(j.Attempts - 1)):
	case <-ctx.Done():
	}

	if err := w.queue.Enqueue(ctx, j); err != nil {
		// leave the reserved copy alone, the sweeper resurrects it
		// once the visibility deadline lapses
		w.log.Error("re-enqueue failed", "job_id", j.ID, "error", err)
		return
	}

	_ = w.queue.Ack(ctx, raw)
}

func (w *Worker) observeJob(t jobs.JobType, result string, took time.Duration) {
	if w.prom == nil {
		return
	}
	w.prom.JobResults.WithLabelValues(string(t), result).Inc()
	w.prom.JobDuration.WithLabelValues(string(t), result).Observe(took.Seconds())
}
