package worker

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (w *Worker) HealthHandler() http.Handler {
	r := gin.New()

	r.Use(gin.Recovery())

	// liveness: process is up

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"ok": true,
		})
	})

	// readiness: worker is able to reserve + process
	// keeping it simple: exposing an internal flag which flips when shutting down
	r.GET("/readyz", func(c *gin.Context) {
		w.readyMu.RLock()
		ready := w.ready
		w.readyMu.RUnlock()

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// processing counters plus the current queue depth, handy when
	// deciding whether a stuck deploy is the worker or the queue
	r.GET("/stats", func(c *gin.Context) {
		snap := w.metrics.Snapshot()

		depth := int64(-1)
		cctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if n, err := w.queue.PendingDepth(cctx); err == nil {
			depth = n
		}

		c.JSON(http.StatusOK, gin.H{
			"workerId":     w.cfg.WorkerID,
			"claimed":      snap.Claimed,
			"done":         snap.Done,
			"failed":       snap.Failed,
			"retried":      snap.Retried,
			"deadLettered": snap.DeadLettered,
			"avgMs":        snap.AverageDuration.Milliseconds(),
			"maxMs":        snap.MaxDuration.Milliseconds(),
			"pendingJobs":  depth,
		})
	})

	return r
}
