package redisclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jdmirek/askhub/internal/jobs"
	"github.com/jdmirek/askhub/internal/queue/redisclient"
)

func newTestClient(t *testing.T) *redisclient.Client {
	t.Helper()

	mr := miniredis.RunT(t)

	c := redisclient.New(redisclient.Config{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestEnqueueReserveAck(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	payload, err := jobs.WelcomeEmailPayload{
		UserID:      "u1",
		Email:       "ada@example.com",
		Name:        "Ada",
		RequestedAt: time.Now().UTC(),
	}.JSON()
	if err != nil {
		t.Fatalf("payload JSON: %v", err)
	}

	j := jobs.New(jobs.TypeWelcomeEmail, payload)

	if err := c.Enqueue(ctx, j); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	raw, err := c.Reserve(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	var got jobs.Job
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("decode reserved envelope: %v body=%s", err, raw)
	}
	if got.ID != j.ID {
		t.Fatalf("reserved job id %s, want %s", got.ID, j.ID)
	}
	if got.Type != jobs.TypeWelcomeEmail {
		t.Fatalf("reserved job type %s, want %s", got.Type, jobs.TypeWelcomeEmail)
	}

	if err := c.Ack(ctx, raw); err != nil {
		t.Fatalf("Ack error: %v", err)
	}

	// acked jobs must not come back, even long after the deadline
	moved, err := c.RequeueExpired(ctx, time.Now().Add(2*time.Minute))
	if err != nil {
		t.Fatalf("RequeueExpired error: %v", err)
	}
	if len(moved) != 0 {
		t.Fatalf("expected nothing to requeue after ack, got %d", len(moved))
	}
}

func TestReserve_EmptyQueue(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Reserve(context.Background(), time.Minute)
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil on empty queue, got %v", err)
	}
}

func TestReserve_FIFO(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	first := jobs.New(jobs.TypeWelcomeEmail, []byte(`{"userId":"u1","email":"a@example.com"}`))
	second := jobs.New(jobs.TypeWelcomeEmail, []byte(`{"userId":"u2","email":"b@example.com"}`))

	if err := c.Enqueue(ctx, first); err != nil {
		t.Fatalf("Enqueue first: %v", err)
	}
	if err := c.Enqueue(ctx, second); err != nil {
		t.Fatalf("Enqueue second: %v", err)
	}

	raw, err := c.Reserve(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	var got jobs.Job
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("decode reserved envelope: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected oldest job first, got %s want %s", got.ID, first.ID)
	}
}

func TestRequeueExpired_MovesLapsedJobs(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	j := jobs.New(jobs.TypeWelcomeEmail, []byte(`{"userId":"u1","email":"a@example.com"}`))

	if err := c.Enqueue(ctx, j); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	reserved, err := c.Reserve(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	// deadline has not passed yet
	moved, err := c.RequeueExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("RequeueExpired error: %v", err)
	}
	if len(moved) != 0 {
		t.Fatalf("expected no requeue before the deadline, got %d", len(moved))
	}

	// worker died: deadline lapses and the job comes back
	moved, err = c.RequeueExpired(ctx, time.Now().Add(2*time.Minute))
	if err != nil {
		t.Fatalf("RequeueExpired error: %v", err)
	}
	if len(moved) != 1 || moved[0] != reserved {
		t.Fatalf("expected the reserved envelope back, got %v", moved)
	}

	again, err := c.Reserve(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Reserve after requeue error: %v", err)
	}
	if again != reserved {
		t.Fatalf("requeued envelope changed: got %s want %s", again, reserved)
	}
}

func TestPendingDepth(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		j := jobs.New(jobs.TypeWelcomeEmail, []byte(`{"userId":"u","email":"e@example.com"}`))
		if err := c.Enqueue(ctx, j); err != nil {
			t.Fatalf("Enqueue error: %v", err)
		}
	}

	n, err := c.PendingDepth(ctx)
	if err != nil {
		t.Fatalf("PendingDepth error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected depth 3, got %d", n)
	}
}
