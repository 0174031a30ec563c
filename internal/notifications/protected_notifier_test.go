package notifications_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jdmirek/askhub/internal/notifications"
)

var errProviderDown = errors.New("provider down")

// scriptedNotifier fails while failing is true and counts every call
// that actually reaches it.
type scriptedNotifier struct {
	mu      sync.Mutex
	failing bool
	calls   int
	block   time.Duration
}

func (s *scriptedNotifier) SendWelcomeEmail(ctx context.Context, in notifications.SendWelcomeEmailInput) error {
	s.mu.Lock()
	s.calls++
	failing := s.failing
	block := s.block
	s.mu.Unlock()

	if block > 0 {
		select {
		case <-time.After(block):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if failing {
		return errProviderDown
	}

	return nil
}

func (s *scriptedNotifier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedNotifier) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func input() notifications.SendWelcomeEmailInput {
	return notifications.SendWelcomeEmailInput{UserID: "u1", Email: "ada@example.com", Name: "Ada"}
}

func TestProtectedNotifier_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &scriptedNotifier{failing: true}

	n := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	})

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := n.SendWelcomeEmail(ctx, input()); !errors.Is(err, errProviderDown) {
			t.Fatalf("send %d: expected provider error, got %v", i, err)
		}
	}

	// circuit is open now: the provider must not be touched again
	err := n.SendWelcomeEmail(ctx, input())
	if !errors.Is(err, notifications.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if got := inner.callCount(); got != 3 {
		t.Fatalf("provider called %d times, want 3", got)
	}
}

func TestProtectedNotifier_HalfOpenRecovery(t *testing.T) {
	inner := &scriptedNotifier{failing: true}

	n := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		FailureThreshold: 1,
		Cooldown:         20 * time.Millisecond,
	})

	ctx := context.Background()

	if err := n.SendWelcomeEmail(ctx, input()); !errors.Is(err, errProviderDown) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if err := n.SendWelcomeEmail(ctx, input()); !errors.Is(err, notifications.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen during cooldown, got %v", err)
	}

	// provider recovers, cooldown lapses, half-open trial succeeds
	inner.setFailing(false)
	time.Sleep(30 * time.Millisecond)

	if err := n.SendWelcomeEmail(ctx, input()); err != nil {
		t.Fatalf("expected half-open trial to succeed, got %v", err)
	}
	if err := n.SendWelcomeEmail(ctx, input()); err != nil {
		t.Fatalf("expected circuit closed after recovery, got %v", err)
	}
}

func TestProtectedNotifier_ReopensOnFailedTrial(t *testing.T) {
	inner := &scriptedNotifier{failing: true}

	n := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		FailureThreshold: 1,
		Cooldown:         20 * time.Millisecond,
	})

	ctx := context.Background()

	_ = n.SendWelcomeEmail(ctx, input())
	time.Sleep(30 * time.Millisecond)

	// trial call still fails: straight back to open, no second trial
	if err := n.SendWelcomeEmail(ctx, input()); !errors.Is(err, errProviderDown) {
		t.Fatalf("expected provider error on trial, got %v", err)
	}
	if err := n.SendWelcomeEmail(ctx, input()); !errors.Is(err, notifications.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after failed trial, got %v", err)
	}
}

func TestProtectedNotifier_TimeoutCountsAsFailure(t *testing.T) {
	inner := &scriptedNotifier{block: time.Second}

	n := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		Timeout:          10 * time.Millisecond,
		FailureThreshold: 1,
		Cooldown:         time.Minute,
	})

	ctx := context.Background()

	if err := n.SendWelcomeEmail(ctx, input()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if err := n.SendWelcomeEmail(ctx, input()); !errors.Is(err, notifications.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after timeout, got %v", err)
	}
}

func TestProtectedNotifier_SuccessResetsFailureCount(t *testing.T) {
	inner := &scriptedNotifier{}

	n := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	})

	ctx := context.Background()

	// two failures, then a success, then two more failures: the streak
	// never reaches three, so the circuit stays closed
	steps := []bool{true, true, false, true, true}
	for i, failing := range steps {
		inner.setFailing(failing)

		err := n.SendWelcomeEmail(ctx, input())
		if failing && !errors.Is(err, errProviderDown) {
			t.Fatalf("step %d: expected provider error, got %v", i, err)
		}
		if !failing && err != nil {
			t.Fatalf("step %d: expected success, got %v", i, err)
		}
	}

	inner.setFailing(false)
	if err := n.SendWelcomeEmail(ctx, input()); err != nil {
		t.Fatalf("circuit should still be closed, got %v", err)
	}
	if got := inner.callCount(); got != 6 {
		t.Fatalf("provider called %d times, want 6", got)
	}
}
