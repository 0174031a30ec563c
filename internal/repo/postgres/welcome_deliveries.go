package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jdmirek/askhub/internal/domain/delivery"
)

// WelcomeDeliveriesRepo records welcome email sends so duplicate queue
// deliveries of the same job do not mail a user twice.
type WelcomeDeliveriesRepo struct {
	pool *pgxpool.Pool
}

func NewWelcomeDeliveriesRepo(pool *pgxpool.Pool) *WelcomeDeliveriesRepo {
	return &WelcomeDeliveriesRepo{pool: pool}
}

func (r *WelcomeDeliveriesRepo) TryStart(
	ctx context.Context,
	jobID string,
	userID string,
	recipient string,
) error {
	// 1) Insert if missing
	_, err := r.pool.Exec(ctx, `
		INSERT INTO welcome_email_deliveries (user_id, job_id, recipient, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, userID, jobID, recipient, string(delivery.StatusSending))

	if err == nil {
		return nil
	}
	if !IsUniqueViolation(err) {
		return err
	}

	// 2) Row exists. Claim it if it failed before, or if a dead worker
	// left it stuck in sending. The WHERE makes the claim atomic: only
	// one worker can flip the row back.
	tag, uErr := r.pool.Exec(ctx, `
		UPDATE welcome_email_deliveries
		SET status = $2,
		    job_id = $3,
		    recipient = $4,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE user_id = $1
		  AND (status = $5 OR (status = $2 AND updated_at < NOW() - INTERVAL '2 minutes'))
	`, userID, string(delivery.StatusSending), jobID, recipient, string(delivery.StatusFailed))

	if uErr != nil {
		return uErr
	}
	if tag.RowsAffected() == 1 {
		return nil // we successfully claimed the retry
	}

	// 3) Not claimable. Determine whether it's already sent or currently sending.
	var status string
	var sentAt *time.Time

	qErr := r.pool.QueryRow(ctx, `
		SELECT status, sent_at
		FROM welcome_email_deliveries
		WHERE user_id = $1
	`, userID).Scan(&status, &sentAt)

	if qErr != nil {
		if errors.Is(qErr, pgx.ErrNoRows) {
			// row disappeared; let caller retry
			return nil
		}
		return qErr
	}

	if sentAt != nil || status == string(delivery.StatusSent) {
		return delivery.ErrAlreadySent
	}

	// a fresh sending row: another worker owns it
	return delivery.ErrInProgress
}

func (r *WelcomeDeliveriesRepo) MarkSent(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE welcome_email_deliveries
		SET status = $2,
		    sent_at = NOW(),
		    last_error = NULL,
		    updated_at = NOW()
		WHERE user_id = $1
	`, userID, string(delivery.StatusSent))

	return err
}

func (r *WelcomeDeliveriesRepo) MarkFailed(ctx context.Context, userID string, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE welcome_email_deliveries
		SET status = $2,
		    last_error = $3,
		    updated_at = NOW()
		WHERE user_id = $1
	`, userID, string(delivery.StatusFailed), errMsg)

	return err
}
