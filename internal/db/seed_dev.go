package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jdmirek/askhub/internal/config"
	"github.com/jdmirek/askhub/internal/security"
)

// EnsureDevUser seeds a known login for local development. It is a
// no-op unless both DEV_USER_EMAIL and DEV_USER_PASSWORD are set.
func EnsureDevUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.DevUserEmail == "" || cfg.DevUserPassword == "" {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.DevUserEmail))

	// check if the user exists

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.DevUserPassword)

	if err != nil {
		return err
	}

	now := time.Now().UTC()

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		`,
		uuid.NewString(), email, hash, cfg.DevUserName, now, now,
	)

	return err
}
