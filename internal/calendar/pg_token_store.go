package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/db"
)

// PgTokenStore keeps the token in the single-row calendar_tokens table.
type PgTokenStore struct {
	pool db.Pool
}

func NewPgTokenStore(pool db.Pool) *PgTokenStore {
	return &PgTokenStore{pool: pool}
}

func (s *PgTokenStore) Get(ctx context.Context) (*Token, error) {
	var t Token
	err := s.pool.QueryRow(ctx, `
		SELECT access_token, refresh_token, token_type, expires_at, created_at
		FROM calendar_tokens
		WHERE id = 1
	`).Scan(&t.AccessToken, &t.RefreshToken, &t.TokenType, &t.Expiry, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("load calendar token: %w", err)
	}
	return &t, nil
}

// Set upserts the token. A zero CreatedAt stores the current time.
func (s *PgTokenStore) Set(ctx context.Context, t Token) error {
	var createdAt *time.Time
	if !t.CreatedAt.IsZero() {
		createdAt = &t.CreatedAt
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO calendar_tokens (id, access_token, refresh_token, token_type, expires_at, created_at, updated_at)
		VALUES (1, $1, $2, $3, $4, COALESCE($5, now()), now())
		ON CONFLICT (id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    token_type = EXCLUDED.token_type,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at,
		    updated_at = now()
	`, t.AccessToken, t.RefreshToken, t.TokenType, t.Expiry, createdAt)
	if err != nil {
		return fmt.Errorf("save calendar token: %w", err)
	}
	return nil
}

func (s *PgTokenStore) Delete(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM calendar_tokens WHERE id = 1`); err != nil {
		return fmt.Errorf("delete calendar token: %w", err)
	}
	return nil
}
