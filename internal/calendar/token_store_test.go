package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTokenStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisTokenStore(client, "")
	ctx := context.Background()

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	expiry := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	created := time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.Set(ctx, Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: expiry, CreatedAt: created}))
	assert.True(t, mr.Exists(DefaultRedisTokenKey))
	assert.Zero(t, mr.TTL(DefaultRedisTokenKey))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r", got.RefreshToken)
	assert.True(t, expiry.Equal(got.Expiry))
	assert.True(t, created.Equal(got.CreatedAt))

	require.NoError(t, store.Delete(ctx))
	_, err = store.Get(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRedisTokenStoreCorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, mr.Set("custom:key", "not json"))

	_, err := NewRedisTokenStore(client, "custom:key").Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenNotFound)
}

func TestPgTokenStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPgTokenStore(mock)
	expiry := time.Now().Add(time.Hour)
	created := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery("FROM calendar_tokens").
		WillReturnRows(pgxmock.NewRows([]string{"access_token", "refresh_token", "token_type", "expires_at", "created_at"}).
			AddRow("a", "r", "Bearer", expiry, created))

	tok, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)
	assert.Equal(t, expiry, tok.Expiry)
	assert.Equal(t, created, tok.CreatedAt)

	mock.ExpectQuery("FROM calendar_tokens").WillReturnError(pgx.ErrNoRows)
	_, err = store.Get(context.Background())
	assert.ErrorIs(t, err, ErrTokenNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTokenStoreSetAndDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPgTokenStore(mock)
	expiry := time.Now().Add(time.Hour)
	created := time.Now().Add(-24 * time.Hour)

	mock.ExpectExec("INSERT INTO calendar_tokens").
		WithArgs("a", "r", "Bearer", expiry, &created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO calendar_tokens").
		WithArgs("a", "r", "Bearer", expiry, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM calendar_tokens").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Set(context.Background(), Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: expiry, CreatedAt: created}))
	// Without a creation time the database default applies.
	require.NoError(t, store.Set(context.Background(), Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: expiry}))
	require.NoError(t, store.Delete(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenExpiresWithin(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, Token{}.expiresWithin(now, 0))
	assert.False(t, Token{AccessToken: "a"}.expiresWithin(now, time.Minute))
	assert.True(t, Token{AccessToken: "a", Expiry: now.Add(4 * time.Minute)}.expiresWithin(now, 5*time.Minute))
	assert.True(t, Token{AccessToken: "a", Expiry: now.Add(5 * time.Minute)}.expiresWithin(now, 5*time.Minute))
	assert.False(t, Token{AccessToken: "a", Expiry: now.Add(6 * time.Minute)}.expiresWithin(now, 5*time.Minute))
}
