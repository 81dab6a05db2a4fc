package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

var (
	pingOK   = PingFunc(func(context.Context) error { return nil })
	pingDown = PingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func readiness(t *testing.T, h *HealthHandler) (int, ReadinessResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(pingOK, nil, "test", "1.2.3").Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3","env":"test"}`, rec.Body.String())
}

func TestReadinessAllUp(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	code, body := readiness(t, NewHealthHandler(pingOK, RedisPinger(client), "test", ""))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, body.Dependencies)
}

func TestReadinessPostgresDown(t *testing.T) {
	code, body := readiness(t, NewHealthHandler(pingDown, pingOK, "test", ""))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "down", body.Dependencies["postgres"])
}

func TestReadinessRedisDownDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	code, body := readiness(t, NewHealthHandler(pingOK, RedisPinger(client), "test", ""))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "down", body.Dependencies["redis"])
}

func TestReadinessWithoutRedis(t *testing.T) {
	code, body := readiness(t, NewHealthHandler(pingOK, nil, "test", ""))

	assert.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body.Dependencies, "redis")
}
