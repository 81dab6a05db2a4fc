package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrLockNotAcquired means another holder owns the lock right now.
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockUnavailable means Redis could not be asked for the lock at all.
	ErrLockUnavailable = errors.New("lock backend unavailable")
	// ErrLockLost is the cause of the section context when ownership lapses.
	ErrLockLost = errors.New("lock ownership lost")
)

// Locker guards critical sections that must not run concurrently across
// processes, such as refreshing the shared calendar OAuth token.
type Locker interface {
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisLocker creates a locker keyed as lock:<name>. The key expires
// after ttl unless the holder is still running, in which case it is
// extended every ttl/2, so a crashed process never blocks the others
// for longer than ttl.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) Locker {
	if ttl < time.Second {
		ttl = time.Second
	}
	return &redisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *redisLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	key := "lock:" + name
	owner := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: acquire %s: %w", ErrLockUnavailable, name, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	sectionCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	done := make(chan struct{})
	go l.keepAlive(sectionCtx, cancel, key, owner, done)

	err = fn(sectionCtx)
	close(done)

	if relErr := l.release(context.WithoutCancel(ctx), key, owner); relErr != nil {
		l.logger.Warn().Err(relErr).Str("lock", name).Msg("lock release failed, key will expire")
	}
	return err
}

// keepAlive extends the key while the section runs. Losing the key
// cancels the section so it does not finish believing it still holds it.
func (l *redisLocker) keepAlive(ctx context.Context, cancel context.CancelCauseFunc, key, owner string, done <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := l.extend(ctx, key, owner)
			if err != nil {
				l.logger.Warn().Err(err).Str("key", key).Msg("lock extend failed")
				continue
			}
			if !held {
				cancel(ErrLockLost)
				return
			}
		}
	}
}

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

func (l *redisLocker) extend(ctx context.Context, key, owner string) (bool, error) {
	n, err := extendScript.Run(ctx, l.client, []string{key}, owner, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("extend lock: %w", err)
	}
	return n == 1, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisLocker) release(ctx context.Context, key, owner string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{key}, owner).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
