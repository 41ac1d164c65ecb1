package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockTTL       = 30 * time.Second
	retryInterval = 50 * time.Millisecond
)

// releaseScript deletes the lock only when it still holds our token, so an
// expired lock taken over by another process is never released by us.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker serializes transitions across processes with SET NX locks.
// Used when several API instances share one database.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(redisURL string) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &RedisLocker{
		client: redis.NewClient(opts),
		prefix: "approvion:lock:",
	}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + key
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, lockTTL).Result()
		if err != nil {
			return nil, err
		}

		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}

	release := func() {
		// Best effort; the TTL bounds the damage of a failed release.
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{lockKey}, token).Err()
	}

	return release, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
