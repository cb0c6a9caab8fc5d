package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

const keyPrefix = "eteeap"

// RedisStore keeps a named session in Redis so several terminals share it.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, name string, ttl time.Duration) *RedisStore {
	if name == "" {
		name = "default"
	}
	return &RedisStore{
		client: client,
		key:    keyPrefix + ":session:" + name,
		ttl:    ttl,
	}
}

func (s *RedisStore) Load(ctx context.Context) (domain.Session, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, domain.WrapError(domain.ErrNoSession, "load session", err)
		}
		return domain.Session{}, fmt.Errorf("redis get session: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, sess domain.Session) error {
	data, err := encode(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisSubmissionLock serializes the submit check and create across clients
// for one applicant. The lock expires on its own after ttl.
type RedisSubmissionLock struct {
	client  *redis.Client
	ttl     time.Duration
	release *redis.Script
}

func NewRedisSubmissionLock(client *redis.Client, ttl time.Duration) *RedisSubmissionLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisSubmissionLock{
		client:  client,
		ttl:     ttl,
		release: redis.NewScript(releaseScript),
	}
}

func (l *RedisSubmissionLock) Acquire(ctx context.Context, applicantID string) (func(), bool, error) {
	key := keyPrefix + ":submit:" + applicantID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis acquire submit lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 250*time.Millisecond)
		defer cancel()
		_ = l.release.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, true, nil
}
