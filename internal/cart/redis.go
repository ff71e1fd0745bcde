package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "gatedmart:session:"

// RedisStore хранит сессии в Redis в виде JSON. TTL продлевается при каждой записи.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore создаёт хранилище сессий поверх клиента Redis.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(userID int64) string {
	return sessionKeyPrefix + strconv.FormatInt(userID, 10)
}

// Load читает сессию; отсутствие ключа означает пустую сессию.
func (r *RedisStore) Load(ctx context.Context, userID int64) (Session, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

// Save записывает сессию.
func (r *RedisStore) Save(ctx context.Context, userID int64, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := r.rdb.Set(ctx, sessionKey(userID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Delete удаляет сессию.
func (r *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := r.rdb.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
