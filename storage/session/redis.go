// Package sessionstore keeps auth sessions in Redis, or in memory when no Redis is configured.
package sessionstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/session"
)

const keyPrefix = "revlab:session:"

type RedisStore struct {
	client *redis.Client
}

var _ session.Store = (*RedisStore)(nil) // interface compliance check

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func (s *RedisStore) Save(ctx context.Context, sess session.Session) error {
	ttl := sess.TTL()
	if ttl <= 0 {
		return s.Delete(ctx, sess.ID)
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	return errors.Wrap(s.client.Set(ctx, key(sess.ID), b, ttl).Err(), "saving session")
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (session.Session, error) {
	b, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "loading session")
	}

	var sess session.Session
	if err = json.Unmarshal(b, &sess); err != nil {
		return session.Session{}, errors.Wrap(err, "decoding session")
	}
	if sess.Expired() {
		return session.Session{}, session.ErrNotFound
	}
	return sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	return errors.Wrap(s.client.Del(ctx, key(id)).Err(), "deleting session")
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
