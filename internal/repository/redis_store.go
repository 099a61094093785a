package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"storyhub/pkg/models"
)

const redisUpdateRetries = 5

// RedisStore keeps documents as plain string keys. Conditional writes use WATCH/MULTI.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(name models.DocumentName) string {
	return s.prefix + string(name)
}

func (s *RedisStore) Get(ctx context.Context, name models.DocumentName) (*Document, error) {
	content, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", name, models.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from redis: %w", name, err)
	}
	return &Document{Name: name, Content: content, Revision: Revision(content)}, nil
}

func (s *RedisStore) Put(ctx context.Context, name models.DocumentName, content []byte, expectedRevision string) (string, error) {
	key := s.key(name)

	if expectedRevision == "" {
		if err := s.client.Set(ctx, key, content, 0).Err(); err != nil {
			return "", fmt.Errorf("failed to write %s to redis: %w", name, err)
		}
		return Revision(content), nil
	}

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return models.ErrRevisionConflict
		}
		if err != nil {
			return err
		}
		if Revision(current) != expectedRevision {
			return models.ErrRevisionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, content, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return Revision(content), nil
	case errors.Is(err, models.ErrRevisionConflict), errors.Is(err, redis.TxFailedErr):
		return "", fmt.Errorf("%s: %w", name, models.ErrRevisionConflict)
	default:
		return "", fmt.Errorf("failed to write %s to redis: %w", name, err)
	}
}

func (s *RedisStore) Update(ctx context.Context, name models.DocumentName, fn UpdateFunc) (string, error) {
	key := s.key(name)
	var revision string

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			current, exists = nil, false
		} else if err != nil {
			return err
		}

		next, err := fn(current, exists)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err == nil {
			revision = Revision(next)
		}
		return err
	}

	for i := 0; i < redisUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return revision, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return "", fmt.Errorf("failed to update %s in redis: %w", name, err)
	}
	return "", fmt.Errorf("%s: %w", name, models.ErrRevisionConflict)
}
