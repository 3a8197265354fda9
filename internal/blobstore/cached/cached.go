// Package cached wraps a blobstore.Store with a Redis read-through cache
// for label lookups. The label index is read on every command that
// needs the current head, so caching GetByLabel avoids a round trip to
// the backing store for the common case of an unchanged head.
package cached

import (
	"context"
	"time"

	"chatcore/internal/blobstore"
	"chatcore/internal/dag"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	inner blobstore.Store
	redis *redis.Client
	ttl   time.Duration
}

// New wraps inner with a Redis-backed label cache. A nil client disables
// caching and all calls pass straight through, so chat-core runs
// unchanged when REDIS_URL is unset.
func New(inner blobstore.Store, client *redis.Client) *Store {
	return &Store{inner: inner, redis: client, ttl: 5 * time.Minute}
}

func (s *Store) Put(ctx context.Context, body []byte) (dag.Hash, error) {
	return s.inner.Put(ctx, body)
}

func (s *Store) Get(ctx context.Context, id dag.Hash) ([]byte, error) {
	return s.inner.Get(ctx, id)
}

func (s *Store) GetByLabel(ctx context.Context, name string) (dag.Hash, bool, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, labelKey(name)).Result(); err == nil {
			if id, parseErr := dag.ParseHash(cached); parseErr == nil {
				return id, true, nil
			}
		}
	}

	id, ok, err := s.inner.GetByLabel(ctx, name)
	if err != nil || !ok {
		return id, ok, err
	}

	if s.redis != nil {
		_ = s.redis.Set(ctx, labelKey(name), id.String(), s.ttl).Err()
	}
	return id, true, nil
}

func (s *Store) Label(ctx context.Context, name string, id dag.Hash) error {
	if err := s.inner.Label(ctx, name, id); err != nil {
		return err
	}
	s.invalidate(ctx, name)
	return nil
}

func (s *Store) ReplaceAtLabel(ctx context.Context, name string, id dag.Hash) error {
	if err := s.inner.ReplaceAtLabel(ctx, name, id); err != nil {
		return err
	}
	s.invalidate(ctx, name)
	return nil
}

func (s *Store) invalidate(ctx context.Context, name string) {
	if s.redis == nil {
		return
	}
	_ = s.redis.Del(ctx, labelKey(name)).Err()
}

func labelKey(name string) string {
	return "label:" + name
}
