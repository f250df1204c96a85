package feed

import (
	"context"
	"errors"
	"strings"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NameStore is a second-level name cache shared between processes.
type NameStore interface {
	// Get returns the stored name for id and whether it was present.
	Get(ctx context.Context, id string) (string, bool, error)
	// PutIfAbsent stores name unless id already has one.
	PutIfAbsent(ctx context.Context, id, name string) error
}

// RedisNameStore keeps names in one Redis hash. HSETNX preserves the
// never-overwrite policy across processes.
type RedisNameStore struct {
	redis *redis.Client
	key   string
}

func NewRedisNameStore(rdb *redis.Client, key string) *RedisNameStore {
	return &RedisNameStore{redis: rdb, key: key}
}

func (s *RedisNameStore) Get(ctx context.Context, id string) (string, bool, error) {
	name, err := s.redis.HGet(ctx, s.key, id).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

func (s *RedisNameStore) PutIfAbsent(ctx context.Context, id, name string) error {
	return s.redis.HSetNX(ctx, s.key, id, name).Err()
}

// CachedLookup consults store before calling lookup and writes successful
// remote lookups back. Store errors fall through to the remote lookup.
func CachedLookup(store NameStore, lookup LookupFunc, log *zap.Logger) LookupFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, id string) (model.UserProfile, error) {
		name, ok, err := store.Get(ctx, id)
		if err != nil {
			log.Warn("name store get failed", zap.String("user_id", id), zap.Error(err))
		}
		if ok {
			return profileFromName(id, name), nil
		}

		u, err := lookup(ctx, id)
		if err != nil {
			return u, err
		}
		if err := store.PutIfAbsent(ctx, id, u.DisplayName()); err != nil {
			log.Warn("name store put failed", zap.String("user_id", id), zap.Error(err))
		}
		return u, nil
	}
}

// profileFromName rebuilds a profile whose DisplayName is name.
func profileFromName(id, name string) model.UserProfile {
	first, last, _ := strings.Cut(name, " ")
	return model.UserProfile{ID: id, FirstName: first, LastName: last}
}
