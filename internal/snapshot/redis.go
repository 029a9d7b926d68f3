package snapshot

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/logger"
)

const (
	redisPingTimeout = 5 * time.Second
	redisKeyPrefix   = "fencewatch:"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration // zero keeps keys forever
}

// RedisStore keeps snapshots in redis so several instances can share them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redis. A failed ping is logged, not returned, so
// the store can recover once redis becomes reachable.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	log := GetLogger().With(logger.String("address", opts.Address))
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis not reachable", logger.Error(err))
	} else {
		log.Info("connected to redis")
	}

	return &RedisStore{client: client, ttl: opts.TTL}
}

// Put stores data under key with the configured TTL.
func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return errors.New(err).
			Category(errors.CategoryPersistence).
			Context("operation", "redis_set").
			Context("key", key).
			Build()
	}
	return nil
}

// Get returns the blob stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.New(err).
			Category(errors.CategoryPersistence).
			Context("operation", "redis_get").
			Context("key", key).
			Build()
	}
	return data, true, nil
}

// Close releases the redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
