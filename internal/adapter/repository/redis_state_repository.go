package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"seedbazaar/internal/domain/repository"
	"seedbazaar/pkg/errors"
)

const redisKeyPrefix = "seedbazaar:state:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	DeviceID string
}

type redisStateRepository struct {
	client   *redis.Client
	deviceID string
	timeout  time.Duration
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func NewRedisStateRepository(client *redis.Client, deviceID string) repository.StateRepository {
	return &redisStateRepository{
		client:   client,
		deviceID: deviceID,
		timeout:  2 * time.Second,
	}
}

func redisStateKey(deviceID, key string) string {
	return redisKeyPrefix + deviceID + ":" + key
}

func (r *redisStateRepository) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	v, err := r.client.Get(ctx, redisStateKey(r.deviceID, key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Internal("Failed to get state", err)
	}
	return v, true, nil
}

func (r *redisStateRepository) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, redisStateKey(r.deviceID, key), value, 0).Err(); err != nil {
		return errors.Internal("Failed to save state", err)
	}
	return nil
}

func (r *redisStateRepository) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Del(ctx, redisStateKey(r.deviceID, key)).Err(); err != nil {
		return errors.Internal("Failed to delete state", err)
	}
	return nil
}

// Reset deletes every key of the device. SCAN is used instead of KEYS so a
// shared instance is not blocked.
func (r *redisStateRepository) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*r.timeout)
	defer cancel()

	iter := r.client.Scan(ctx, 0, redisStateKey(r.deviceID, "*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Internal("Failed to list state", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Internal("Failed to delete state", err)
	}
	return nil
}
