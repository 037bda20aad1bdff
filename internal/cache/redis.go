package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"log-onboarding-engine/internal/config"
	"log-onboarding-engine/internal/parser"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

const extractionKeyPrefix = "onboard:extraction:"

type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a new Redis client
func New(cfg *config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisClient{client: rdb, ttl: cfg.TTL}, nil
}

// Set stores a value in Redis with expiration
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value")
	}

	return r.client.Set(ctx, key, data, expiration).Err()
}

// Get retrieves a value from Redis
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return errors.Wrap(err, "failed to get value")
	}

	return json.Unmarshal(data, dest)
}

// Delete removes a key from Redis
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// GetExtraction returns a cached extraction for the sample and platform fields
func (r *RedisClient) GetExtraction(ctx context.Context, sample string, existing []string) (*parser.Extraction, error) {
	var ext parser.Extraction
	if err := r.Get(ctx, ExtractionKey(sample, existing), &ext); err != nil {
		return nil, err
	}
	return &ext, nil
}

// PutExtraction caches an extraction under the configured TTL
func (r *RedisClient) PutExtraction(ctx context.Context, sample string, existing []string, ext *parser.Extraction) error {
	return r.Set(ctx, ExtractionKey(sample, existing), ext, r.ttl)
}

// Health pings the server
func (r *RedisClient) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// ExtractionKey derives the cache key of an extraction. Extraction depends on the
// sample and on which field names the platform already covers, in any order.
func ExtractionKey(sample string, existing []string) string {
	names := append([]string(nil), existing...)
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(sample))
	for _, name := range names {
		h.Write([]byte{0})
		h.Write([]byte(name))
	}
	return extractionKeyPrefix + hex.EncodeToString(h.Sum(nil))
}
