package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"
	"time" // Time durations

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging
)

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes keys from Redis
func DeleteCache(ctx context.Context, rdb *redis.Client, keys ...string) error {
	return rdb.Del(ctx, keys...).Err() // Delete keys from Redis
}

// Cache wraps the helpers above with a fixed TTL. Redis is optional: a Cache
// without a client misses every read and ignores writes, and Redis errors are
// logged and treated as a miss so the database stays the source of truth.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log logrus.FieldLogger
}

// NewCache builds a Cache; rdb may be nil
func NewCache(rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

// Enabled reports whether a Redis client is configured
func (c *Cache) Enabled() bool { return c != nil && c.rdb != nil }

// Get loads key into dest and reports a hit
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if !c.Enabled() {
		return false // No Redis configured
	}
	hit, err := GetCache(ctx, c.rdb, key, dest)
	if err != nil {
		c.log.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache read failed")
		return false // Fall back to the database
	}
	return hit
}

// Set stores value under key
func (c *Cache) Set(ctx context.Context, key string, value any) {
	if !c.Enabled() {
		return
	}
	if err := SetCache(ctx, c.rdb, key, value, c.ttl); err != nil {
		c.log.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache write failed")
	}
}

// Delete removes keys
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	if err := DeleteCache(ctx, c.rdb, keys...); err != nil {
		c.log.WithFields(logrus.Fields{"keys": keys, "error": err.Error()}).Warn("Cache delete failed")
	}
}
