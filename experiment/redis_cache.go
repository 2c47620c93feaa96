package experiment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisAssignmentCache persists per-(userID, experiment) variant
// assignments so that deterministic assignment survives process
// restarts. It is optional: MockBackend computes the same assignment
// deterministically in-memory and only needs the cache to avoid
// recomputing it after a restart when the experiment's arm values
// have since changed.
type RedisAssignmentCache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// RedisAssignmentCacheOptions configures a RedisAssignmentCache.
type RedisAssignmentCacheOptions struct {
	RedisURL  string
	DB        int
	Namespace string
	TTL       time.Duration
}

// NewRedisAssignmentCache dials redis and returns a ready cache.
func NewRedisAssignmentCache(opts RedisAssignmentCacheOptions) (*RedisAssignmentCache, error) {
	if opts.RedisURL == "" {
		return nil, fmt.Errorf("experiment: redis URL is required")
	}
	redisOpts, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("experiment: invalid redis URL: %w", err)
	}
	redisOpts.DB = opts.DB

	client := redis.NewClient(redisOpts)

	namespace := opts.Namespace
	if namespace == "" {
		namespace = "kaizen:experiment:assignment"
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = 30 * 24 * time.Hour
	}

	return &RedisAssignmentCache{client: client, namespace: namespace, ttl: ttl}, nil
}

func (c *RedisAssignmentCache) key(experimentName, userID string) string {
	return fmt.Sprintf("%s:%s:%s", c.namespace, experimentName, userID)
}

// Get returns the cached variant for (experimentName, userID), if any.
func (c *RedisAssignmentCache) Get(ctx context.Context, experimentName, userID string) (Variant, bool, error) {
	raw, err := c.client.Get(ctx, c.key(experimentName, userID)).Result()
	if err == redis.Nil {
		return Variant{}, false, nil
	}
	if err != nil {
		return Variant{}, false, fmt.Errorf("experiment: redis get failed: %w", err)
	}

	parts := strings.SplitN(raw, "|", 2)
	if len(parts) != 2 {
		return Variant{}, false, fmt.Errorf("experiment: malformed cached assignment %q", raw)
	}
	value, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Variant{}, false, fmt.Errorf("experiment: malformed cached assignment value: %w", err)
	}
	return Variant{Name: parts[0], Value: value}, true, nil
}

// Set stores the assignment for (experimentName, userID) with the
// cache's configured TTL.
func (c *RedisAssignmentCache) Set(ctx context.Context, experimentName, userID string, v Variant) error {
	raw := fmt.Sprintf("%s|%s", v.Name, strconv.FormatFloat(v.Value, 'f', -1, 64))
	if err := c.client.Set(ctx, c.key(experimentName, userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("experiment: redis set failed: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (c *RedisAssignmentCache) Close() error {
	return c.client.Close()
}
