package pseudonym

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisConfig contains shared-registry configuration.
type RedisConfig struct {
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// RedisRegistry is a Registry backed by Redis, for pseudonym consistency
// across processes or batch workers. Keys store only a hash of the
// normalized value, never the matched text itself. On any Redis failure the
// registry degrades to an embedded in-memory registry rather than failing
// the redaction call.
type RedisRegistry struct {
	client   *redis.Client
	config   *RedisConfig
	logger   *zap.Logger
	fallback *MemoryRegistry
}

// NewRedisRegistry connects to Redis and verifies the connection.
func NewRedisRegistry(config *RedisConfig, logger *zap.Logger) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	registry := &RedisRegistry{
		client:   client,
		config:   config,
		logger:   logger,
		fallback: NewRegistry(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Shared pseudonym registry initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Duration("default_ttl", config.DefaultTTL))

	return registry, nil
}

// Pseudonym resolves through Redis using reserve-then-claim: a per-type
// counter reserves the next generator index, SET NX claims the key, and a
// losing writer re-reads the winner's value. The sequence keeps "same value,
// same pseudonym" intact under concurrent writers.
func (r *RedisRegistry) Pseudonym(ctx context.Context, entityType, value string) (string, error) {
	key := r.entityKey(entityType, Normalize(value))

	existing, err := r.client.Get(ctx, key).Result()
	if err == nil {
		return existing, nil
	}
	if err != redis.Nil {
		r.logger.Warn("Redis lookup failed, using in-memory registry", zap.Error(err))
		return r.fallback.Pseudonym(ctx, entityType, value)
	}

	seq, err := r.client.Incr(ctx, r.sequenceKey(entityType)).Result()
	if err != nil {
		r.logger.Warn("Redis sequence failed, using in-memory registry", zap.Error(err))
		return r.fallback.Pseudonym(ctx, entityType, value)
	}

	generated := Generate(entityType, int(seq-1))

	claimed, err := r.client.SetNX(ctx, key, generated, r.config.DefaultTTL).Result()
	if err != nil {
		r.logger.Warn("Redis claim failed, using in-memory registry", zap.Error(err))
		return r.fallback.Pseudonym(ctx, entityType, value)
	}
	if !claimed {
		// Another writer claimed the entity between GET and SETNX.
		winner, err := r.client.Get(ctx, key).Result()
		if err != nil {
			r.logger.Warn("Redis re-read failed, using in-memory registry", zap.Error(err))
			return r.fallback.Pseudonym(ctx, entityType, value)
		}
		return winner, nil
	}

	return generated, nil
}

// Clear removes all registry keys under the configured prefix.
func (r *RedisRegistry) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.config.KeyPrefix+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan registry keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete registry keys: %w", err)
	}
	r.logger.Info("Shared registry cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection.
func (r *RedisRegistry) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *RedisRegistry) entityKey(entityType, normalized string) string {
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s:ent:%s:%s", r.config.KeyPrefix, entityType, hex.EncodeToString(hash[:])[:16])
}

func (r *RedisRegistry) sequenceKey(entityType string) string {
	return fmt.Sprintf("%s:seq:%s", r.config.KeyPrefix, entityType)
}

// maskRedisURL masks credentials in a Redis URL for logging.
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
