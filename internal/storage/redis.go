package storage

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"job-match-go/internal/config"
	"job-match-go/internal/constants"
	"job-match-go/internal/tracing"
)

// ErrCacheMiss is returned when a key is not found in Redis.
// It aliases redis.Nil so callers don't import the driver.
var ErrCacheMiss = redis.Nil

var redisTracer = otel.Tracer("job-match-go/storage/redis")

// Per-prefix sampling rates for hand-made spans. redisotel already traces
// every command, so the explicit spans are sampled down to the interesting
// key families.
var redisKeySamplingRates = map[string]float64{
	constants.AppPrefix + ":" + constants.MatchModulePrefix + ":": 0.25,
	constants.AppPrefix + ":" + constants.JobModulePrefix + ":":   0.05,
}

var (
	rnd      *rand.Rand
	rndMutex sync.Mutex
)

func init() {
	source := rand.NewSource(time.Now().UnixNano())
	rnd = rand.New(source)
}

func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}
	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return randFloat() < rate
		}
	}
	return randFloat() < 0.05
}

func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// Redis wraps the go-redis client for match-response caching and locking.
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a Redis client connection with OpenTelemetry hooks.
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries: cfg.MaxRetries,
	}

	client := redis.NewClient(opt)

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection.
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// MatchCacheTTL returns the configured lifetime of a cached match response.
func (r *Redis) MatchCacheTTL() time.Duration {
	minutes := r.config.MatchCacheTTLMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}

// CacheMatchResponse stores the serialized match response for one
// (résumé, limit) pair.
func (r *Redis) CacheMatchResponse(ctx context.Context, resumeID string, limit int, payload string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyMatchResult, resumeID, limit)
	return r.Set(ctx, key, payload, r.MatchCacheTTL())
}

// GetCachedMatchResponse returns the serialized match response, or
// ErrCacheMiss when none is cached.
func (r *Redis) GetCachedMatchResponse(ctx context.Context, resumeID string, limit int) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyMatchResult, resumeID, limit)
	return r.Get(ctx, key)
}

// InvalidateMatchResponses drops every cached response for one résumé, for
// example when the résumé itself is deleted.
func (r *Redis) InvalidateMatchResponses(ctx context.Context, resumeID string) error {
	pattern := fmt.Sprintf(constants.KeyMatchResult, resumeID, 0)
	pattern = strings.TrimSuffix(pattern, ":0") + ":*"
	return r.deleteByPattern(ctx, pattern)
}

// InvalidateAllMatchResponses drops every cached match response. Called when
// the job corpus changes, since a new or re-embedded job can alter any
// résumé's ranking.
func (r *Redis) InvalidateAllMatchResponses(ctx context.Context) error {
	pattern := fmt.Sprintf(constants.KeyMatchResult, "*", 0)
	pattern = strings.TrimSuffix(pattern, ":0") + ":*"
	return r.deleteByPattern(ctx, pattern)
}

func (r *Redis) deleteByPattern(ctx context.Context, pattern string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	iter := r.Client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cached match responses: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.Client.Del(ctx, keys...).Err()
}

// Get reads one key. Spans are sampled per key prefix to avoid duplicating
// the redisotel hook output.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}

	var span trace.Span

	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Get", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "GET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
		)
	}

	val, err := r.Client.Get(ctx, key).Result()

	if span != nil {
		if err != nil {
			if err == redis.Nil {
				span.SetStatus(codes.Ok, "key not found")
				span.SetAttributes(attribute.Bool("db.redis.key_exists", false))
			} else {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return "", err
		}

		span.SetAttributes(
			attribute.Bool("db.redis.key_exists", true),
			attribute.Int("db.redis.value_length", len(val)),
		)
		span.SetStatus(codes.Ok, "")
	}

	return val, err
}

// Set writes one key with an expiration.
func (r *Redis) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}

	var span trace.Span

	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Set", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "SET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
			attribute.Int("db.redis.value_length", len(value)),
		)

		if expiration > 0 {
			span.SetAttributes(attribute.Int64("db.redis.expiration_ms", expiration.Milliseconds()))
		}
	}

	err := r.Client.Set(ctx, key, value, expiration).Err()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// AcquireMatchLock tries to take the per-résumé lock so concurrent requests
// don't run the pipeline twice for the same candidate. The returned value is
// the holder token, empty when the lock was not acquired.
func (r *Redis) AcquireMatchLock(ctx context.Context, resumeID string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	lockKey := fmt.Sprintf(constants.KeyMatchLock, resumeID)
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	return "", nil
}

// ReleaseMatchLock releases the per-résumé lock. A Lua script keeps the
// check-and-delete atomic so one holder cannot release another's lock.
func (r *Redis) ReleaseMatchLock(ctx context.Context, resumeID string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	lockKey := fmt.Sprintf(constants.KeyMatchLock, resumeID)
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}

	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}

	return false, nil
}
