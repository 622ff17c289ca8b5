package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/config"
	"job-match-go/internal/constants"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &Redis{
		Client: client,
		config: &config.RedisConfig{MatchCacheTTLMinutes: 5},
	}
}

func TestMatchResponseCacheRoundTrip(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	_, err := r.GetCachedMatchResponse(ctx, "resume-1", 10)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, r.CacheMatchResponse(ctx, "resume-1", 10, `{"matches":[]}`))

	payload, err := r.GetCachedMatchResponse(ctx, "resume-1", 10)
	require.NoError(t, err)
	assert.Equal(t, `{"matches":[]}`, payload)

	// A different limit is a different cache entry.
	_, err = r.GetCachedMatchResponse(ctx, "resume-1", 20)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestInvalidateMatchResponsesSingleResume(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.CacheMatchResponse(ctx, "resume-1", 10, "a"))
	require.NoError(t, r.CacheMatchResponse(ctx, "resume-1", 20, "b"))
	require.NoError(t, r.CacheMatchResponse(ctx, "resume-2", 10, "c"))

	require.NoError(t, r.InvalidateMatchResponses(ctx, "resume-1"))

	_, err := r.GetCachedMatchResponse(ctx, "resume-1", 10)
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = r.GetCachedMatchResponse(ctx, "resume-1", 20)
	assert.ErrorIs(t, err, ErrCacheMiss)

	// The other résumé keeps its entry.
	payload, err := r.GetCachedMatchResponse(ctx, "resume-2", 10)
	require.NoError(t, err)
	assert.Equal(t, "c", payload)
}

func TestInvalidateAllMatchResponses(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.CacheMatchResponse(ctx, "resume-1", 10, "a"))
	require.NoError(t, r.CacheMatchResponse(ctx, "resume-2", 50, "b"))
	require.NoError(t, r.Set(ctx, constants.KeyCorpusStats, `{"total_jobs":3}`, time.Minute))

	require.NoError(t, r.InvalidateAllMatchResponses(ctx))

	_, err := r.GetCachedMatchResponse(ctx, "resume-1", 10)
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = r.GetCachedMatchResponse(ctx, "resume-2", 50)
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Only the match-response family is dropped.
	stats, err := r.Get(ctx, constants.KeyCorpusStats)
	require.NoError(t, err)
	assert.Equal(t, `{"total_jobs":3}`, stats)
}

func TestInvalidateAllMatchResponsesEmpty(t *testing.T) {
	r := newTestRedis(t)
	require.NoError(t, r.InvalidateAllMatchResponses(context.Background()))
}

func TestMatchLockLifecycle(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	token, err := r.AcquireMatchLock(ctx, "resume-1", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Contended acquisition returns an empty token.
	second, err := r.AcquireMatchLock(ctx, "resume-1", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, second)

	// A stranger's token cannot release the lock.
	released, err := r.ReleaseMatchLock(ctx, "resume-1", "not-the-token")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = r.ReleaseMatchLock(ctx, "resume-1", token)
	require.NoError(t, err)
	assert.True(t, released)

	token, err = r.AcquireMatchLock(ctx, "resume-1", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}
