package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/repository"
)

func newRedisCacheService(t *testing.T) (*CacheService, *miniredis.Miniredis, *MetricsService) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	metrics := NewMetricsService()
	return NewCacheService(repository.NewCacheRepository(client), metrics, time.Minute, nil, true), mr, metrics
}

func TestCacheServiceHitMissAndInvalidate(t *testing.T) {
	cache, mr, _ := newRedisCacheService(t)
	ctx := context.Background()

	var summary models.CourseSummary
	hit, err := cache.Get(ctx, "analytics:course_summary:c1", &summary)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "analytics:course_summary:c1", models.CourseSummary{CourseID: "c1", Assignments: 2}, 0))
	ttl := mr.TTL("analytics:course_summary:c1")
	assert.Equal(t, time.Minute, ttl)

	hit, err = cache.Get(ctx, "analytics:course_summary:c1", &summary)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, summary.Assignments)

	require.NoError(t, cache.Invalidate(ctx, "analytics:course_summary:*"))
	hit, err = cache.Get(ctx, "analytics:course_summary:c1", &summary)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceDisabled(t *testing.T) {
	cache := NewCacheService(repository.NewCacheRepository(nil), nil, 0, nil, false)
	assert.False(t, cache.Enabled())

	var dest string
	hit, err := cache.Get(context.Background(), "k", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, cache.Set(context.Background(), "k", "v", 0))
}
