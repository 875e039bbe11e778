package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-gate-api/internal/models"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
)

func newMiniredisCache(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client), mr
}

func TestCacheRepositoryRoundTripAndExpiry(t *testing.T) {
	repo, mr := newMiniredisCache(t)
	ctx := context.Background()

	p := models.Principal{ID: "u1", Role: models.RoleLecturer}
	require.NoError(t, repo.Set(ctx, "identity:principal:u1", p, time.Minute))

	var got models.Principal
	require.NoError(t, repo.Get(ctx, "identity:principal:u1", &got))
	assert.Equal(t, p, got)

	mr.FastForward(2 * time.Minute)
	err := repo.Get(ctx, "identity:principal:u1", &got)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, mr := newMiniredisCache(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "analytics:course:c1", 1, time.Minute))
	require.NoError(t, repo.Set(ctx, "analytics:course:c2", 2, time.Minute))
	require.NoError(t, repo.Set(ctx, "identity:principal:u1", 3, time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "analytics:*"))
	assert.False(t, mr.Exists("analytics:course:c1"))
	assert.False(t, mr.Exists("analytics:course:c2"))
	assert.True(t, mr.Exists("identity:principal:u1"))
}

func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil)
	var dest int
	assert.True(t, errors.Is(repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(context.Background(), "k", 1, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
}
