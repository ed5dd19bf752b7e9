package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-records-api/internal/dto"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
	getErr  error
	deleted []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.entries[key] = raw
	return nil
}

func (r *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(r.entries, key)
		r.deleted = append(r.deleted, key)
	}
	return nil
}

func TestRememberCachesLoadedValue(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	loads := 0
	load := func() (*dto.GradeSummary, error) {
		loads++
		return &dto.GradeSummary{EnrollmentID: "enr-1", FailedCount: 1}, nil
	}

	first, hit, err := remember(context.Background(), cache, summaryCacheKey("enr-1"), 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, first.FailedCount)

	second, hit, err := remember(context.Background(), cache, summaryCacheKey("enr-1"), 0, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "enr-1", second.EnrollmentID)
	assert.Equal(t, 1, loads)

	cache.InvalidateSummary(context.Background(), "enr-1")
	assert.Equal(t, []string{"grades:summary:enr-1"}, repo.deleted)
	_, hit, err = remember(context.Background(), cache, summaryCacheKey("enr-1"), 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, loads)
}

func TestRememberFallsBackWhenCacheFails(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("redis down")
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	value, hit, err := remember(context.Background(), cache, "k", 0, func() (*dto.GradeSummary, error) {
		return &dto.GradeSummary{EnrollmentID: "enr-2"}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "enr-2", value.EnrollmentID)
}

func TestRememberPropagatesLoadError(t *testing.T) {
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)

	_, _, err := remember(context.Background(), cache, "k", 0, func() (*dto.GradeSummary, error) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDisabledAndNilCache(t *testing.T) {
	repo := newMemoryCacheRepo()
	disabled := NewCacheService(repo, nil, 0, nil, false)
	var nilCache *CacheService

	for _, cache := range []*CacheService{disabled, nilCache} {
		assert.False(t, cache.Enabled())
		require.NoError(t, cache.Set(context.Background(), "k", 1, 0))
		hit, err := cache.Get(context.Background(), "k", new(int))
		require.NoError(t, err)
		assert.False(t, hit)
		cache.InvalidateSummary(context.Background(), "enr-1")
	}
	assert.Empty(t, repo.entries)
}
