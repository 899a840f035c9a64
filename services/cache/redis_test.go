package cachesvc

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/workflow"
)

func setup(t *testing.T) (*RedisStatsCache, *mr.Miniredis) {
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	return NewRedisStatsCache(client, core.NewTestConfig()), m
}

func TestRedisStatsCache_SetGetInvalidate(t *testing.T) {
	cache, m := setup(t)
	ctx := context.Background()

	version, err := cache.StatsVersion(ctx, workflow.VariantExam)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	_, ok, err := cache.GetStats(ctx, workflow.VariantExam, version)
	require.NoError(t, err)
	assert.False(t, ok)

	st := workflow.Stats{
		Variant: workflow.VariantExam,
		Total:   3,
		Counts:  map[workflow.Status]int{workflow.StatusDraft: 1, workflow.StatusSubmitted: 2},
	}
	require.NoError(t, cache.SetStats(ctx, st, version))
	require.NoError(t, cache.SetStats(ctx, workflow.Stats{Total: 9}, 0))
	assert.True(t, m.Exists("approvals:stats:exam:0"))
	assert.True(t, m.Exists("approvals:stats:all:0"))

	got, ok, err := cache.GetStats(ctx, workflow.VariantExam, version)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, st, got)

	require.NoError(t, cache.InvalidateStats(ctx, workflow.VariantExam))
	for _, v := range []workflow.Variant{workflow.VariantExam, ""} {
		version, err = cache.StatsVersion(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, int64(1), version, "version of %q", v)
		_, ok, err = cache.GetStats(ctx, v, version)
		require.NoError(t, err)
		assert.False(t, ok, "stats of %q", v)
	}

	other, err := cache.StatsVersion(ctx, workflow.VariantCurriculum)
	require.NoError(t, err)
	assert.Equal(t, int64(0), other, "other variants keep their entries")
}

func TestRedisStatsCache_writeAfterInvalidation(t *testing.T) {
	cache, _ := setup(t)
	ctx := context.Background()

	// counts computed under version 0, then a transition invalidates before they are written
	version, err := cache.StatsVersion(ctx, workflow.VariantLessonPlan)
	require.NoError(t, err)
	stale := workflow.Stats{Variant: workflow.VariantLessonPlan, Total: 1, Counts: map[workflow.Status]int{workflow.StatusDraft: 1}}
	require.NoError(t, cache.InvalidateStats(ctx, workflow.VariantLessonPlan))
	require.NoError(t, cache.SetStats(ctx, stale, version))

	current, err := cache.StatsVersion(ctx, workflow.VariantLessonPlan)
	require.NoError(t, err)
	_, ok, err := cache.GetStats(ctx, workflow.VariantLessonPlan, current)
	require.NoError(t, err)
	assert.False(t, ok, "stale counts are not served")
}

func TestRedisStatsCache_TTLExpiry(t *testing.T) {
	cache, m := setup(t)
	ctx := context.Background()

	require.NoError(t, cache.SetStats(ctx, workflow.Stats{Variant: workflow.VariantCurriculum, Total: 1}, 0))
	assert.Equal(t, time.Minute, m.TTL("approvals:stats:curriculum:0"))

	// advance miniredis clock past TTL
	m.FastForward(2 * time.Minute)

	_, ok, err := cache.GetStats(ctx, workflow.VariantCurriculum, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStatsCache_errors(t *testing.T) {
	cache, m := setup(t)
	ctx := context.Background()

	require.NoError(t, m.Set("approvals:stats:lesson_plan:0", "not json"))
	_, ok, err := cache.GetStats(ctx, workflow.VariantLessonPlan, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set("approvals:stats:version:exam", "lol"))
	_, err = cache.StatsVersion(ctx, workflow.VariantExam)
	assert.Error(t, err)

	m.Close()
	_, _, err = cache.GetStats(ctx, workflow.VariantLessonPlan, 0)
	assert.Error(t, err)
	assert.Error(t, cache.Ping(ctx))
}
