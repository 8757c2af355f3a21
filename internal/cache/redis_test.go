package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitlement-engine/go-core/internal/lifecycle"
	"github.com/entitlement-engine/go-core/pkg/types"
)

func testCache(t *testing.T) (*RecordCache, *miniredis.Miniredis, lifecycle.Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	inner := lifecycle.NewMemoryStore()
	cfg := DefaultConfig()
	cfg.TTL = time.Minute

	cache, err := NewWithClient(client, cfg, inner, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return cache, mr, inner
}

func sampleRecord() *types.AccessRecord {
	return &types.AccessRecord{
		ID:          "rec-1",
		AccountID:   "user-1",
		DomainID:    "acme",
		VersionID:   "v1",
		ActivatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecordCache_ReadThrough(t *testing.T) {
	cache, mr, inner := testCache(t)
	ctx := context.Background()

	require.NoError(t, inner.Create(ctx, sampleRecord()))

	// First load misses the cache and populates it
	record, err := cache.LoadCurrent(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", record.ID)
	assert.True(t, mr.Exists("entitlement:record:user-1"))

	// Second load is served from the cache even if the inner store changes
	require.NoError(t, inner.Create(ctx, &types.AccessRecord{ID: "rec-2", AccountID: "user-1", DomainID: "acme", VersionID: "v2"}))
	record, err = cache.LoadCurrent(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", record.ID)
}

func TestRecordCache_MissPropagatesNotFound(t *testing.T) {
	cache, _, _ := testCache(t)

	_, err := cache.LoadCurrent(context.Background(), "ghost")
	assert.ErrorIs(t, err, lifecycle.ErrRecordNotFound)
}

func TestRecordCache_CreateInvalidates(t *testing.T) {
	cache, mr, _ := testCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Create(ctx, sampleRecord()))
	_, err := cache.LoadCurrent(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, mr.Exists("entitlement:record:user-1"))

	// A superseding create drops the cached entry
	newer := sampleRecord()
	newer.ID = "rec-2"
	newer.VersionID = "v2"
	require.NoError(t, cache.Create(ctx, newer))
	assert.False(t, mr.Exists("entitlement:record:user-1"))

	record, err := cache.LoadCurrent(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-2", record.ID)
}

func TestRecordCache_UpdateInvalidates(t *testing.T) {
	cache, mr, _ := testCache(t)
	ctx := context.Background()

	record := sampleRecord()
	require.NoError(t, cache.Create(ctx, record))
	_, err := cache.LoadCurrent(ctx, "user-1")
	require.NoError(t, err)

	record.DomainID = "globex"
	require.NoError(t, cache.Update(ctx, record))
	assert.False(t, mr.Exists("entitlement:record:user-1"))

	got, err := cache.LoadCurrent(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "globex", got.DomainID)
}

func TestRecordCache_CorruptEntryFallsThrough(t *testing.T) {
	cache, mr, inner := testCache(t)
	ctx := context.Background()

	require.NoError(t, inner.Create(ctx, sampleRecord()))
	require.NoError(t, mr.Set("entitlement:record:user-1", "{not json"))

	record, err := cache.LoadCurrent(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", record.ID)
}

func TestRecordCache_RedisFailureDegradesToInner(t *testing.T) {
	client, mock := redismock.NewClientMock()

	inner := lifecycle.NewMemoryStore()
	require.NoError(t, inner.Create(context.Background(), sampleRecord()))

	cache, err := NewWithClient(client, DefaultConfig(), inner, nil)
	require.NoError(t, err)

	key := "entitlement:record:user-1"
	mock.ExpectGet(key).SetErr(assert.AnError)
	data, _ := json.Marshal(sampleRecord())
	mock.ExpectSet(key, data, 5*time.Minute).SetVal("OK")

	record, err := cache.LoadCurrent(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", record.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
