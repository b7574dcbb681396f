package resultcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/common"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
	badgerstore "github.com/tcthien/ada-wacg-compliance-sub004/internal/storage/badger"
)

func newTestService(t *testing.T) (*Service, interfaces.ResultCacheStorage) {
	t.Helper()
	logger := arbor.NewLogger()
	manager, err := badgerstore.NewManager(logger, &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return NewService(manager.ResultCacheStorage(), logger, time.Hour), manager.ResultCacheStorage()
}

func snapshotFor(id string) *models.DiscoverySnapshot {
	return &models.DiscoverySnapshot{
		Discovery: &models.Discovery{
			ID:          id,
			HomepageURL: "https://example.com",
			Status:      models.DiscoveryStatusCompleted,
		},
		Pages: []*models.DiscoveredPage{
			{ID: "pag_1", DiscoveryID: id, URL: "https://example.com"},
		},
	}
}

func TestPublishAndGet(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	service.PublishSnapshot(ctx, snapshotFor("dsc_1"))

	got, err := service.GetSnapshot(ctx, "dsc_1")
	require.NoError(t, err)
	assert.Equal(t, "dsc_1", got.Discovery.ID)
	assert.Len(t, got.Pages, 1)
	assert.False(t, got.CachedAt.IsZero())
}

func TestGetMiss(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.GetSnapshot(context.Background(), "dsc_absent")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}

func TestInvalidate(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	service.PublishSnapshot(ctx, snapshotFor("dsc_2"))
	service.Invalidate(ctx, "dsc_2")

	_, err := service.GetSnapshot(ctx, "dsc_2")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}

func TestCorruptEntryEvicted(t *testing.T) {
	service, raw := newTestService(t)
	ctx := context.Background()

	// Valid JSON whose discovery id does not match the key fails the
	// integrity check and must be treated as a miss.
	key := "discovery:dsc_3:result"
	wrong := `{"discovery":{"id":"dsc_other"},"pages":[],"cached_at":"2026-01-01T00:00:00Z"}`
	require.NoError(t, raw.Set(ctx, key, []byte(wrong), time.Hour))

	_, err := service.GetSnapshot(ctx, "dsc_3")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)

	// The bad entry was evicted, not left to fail again.
	_, err = raw.Get(ctx, key)
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}

func TestUnparseableEntryEvicted(t *testing.T) {
	service, raw := newTestService(t)
	ctx := context.Background()

	key := "discovery:dsc_4:result"
	require.NoError(t, raw.Set(ctx, key, []byte("{not json"), time.Hour))

	_, err := service.GetSnapshot(ctx, "dsc_4")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}
