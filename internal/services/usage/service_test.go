package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/common"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
	badgerstore "github.com/tcthien/ada-wacg-compliance-sub004/internal/storage/badger"
)

func newTestService(t *testing.T, limit int) *Service {
	t.Helper()
	logger := arbor.NewLogger()
	manager, err := badgerstore.NewManager(logger, &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return NewService(manager.UsageStorage(), logger, limit)
}

func TestQuotaLifecycle(t *testing.T) {
	service := newTestService(t, 3)
	ctx := context.Background()

	remaining, err := service.Remaining(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	for i := 1; i <= 3; i++ {
		require.NoError(t, service.CheckQuota(ctx, "sess-1"))
		count, err := service.RecordUse(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	err = service.CheckQuota(ctx, "sess-1")
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeUsageLimitExceeded, models.CodeOf(err))

	remaining, err = service.Remaining(ctx, "sess-1")
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestQuotaIsPerSubject(t *testing.T) {
	service := newTestService(t, 1)
	ctx := context.Background()

	_, err := service.RecordUse(ctx, "sess-a")
	require.NoError(t, err)
	require.Error(t, service.CheckQuota(ctx, "sess-a"))

	assert.NoError(t, service.CheckQuota(ctx, "sess-b"))
}

func TestCheckQuotaNeverMutates(t *testing.T) {
	service := newTestService(t, 3)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, service.CheckQuota(ctx, "sess-ro"))
	}
	remaining, err := service.Remaining(ctx, "sess-ro")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestMonthKeyBoundary(t *testing.T) {
	assert.Equal(t, "2026-08", models.MonthKeyFor(time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, "2026-09", models.MonthKeyFor(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)))
}
