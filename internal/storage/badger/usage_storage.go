package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// UsageStorage implements the monthly usage counter on Badger. Increments
// are serialized by a mutex; rows are created lazily on first increment.
type UsageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewUsageStorage creates a new usage storage service
func NewUsageStorage(db *BadgerDB, logger arbor.ILogger) *UsageStorage {
	return &UsageStorage{db: db, logger: logger}
}

// GetCount returns the subject's count for the month, zero when absent.
func (s *UsageStorage) GetCount(ctx context.Context, subject, monthKey string) (int, error) {
	var usage models.MonthlyUsage
	err := s.db.Store().Get(models.UsageKey(subject, monthKey), &usage)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get usage for %s/%s: %w", subject, monthKey, err)
	}
	return usage.DiscoveryCount, nil
}

// Increment bumps the counter and returns the new count.
func (s *UsageStorage) Increment(ctx context.Context, subject, monthKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.UsageKey(subject, monthKey)

	var usage models.MonthlyUsage
	err := s.db.Store().Get(key, &usage)
	if err != nil {
		if err != badgerhold.ErrNotFound {
			return 0, fmt.Errorf("failed to read usage for %s/%s: %w", subject, monthKey, err)
		}
		usage = models.MonthlyUsage{
			Subject:  subject,
			MonthKey: monthKey,
		}
	}

	usage.DiscoveryCount++
	usage.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert(key, &usage); err != nil {
		return 0, fmt.Errorf("failed to increment usage for %s/%s: %w", subject, monthKey, err)
	}
	return usage.DiscoveryCount, nil
}

var _ interfaces.UsageStorage = (*UsageStorage)(nil)
