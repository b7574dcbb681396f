package usage

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// Service enforces the monthly discovery quota per subject. The counter
// resets on the first day of the next calendar month because the month key
// is part of the storage key.
type Service struct {
	storage interfaces.UsageStorage
	logger  arbor.ILogger
	limit   int
}

// NewService creates a usage service with the given monthly limit.
func NewService(storage interfaces.UsageStorage, logger arbor.ILogger, limit int) *Service {
	if limit <= 0 {
		limit = 3
	}
	return &Service{
		storage: storage,
		logger:  logger,
		limit:   limit,
	}
}

// CheckQuota returns USAGE_LIMIT_EXCEEDED when the subject has reached the
// monthly limit. It never mutates the counter.
func (s *Service) CheckQuota(ctx context.Context, subject string) error {
	monthKey := models.MonthKeyFor(time.Now().UTC())
	count, err := s.storage.GetCount(ctx, subject, monthKey)
	if err != nil {
		return err
	}
	if count >= s.limit {
		s.logger.Warn().
			Str("subject", subject).
			Str("month", monthKey).
			Int("count", count).
			Int("limit", s.limit).
			Msg("Monthly usage limit reached")
		return models.NewAppError(models.ErrCodeUsageLimitExceeded, "monthly usage limit reached").
			WithDetail("limit", s.limit).
			WithDetail("count", count)
	}
	return nil
}

// RecordUse increments the subject's counter for the current month. Called
// after the admitted row is created, never before.
func (s *Service) RecordUse(ctx context.Context, subject string) (int, error) {
	monthKey := models.MonthKeyFor(time.Now().UTC())
	count, err := s.storage.Increment(ctx, subject, monthKey)
	if err != nil {
		return 0, err
	}
	s.logger.Debug().
		Str("subject", subject).
		Str("month", monthKey).
		Int("count", count).
		Msg("Usage recorded")
	return count, nil
}

// Remaining reports how many uses the subject has left this month.
func (s *Service) Remaining(ctx context.Context, subject string) (int, error) {
	monthKey := models.MonthKeyFor(time.Now().UTC())
	count, err := s.storage.GetCount(ctx, subject, monthKey)
	if err != nil {
		return 0, err
	}
	remaining := s.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
