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

// BatchStorage implements batch-scan persistence on Badger. Counter
// updates are serialized by a mutex so concurrent child completions never
// lose increments.
type BatchStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewBatchStorage creates a new batch storage service
func NewBatchStorage(db *BadgerDB, logger arbor.ILogger) *BatchStorage {
	return &BatchStorage{db: db, logger: logger}
}

// SaveBatch inserts or updates a batch row.
func (s *BatchStorage) SaveBatch(ctx context.Context, batch *models.BatchScan) error {
	if err := s.db.Store().Upsert(batch.ID, batch); err != nil {
		return fmt.Errorf("failed to save batch %s: %w", batch.ID, err)
	}
	return nil
}

// GetBatch loads a batch by id.
func (s *BatchStorage) GetBatch(ctx context.Context, id string) (*models.BatchScan, error) {
	var batch models.BatchScan
	if err := s.db.Store().Get(id, &batch); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get batch %s: %w", id, err)
	}
	return &batch, nil
}

// DeleteBatch removes a batch row.
func (s *BatchStorage) DeleteBatch(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.BatchScan{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete batch %s: %w", id, err)
	}
	return nil
}

// ListBatchesByStatus returns all batches in a given status.
func (s *BatchStorage) ListBatchesByStatus(ctx context.Context, status models.BatchStatus) ([]*models.BatchScan, error) {
	var batches []models.BatchScan
	if err := s.db.Store().Find(&batches, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, fmt.Errorf("failed to list batches by status %s: %w", status, err)
	}
	out := make([]*models.BatchScan, len(batches))
	for i := range batches {
		out[i] = &batches[i]
	}
	return out, nil
}

// IncrementCounters applies child terminal-state deltas atomically and
// refreshes the progress timestamp.
func (s *BatchStorage) IncrementCounters(ctx context.Context, batchID string, completedDelta, failedDelta int) (*models.BatchScan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	batch.CompletedCount += completedDelta
	batch.FailedCount += failedDelta
	now := time.Now().UTC()
	batch.LastProgressAt = &now

	if err := s.db.Store().Upsert(batch.ID, batch); err != nil {
		return nil, fmt.Errorf("failed to update counters for batch %s: %w", batchID, err)
	}
	return batch, nil
}

var _ interfaces.BatchStorage = (*BatchStorage)(nil)
