package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// CheckpointStorage persists AI analysis checkpoints. Badger syncs writes
// to the value log, so a saved checkpoint survives a process crash.
type CheckpointStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCheckpointStorage creates a new checkpoint storage service
func NewCheckpointStorage(db *BadgerDB, logger arbor.ILogger) *CheckpointStorage {
	return &CheckpointStorage{db: db, logger: logger}
}

// SaveCheckpoint inserts or updates a checkpoint keyed by scan id.
func (s *CheckpointStorage) SaveCheckpoint(ctx context.Context, cp *models.AICheckpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	if err := s.db.Store().Upsert(cp.ScanID, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint for scan %s: %w", cp.ScanID, err)
	}
	return nil
}

// GetCheckpoint loads the checkpoint for a scan.
func (s *CheckpointStorage) GetCheckpoint(ctx context.Context, scanID string) (*models.AICheckpoint, error) {
	var cp models.AICheckpoint
	if err := s.db.Store().Get(scanID, &cp); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to get checkpoint for scan %s: %w", scanID, err)
	}
	return &cp, nil
}

// DeleteCheckpoint removes the checkpoint after analysis completes.
func (s *CheckpointStorage) DeleteCheckpoint(ctx context.Context, scanID string) error {
	if err := s.db.Store().Delete(scanID, &models.AICheckpoint{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete checkpoint for scan %s: %w", scanID, err)
	}
	return nil
}

var _ interfaces.CheckpointStorage = (*CheckpointStorage)(nil)
