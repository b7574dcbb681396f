package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// ScanStorage implements scan and scan-result persistence on Badger.
type ScanStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewScanStorage creates a new scan storage service
func NewScanStorage(db *BadgerDB, logger arbor.ILogger) *ScanStorage {
	return &ScanStorage{db: db, logger: logger}
}

// SaveScan inserts or updates a scan row.
func (s *ScanStorage) SaveScan(ctx context.Context, scan *models.Scan) error {
	if err := s.db.Store().Upsert(scan.ID, scan); err != nil {
		return fmt.Errorf("failed to save scan %s: %w", scan.ID, err)
	}
	return nil
}

// GetScan loads a scan by id.
func (s *ScanStorage) GetScan(ctx context.Context, id string) (*models.Scan, error) {
	var scan models.Scan
	if err := s.db.Store().Get(id, &scan); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrScanNotFound
		}
		return nil, fmt.Errorf("failed to get scan %s: %w", id, err)
	}
	return &scan, nil
}

// DeleteScan removes a scan and its result.
func (s *ScanStorage) DeleteScan(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Scan{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete scan %s: %w", id, err)
	}
	if err := s.db.Store().Delete(id, &models.ScanResult{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete result for scan %s: %w", id, err)
	}
	return nil
}

// ListScansByBatch returns all child scans of a batch.
func (s *ScanStorage) ListScansByBatch(ctx context.Context, batchID string) ([]*models.Scan, error) {
	var scans []models.Scan
	if err := s.db.Store().Find(&scans, badgerhold.Where("BatchID").Eq(batchID)); err != nil {
		return nil, fmt.Errorf("failed to list scans for batch %s: %w", batchID, err)
	}
	out := make([]*models.Scan, len(scans))
	for i := range scans {
		out[i] = &scans[i]
	}
	return out, nil
}

// ListScansByStatus returns all scans in a given status.
func (s *ScanStorage) ListScansByStatus(ctx context.Context, status models.ScanStatus) ([]*models.Scan, error) {
	var scans []models.Scan
	if err := s.db.Store().Find(&scans, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, fmt.Errorf("failed to list scans by status %s: %w", status, err)
	}
	out := make([]*models.Scan, len(scans))
	for i := range scans {
		out[i] = &scans[i]
	}
	return out, nil
}

// ListScansPendingAI returns AI-enabled scans whose analysis has not
// settled, oldest first.
func (s *ScanStorage) ListScansPendingAI(ctx context.Context) ([]*models.Scan, error) {
	var scans []models.Scan
	query := badgerhold.Where("AIEnabled").Eq(true).
		And("AIStatus").In(models.AIStatus(""), models.AIStatusPending, models.AIStatusProcessing)
	if err := s.db.Store().Find(&scans, query); err != nil {
		return nil, fmt.Errorf("failed to list scans pending AI analysis: %w", err)
	}
	sort.Slice(scans, func(i, j int) bool { return scans[i].CreatedAt.Before(scans[j].CreatedAt) })
	out := make([]*models.Scan, len(scans))
	for i := range scans {
		out[i] = &scans[i]
	}
	return out, nil
}

// SaveResult stores a scan result keyed by scan id.
func (s *ScanStorage) SaveResult(ctx context.Context, result *models.ScanResult) error {
	if err := s.db.Store().Upsert(result.ScanID, result); err != nil {
		return fmt.Errorf("failed to save result for scan %s: %w", result.ScanID, err)
	}
	return nil
}

// GetResult loads the result for a scan.
func (s *ScanStorage) GetResult(ctx context.Context, scanID string) (*models.ScanResult, error) {
	var result models.ScanResult
	if err := s.db.Store().Get(scanID, &result); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrScanNotFound
		}
		return nil, fmt.Errorf("failed to get result for scan %s: %w", scanID, err)
	}
	return &result, nil
}

var _ interfaces.ScanStorage = (*ScanStorage)(nil)
