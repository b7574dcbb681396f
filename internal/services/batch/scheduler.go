package batch

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/common"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/services/usage"
)

// CreateRequest carries the parameters for a new batch scan.
type CreateRequest struct {
	SessionID   string
	UserID      string
	HomepageURL string
	URLs        []string
	WCAGLevel   models.WCAGLevel
	Email       *string
	AIEnabled   bool
}

// Scheduler admits batches under the monthly quota and fans child scans
// out to the scan-page queue.
type Scheduler struct {
	batches interfaces.BatchStorage
	scans   interfaces.ScanStorage
	usage   *usage.Service
	queue   interfaces.QueueService
	logger  arbor.ILogger
}

// NewScheduler wires the batch scheduler.
func NewScheduler(
	batches interfaces.BatchStorage,
	scans interfaces.ScanStorage,
	usageService *usage.Service,
	queue interfaces.QueueService,
	logger arbor.ILogger,
) *Scheduler {
	return &Scheduler{
		batches: batches,
		scans:   scans,
		usage:   usageService,
		queue:   queue,
		logger:  logger,
	}
}

// CreateBatch admits, persists and starts a batch. The usage counter
// increments after the row is created; quota refusal leaves no trace.
func (s *Scheduler) CreateBatch(ctx context.Context, req CreateRequest) (*models.BatchScan, error) {
	subject := req.SessionID
	if req.UserID != "" {
		subject = req.UserID
	}
	if err := s.usage.CheckQuota(ctx, subject); err != nil {
		return nil, err
	}
	if len(req.URLs) == 0 {
		return nil, models.NewAppError(models.ErrCodeInvalidURL, "batch has no URLs to scan")
	}

	level := req.WCAGLevel
	if level == "" {
		level = models.WCAGLevelAA
	}

	now := time.Now().UTC()
	batch := &models.BatchScan{
		ID:          common.NewBatchID(),
		SessionID:   req.SessionID,
		UserID:      req.UserID,
		HomepageURL: req.HomepageURL,
		WCAGLevel:   level,
		Status:      models.BatchStatusPending,
		TotalURLs:   len(req.URLs),
		Email:       req.Email,
		CreatedAt:   now,
	}
	if err := s.batches.SaveBatch(ctx, batch); err != nil {
		return nil, err
	}

	if _, err := s.usage.RecordUse(ctx, subject); err != nil {
		s.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("Failed to record usage after batch creation")
	}

	if err := s.fanOut(ctx, batch, req.URLs, req.AIEnabled); err != nil {
		return nil, err
	}

	started := time.Now().UTC()
	batch.Status = models.BatchStatusRunning
	batch.StartedAt = &started
	batch.LastProgressAt = &started
	if err := s.batches.SaveBatch(ctx, batch); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("homepage", batch.HomepageURL).
		Int("urls", batch.TotalURLs).
		Msg("Batch scheduled")
	return batch, nil
}

// fanOut creates a child scan row and a scan-page job per URL.
func (s *Scheduler) fanOut(ctx context.Context, batch *models.BatchScan, urls []string, aiEnabled bool) error {
	for _, url := range urls {
		scan := &models.Scan{
			ID:        common.NewScanID(),
			SessionID: batch.SessionID,
			UserID:    batch.UserID,
			BatchID:   batch.ID,
			URL:       url,
			WCAGLevel: batch.WCAGLevel,
			Status:    models.ScanStatusPending,
			AIEnabled: aiEnabled,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.scans.SaveScan(ctx, scan); err != nil {
			return err
		}
		if _, err := s.queue.Enqueue(ctx, models.QueueScanPage, models.ScanPagePayload{ScanID: scan.ID}, models.EnqueueOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// CancelBatch marks a non-terminal batch CANCELLED. In-flight child scans
// run to completion but no longer drive batch state.
func (s *Scheduler) CancelBatch(ctx context.Context, batchID string) error {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.IsTerminal() {
		return nil
	}
	now := time.Now().UTC()
	batch.Status = models.BatchStatusCancelled
	batch.CompletedAt = &now
	return s.batches.SaveBatch(ctx, batch)
}
