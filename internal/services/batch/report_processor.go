package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// ReportProcessor handles batch-report jobs: settle the batch terminal
// state once children are done, then fan out the PDF report and the
// owner notification.
type ReportProcessor struct {
	batches interfaces.BatchStorage
	scans   interfaces.ScanStorage
	queue   interfaces.QueueService
	logger  arbor.ILogger
}

// NewReportProcessor wires the batch-report processor.
func NewReportProcessor(
	batches interfaces.BatchStorage,
	scans interfaces.ScanStorage,
	queue interfaces.QueueService,
	logger arbor.ILogger,
) *ReportProcessor {
	return &ReportProcessor{
		batches: batches,
		scans:   scans,
		queue:   queue,
		logger:  logger,
	}
}

// Process runs one batch-report job. Idempotent: a terminal batch is a
// no-op.
func (p *ReportProcessor) Process(ctx context.Context, job *models.Job) error {
	var payload models.BatchReportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid batch-report payload: %w", err)
	}

	batch, err := p.batches.GetBatch(ctx, payload.BatchID)
	if err != nil {
		return models.WrapError(models.ErrCodeBatchNotFound, "batch not found for report", err)
	}
	if batch.IsTerminal() {
		p.logger.Debug().Str("batch_id", batch.ID).Str("status", string(batch.Status)).Msg("Batch already terminal, skipping report")
		return nil
	}
	if !batch.ChildrenDone() {
		// Counters lag the enqueue in rare interleavings; retry with backoff.
		return fmt.Errorf("batch %s children not yet terminal (%d/%d)",
			batch.ID, batch.CompletedCount+batch.FailedCount, batch.TotalURLs)
	}

	now := time.Now().UTC()
	if batch.CompletedCount == 0 {
		batch.Status = models.BatchStatusFailed
	} else {
		batch.Status = models.BatchStatusCompleted
	}
	batch.CompletedAt = &now
	if err := p.batches.SaveBatch(ctx, batch); err != nil {
		return err
	}

	reportPayload := models.GenerateReportPayload{
		BatchID: batch.ID,
		Format:  models.ReportFormatPDF,
	}
	if _, err := p.queue.Enqueue(ctx, models.QueueGenerateReport, reportPayload, models.EnqueueOptions{}); err != nil {
		p.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("Failed to enqueue batch PDF generation")
	}

	if batch.Email != nil && *batch.Email != "" {
		emailPayload := models.SendEmailPayload{
			BatchID: batch.ID,
			Email:   *batch.Email,
			Type:    models.EmailTypeBatchComplete,
		}
		if _, err := p.queue.Enqueue(ctx, models.QueueSendEmail, emailPayload, models.EnqueueOptions{}); err != nil {
			p.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("Failed to enqueue batch notification")
		}
	}

	p.logger.Info().
		Str("batch_id", batch.ID).
		Str("status", string(batch.Status)).
		Int("completed", batch.CompletedCount).
		Int("failed", batch.FailedCount).
		Msg("Batch settled")
	return nil
}
