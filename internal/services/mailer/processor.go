package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// Processor handles send-email jobs. The stored email address is nulled
// after a successful send, and by the permanent-failure hook after the
// final retry, so addresses never outlive the notification (GDPR).
type Processor struct {
	scans   interfaces.ScanStorage
	batches interfaces.BatchStorage
	sender  interfaces.EmailSender
	logger  arbor.ILogger
	appURL  string
	// fastScanThresholdMs suppresses scan_complete messages for scans that
	// finished quicker than a human would expect a "we're done" email for.
	fastScanThresholdMs int64
}

// NewProcessor wires the send-email processor.
func NewProcessor(
	scans interfaces.ScanStorage,
	batches interfaces.BatchStorage,
	sender interfaces.EmailSender,
	logger arbor.ILogger,
	appURL string,
	fastScanThresholdMs int64,
) *Processor {
	return &Processor{
		scans:               scans,
		batches:             batches,
		sender:              sender,
		logger:              logger,
		appURL:              appURL,
		fastScanThresholdMs: fastScanThresholdMs,
	}
}

// Process runs one send-email job. Returned errors are retried by the
// queue; the address is preserved until a send succeeds or retries are
// exhausted.
func (p *Processor) Process(ctx context.Context, job *models.Job) error {
	var payload models.SendEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid send-email payload: %w", err)
	}

	switch payload.Type {
	case models.EmailTypeScanComplete, models.EmailTypeScanFailed:
		return p.processScanEmail(ctx, &payload)
	case models.EmailTypeBatchComplete:
		return p.processBatchEmail(ctx, &payload)
	default:
		return fmt.Errorf("unknown email type: %s", payload.Type)
	}
}

func (p *Processor) processScanEmail(ctx context.Context, payload *models.SendEmailPayload) error {
	scan, err := p.scans.GetScan(ctx, payload.ScanID)
	if err != nil {
		return models.WrapError(models.ErrCodeScanNotFound, "scan not found for notification", err)
	}
	if scan.Email == nil || *scan.Email == "" {
		// Already notified (or scrubbed); at-least-once delivery makes this a
		// benign duplicate.
		p.logger.Debug().Str("scan_id", scan.ID).Msg("Scan has no email on record, skipping send")
		return nil
	}

	var subject, html, text string

	switch payload.Type {
	case models.EmailTypeScanComplete:
		result, err := p.scans.GetResult(ctx, scan.ID)
		if err != nil {
			return models.WrapError(models.ErrCodeNoResults, "scan has no result to report", err)
		}

		// Fast-scan gate: skip the send but still scrub the address.
		if scan.DurationMs < p.fastScanThresholdMs {
			p.logger.Info().
				Str("scan_id", scan.ID).
				Int("duration_ms", int(scan.DurationMs)).
				Int("threshold_ms", int(p.fastScanThresholdMs)).
				Msg("Fast scan, completion email suppressed")
			return p.nullifyScanEmail(ctx, scan)
		}

		resultsURL := fmt.Sprintf("%s/scans/%s", p.appURL, scan.ID)
		subject, html, text, err = renderScanComplete(scan, result, resultsURL)
		if err != nil {
			return fmt.Errorf("failed to render scan_complete template: %w", err)
		}
	case models.EmailTypeScanFailed:
		subject, html, text, err = renderScanFailed(scan)
		if err != nil {
			return fmt.Errorf("failed to render scan_failed template: %w", err)
		}
	}

	messageID, err := p.sender.Send(ctx, &interfaces.EmailMessage{
		To:      *scan.Email,
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
	if err != nil {
		return models.WrapError(models.ErrCodeSendFailed, "email dispatch failed", err)
	}

	p.logger.Info().
		Str("scan_id", scan.ID).
		Str("type", string(payload.Type)).
		Str("message_id", messageID).
		Msg("Notification sent")

	return p.nullifyScanEmail(ctx, scan)
}

func (p *Processor) processBatchEmail(ctx context.Context, payload *models.SendEmailPayload) error {
	batch, err := p.batches.GetBatch(ctx, payload.BatchID)
	if err != nil {
		return models.WrapError(models.ErrCodeBatchNotFound, "batch not found for notification", err)
	}
	if batch.Email == nil || *batch.Email == "" {
		p.logger.Debug().Str("batch_id", batch.ID).Msg("Batch has no email on record, skipping send")
		return nil
	}

	resultsURL := fmt.Sprintf("%s/batches/%s", p.appURL, batch.ID)
	subject, html, text, err := renderBatchComplete(batch, resultsURL)
	if err != nil {
		return fmt.Errorf("failed to render batch_complete template: %w", err)
	}

	messageID, err := p.sender.Send(ctx, &interfaces.EmailMessage{
		To:      *batch.Email,
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
	if err != nil {
		return models.WrapError(models.ErrCodeSendFailed, "email dispatch failed", err)
	}

	p.logger.Info().
		Str("batch_id", batch.ID).
		Str("message_id", messageID).
		Msg("Batch notification sent")

	batch.Email = nil
	return p.batches.SaveBatch(ctx, batch)
}

// OnPermanentFailure scrubs the stored address after the final retry.
func (p *Processor) OnPermanentFailure(ctx context.Context, job *models.Job, lastErr error) {
	var payload models.SendEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("Unreadable payload in failed send-email job")
		return
	}

	if payload.ScanID != "" {
		if scan, err := p.scans.GetScan(ctx, payload.ScanID); err == nil && scan.Email != nil {
			if err := p.nullifyScanEmail(ctx, scan); err != nil {
				p.logger.Error().Err(err).Str("scan_id", scan.ID).Msg("Failed to scrub email after permanent failure")
			}
		}
	}
	if payload.BatchID != "" {
		if batch, err := p.batches.GetBatch(ctx, payload.BatchID); err == nil && batch.Email != nil {
			batch.Email = nil
			if err := p.batches.SaveBatch(ctx, batch); err != nil {
				p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("Failed to scrub email after permanent failure")
			}
		}
	}

	p.logger.Warn().
		Str("job_id", job.ID).
		Str("type", string(payload.Type)).
		Err(lastErr).
		Msg("Notification permanently failed, address scrubbed")
}

func (p *Processor) nullifyScanEmail(ctx context.Context, scan *models.Scan) error {
	scan.Email = nil
	return p.scans.SaveScan(ctx, scan)
}
