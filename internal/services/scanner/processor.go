package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// Processor handles scan-page jobs: render the URL, run the rule engine,
// persist the result and fan out follow-up jobs. Idempotent: a scan
// already in a terminal state is left untouched.
type Processor struct {
	scans         interfaces.ScanStorage
	batches       interfaces.BatchStorage
	browser       interfaces.Browser
	engine        *RuleEngine
	queue         interfaces.QueueService
	logger        arbor.ILogger
	renderTimeout time.Duration
}

// NewProcessor wires the scan-page processor.
func NewProcessor(
	scans interfaces.ScanStorage,
	batches interfaces.BatchStorage,
	browser interfaces.Browser,
	engine *RuleEngine,
	queue interfaces.QueueService,
	logger arbor.ILogger,
	renderTimeout time.Duration,
) *Processor {
	return &Processor{
		scans:         scans,
		batches:       batches,
		browser:       browser,
		engine:        engine,
		queue:         queue,
		logger:        logger,
		renderTimeout: renderTimeout,
	}
}

// Process runs one scan-page job. A returned error triggers queue retry;
// the permanent-failure hook settles the scan after the final attempt.
func (p *Processor) Process(ctx context.Context, job *models.Job) error {
	var payload models.ScanPagePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid scan-page payload: %w", err)
	}

	scan, err := p.scans.GetScan(ctx, payload.ScanID)
	if err != nil {
		return err
	}
	if scan.IsTerminal() {
		p.logger.Debug().Str("scan_id", scan.ID).Str("status", string(scan.Status)).Msg("Scan already terminal, skipping")
		return nil
	}

	now := time.Now().UTC()
	scan.Status = models.ScanStatusRunning
	scan.StartedAt = &now
	if err := p.scans.SaveScan(ctx, scan); err != nil {
		return err
	}

	start := time.Now()
	rendered, err := p.browser.Render(ctx, scan.URL, p.renderTimeout)
	if err != nil {
		return models.WrapError(models.ErrCodeURLUnreachable, "failed to render page", err).
			WithDetail("url", scan.URL)
	}
	if rendered.HTTPStatus >= 400 {
		return models.NewAppError(models.ErrCodeURLUnreachable, fmt.Sprintf("page returned HTTP %d", rendered.HTTPStatus)).
			WithDetail("url", scan.URL)
	}

	result, err := p.engine.Analyze(rendered.HTML, rendered.AXNodes)
	if err != nil {
		return err
	}
	result.ScanID = scan.ID

	if err := p.scans.SaveResult(ctx, result); err != nil {
		return err
	}

	completed := time.Now().UTC()
	scan.Status = models.ScanStatusCompleted
	scan.DurationMs = time.Since(start).Milliseconds()
	scan.CompletedAt = &completed
	if err := p.scans.SaveScan(ctx, scan); err != nil {
		return err
	}

	p.logger.Info().
		Str("scan_id", scan.ID).
		Str("url", scan.URL).
		Int("issues", result.TotalIssues).
		Dur("elapsed", time.Since(start)).
		Msg("Scan completed")

	p.afterTerminal(ctx, scan, true)
	return nil
}

// OnPermanentFailure settles a scan whose job exhausted its attempts.
func (p *Processor) OnPermanentFailure(ctx context.Context, job *models.Job, lastErr error) {
	var payload models.ScanPagePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("Unreadable payload in failed scan-page job")
		return
	}

	scan, err := p.scans.GetScan(ctx, payload.ScanID)
	if err != nil {
		p.logger.Warn().Err(err).Str("scan_id", payload.ScanID).Msg("Failed scan not found during settlement")
		return
	}
	if scan.IsTerminal() {
		return
	}

	now := time.Now().UTC()
	scan.Status = models.ScanStatusFailed
	scan.ErrorMessage = lastErr.Error()
	scan.CompletedAt = &now
	if err := p.scans.SaveScan(ctx, scan); err != nil {
		p.logger.Error().Err(err).Str("scan_id", scan.ID).Msg("Failed to persist scan failure")
		return
	}

	p.logger.Warn().
		Str("scan_id", scan.ID).
		Str("url", scan.URL).
		Err(lastErr).
		Msg("Scan permanently failed")

	p.afterTerminal(ctx, scan, false)
}

// afterTerminal updates batch counters and enqueues notifications and AI
// analysis for a freshly terminal scan.
func (p *Processor) afterTerminal(ctx context.Context, scan *models.Scan, succeeded bool) {
	if scan.BatchID != "" {
		completedDelta, failedDelta := 0, 1
		if succeeded {
			completedDelta, failedDelta = 1, 0
		}
		batch, err := p.batches.IncrementCounters(ctx, scan.BatchID, completedDelta, failedDelta)
		if err != nil {
			p.logger.Warn().Err(err).Str("batch_id", scan.BatchID).Msg("Failed to update batch counters")
		} else if batch.ChildrenDone() && !batch.IsTerminal() {
			if _, err := p.queue.Enqueue(ctx, models.QueueBatchReport, models.BatchReportPayload{BatchID: batch.ID}, models.EnqueueOptions{}); err != nil {
				p.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("Failed to enqueue batch report")
			}
		}
	}

	if scan.Email != nil && *scan.Email != "" && scan.BatchID == "" {
		emailType := models.EmailTypeScanComplete
		if !succeeded {
			emailType = models.EmailTypeScanFailed
		}
		payload := models.SendEmailPayload{
			ScanID: scan.ID,
			Email:  *scan.Email,
			Type:   emailType,
		}
		if _, err := p.queue.Enqueue(ctx, models.QueueSendEmail, payload, models.EnqueueOptions{}); err != nil {
			p.logger.Warn().Err(err).Str("scan_id", scan.ID).Msg("Failed to enqueue notification email")
		}
	}

	if succeeded && scan.AIEnabled {
		payload := models.AIBatchPayload{
			ScanID:    scan.ID,
			URL:       scan.URL,
			WCAGLevel: scan.WCAGLevel,
		}
		if _, err := p.queue.Enqueue(ctx, models.QueueAIBatch, payload, models.EnqueueOptions{Attempts: 1}); err != nil {
			p.logger.Warn().Err(err).Str("scan_id", scan.ID).Msg("Failed to enqueue AI analysis")
		}
	}
}
