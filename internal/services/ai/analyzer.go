package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/common"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// Analyzer is the ai-batch processor. It partitions the in-scope WCAG
// criteria into mini-batches, runs one inference per mini-batch with a
// content-addressed cache in front, and checkpoints after each so a crash
// resumes instead of repaying tokens.
type Analyzer struct {
	scans       interfaces.ScanStorage
	checkpoints interfaces.CheckpointStorage
	cache       interfaces.AICacheStorage
	invoker     interfaces.InferenceInvoker
	fetcher     interfaces.Fetcher
	logger      arbor.ILogger
	cfg         common.AIConfig

	fetchTimeout time.Duration
}

// NewAnalyzer wires the AI batch analyzer.
func NewAnalyzer(
	scans interfaces.ScanStorage,
	checkpoints interfaces.CheckpointStorage,
	cache interfaces.AICacheStorage,
	invoker interfaces.InferenceInvoker,
	fetcher interfaces.Fetcher,
	logger arbor.ILogger,
	cfg common.AIConfig,
) *Analyzer {
	return &Analyzer{
		scans:        scans,
		checkpoints:  checkpoints,
		cache:        cache,
		invoker:      invoker,
		fetcher:      fetcher,
		logger:       logger,
		cfg:          cfg,
		fetchTimeout: 30 * time.Second,
	}
}

// Process runs one ai-batch job. Idempotent: a scan whose AI status is
// already terminal is a no-op. Inference failures settle the scan's AI
// status rather than failing the job; the checkpoint stays behind so a
// re-enqueue resumes where it stopped.
func (a *Analyzer) Process(ctx context.Context, job *models.Job) error {
	var payload models.AIBatchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid ai-batch payload: %w", err)
	}

	scan, err := a.scans.GetScan(ctx, payload.ScanID)
	if err != nil {
		return models.WrapError(models.ErrCodeScanNotFound, "scan not found for AI analysis", err)
	}
	if !scan.AIEnabled {
		a.logger.Debug().Str("scan_id", scan.ID).Msg("AI not enabled for scan, skipping")
		return nil
	}
	if scan.AIStatus == models.AIStatusCompleted || scan.AIStatus == models.AIStatusFailed {
		a.logger.Debug().Str("scan_id", scan.ID).Str("ai_status", string(scan.AIStatus)).Msg("AI analysis already settled")
		return nil
	}

	scan.AIStatus = models.AIStatusProcessing
	if err := a.scans.SaveScan(ctx, scan); err != nil {
		return err
	}

	start := time.Now()
	fetched, err := a.fetcher.Fetch(ctx, payload.URL, a.fetchTimeout)
	if err != nil || fetched.StatusCode >= 400 {
		if err == nil {
			err = fmt.Errorf("HTTP %d fetching %s", fetched.StatusCode, payload.URL)
		}
		a.logger.Warn().Err(err).Str("scan_id", scan.ID).Msg("Page unreachable for AI analysis")
		return a.settleFailure(ctx, scan, start, err)
	}
	htmlContent := string(fetched.Body)

	hash := sha256.Sum256([]byte(htmlContent))
	contentHash := hex.EncodeToString(hash[:])

	criteria := CriteriaForLevel(payload.WCAGLevel)
	minis := Partition(criteria, a.cfg.MiniBatchSize)
	batches := Group(minis, a.cfg.BatchSize)

	checkpoint, err := a.loadOrCreateCheckpoint(ctx, scan, payload, len(minis))
	if err != nil {
		return err
	}

	verifications := make([]*models.AIVerification, 0, len(criteria))
	index := 0
	for _, group := range batches {
		for _, mini := range group {
			if ctx.Err() != nil {
				// Shutdown mid-analysis; checkpoint already covers finished batches.
				return ctx.Err()
			}

			if checkpoint.IsCompleted(index) {
				// Paid-for work is never re-invoked on resume. Cached verdicts
				// are re-emitted when the entry survived; an evicted entry only
				// thins the merge.
				if entry, cacheErr := a.cache.Get(ctx, models.AICacheKey(contentHash, payload.WCAGLevel, index)); cacheErr == nil {
					verifications = append(verifications, entry.Verifications...)
				}
				index++
				continue
			}

			batchVerifications, tokens, err := a.runMiniBatch(ctx, scan, payload, htmlContent, contentHash, index, mini)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.logger.Warn().Err(err).
					Str("scan_id", scan.ID).
					Int("batch_index", index).
					Msg("Mini-batch exhausted retries")
				return a.settleFailure(ctx, scan, start, err)
			}
			verifications = append(verifications, batchVerifications...)

			checkpoint.MarkCompleted(index, tokens)
			if err := a.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
				return err
			}

			// Pace the provider between mini-batches; no delay after the last
			// one, and none for skipped indices.
			if index < len(minis)-1 && a.cfg.DelaySeconds > 0 {
				if err := sleepCtx(ctx, time.Duration(a.cfg.DelaySeconds)*time.Second); err != nil {
					return err
				}
			}
			index++
		}
	}

	if err := a.mergeVerifications(ctx, scan, verifications); err != nil {
		return err
	}

	now := time.Now().UTC()
	scan.AIStatus = models.AIStatusCompleted
	scan.AITokensUsed = checkpoint.TokensUsed
	scan.AITimeMs = time.Since(start).Milliseconds()
	if err := a.scans.SaveScan(ctx, scan); err != nil {
		return err
	}
	if err := a.checkpoints.DeleteCheckpoint(ctx, scan.ID); err != nil {
		a.logger.Warn().Err(err).Str("scan_id", scan.ID).Msg("Failed to delete checkpoint after completion")
	}

	a.logger.Info().
		Str("scan_id", scan.ID).
		Int("criteria", len(criteria)).
		Int("mini_batches", len(minis)).
		Int("batches", len(batches)).
		Int("tokens_used", int(checkpoint.TokensUsed)).
		Str("finished_at", now.Format(time.RFC3339)).
		Msg("AI analysis complete")
	return nil
}

// runMiniBatch resolves one mini-batch via the cache or the model. The
// returned token count is zero on a cache hit.
func (a *Analyzer) runMiniBatch(
	ctx context.Context,
	scan *models.Scan,
	payload models.AIBatchPayload,
	htmlContent, contentHash string,
	index int,
	criteria []Criterion,
) ([]*models.AIVerification, int64, error) {
	cacheKey := models.AICacheKey(contentHash, payload.WCAGLevel, index)

	if entry, err := a.cache.Get(ctx, cacheKey); err == nil {
		a.logger.Debug().
			Str("scan_id", scan.ID).
			Int("batch_index", index).
			Msg("AI cache hit")
		return entry.Verifications, 0, nil
	} else if !errors.Is(err, interfaces.ErrCacheMiss) {
		a.logger.Warn().Err(err).Str("scan_id", scan.ID).Msg("AI cache read failed, falling through to inference")
	}

	prompt := BuildPrompt(scan.ID, payload.URL, htmlContent, criteria)

	retries := a.cfg.Retries
	if retries <= 0 {
		retries = maxInferenceRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			code := Classify(lastErr)
			if !Retryable(code) {
				break
			}
			delay := RetryDelay(code, attempt-1)
			a.logger.Debug().
				Str("scan_id", scan.ID).
				Int("batch_index", index).
				Str("error_class", string(code)).
				Dur("delay", delay).
				Msg("Retrying mini-batch inference")
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, 0, err
			}
		}

		result, err := a.invoker.Invoke(ctx, prompt, a.cfg.TimeoutDuration())
		if err != nil {
			lastErr = err
			continue
		}

		verifications, err := ParseOutput(result.Output, scan.ID)
		if err != nil {
			lastErr = err
			continue
		}

		entry := &models.AICacheEntry{
			Key:           cacheKey,
			Verifications: verifications,
			TokensUsed:    result.TokensUsed,
			Model:         result.Model,
		}
		if err := a.cache.Put(ctx, entry, a.cfg.CacheTTLDuration()); err != nil {
			a.logger.Warn().Err(err).Str("scan_id", scan.ID).Msg("AI cache write failed")
		}
		return verifications, result.TokensUsed, nil
	}
	return nil, 0, lastErr
}

// loadOrCreateCheckpoint resumes a surviving checkpoint when the
// partitioning still matches, otherwise starts fresh.
func (a *Analyzer) loadOrCreateCheckpoint(ctx context.Context, scan *models.Scan, payload models.AIBatchPayload, totalBatches int) (*models.AICheckpoint, error) {
	checkpoint, err := a.checkpoints.GetCheckpoint(ctx, scan.ID)
	if err == nil && checkpoint.TotalBatches == totalBatches && checkpoint.WCAGLevel == payload.WCAGLevel {
		a.logger.Info().
			Str("scan_id", scan.ID).
			Int("completed", len(checkpoint.CompletedBatches)).
			Int("total", totalBatches).
			Msg("Resuming AI analysis from checkpoint")
		return checkpoint, nil
	}
	if err != nil && !errors.Is(err, interfaces.ErrCheckpointNotFound) {
		return nil, err
	}

	checkpoint = &models.AICheckpoint{
		ScanID:           scan.ID,
		URL:              payload.URL,
		WCAGLevel:        payload.WCAGLevel,
		TotalBatches:     totalBatches,
		CompletedBatches: make(map[int]bool),
		UpdatedAt:        time.Now().UTC(),
	}
	if err := a.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
		return nil, err
	}
	return checkpoint, nil
}

// mergeVerifications folds criterion-level verdicts into the stored scan
// result. Failures enrich matching rule findings; unmatched failures
// become their own issues so the report never drops a verdict.
func (a *Analyzer) mergeVerifications(ctx context.Context, scan *models.Scan, verifications []*models.AIVerification) error {
	result, err := a.scans.GetResult(ctx, scan.ID)
	if err != nil {
		return models.WrapError(models.ErrCodeNoResults, "scan has no result to enrich", err)
	}

	for _, v := range verifications {
		if v.Status != "fail" {
			continue
		}

		matched := false
		for _, issue := range result.Issues {
			if issueCoversCriterion(issue, v.CriterionID) {
				issue.AIExplanation = v.Explanation
				issue.AIFixSuggestion = v.FixSuggestion
				issue.AIPriority = v.Priority
				matched = true
			}
		}
		if matched {
			continue
		}

		result.Issues = append(result.Issues, &models.Issue{
			RuleID:          "ai-" + v.CriterionID,
			Impact:          impactForPriority(v.Priority),
			WCAGCriteria:    []string{v.CriterionID},
			Description:     v.Explanation,
			HelpText:        v.FixSuggestion,
			CSSSelector:     v.TargetSelector,
			AIExplanation:   v.Explanation,
			AIFixSuggestion: v.FixSuggestion,
			AIPriority:      v.Priority,
		})
	}

	result.Recount()
	return a.scans.SaveResult(ctx, result)
}

// settleFailure records a terminal AI failure on the scan. The checkpoint
// is kept so a later re-enqueue resumes paid-for work.
func (a *Analyzer) settleFailure(ctx context.Context, scan *models.Scan, start time.Time, cause error) error {
	scan.AIStatus = models.AIStatusFailed
	scan.AITimeMs = time.Since(start).Milliseconds()
	if err := a.scans.SaveScan(ctx, scan); err != nil {
		return err
	}
	a.logger.Warn().
		Err(cause).
		Str("scan_id", scan.ID).
		Str("error_class", string(Classify(cause))).
		Msg("AI analysis failed")
	return nil
}

func issueCoversCriterion(issue *models.Issue, criterionID string) bool {
	for _, c := range issue.WCAGCriteria {
		if c == criterionID {
			return true
		}
	}
	return false
}

func impactForPriority(priority int) models.IssueImpact {
	switch {
	case priority >= 8:
		return models.ImpactCritical
	case priority >= 6:
		return models.ImpactSerious
	case priority >= 4:
		return models.ImpactModerate
	default:
		return models.ImpactMinor
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
