package batch

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// Janitor marks running batches STALE when no child has made progress
// within the idle window. Runs on a cron schedule.
type Janitor struct {
	batches    interfaces.BatchStorage
	logger     arbor.ILogger
	idleWindow time.Duration
	schedule   string
	cron       *cron.Cron
}

// NewJanitor creates the stale-batch janitor.
func NewJanitor(batches interfaces.BatchStorage, logger arbor.ILogger, idleWindow time.Duration, schedule string) *Janitor {
	if idleWindow <= 0 {
		idleWindow = 30 * time.Minute
	}
	if schedule == "" {
		schedule = "@every 5m"
	}
	return &Janitor{
		batches:    batches,
		logger:     logger,
		idleWindow: idleWindow,
		schedule:   schedule,
	}
}

// Start schedules the sweep. Returns an error only for an invalid spec.
func (j *Janitor) Start(ctx context.Context) error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(j.schedule, func() {
		j.Sweep(ctx)
	}); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info().Str("schedule", j.schedule).Dur("idle_window", j.idleWindow).Msg("Batch janitor started")
	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Sweep marks idle running batches STALE.
func (j *Janitor) Sweep(ctx context.Context) {
	batches, err := j.batches.ListBatchesByStatus(ctx, models.BatchStatusRunning)
	if err != nil {
		j.logger.Warn().Err(err).Msg("Janitor failed to list running batches")
		return
	}

	cutoff := time.Now().UTC().Add(-j.idleWindow)
	for _, batch := range batches {
		last := batch.LastProgressAt
		if last == nil {
			last = batch.StartedAt
		}
		if last == nil || last.After(cutoff) {
			continue
		}

		batch.Status = models.BatchStatusStale
		if err := j.batches.SaveBatch(ctx, batch); err != nil {
			j.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("Janitor failed to mark batch stale")
			continue
		}
		j.logger.Warn().
			Str("batch_id", batch.ID).
			Str("last_progress", last.Format(time.RFC3339)).
			Msg("Batch marked stale")
	}
}
