package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/common"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

const (
	defaultKeepCompleted = 100
	defaultKeepFailed    = 500
)

// Manager is the durable queue runtime. Jobs persist in the job store;
// per-queue worker pools poll for due jobs, run the registered processor
// and apply the retry policy. Delivery is at-least-once.
type Manager struct {
	storage         interfaces.JobStorage
	logger          arbor.ILogger
	pollInterval    time.Duration
	concurrency     int
	defaultAttempts int

	mu           sync.RWMutex
	processors   map[string]interfaces.Processor
	failureHooks map[string][]interfaces.PermanentFailureHandler

	runMu   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewManager creates a queue manager over the job store.
func NewManager(storage interfaces.JobStorage, logger arbor.ILogger, cfg common.QueueConfig) *Manager {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	attempts := cfg.DefaultAttempts
	if attempts <= 0 {
		attempts = 5
	}
	return &Manager{
		storage:         storage,
		logger:          logger,
		pollInterval:    cfg.PollIntervalDuration(),
		concurrency:     concurrency,
		defaultAttempts: attempts,
		processors:      make(map[string]interfaces.Processor),
		failureHooks:    make(map[string][]interfaces.PermanentFailureHandler),
	}
}

// Enqueue adds a job to the named queue and returns its id. A DelayMs
// option parks the job in delayed state until due.
func (m *Manager) Enqueue(ctx context.Context, queueName string, payload interface{}, opts models.EnqueueOptions) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload for queue %s: %w", queueName, err)
	}

	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = m.defaultAttempts
	}
	backoff := opts.Backoff
	if backoff.Strategy == "" {
		backoff = models.BackoffOptions{
			Strategy:  models.BackoffExponential,
			InitialMs: 1000,
			MaxMs:     60000,
		}
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:               common.NewJobID(),
		QueueName:        queueName,
		Payload:          data,
		State:            models.JobStateWaiting,
		MaxAttempts:      attempts,
		Backoff:          backoff,
		NextRunAt:        now,
		RemoveOnComplete: opts.RemoveOnComplete,
		RemoveOnFail:     opts.RemoveOnFail,
		CreatedAt:        now,
		Seq:              m.storage.NextSeq(),
	}
	if opts.DelayMs > 0 {
		job.State = models.JobStateDelayed
		job.NextRunAt = now.Add(time.Duration(opts.DelayMs) * time.Millisecond)
	}

	if err := m.storage.SaveJob(ctx, job); err != nil {
		return "", err
	}

	m.logger.Debug().
		Str("job_id", job.ID).
		Str("queue", queueName).
		Int("max_attempts", attempts).
		Msg("Job enqueued")
	return job.ID, nil
}

// RegisterProcessor binds the handler run for jobs on the queue. Must be
// called before Start.
func (m *Manager) RegisterProcessor(queueName string, processor interfaces.Processor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processors[queueName] = processor
}

// OnPermanentFailure registers a hook fired after the final attempt.
func (m *Manager) OnPermanentFailure(queueName string, handler interfaces.PermanentFailureHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureHooks[queueName] = append(m.failureHooks[queueName], handler)
}

// FailedJobs exposes dead-letter visibility for a queue.
func (m *Manager) FailedJobs(ctx context.Context, queueName string) ([]*models.Job, error) {
	return m.storage.ListByState(ctx, queueName, models.JobStateFailed)
}

// Start requeues crash-stranded active jobs and launches the worker pools.
func (m *Manager) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.started {
		return fmt.Errorf("queue manager already started")
	}

	requeued, err := m.storage.RequeueActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to requeue active jobs: %w", err)
	}
	if requeued > 0 {
		m.logger.Warn().Int("count", requeued).Msg("Requeued jobs left active by previous run")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.mu.RLock()
	queues := make([]string, 0, len(m.processors))
	for name := range m.processors {
		queues = append(queues, name)
	}
	m.mu.RUnlock()

	for _, queueName := range queues {
		for i := 0; i < m.concurrency; i++ {
			m.wg.Add(1)
			go m.workerLoop(runCtx, queueName)
		}
	}

	m.started = true
	m.logger.Info().
		Strs("queues", queues).
		Int("concurrency", m.concurrency).
		Msg("Queue manager started")
	return nil
}

// Stop cancels the workers and waits for in-flight jobs to settle.
func (m *Manager) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.started {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.started = false
	m.logger.Info().Msg("Queue manager stopped")
}

func (m *Manager) workerLoop(ctx context.Context, queueName string) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.storage.ClaimNext(ctx, queueName, time.Now().UTC())
		if err != nil {
			if err != interfaces.ErrJobNotFound {
				m.logger.Warn().Err(err).Str("queue", queueName).Msg("Job claim failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.pollInterval):
			}
			continue
		}

		m.process(ctx, job)
	}
}

// process runs one claimed job through the processor and settles its
// state: completed, delayed for retry, or failed with hooks fired.
func (m *Manager) process(ctx context.Context, job *models.Job) {
	m.mu.RLock()
	processor := m.processors[job.QueueName]
	hooks := m.failureHooks[job.QueueName]
	m.mu.RUnlock()

	if processor == nil {
		m.logger.Error().Str("queue", job.QueueName).Str("job_id", job.ID).Msg("No processor registered for queue")
		return
	}

	start := time.Now()
	err := processor(ctx, job)
	job.AttemptsMade++

	if err == nil {
		job.State = models.JobStateCompleted
		if saveErr := m.storage.SaveJob(ctx, job); saveErr != nil {
			m.logger.Warn().Err(saveErr).Str("job_id", job.ID).Msg("Failed to mark job completed")
		}
		m.trim(ctx, job.QueueName, models.JobStateCompleted, job.RemoveOnComplete, defaultKeepCompleted)
		m.logger.Debug().
			Str("job_id", job.ID).
			Str("queue", job.QueueName).
			Dur("elapsed", time.Since(start)).
			Msg("Job completed")
		return
	}

	job.LastError = err.Error()

	if ctx.Err() != nil && job.AttemptsMade > 0 {
		// Shutdown interrupted the handler; give the attempt back.
		job.AttemptsMade--
		job.State = models.JobStateWaiting
		if saveErr := m.storage.SaveJob(context.Background(), job); saveErr != nil {
			m.logger.Warn().Err(saveErr).Str("job_id", job.ID).Msg("Failed to requeue job on shutdown")
		}
		return
	}

	if job.AttemptsMade >= job.MaxAttempts {
		job.State = models.JobStateFailed
		if saveErr := m.storage.SaveJob(ctx, job); saveErr != nil {
			m.logger.Warn().Err(saveErr).Str("job_id", job.ID).Msg("Failed to mark job failed")
		}
		m.logger.Warn().
			Str("job_id", job.ID).
			Str("queue", job.QueueName).
			Int("attempts", job.AttemptsMade).
			Err(err).
			Msg("Job permanently failed")
		for _, hook := range hooks {
			hook(ctx, job, err)
		}
		m.trim(ctx, job.QueueName, models.JobStateFailed, job.RemoveOnFail, defaultKeepFailed)
		return
	}

	delay := job.Backoff.Delay(job.AttemptsMade)
	job.State = models.JobStateDelayed
	job.NextRunAt = time.Now().UTC().Add(delay)
	if saveErr := m.storage.SaveJob(ctx, job); saveErr != nil {
		m.logger.Warn().Err(saveErr).Str("job_id", job.ID).Msg("Failed to schedule job retry")
	}
	m.logger.Debug().
		Str("job_id", job.ID).
		Str("queue", job.QueueName).
		Int("attempt", job.AttemptsMade).
		Dur("retry_in", delay).
		Err(err).
		Msg("Job retry scheduled")
}

func (m *Manager) trim(ctx context.Context, queueName string, state models.JobState, keep, fallback int) {
	if keep <= 0 {
		keep = fallback
	}
	if err := m.storage.TrimTerminal(ctx, queueName, state, keep); err != nil {
		m.logger.Warn().Err(err).Str("queue", queueName).Msg("Failed to trim terminal jobs")
	}
}

var _ interfaces.QueueService = (*Manager)(nil)
