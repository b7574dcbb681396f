package badger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// QueueStorage is the durable job store backing the queue runtime. Claims
// are serialized by a mutex so two workers never activate the same job.
type QueueStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
	seq    uint64
}

// NewQueueStorage creates a new queue storage service
func NewQueueStorage(db *BadgerDB, logger arbor.ILogger) *QueueStorage {
	s := &QueueStorage{db: db, logger: logger}
	s.seedSeq()
	return s
}

// seedSeq restores the FIFO sequence counter past any persisted job.
func (s *QueueStorage) seedSeq() {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, nil); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to seed queue sequence counter")
		return
	}
	var max uint64
	for _, j := range jobs {
		if j.Seq > max {
			max = j.Seq
		}
	}
	atomic.StoreUint64(&s.seq, max)
}

// NextSeq returns the next FIFO sequence number.
func (s *QueueStorage) NextSeq() uint64 {
	return atomic.AddUint64(&s.seq, 1)
}

// SaveJob inserts or updates a job row.
func (s *QueueStorage) SaveJob(ctx context.Context, job *models.Job) error {
	job.UpdatedAt = time.Now().UTC()
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob loads a job by id.
func (s *QueueStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return &job, nil
}

// DeleteJob removes a job row.
func (s *QueueStorage) DeleteJob(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Job{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

// ClaimNext atomically activates and returns the oldest due job on the
// queue. ErrJobNotFound signals an empty poll, not a failure.
func (s *QueueStorage) ClaimNext(ctx context.Context, queueName string, now time.Time) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []models.Job
	err := s.db.Store().Find(&jobs, badgerhold.Where("QueueName").Eq(queueName).
		And("State").In(models.JobStateWaiting, models.JobStateDelayed))
	if err != nil {
		return nil, fmt.Errorf("failed to query queue %s: %w", queueName, err)
	}

	due := jobs[:0]
	for _, j := range jobs {
		if !j.NextRunAt.After(now) {
			due = append(due, j)
		}
	}
	if len(due) == 0 {
		return nil, interfaces.ErrJobNotFound
	}

	sort.Slice(due, func(i, j int) bool { return due[i].Seq < due[j].Seq })

	job := due[0]
	job.State = models.JobStateActive
	job.UpdatedAt = time.Now().UTC()
	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return nil, fmt.Errorf("failed to claim job %s: %w", job.ID, err)
	}
	return &job, nil
}

// ListByState returns the queue's jobs in a given state, FIFO order.
func (s *QueueStorage) ListByState(ctx context.Context, queueName string, state models.JobState) ([]*models.Job, error) {
	var jobs []models.Job
	err := s.db.Store().Find(&jobs, badgerhold.Where("QueueName").Eq(queueName).And("State").Eq(state))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s jobs on queue %s: %w", state, queueName, err)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Seq < jobs[j].Seq })
	out := make([]*models.Job, len(jobs))
	for i := range jobs {
		out[i] = &jobs[i]
	}
	return out, nil
}

// RequeueActive returns jobs left active by a crash to waiting so they are
// re-delivered. Called once at startup before workers begin.
func (s *QueueStorage) RequeueActive(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("State").Eq(models.JobStateActive)); err != nil {
		return 0, fmt.Errorf("failed to find active jobs: %w", err)
	}

	count := 0
	for i := range jobs {
		jobs[i].State = models.JobStateWaiting
		jobs[i].UpdatedAt = time.Now().UTC()
		if err := s.db.Store().Upsert(jobs[i].ID, &jobs[i]); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobs[i].ID).Msg("Failed to requeue active job")
			continue
		}
		count++
	}
	return count, nil
}

// TrimTerminal keeps at most keep jobs in the given terminal state on the
// queue, deleting the oldest beyond that.
func (s *QueueStorage) TrimTerminal(ctx context.Context, queueName string, state models.JobState, keep int) error {
	if keep < 0 {
		return nil
	}
	jobs, err := s.ListByState(ctx, queueName, state)
	if err != nil {
		return err
	}
	if len(jobs) <= keep {
		return nil
	}
	for _, job := range jobs[:len(jobs)-keep] {
		if err := s.DeleteJob(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to trim terminal job")
		}
	}
	return nil
}

var _ interfaces.JobStorage = (*QueueStorage)(nil)
