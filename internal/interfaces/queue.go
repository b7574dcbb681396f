package interfaces

import (
	"context"
	"errors"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// ErrNoJob is returned by a dequeue when the queue has no due job.
var ErrNoJob = errors.New("no job due")

// Processor handles one job to completion. A returned error causes the
// queue to re-enqueue the job with backoff until attempts are exhausted.
// Delivery is at-least-once, so processors must be idempotent.
type Processor func(ctx context.Context, job *models.Job) error

// PermanentFailureHandler fires once when a job exhausts its attempts and
// transitions to failed. Handlers must not return control-flow errors; the
// job is already terminal.
type PermanentFailureHandler func(ctx context.Context, job *models.Job, lastErr error)

// QueueService is the named durable queue contract. FIFO within a queue;
// no cross-queue ordering.
type QueueService interface {
	// Enqueue adds a job to the named queue and returns the job id.
	Enqueue(ctx context.Context, queueName string, payload interface{}, opts models.EnqueueOptions) (string, error)
	// RegisterProcessor binds the handler run for jobs on the queue.
	RegisterProcessor(queueName string, processor Processor)
	// OnPermanentFailure registers a hook fired after the final attempt.
	OnPermanentFailure(queueName string, handler PermanentFailureHandler)
	// FailedJobs exposes dead-letter visibility for a queue.
	FailedJobs(ctx context.Context, queueName string) ([]*models.Job, error)
}
