package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// Sentinel errors shared by storage implementations.
var (
	ErrDiscoveryNotFound  = errors.New("discovery not found")
	ErrScanNotFound       = errors.New("scan not found")
	ErrBatchNotFound      = errors.New("batch not found")
	ErrPageAlreadyExists  = errors.New("page already exists for discovery")
	ErrJobNotFound        = errors.New("job not found")
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrCacheMiss          = errors.New("cache miss")
)

// DiscoveryStorage persists discoveries and their pages.
// Pages are append-only within a discovery except for manual removals;
// (discovery, canonical URL) uniqueness is enforced at this layer.
type DiscoveryStorage interface {
	SaveDiscovery(ctx context.Context, d *models.Discovery) error
	GetDiscovery(ctx context.Context, id string) (*models.Discovery, error)
	DeleteDiscovery(ctx context.Context, id string) error

	// AddPage returns ErrPageAlreadyExists when the canonical URL is already
	// recorded for the discovery.
	AddPage(ctx context.Context, page *models.DiscoveredPage) error
	RemovePage(ctx context.Context, discoveryID, pageID string) error
	ListPages(ctx context.Context, discoveryID string) ([]*models.DiscoveredPage, error)
	CountPages(ctx context.Context, discoveryID string) (int, error)
}

// ScanStorage persists scans and their results.
type ScanStorage interface {
	SaveScan(ctx context.Context, scan *models.Scan) error
	GetScan(ctx context.Context, id string) (*models.Scan, error)
	DeleteScan(ctx context.Context, id string) error
	ListScansByBatch(ctx context.Context, batchID string) ([]*models.Scan, error)
	ListScansByStatus(ctx context.Context, status models.ScanStatus) ([]*models.Scan, error)
	// ListScansPendingAI returns AI-enabled scans whose analysis has not
	// settled, in creation order.
	ListScansPendingAI(ctx context.Context) ([]*models.Scan, error)

	SaveResult(ctx context.Context, result *models.ScanResult) error
	GetResult(ctx context.Context, scanID string) (*models.ScanResult, error)
}

// BatchStorage persists batch scans. Counter updates are atomic with
// respect to concurrent child-scan completions.
type BatchStorage interface {
	SaveBatch(ctx context.Context, batch *models.BatchScan) error
	GetBatch(ctx context.Context, id string) (*models.BatchScan, error)
	DeleteBatch(ctx context.Context, id string) error
	ListBatchesByStatus(ctx context.Context, status models.BatchStatus) ([]*models.BatchScan, error)

	// IncrementCounters applies child terminal-state deltas atomically and
	// refreshes LastProgressAt. Returns the updated row.
	IncrementCounters(ctx context.Context, batchID string, completedDelta, failedDelta int) (*models.BatchScan, error)
}

// UsageStorage tracks per-subject monthly discovery counters.
type UsageStorage interface {
	GetCount(ctx context.Context, subject, monthKey string) (int, error)
	// Increment is atomic; it creates the row lazily on first use of a
	// (subject, monthKey) pair. Returns the new count.
	Increment(ctx context.Context, subject, monthKey string) (int, error)
}

// CheckpointStorage persists AI analysis checkpoints. Saves are flushed so
// rows survive a process crash.
type CheckpointStorage interface {
	SaveCheckpoint(ctx context.Context, cp *models.AICheckpoint) error
	GetCheckpoint(ctx context.Context, scanID string) (*models.AICheckpoint, error)
	DeleteCheckpoint(ctx context.Context, scanID string) error
}

// AICacheStorage is the content-addressed inference cache.
type AICacheStorage interface {
	Get(ctx context.Context, key string) (*models.AICacheEntry, error)
	Put(ctx context.Context, entry *models.AICacheEntry, ttl time.Duration) error
}

// ResultCacheStorage is a short-TTL string->blob cache for published
// snapshots. Read/write failures must never fail the enclosing operation.
type ResultCacheStorage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// JobStorage is the durable backing for the queue abstraction.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	DeleteJob(ctx context.Context, id string) error
	// ClaimNext atomically moves the oldest due waiting/delayed job on the
	// queue to active and returns it; ErrJobNotFound when no job is due.
	ClaimNext(ctx context.Context, queueName string, now time.Time) (*models.Job, error)
	ListByState(ctx context.Context, queueName string, state models.JobState) ([]*models.Job, error)
	// RequeueActive returns jobs left active by a crash to waiting.
	RequeueActive(ctx context.Context) (int, error)
	// TrimTerminal keeps at most keep jobs in the given terminal state per queue.
	TrimTerminal(ctx context.Context, queueName string, state models.JobState, keep int) error
	NextSeq() uint64
}

// StorageManager aggregates the storage interfaces behind one lifecycle.
type StorageManager interface {
	DiscoveryStorage() DiscoveryStorage
	ScanStorage() ScanStorage
	BatchStorage() BatchStorage
	UsageStorage() UsageStorage
	CheckpointStorage() CheckpointStorage
	AICacheStorage() AICacheStorage
	ResultCacheStorage() ResultCacheStorage
	JobStorage() JobStorage
	Close() error
}
