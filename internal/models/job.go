package models

import (
	"encoding/json"
	"time"
)

// Queue names. Each queue has its own worker concurrency and processors.
const (
	QueueScanPage       = "scan-page"
	QueueGenerateReport = "generate-report"
	QueueSendEmail      = "send-email"
	QueueBatchReport    = "batch-report"
	QueueAIBatch        = "ai-batch"
)

// JobState is the queue-visible lifecycle of a job.
type JobState string

const (
	JobStateWaiting   JobState = "waiting"
	JobStateDelayed   JobState = "delayed"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// BackoffStrategy selects how retry delays grow.
type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
	BackoffFixed       BackoffStrategy = "fixed"
)

// BackoffOptions controls retry delay computation.
type BackoffOptions struct {
	Strategy  BackoffStrategy `json:"strategy"`
	InitialMs int64           `json:"initial_ms"`
	MaxMs     int64           `json:"max_ms"`
}

// Delay returns the backoff before the given retry (attempt is 1-based:
// the delay applied after the attempt-th failure).
func (b BackoffOptions) Delay(attempt int) time.Duration {
	initial := b.InitialMs
	if initial <= 0 {
		initial = 1000
	}
	ms := initial
	if b.Strategy == BackoffExponential {
		for i := 1; i < attempt; i++ {
			ms *= 2
			if b.MaxMs > 0 && ms >= b.MaxMs {
				ms = b.MaxMs
				break
			}
		}
	}
	if b.MaxMs > 0 && ms > b.MaxMs {
		ms = b.MaxMs
	}
	return time.Duration(ms) * time.Millisecond
}

// EnqueueOptions enumerates the per-job knobs a caller may set.
// Unknown options do not exist: this struct is the closed set.
type EnqueueOptions struct {
	Attempts         int            `json:"attempts,omitempty"` // default 5
	Backoff          BackoffOptions `json:"backoff,omitempty"`
	DelayMs          int64          `json:"delay_ms,omitempty"`
	RemoveOnComplete int            `json:"remove_on_complete,omitempty"` // keep at most N completed
	RemoveOnFail     int            `json:"remove_on_fail,omitempty"`     // keep at most N failed
}

// Job is a unit of queued work. Delivery is at-least-once; processors must
// be idempotent on (ID, Payload).
type Job struct {
	ID           string          `json:"id"`
	QueueName    string          `json:"queue_name"`
	Payload      json.RawMessage `json:"payload"`
	State        JobState        `json:"state"`
	AttemptsMade int             `json:"attempts_made"`
	MaxAttempts  int             `json:"max_attempts"`
	Backoff      BackoffOptions  `json:"backoff"`
	NextRunAt    time.Time       `json:"next_run_at"`
	LastError    string          `json:"last_error,omitempty"`
	// Retention counts carried from EnqueueOptions; zero means the queue default.
	RemoveOnComplete int       `json:"remove_on_complete,omitempty"`
	RemoveOnFail     int       `json:"remove_on_fail,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	// Seq orders jobs FIFO within a queue independent of clock resolution.
	Seq uint64 `json:"seq"`
}

// ScanPagePayload is the payload for scan-page jobs.
type ScanPagePayload struct {
	ScanID string `json:"scan_id"`
}

// ReportFormat enumerates export artifact formats.
type ReportFormat string

const (
	ReportFormatPDF  ReportFormat = "pdf"
	ReportFormatJSON ReportFormat = "json"
	ReportFormatCSV  ReportFormat = "csv"
)

// GenerateReportPayload is the payload for generate-report jobs.
// Exactly one of ScanID or BatchID is set.
type GenerateReportPayload struct {
	ScanID  string       `json:"scan_id,omitempty"`
	BatchID string       `json:"batch_id,omitempty"`
	Format  ReportFormat `json:"format"`
}

// EmailType selects the notification template.
type EmailType string

const (
	EmailTypeScanComplete  EmailType = "scan_complete"
	EmailTypeScanFailed    EmailType = "scan_failed"
	EmailTypeBatchComplete EmailType = "batch_complete"
)

// SendEmailPayload is the payload for send-email jobs.
type SendEmailPayload struct {
	ScanID  string    `json:"scan_id,omitempty"`
	BatchID string    `json:"batch_id,omitempty"`
	Email   string    `json:"email"`
	Type    EmailType `json:"type"`
}

// BatchReportPayload is the payload for batch-report jobs.
type BatchReportPayload struct {
	BatchID string `json:"batch_id"`
}

// AIBatchPayload is the payload for ai-batch jobs.
type AIBatchPayload struct {
	ScanID    string    `json:"scan_id"`
	URL       string    `json:"url"`
	WCAGLevel WCAGLevel `json:"wcag_level"`
}
