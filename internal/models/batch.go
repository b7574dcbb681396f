package models

import "time"

// BatchStatus represents the state of a batch scan.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "PENDING"
	BatchStatusRunning   BatchStatus = "RUNNING"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusFailed    BatchStatus = "FAILED"
	BatchStatusCancelled BatchStatus = "CANCELLED"
	// BatchStatusStale is assigned by the janitor when no child scan has made
	// progress within the configured idle window.
	BatchStatusStale BatchStatus = "STALE"
)

// BatchScan fans a homepage's pages out into child scans.
// Invariant: CompletedCount + FailedCount <= TotalURLs, with equality
// required before the batch may be marked COMPLETED.
type BatchScan struct {
	ID             string      `json:"id"`
	SessionID      string      `json:"session_id,omitempty"`
	UserID         string      `json:"user_id,omitempty"`
	HomepageURL    string      `json:"homepage_url"`
	WCAGLevel      WCAGLevel   `json:"wcag_level"`
	Status         BatchStatus `json:"status"`
	TotalURLs      int         `json:"total_urls"`
	CompletedCount int         `json:"completed_count"`
	FailedCount    int         `json:"failed_count"`
	// Email is nullable by design (cleared after notification, GDPR).
	Email          *string    `json:"email,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	LastProgressAt *time.Time `json:"last_progress_at,omitempty"`
}

// IsTerminal reports whether the batch reached a final state.
func (b *BatchScan) IsTerminal() bool {
	switch b.Status {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusCancelled:
		return true
	}
	return false
}

// ChildrenDone reports whether every child scan reached a terminal state.
func (b *BatchScan) ChildrenDone() bool {
	return b.CompletedCount+b.FailedCount >= b.TotalURLs
}
