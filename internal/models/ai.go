package models

import (
	"fmt"
	"time"
)

// AICheckpoint records resumable progress for one scan's AI analysis.
// Invariant: every index in CompletedBatches is in [0, TotalBatches).
// The row survives process crashes; resume skips completed indices.
type AICheckpoint struct {
	ScanID           string       `json:"scan_id"`
	URL              string       `json:"url"`
	WCAGLevel        WCAGLevel    `json:"wcag_level"`
	TotalBatches     int          `json:"total_batches"`
	CompletedBatches map[int]bool `json:"completed_batches"`
	TokensUsed       int64        `json:"tokens_used"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// IsCompleted reports whether the mini-batch index is already done.
func (c *AICheckpoint) IsCompleted(index int) bool {
	return c.CompletedBatches[index]
}

// MarkCompleted records a finished mini-batch and its token cost.
func (c *AICheckpoint) MarkCompleted(index int, tokens int64) {
	if c.CompletedBatches == nil {
		c.CompletedBatches = make(map[int]bool)
	}
	c.CompletedBatches[index] = true
	c.TokensUsed += tokens
	c.UpdatedAt = time.Now().UTC()
}

// Done reports whether every mini-batch has completed.
func (c *AICheckpoint) Done() bool {
	return len(c.CompletedBatches) >= c.TotalBatches
}

// AIVerification is one criterion-level verdict from the inference output.
type AIVerification struct {
	CriterionID    string `json:"criterion_id"`
	Status         string `json:"status"` // "pass", "fail", "needs_review"
	Explanation    string `json:"explanation,omitempty"`
	FixSuggestion  string `json:"fix_suggestion,omitempty"`
	Priority       int    `json:"priority,omitempty"` // 1..10
	TargetSelector string `json:"target_selector,omitempty"`
}

// AICacheEntry is a content-addressed inference result. Entries are
// immutable after write; concurrent writes to the same key are benign
// (last writer wins, identical content).
type AICacheEntry struct {
	Key           string            `json:"key"` // AICacheKey output
	Verifications []*AIVerification `json:"verifications"`
	TokensUsed    int64             `json:"tokens_used"`
	Model         string            `json:"model"`
	StoredAt      time.Time         `json:"stored_at"`
}

// AICacheKey derives the cache key from the page content hash, the
// conformance level and the mini-batch index. Purely content-addressed so
// identical inputs never trigger a second inference call.
func AICacheKey(contentHash string, level WCAGLevel, batchIndex int) string {
	return fmt.Sprintf("ai:%s:%s:%d", contentHash, level, batchIndex)
}
