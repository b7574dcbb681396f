package models

import "time"

// WCAGLevel is the conformance level a scan is evaluated against.
type WCAGLevel string

const (
	WCAGLevelA   WCAGLevel = "A"
	WCAGLevelAA  WCAGLevel = "AA"
	WCAGLevelAAA WCAGLevel = "AAA"
)

// Includes reports whether a criterion at the given level is in scope for
// this conformance target: A includes A; AA includes A and AA; AAA includes all.
func (l WCAGLevel) Includes(criterionLevel WCAGLevel) bool {
	rank := map[WCAGLevel]int{WCAGLevelA: 1, WCAGLevelAA: 2, WCAGLevelAAA: 3}
	return rank[criterionLevel] > 0 && rank[criterionLevel] <= rank[l]
}

// ScanStatus represents the state of a single-page scan.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "PENDING"
	ScanStatusRunning   ScanStatus = "RUNNING"
	ScanStatusCompleted ScanStatus = "COMPLETED"
	ScanStatusFailed    ScanStatus = "FAILED"
)

// AIStatus tracks the AI enrichment lifecycle for a scan.
// Empty means AI was never requested.
type AIStatus string

const (
	AIStatusPending    AIStatus = "PENDING"
	AIStatusProcessing AIStatus = "PROCESSING"
	AIStatusCompleted  AIStatus = "COMPLETED"
	AIStatusFailed     AIStatus = "FAILED"
)

// Scan is one accessibility scan of a single URL. Mutated only by the
// scan-page processor; the email field is nulled after notification (GDPR).
type Scan struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	BatchID   string `json:"batch_id,omitempty"` // owning batch, if any
	URL       string `json:"url"`
	WCAGLevel WCAGLevel `json:"wcag_level"`
	// Email is nullable by design: it is cleared after the completion email is
	// dispatched, and on permanent send failure.
	Email        *string    `json:"email,omitempty"`
	Status       ScanStatus `json:"status"`
	DurationMs   int64      `json:"duration_ms,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	AIEnabled    bool       `json:"ai_enabled"`
	AIStatus     AIStatus   `json:"ai_status,omitempty"`
	AITokensUsed int64      `json:"ai_tokens_used,omitempty"`
	AITimeMs     int64      `json:"ai_time_ms,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the scan reached a final state.
func (s *Scan) IsTerminal() bool {
	return s.Status == ScanStatusCompleted || s.Status == ScanStatusFailed
}

// IssueImpact is the severity bucket of a single finding.
type IssueImpact string

const (
	ImpactCritical IssueImpact = "CRITICAL"
	ImpactSerious  IssueImpact = "SERIOUS"
	ImpactModerate IssueImpact = "MODERATE"
	ImpactMinor    IssueImpact = "MINOR"
)

// Issue is one accessibility finding produced by the rule engine,
// optionally enriched by the AI analyzer.
type Issue struct {
	RuleID          string      `json:"rule_id"`
	Impact          IssueImpact `json:"impact"`
	WCAGCriteria    []string    `json:"wcag_criteria"`
	Description     string      `json:"description"`
	HelpText        string      `json:"help_text"`
	HelpURL         string      `json:"help_url"`
	HTMLSnippet     string      `json:"html_snippet,omitempty"`
	CSSSelector     string      `json:"css_selector,omitempty"`
	AIExplanation   string      `json:"ai_explanation,omitempty"`
	AIFixSuggestion string      `json:"ai_fix_suggestion,omitempty"`
	AIPriority      int         `json:"ai_priority,omitempty"` // 1..10
}

// ScanResult aggregates a scan's findings. A scan owns at most one result.
type ScanResult struct {
	ScanID             string   `json:"scan_id"`
	TotalIssues        int      `json:"total_issues"`
	CriticalCount      int      `json:"critical_count"`
	SeriousCount       int      `json:"serious_count"`
	ModerateCount      int      `json:"moderate_count"`
	MinorCount         int      `json:"minor_count"`
	PassedChecks       int      `json:"passed_checks"`
	InapplicableChecks int      `json:"inapplicable_checks"`
	Issues             []*Issue `json:"issues"`
}

// Recount recomputes the aggregate counters from the issue list.
func (r *ScanResult) Recount() {
	r.TotalIssues = len(r.Issues)
	r.CriticalCount, r.SeriousCount, r.ModerateCount, r.MinorCount = 0, 0, 0, 0
	for _, issue := range r.Issues {
		switch issue.Impact {
		case ImpactCritical:
			r.CriticalCount++
		case ImpactSerious:
			r.SeriousCount++
		case ImpactModerate:
			r.ModerateCount++
		case ImpactMinor:
			r.MinorCount++
		}
	}
}
