package models

import "time"

// DiscoveryMode controls how pages are added to a discovery.
type DiscoveryMode string

const (
	DiscoveryModeAuto   DiscoveryMode = "AUTO"
	DiscoveryModeManual DiscoveryMode = "MANUAL"
)

// DiscoveryStatus represents the state of a discovery run.
type DiscoveryStatus string

const (
	DiscoveryStatusPending   DiscoveryStatus = "PENDING"
	DiscoveryStatusRunning   DiscoveryStatus = "RUNNING"
	DiscoveryStatusCompleted DiscoveryStatus = "COMPLETED"
	DiscoveryStatusFailed    DiscoveryStatus = "FAILED"
	DiscoveryStatusCancelled DiscoveryStatus = "CANCELLED"
)

// DiscoveryPhase is the currently executing enumeration phase.
type DiscoveryPhase string

const (
	DiscoveryPhaseSitemap    DiscoveryPhase = "SITEMAP"
	DiscoveryPhaseNavigation DiscoveryPhase = "NAVIGATION"
	DiscoveryPhaseCrawl      DiscoveryPhase = "CRAWL"
	DiscoveryPhaseNone       DiscoveryPhase = "NONE"
)

// Discovery represents one bounded enumeration of reachable pages on an
// origin, starting at a homepage URL. Mutated only by the discovery engine
// (single-writer rule); the API layer may only create and read.
type Discovery struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	HomepageURL  string          `json:"homepage_url"` // canonical form
	Mode         DiscoveryMode   `json:"mode"`
	Status       DiscoveryStatus `json:"status"`
	Phase        DiscoveryPhase  `json:"phase"`
	MaxPages     int             `json:"max_pages"`
	MaxDepth     int             `json:"max_depth"`
	// PartialResults is set when any phase errored but the discovery still
	// produced pages. FAILED is reserved for an unreachable homepage.
	PartialResults bool       `json:"partial_results"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ErrorCode      string     `json:"error_code,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the discovery reached a final state.
func (d *Discovery) IsTerminal() bool {
	switch d.Status {
	case DiscoveryStatusCompleted, DiscoveryStatusFailed, DiscoveryStatusCancelled:
		return true
	}
	return false
}

// PageSource records which phase produced a discovered page.
type PageSource string

const (
	PageSourceSitemap    PageSource = "SITEMAP"
	PageSourceNavigation PageSource = "NAVIGATION"
	PageSourceCrawled    PageSource = "CRAWLED"
	PageSourceManual     PageSource = "MANUAL"
)

// DiscoveredPage is a single page found during discovery.
// (DiscoveryID, canonical URL) is unique; pages are append-only except
// that MANUAL pages may be removed individually.
type DiscoveredPage struct {
	ID          string     `json:"id"`
	DiscoveryID string     `json:"discovery_id"`
	URL         string     `json:"url"`             // canonical form
	Title       string     `json:"title,omitempty"` // sanitized, max 500 chars
	Source      PageSource `json:"source"`
	Depth       int        `json:"depth"`
	HTTPStatus  int        `json:"http_status,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DiscoverySnapshot is the cached published form of a completed discovery.
type DiscoverySnapshot struct {
	Discovery *Discovery        `json:"discovery"`
	Pages     []*DiscoveredPage `json:"pages"`
	CachedAt  time.Time         `json:"cached_at"`
}
