package discovery

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/common"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/services/resultcache"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/services/usage"
)

const maxTitleLength = 500

// CreateRequest carries the parameters for a new discovery.
type CreateRequest struct {
	SessionID   string
	HomepageURL string
	Mode        models.DiscoveryMode
	MaxPages    int
	MaxDepth    int
}

// Engine runs the discovery state machine. One goroutine owns each
// discovery row end to end; the API layer only creates and reads.
type Engine struct {
	storage   interfaces.DiscoveryStorage
	usage     *usage.Service
	fetcher   interfaces.Fetcher
	resolver  *SitemapResolver
	extractor *NavigationExtractor
	snapshots *resultcache.Service
	logger    arbor.ILogger
	cfg       common.DiscoveryConfig

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewEngine wires the discovery engine from its collaborators.
func NewEngine(
	storage interfaces.DiscoveryStorage,
	usageService *usage.Service,
	fetcher interfaces.Fetcher,
	snapshots *resultcache.Service,
	logger arbor.ILogger,
	cfg common.DiscoveryConfig,
) *Engine {
	return &Engine{
		storage: storage,
		usage:   usageService,
		fetcher: fetcher,
		resolver: NewSitemapResolver(
			fetcher, logger,
			cfg.SitemapMaxDepth, cfg.SitemapMaxURLs, cfg.MaxBodySize,
			cfg.FetchTimeoutDuration(),
		),
		extractor: NewNavigationExtractor(logger),
		snapshots: snapshots,
		logger:    logger,
		cfg:       cfg,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// CreateDiscovery validates the homepage, checks the monthly quota and
// creates a PENDING row. The usage counter increments only after the row
// exists; quota refusal leaves no trace.
func (e *Engine) CreateDiscovery(ctx context.Context, req CreateRequest) (*models.Discovery, error) {
	if err := e.usage.CheckQuota(ctx, req.SessionID); err != nil {
		return nil, err
	}

	canonical := Canonicalize(req.HomepageURL)
	if err := Validate(canonical, canonical); err != nil {
		return nil, err
	}

	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = e.cfg.DefaultMaxPages
	}
	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = e.cfg.DefaultMaxDepth
	}
	mode := req.Mode
	if mode == "" {
		mode = models.DiscoveryModeAuto
	}

	d := &models.Discovery{
		ID:          common.NewDiscoveryID(),
		SessionID:   req.SessionID,
		HomepageURL: canonical,
		Mode:        mode,
		Status:      models.DiscoveryStatusPending,
		Phase:       models.DiscoveryPhaseNone,
		MaxPages:    maxPages,
		MaxDepth:    maxDepth,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.storage.SaveDiscovery(ctx, d); err != nil {
		return nil, err
	}

	if _, err := e.usage.RecordUse(ctx, req.SessionID); err != nil {
		e.logger.Warn().Err(err).Str("discovery_id", d.ID).Msg("Failed to record usage after discovery creation")
	}

	e.logger.Info().
		Str("discovery_id", d.ID).
		Str("homepage", canonical).
		Str("mode", string(mode)).
		Msg("Discovery created")

	return d, nil
}

// Run executes the phase machine for an AUTO discovery to a terminal
// state. MANUAL discoveries complete immediately with no enumeration.
func (e *Engine) Run(ctx context.Context, discoveryID string) error {
	d, err := e.storage.GetDiscovery(ctx, discoveryID)
	if err != nil {
		return err
	}
	if d.IsTerminal() {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancels[d.ID] = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		delete(e.cancels, d.ID)
		e.mu.Unlock()
	}()

	now := time.Now().UTC()
	d.Status = models.DiscoveryStatusRunning
	d.StartedAt = &now
	if err := e.storage.SaveDiscovery(ctx, d); err != nil {
		return err
	}

	if d.Mode == models.DiscoveryModeManual {
		return e.finish(ctx, d, nil)
	}

	limiter := NewOriginRateLimiter(e.cfg.MinRequestDelayDuration())

	// Homepage must be reachable before any phase runs. An unreachable
	// homepage is the only condition that yields FAILED.
	homepageResult, err := e.fetchValidated(runCtx, d, limiter, d.HomepageURL)
	if err != nil || homepageResult.StatusCode >= 400 {
		if runCtx.Err() != nil {
			return e.markCancelled(ctx, d)
		}
		d.ErrorCode = string(models.ErrCodeURLUnreachable)
		d.ErrorMessage = "homepage unreachable"
		d.Status = models.DiscoveryStatusFailed
		d.Phase = models.DiscoveryPhaseNone
		completed := time.Now().UTC()
		d.CompletedAt = &completed
		e.logger.Warn().Str("discovery_id", d.ID).Str("homepage", d.HomepageURL).Msg("Homepage unreachable, discovery failed")
		return e.storage.SaveDiscovery(ctx, d)
	}

	e.addPage(runCtx, d, &models.DiscoveredPage{
		URL:         d.HomepageURL,
		Source:      models.PageSourceCrawled,
		Depth:       0,
		HTTPStatus:  homepageResult.StatusCode,
		ContentType: homepageResult.ContentType,
	})

	robots := e.loadRobots(runCtx, d, limiter)
	if robots.CrawlDelaySeconds > 0 {
		limiter.SetCrawlDelay(d.HomepageURL, robots.CrawlDelaySeconds)
	}

	var phaseErr error

	if err := e.runSitemapPhase(runCtx, d, limiter, robots); err != nil {
		if runCtx.Err() != nil {
			return e.markCancelled(ctx, d)
		}
		phaseErr = err
	}
	if err := e.runNavigationPhase(runCtx, d, string(homepageResult.Body)); err != nil {
		if runCtx.Err() != nil {
			return e.markCancelled(ctx, d)
		}
		phaseErr = err
	}
	if err := e.runCrawlPhase(runCtx, d, limiter, robots); err != nil {
		if runCtx.Err() != nil {
			return e.markCancelled(ctx, d)
		}
		phaseErr = err
	}

	if runCtx.Err() != nil {
		return e.markCancelled(ctx, d)
	}
	return e.finish(ctx, d, phaseErr)
}

// Cancel requests cancellation of a running discovery. The terminal state
// becomes visible within one in-flight fetch.
func (e *Engine) Cancel(discoveryID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancel, ok := e.cancels[discoveryID]
	if ok {
		cancel()
	}
	return ok
}

// AddManualPage validates and appends a page to a discovery outside the
// AUTO phases.
func (e *Engine) AddManualPage(ctx context.Context, discoveryID, rawURL, title string) (*models.DiscoveredPage, error) {
	d, err := e.storage.GetDiscovery(ctx, discoveryID)
	if err != nil {
		return nil, err
	}

	canonical := Canonicalize(rawURL)
	if err := Validate(canonical, d.HomepageURL); err != nil {
		return nil, err
	}

	count, err := e.storage.CountPages(ctx, discoveryID)
	if err != nil {
		return nil, err
	}
	if count >= d.MaxPages {
		return nil, models.NewAppError(models.ErrCodePageAlreadyExists, "discovery page limit reached").
			WithDetail("max_pages", d.MaxPages)
	}

	page := &models.DiscoveredPage{
		ID:          common.NewPageID(),
		DiscoveryID: discoveryID,
		URL:         canonical,
		Title:       sanitizeTitle(title),
		Source:      models.PageSourceManual,
		Depth:       0,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.storage.AddPage(ctx, page); err != nil {
		return nil, err
	}
	e.snapshots.Invalidate(ctx, discoveryID)
	return page, nil
}

// RemovePage removes a page and invalidates the cached snapshot.
func (e *Engine) RemovePage(ctx context.Context, discoveryID, pageID string) error {
	if err := e.storage.RemovePage(ctx, discoveryID, pageID); err != nil {
		return err
	}
	e.snapshots.Invalidate(ctx, discoveryID)
	return nil
}

// GetSnapshot returns the published snapshot, reading through the cache.
func (e *Engine) GetSnapshot(ctx context.Context, discoveryID string) (*models.DiscoverySnapshot, error) {
	if cached, err := e.snapshots.GetSnapshot(ctx, discoveryID); err == nil {
		return cached, nil
	}

	d, err := e.storage.GetDiscovery(ctx, discoveryID)
	if err != nil {
		return nil, err
	}
	pages, err := e.storage.ListPages(ctx, discoveryID)
	if err != nil {
		return nil, err
	}
	snapshot := &models.DiscoverySnapshot{
		Discovery: d,
		Pages:     pages,
		CachedAt:  time.Now().UTC(),
	}
	if d.Status == models.DiscoveryStatusCompleted {
		e.snapshots.PublishSnapshot(ctx, snapshot)
	}
	return snapshot, nil
}

// loadRobots fetches and parses robots.txt. A missing or failing
// robots.txt means no restrictions.
func (e *Engine) loadRobots(ctx context.Context, d *models.Discovery, limiter *OriginRateLimiter) *RobotsRules {
	robotsURL := robotsURLFor(d.HomepageURL)
	if robotsURL == "" {
		return ParseRobots("", e.cfg.UserAgent)
	}
	if err := limiter.Wait(ctx, robotsURL); err != nil {
		return ParseRobots("", e.cfg.UserAgent)
	}
	result, err := e.fetcher.Fetch(ctx, robotsURL, e.cfg.FetchTimeoutDuration())
	if err != nil || result.StatusCode != 200 {
		e.logger.Debug().Str("discovery_id", d.ID).Str("url", robotsURL).Msg("No usable robots.txt")
		return ParseRobots("", e.cfg.UserAgent)
	}
	return ParseRobots(string(result.Body), e.cfg.UserAgent)
}

func (e *Engine) runSitemapPhase(ctx context.Context, d *models.Discovery, limiter *OriginRateLimiter, robots *RobotsRules) error {
	d.Phase = models.DiscoveryPhaseSitemap
	if err := e.storage.SaveDiscovery(ctx, d); err != nil {
		return err
	}

	sitemapURLs := append([]string{}, robots.SitemapURLs...)
	if len(sitemapURLs) == 0 {
		sitemapURLs = []string{strings.TrimSuffix(d.HomepageURL, "/") + "/sitemap.xml"}
	}

	var lastErr error
	for _, sitemapURL := range sitemapURLs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !IsSameDomain(sitemapURL, d.HomepageURL) {
			e.logger.Warn().Str("discovery_id", d.ID).Str("sitemap_url", sitemapURL).Msg("Cross-domain sitemap skipped")
			continue
		}
		if err := limiter.Wait(ctx, sitemapURL); err != nil {
			return err
		}
		result, err := e.fetcher.Fetch(ctx, sitemapURL, e.cfg.FetchTimeoutDuration())
		if err != nil {
			lastErr = models.WrapError(models.ErrCodeSitemapFetchFailed, "sitemap fetch failed", err)
			continue
		}
		if result.StatusCode != 200 {
			continue
		}

		for _, entry := range e.resolver.Resolve(ctx, result.Body, d.HomepageURL, 0) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			full, err := e.storage.CountPages(ctx, d.ID)
			if err == nil && full >= d.MaxPages {
				return lastErr
			}
			e.addPage(ctx, d, &models.DiscoveredPage{
				URL:    entry.URL,
				Source: models.PageSourceSitemap,
				Depth:  0,
			})
		}
	}
	return lastErr
}

func (e *Engine) runNavigationPhase(ctx context.Context, d *models.Discovery, homepageHTML string) error {
	d.Phase = models.DiscoveryPhaseNavigation
	if err := e.storage.SaveDiscovery(ctx, d); err != nil {
		return err
	}

	links, err := e.extractor.Extract(homepageHTML, d.HomepageURL)
	if err != nil {
		return models.WrapError(models.ErrCodeNavExtractionFailed, "navigation extraction failed", err)
	}

	for _, link := range links {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		count, err := e.storage.CountPages(ctx, d.ID)
		if err == nil && count >= d.MaxPages {
			return nil
		}
		e.addPage(ctx, d, &models.DiscoveredPage{
			URL:    link.URL,
			Title:  link.Text,
			Source: models.PageSourceNavigation,
			Depth:  1,
		})
	}
	return nil
}

// runCrawlPhase does a bounded BFS over known pages. At most
// MaxConcurrency fetches run at once; the per-origin limiter spaces
// requests to the same origin.
func (e *Engine) runCrawlPhase(ctx context.Context, d *models.Discovery, limiter *OriginRateLimiter, robots *RobotsRules) error {
	d.Phase = models.DiscoveryPhaseCrawl
	if err := e.storage.SaveDiscovery(ctx, d); err != nil {
		return err
	}

	pages, err := e.storage.ListPages(ctx, d.ID)
	if err != nil {
		return err
	}

	type frontierItem struct {
		url   string
		depth int
	}
	visited := make(map[string]bool, len(pages))
	var frontier []frontierItem
	for _, p := range pages {
		visited[p.URL] = true
		if p.Depth < d.MaxDepth {
			frontier = append(frontier, frontierItem{url: p.URL, depth: p.Depth})
		}
	}

	concurrency := e.cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	var mu sync.Mutex
	var phaseErr error

	for len(frontier) > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		count, err := e.storage.CountPages(ctx, d.ID)
		if err == nil && count >= d.MaxPages {
			return phaseErr
		}

		level := frontier
		frontier = nil

		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup

		for _, item := range level {
			if ctx.Err() != nil {
				break
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(item frontierItem) {
				defer wg.Done()
				defer func() { <-sem }()

				links, err := e.crawlOne(ctx, d, limiter, robots, item.url)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if ctx.Err() == nil {
						phaseErr = err
					}
					return
				}
				for _, link := range links {
					if visited[link.URL] {
						continue
					}
					visited[link.URL] = true
					added := e.addPage(ctx, d, &models.DiscoveredPage{
						URL:    link.URL,
						Title:  link.Text,
						Source: models.PageSourceCrawled,
						Depth:  item.depth + 1,
					})
					if added && item.depth+1 < d.MaxDepth {
						frontier = append(frontier, frontierItem{url: link.URL, depth: item.depth + 1})
					}
				}
			}(item)
		}
		wg.Wait()
	}
	return phaseErr
}

// crawlOne fetches a single page and extracts its navigation links.
func (e *Engine) crawlOne(ctx context.Context, d *models.Discovery, limiter *OriginRateLimiter, robots *RobotsRules, pageURL string) ([]NavigationLink, error) {
	if !robots.IsAllowed(pathOf(pageURL)) {
		e.logger.Debug().Str("discovery_id", d.ID).Str("url", pageURL).Msg("Robots disallowed, skipping")
		return nil, nil
	}
	result, err := e.fetchValidated(ctx, d, limiter, pageURL)
	if err != nil {
		e.logger.Debug().Err(err).Str("discovery_id", d.ID).Str("url", pageURL).Msg("Crawl fetch failed, dropping URL")
		return nil, nil
	}
	if result.StatusCode >= 400 || !strings.Contains(result.ContentType, "html") {
		return nil, nil
	}
	return e.extractor.Extract(string(result.Body), d.HomepageURL)
}

// fetchValidated re-validates the URL immediately before the fetch.
func (e *Engine) fetchValidated(ctx context.Context, d *models.Discovery, limiter *OriginRateLimiter, rawURL string) (*interfaces.FetchResult, error) {
	if err := Validate(rawURL, d.HomepageURL); err != nil {
		return nil, err
	}
	if err := limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}
	return e.fetcher.Fetch(ctx, rawURL, e.cfg.FetchTimeoutDuration())
}

// addPage validates and persists one page. Duplicates and validation
// failures are dropped quietly; true is returned only for a new row.
func (e *Engine) addPage(ctx context.Context, d *models.Discovery, page *models.DiscoveredPage) bool {
	if err := Validate(page.URL, d.HomepageURL); err != nil {
		e.logger.Debug().Err(err).Str("discovery_id", d.ID).Str("url", page.URL).Msg("Page failed validation, dropped")
		return false
	}

	count, err := e.storage.CountPages(ctx, d.ID)
	if err == nil && count >= d.MaxPages {
		return false
	}

	page.ID = common.NewPageID()
	page.DiscoveryID = d.ID
	page.URL = Canonicalize(page.URL)
	page.Title = sanitizeTitle(page.Title)
	page.CreatedAt = time.Now().UTC()

	if err := e.storage.AddPage(ctx, page); err != nil {
		if err != interfaces.ErrPageAlreadyExists {
			e.logger.Warn().Err(err).Str("discovery_id", d.ID).Str("url", page.URL).Msg("Failed to persist page")
		}
		return false
	}
	return true
}

// finish moves the discovery to COMPLETED and publishes the snapshot.
// A phase error marks partial results but still completes.
func (e *Engine) finish(ctx context.Context, d *models.Discovery, phaseErr error) error {
	d.Status = models.DiscoveryStatusCompleted
	d.Phase = models.DiscoveryPhaseNone
	completed := time.Now().UTC()
	d.CompletedAt = &completed
	if phaseErr != nil {
		d.PartialResults = true
		d.ErrorMessage = phaseErr.Error()
		d.ErrorCode = string(models.CodeOf(phaseErr))
	}
	if err := e.storage.SaveDiscovery(ctx, d); err != nil {
		return err
	}

	pages, err := e.storage.ListPages(ctx, d.ID)
	if err != nil {
		e.logger.Warn().Err(err).Str("discovery_id", d.ID).Msg("Failed to list pages for snapshot")
		pages = nil
	}
	e.snapshots.PublishSnapshot(ctx, &models.DiscoverySnapshot{
		Discovery: d,
		Pages:     pages,
	})

	e.logger.Info().
		Str("discovery_id", d.ID).
		Int("pages", len(pages)).
		Bool("partial", d.PartialResults).
		Msg("Discovery completed")
	return nil
}

func (e *Engine) markCancelled(ctx context.Context, d *models.Discovery) error {
	d.Status = models.DiscoveryStatusCancelled
	d.Phase = models.DiscoveryPhaseNone
	completed := time.Now().UTC()
	d.CompletedAt = &completed
	e.logger.Info().Str("discovery_id", d.ID).Msg("Discovery cancelled")
	return e.storage.SaveDiscovery(ctx, d)
}

func sanitizeTitle(title string) string {
	title = collapseWhitespace(title)
	cleaned := strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, title)
	if utf8.RuneCountInString(cleaned) > maxTitleLength {
		cleaned = string([]rune(cleaned)[:maxTitleLength])
	}
	return cleaned
}

// robotsURLFor builds the robots.txt URL on the homepage's origin.
// Returns "" for an unparseable homepage.
func robotsURLFor(homepage string) string {
	u, err := url.Parse(homepage)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/robots.txt"
}

func pathOf(rawURL string) string {
	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return rawURL
	}
	rest := rawURL[idx+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return "/"
	}
	return rest[slash:]
}
