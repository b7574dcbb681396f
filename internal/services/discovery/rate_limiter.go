package discovery

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
)

// OriginRateLimiter spaces requests per origin. The effective delay for an
// origin is max(floor, robots crawl-delay) where the floor defaults to
// 100ms.
type OriginRateLimiter struct {
	limiters map[string]*originLimiter
	mu       sync.RWMutex
	floor    time.Duration
}

type originLimiter struct {
	lastRequest time.Time
	mu          sync.Mutex
	delay       time.Duration
}

// NewOriginRateLimiter creates a limiter with the given per-origin floor.
func NewOriginRateLimiter(floor time.Duration) *OriginRateLimiter {
	if floor <= 0 {
		floor = 100 * time.Millisecond
	}
	return &OriginRateLimiter{
		limiters: make(map[string]*originLimiter),
		floor:    floor,
	}
}

// Wait blocks until the origin's delay has elapsed since its last request.
// Cancellation is honored while waiting.
func (rl *OriginRateLimiter) Wait(ctx context.Context, rawURL string) error {
	origin := extractOrigin(rawURL)
	if origin == "" {
		return nil
	}

	rl.mu.Lock()
	limiter, exists := rl.limiters[origin]
	if !exists {
		limiter = &originLimiter{delay: rl.floor}
		rl.limiters[origin] = limiter
	}
	rl.mu.Unlock()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := time.Now()
	nextAllowed := limiter.lastRequest.Add(limiter.delay)

	if now.Before(nextAllowed) {
		timer := time.NewTimer(nextAllowed.Sub(now))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	limiter.lastRequest = time.Now()
	return nil
}

// SetCrawlDelay applies a robots crawl-delay to the origin. Values below
// the floor are ignored.
func (rl *OriginRateLimiter) SetCrawlDelay(rawURL string, crawlDelaySeconds float64) {
	origin := extractOrigin(rawURL)
	if origin == "" {
		return
	}
	delay := time.Duration(crawlDelaySeconds * float64(time.Second))
	if delay < rl.floor {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[origin]
	if !exists {
		rl.limiters[origin] = &originLimiter{delay: delay}
		return
	}
	limiter.mu.Lock()
	limiter.delay = delay
	limiter.mu.Unlock()
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
