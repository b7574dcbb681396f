package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
)

// Fetcher is the bounded HTTP client used by discovery. Bodies are read up
// to maxBodySize and truncated past that; a global token bucket throttles
// outbound request rate across all discoveries.
type Fetcher struct {
	client      *http.Client
	limiter     *rate.Limiter
	logger      arbor.ILogger
	userAgent   string
	maxBodySize int64
}

// NewFetcher creates a fetcher with the given global rate and body ceiling.
func NewFetcher(logger arbor.ILogger, userAgent string, ratePerSec int, maxBodySize int64) *Fetcher {
	if ratePerSec <= 0 {
		ratePerSec = 20
	}
	if maxBodySize <= 0 {
		maxBodySize = 5 * 1024 * 1024
	}
	return &Fetcher{
		client: &http.Client{
			// Per-request timeouts come from the caller's context.
			Timeout: 0,
		},
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		logger:      logger,
		userAgent:   userAgent,
		maxBodySize: maxBodySize,
	}
}

// Fetch retrieves the URL with the given hard timeout.
func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*interfaces.FetchResult, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed for %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body for %s: %w", url, err)
	}

	f.logger.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("Fetched URL")

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &interfaces.FetchResult{
		StatusCode:  resp.StatusCode,
		Headers:     headers,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

var _ interfaces.Fetcher = (*Fetcher)(nil)
