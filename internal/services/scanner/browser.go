package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/common"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
)

// ChromeBrowser renders pages through a shared headless Chrome allocator.
// Each Render gets its own tab context; the allocator process is reused.
type ChromeBrowser struct {
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	logger          arbor.ILogger
	mu              sync.Mutex
	closed          bool
}

// NewChromeBrowser starts the Chrome allocator with the scanner settings.
func NewChromeBrowser(logger arbor.ILogger, cfg common.ScannerConfig) (*ChromeBrowser, error) {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("AdaScan-Scanner/1.0"),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)

	// Startup probe so a missing Chrome binary fails fast.
	probeCtx, probeCancel := chromedp.NewContext(allocatorCtx)
	defer probeCancel()
	testCtx, testCancel := context.WithTimeout(probeCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		allocatorCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	logger.Info().Bool("headless", cfg.Headless).Msg("Chrome browser allocator initialized")

	return &ChromeBrowser{
		allocatorCtx:    allocatorCtx,
		allocatorCancel: allocatorCancel,
		logger:          logger,
	}, nil
}

// Render loads the URL, waits for the document, and captures the rendered
// HTML plus the accessibility tree.
func (b *ChromeBrowser) Render(ctx context.Context, url string, timeout time.Duration) (*interfaces.RenderResult, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("browser is closed")
	}
	b.mu.Unlock()

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	tabCtx, tabCancel := chromedp.NewContext(b.allocatorCtx)
	defer tabCancel()

	runCtx, runCancel := context.WithTimeout(tabCtx, timeout)
	defer runCancel()

	// Propagate caller cancellation into the tab.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			runCancel()
		case <-stop:
		}
	}()

	result := &interfaces.RenderResult{}
	var resultMu sync.Mutex

	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument {
				resultMu.Lock()
				if result.HTTPStatus == 0 {
					result.HTTPStatus = int(resp.Response.Status)
					result.ContentType = resp.Response.MimeType
				}
				resultMu.Unlock()
			}
		}
	})

	start := time.Now()
	var html string
	var axNodes []*accessibility.Node

	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
		chromedp.ActionFunc(func(ctx context.Context) error {
			nodes, err := accessibility.GetFullAXTree().Do(ctx)
			if err != nil {
				// The page is still analyzable without the AX tree.
				b.logger.Warn().Err(err).Str("url", url).Msg("Failed to capture accessibility tree")
				return nil
			}
			axNodes = nodes
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", url, err)
	}

	result.HTML = html
	result.AXNodes = convertAXNodes(axNodes)

	b.logger.Debug().
		Str("url", url).
		Int("status", result.HTTPStatus).
		Int("ax_nodes", len(result.AXNodes)).
		Dur("elapsed", time.Since(start)).
		Msg("Page rendered")

	return result, nil
}

// convertAXNodes flattens the CDP accessibility tree into the rule
// engine's node form.
func convertAXNodes(nodes []*accessibility.Node) []interfaces.AXNode {
	var out []interfaces.AXNode
	for _, node := range nodes {
		if node == nil {
			continue
		}
		out = append(out, interfaces.AXNode{
			Ignored: node.Ignored,
			Role:    axValueString(node.Role),
			Name:    axValueString(node.Name),
		})
	}
	return out
}

// axValueString decodes a JSON-encoded AX value into plain text.
func axValueString(v *accessibility.Value) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err == nil {
		return s
	}
	return string(v.Value)
}

// Close shuts down the allocator and its Chrome process.
func (b *ChromeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.allocatorCancel()
	b.logger.Info().Msg("Chrome browser allocator shut down")
	return nil
}

var _ interfaces.Browser = (*ChromeBrowser)(nil)
