package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
)

// stubFetcher serves canned responses keyed by URL. Unknown URLs fail.
type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]*interfaces.FetchResult
	calls     []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{responses: make(map[string]*interfaces.FetchResult)}
}

func (f *stubFetcher) addHTML(url string, html string) {
	f.responses[url] = &interfaces.FetchResult{
		StatusCode:  200,
		Body:        []byte(html),
		ContentType: "text/html; charset=utf-8",
	}
}

func (f *stubFetcher) addXML(url string, xml string) {
	f.responses[url] = &interfaces.FetchResult{
		StatusCode:  200,
		Body:        []byte(xml),
		ContentType: "application/xml",
	}
}

func (f *stubFetcher) addStatus(url string, status int) {
	f.responses[url] = &interfaces.FetchResult{StatusCode: status, ContentType: "text/html"}
}

func (f *stubFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*interfaces.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, url)
	result, ok := f.responses[url]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("connection refused: %s", url)
	}
	return result, nil
}

func (f *stubFetcher) fetched(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == url {
			return true
		}
	}
	return false
}

var _ interfaces.Fetcher = (*stubFetcher)(nil)
