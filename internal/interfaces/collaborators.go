package interfaces

import (
	"context"
	"time"
)

// FetchResult is the outcome of a bounded HTML fetch.
type FetchResult struct {
	StatusCode  int
	Headers     map[string]string
	Body        []byte
	ContentType string
}

// Fetcher retrieves a document over HTTP(S) with a caller-bounded timeout
// and body size. Implementations apply a global request throttle.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*FetchResult, error)
}

// AXNode is a simplified accessibility-tree node from the rendered page.
type AXNode struct {
	Role    string
	Name    string
	Ignored bool
}

// RenderResult is the outcome of a headless-browser page load.
type RenderResult struct {
	HTML        string
	AXNodes     []AXNode
	HTTPStatus  int
	ContentType string
}

// Browser drives a headless browser to render a URL for analysis.
type Browser interface {
	Render(ctx context.Context, url string, timeout time.Duration) (*RenderResult, error)
	Close() error
}

// EmailMessage is a provider-independent outbound email.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailSender dispatches a message through the configured provider.
// It returns the provider message id or an error on provider failure.
type EmailSender interface {
	Send(ctx context.Context, msg *EmailMessage) (string, error)
}

// StoredObject describes an uploaded artifact with a presigned read URL.
type StoredObject struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

// ObjectStore persists report artifacts and issues expiring read URLs.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (*StoredObject, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// InferenceResult is the raw output of one model invocation.
type InferenceResult struct {
	Output     string
	TokensUsed int64
	Model      string
	DurationMs int64
}

// InferenceInvoker runs one prompt against the model with a hard timeout.
// Errors are classified by the AI analyzer (rate limit, timeout, crash...).
type InferenceInvoker interface {
	Invoke(ctx context.Context, prompt string, timeout time.Duration) (*InferenceResult, error)
}
