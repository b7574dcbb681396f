package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/common"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
)

// ClaudeInvoker runs accessibility verification prompts against the
// Anthropic API. One invocation per mini-batch.
type ClaudeInvoker struct {
	client    *anthropic.Client
	logger    arbor.ILogger
	model     string
	maxTokens int
}

// NewClaudeInvoker initializes the Anthropic client from configuration.
func NewClaudeInvoker(cfg common.AIConfig, logger arbor.ILogger) (*ClaudeInvoker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or ai.api_key in config)")
	}

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	logger.Debug().
		Str("model", model).
		Int("max_tokens", maxTokens).
		Msg("Claude invoker initialized")

	return &ClaudeInvoker{
		client:    &client,
		logger:    logger,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Invoke runs one prompt with a hard timeout and returns the raw text
// output plus token accounting.
func (c *ClaudeInvoker) Invoke(ctx context.Context, prompt string, timeout time.Duration) (*interfaces.InferenceResult, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Messages.New(timeoutCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var output strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			output.WriteString(block.Text)
		}
	}
	if output.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Claude API")
	}

	return &interfaces.InferenceResult{
		Output:     output.String(),
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		Model:      c.model,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

var _ interfaces.InferenceInvoker = (*ClaudeInvoker)(nil)
