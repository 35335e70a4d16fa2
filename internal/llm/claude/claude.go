// Package claude provides an llm.Provider backed directly by the Anthropic
// SDK. Transient API errors are retried with exponential backoff inside the
// provider, mirroring the SDK-level resilience of the hosted models; callers
// above this layer perform no retries of their own.
package claude

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/apresai/sprintkit/internal/llm"
)

var models = map[string]string{
	"haiku":  "claude-haiku-4-5-20251001",
	"sonnet": "claude-sonnet-4-5-20250929",
}

const (
	defaultMaxTokens = 1024
	maxRetries       = 3
	initialBackoff   = 1 * time.Second
	backoffMult      = 2
)

// Provider implements llm.Provider using the Anthropic Messages API.
type Provider struct {
	model string
	opts  []option.RequestOption
}

// New creates a Provider. model is a short alias ("haiku", "sonnet") or a
// full Anthropic model ID. Credentials come from the ANTHROPIC_API_KEY
// environment variable unless an option.WithAPIKey override is given.
func New(model string, opts ...option.RequestOption) *Provider {
	return &Provider{model: model, opts: opts}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	client := anthropic.NewClient(p.opts...)

	modelID := models[p.model]
	if modelID == "" {
		modelID = p.model
	}
	if modelID == "" {
		modelID = models["haiku"]
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		MaxTokens: maxTokens,
		Messages:  buildMessages(req.Messages),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		message, err := client.Messages.New(ctx, params)
		if err != nil {
			lastErr = fmt.Errorf("Claude API error (attempt %d/%d): %w", attempt, maxRetries, err)
			if attempt < maxRetries {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= time.Duration(backoffMult)
			}
			continue
		}

		text := extractText(message)
		if text == "" {
			lastErr = fmt.Errorf("empty response from Claude (attempt %d/%d)", attempt, maxRetries)
			if attempt < maxRetries {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= time.Duration(backoffMult)
			}
			continue
		}

		return &llm.CompletionResponse{Content: text}, nil
	}

	return nil, lastErr
}

func buildMessages(messages []llm.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func extractText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "")
}
