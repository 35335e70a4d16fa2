// Package nova provides an llm.Provider backed by Amazon Bedrock's Converse
// API, targeting the Nova model family. Credentials and region come from the
// default AWS config chain.
package nova

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/apresai/sprintkit/internal/llm"
)

var models = map[string]string{
	"nova-lite": "us.amazon.nova-2-lite-v1:0",
}

const (
	defaultMaxTokens = 1024
	maxRetries       = 3
	initialBackoff   = 1 * time.Second
	backoffMult      = 2
)

// Provider implements llm.Provider over Bedrock Converse.
type Provider struct {
	model  string
	client *bedrockruntime.Client
}

// New creates a Provider. model is a short alias ("nova-lite") or a full
// Bedrock model ID.
func New(model string) (*Provider, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &Provider{
		model:  model,
		client: bedrockruntime.NewFromConfig(cfg),
	}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	modelID := models[p.model]
	if modelID == "" {
		modelID = p.model
	}
	if modelID == "" {
		modelID = models["nova-lite"]
	}

	maxTokens := int32(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: buildMessages(req.Messages),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(float32(req.Temperature)),
		},
	}
	if req.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.SystemPrompt},
		}
	}

	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		resp, err := p.client.Converse(ctx, input)
		if err != nil {
			lastErr = fmt.Errorf("Bedrock Converse error (attempt %d/%d): %w", attempt, maxRetries, err)
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

		text := extractText(resp)
		if text == "" {
			lastErr = fmt.Errorf("empty response from Bedrock (attempt %d/%d)", attempt, maxRetries)
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

func buildMessages(messages []llm.Message) []types.Message {
	out := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		role := types.ConversationRoleUser
		if m.Role == llm.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{
			Role: role,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: m.Content},
			},
		})
	}
	return out
}

func extractText(resp *bedrockruntime.ConverseOutput) string {
	if resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			return tb.Value
		}
	}
	return ""
}
