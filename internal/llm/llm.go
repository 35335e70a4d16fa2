// Package llm defines the Provider interface over language model backends.
//
// A Provider wraps a remote or local model API (OpenAI, Anthropic, a local
// Ollama instance, Bedrock) behind a single synchronous completion call so
// the rest of sprintkit never couples to a specific SDK. Implementations
// must be safe for concurrent use and must respect context cancellation.
package llm

import "context"

// Role values for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in a conversation history sent to the model.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the model needs to produce a response.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Providers that have no dedicated system slot prepend it
	// as a system-role message.
	SystemPrompt string

	// Messages is the ordered conversation history. The last message is
	// typically user-role and drives the response.
	Messages []Message

	// Temperature controls output randomness. Zero means provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// NewUserMessage builds a user-role message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an assistant-role message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
