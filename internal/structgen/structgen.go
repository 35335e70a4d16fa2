// Package structgen turns prompt templates into validated structured values.
//
// A Client fills a template's {placeholder} variables, invokes the model
// exactly once, and (for structured requests) extracts the JSON object
// from the raw response and unmarshals it into the caller's target type.
// All model non-determinism and malformed output is absorbed here and
// surfaced through the three-error taxonomy in errors.go. The client never
// retries; at-most-one attempt per call.
package structgen

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/apresai/sprintkit/internal/llm"
)

// Validator is implemented by target types that carry structural rules
// beyond what JSON unmarshalling enforces.
type Validator interface {
	Validate() error
}

// Request describes one prompt-plus-history model invocation.
type Request struct {
	// System is the system prompt template. {name} placeholders are filled
	// from Vars.
	System string

	// Vars supplies values for template placeholders in System and Input.
	Vars map[string]string

	// History is replayed before Input as prior conversation turns.
	History []llm.Message

	// Input is the new user message. It is sent verbatim; conversation
	// input is often prior model output and must never be treated as a
	// template.
	Input string

	// Temperature and MaxTokens override the client defaults when non-zero.
	Temperature float64
	MaxTokens   int
}

// Client invokes a Provider with templated prompts.
type Client struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
}

// Option configures a Client.
type Option func(*Client)

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithMaxTokens sets the default completion cap.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// NewClient creates a Client over the given provider.
func NewClient(provider llm.Provider, opts ...Option) *Client {
	c := &Client{provider: provider, temperature: 0.7, maxTokens: 1024}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete fills the system template, invokes the model once, and returns
// the raw response text. Errors are *MissingVariableError or
// *InvocationError.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	system, err := fillTemplate(req.System, req.Vars)
	if err != nil {
		return "", err
	}

	messages := make([]llm.Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, llm.NewUserMessage(req.Input))

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     messages,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return "", &InvocationError{Err: err}
	}

	return resp.Content, nil
}

// Generate runs Complete and parses the response into out, which must be a
// pointer to a JSON-unmarshalable value. If out implements Validator, its
// Validate method runs after unmarshalling. Parse and validation failures
// are returned as *SchemaError.
func (c *Client) Generate(ctx context.Context, req Request, out any) error {
	text, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	return ParseInto(text, out)
}

// ParseInto extracts the JSON object from raw model output and unmarshals
// it into out, running out's Validate method if implemented.
func ParseInto(text string, out any) error {
	cleaned := extractJSON(stripMarkdownFences(text))
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return &SchemaError{Raw: truncate(text, 500), Err: errNoJSON}
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &SchemaError{Raw: truncate(cleaned, 500), Err: err}
	}

	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return &SchemaError{Raw: truncate(cleaned, 500), Err: err}
		}
	}
	return nil
}

var errNoJSON = jsonError("no JSON content found in response")

type jsonError string

func (e jsonError) Error() string { return string(e) }

var placeholderRe = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// fillTemplate substitutes {name} placeholders from vars. Every placeholder
// must have a value; literal braces that do not match the placeholder shape
// (e.g. JSON examples embedded in prompts) pass through untouched.
func fillTemplate(template string, vars map[string]string) (string, error) {
	var missing *MissingVariableError
	filled := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok {
			if missing == nil {
				missing = &MissingVariableError{Variable: name}
			}
			return m
		}
		return v
	})
	if missing != nil {
		return "", missing
	}
	return filled, nil
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")

func stripMarkdownFences(text string) string {
	if matches := fenceRe.FindStringSubmatch(text); len(matches) > 1 {
		return matches[1]
	}
	return text
}

func extractJSON(text string) string {
	// Find the first { and last } to extract the JSON object
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
