package structgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/sprintkit/internal/llm"
	"github.com/apresai/sprintkit/internal/llm/llmtest"
)

type widget struct {
	Name string `json:"name"`
}

func (w *widget) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func TestComplete_FillsSystemTemplate(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{"ok"}}
	c := NewClient(p)

	got, err := c.Complete(context.Background(), Request{
		System: "You are a {role} working on {topic}.",
		Vars:   map[string]string{"role": "critic", "topic": "coffee"},
		Input:  "Begin.",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	require.Len(t, p.Calls, 1)
	req := p.Calls[0].Req
	assert.Equal(t, "You are a critic working on coffee.", req.SystemPrompt)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Equal(t, "Begin.", req.Messages[0].Content)
}

func TestComplete_InputIsVerbatim(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{"ok"}}
	c := NewClient(p)

	// Conversation input is prior model output and may contain brace text
	// that must never be treated as a template.
	_, err := c.Complete(context.Background(), Request{
		System: "You are an assistant.",
		Input:  "the config uses {placeholders} like this",
	})
	require.NoError(t, err)
	assert.Equal(t, "the config uses {placeholders} like this", p.Calls[0].Req.Messages[0].Content)
}

func TestComplete_MissingVariable(t *testing.T) {
	p := &llmtest.Provider{}
	c := NewClient(p)

	_, err := c.Complete(context.Background(), Request{
		System: "Goal: {goal}",
		Vars:   map[string]string{},
	})
	var missing *MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "goal", missing.Variable)
	assert.Zero(t, p.CallCount(), "model must not be invoked on template errors")
}

func TestComplete_JSONExampleBracesPassThrough(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{"ok"}}
	c := NewClient(p)

	system := `Answer as JSON: {"experts": [{"name": "...", "description": "..."}]} for goal {goal}`
	_, err := c.Complete(context.Background(), Request{
		System: system,
		Vars:   map[string]string{"goal": "retention"},
	})
	require.NoError(t, err)
	assert.Contains(t, p.Calls[0].Req.SystemPrompt, `{"experts":`)
	assert.Contains(t, p.Calls[0].Req.SystemPrompt, "retention")
}

func TestComplete_WrapsProviderError(t *testing.T) {
	sentinel := errors.New("rate limited")
	p := &llmtest.Provider{Err: sentinel}
	c := NewClient(p)

	_, err := c.Complete(context.Background(), Request{System: "x", Input: "y"})
	assert.True(t, IsInvocationError(err))
	assert.ErrorIs(t, err, sentinel)
}

func TestComplete_History(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{"ok"}}
	c := NewClient(p)

	_, err := c.Complete(context.Background(), Request{
		System: "sys",
		History: []llm.Message{
			llm.NewUserMessage("q1"),
			llm.NewAssistantMessage("a1"),
		},
		Input: "q2",
	})
	require.NoError(t, err)

	msgs := p.Calls[0].Req.Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "q1", msgs[0].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "q2", msgs[2].Content)
}

func TestComplete_Defaults(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{"ok", "ok"}}
	c := NewClient(p, WithTemperature(0.2), WithMaxTokens(256))

	_, err := c.Complete(context.Background(), Request{System: "x", Input: "y"})
	require.NoError(t, err)
	assert.Equal(t, 0.2, p.Calls[0].Req.Temperature)
	assert.Equal(t, 256, p.Calls[0].Req.MaxTokens)

	_, err = c.Complete(context.Background(), Request{System: "x", Input: "y", Temperature: 0.9, MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, 0.9, p.Calls[1].Req.Temperature)
	assert.Equal(t, 64, p.Calls[1].Req.MaxTokens)
}

func TestGenerate_ParsesFencedJSON(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{"```json\n{\"name\": \"alpha\"}\n```"}}
	c := NewClient(p)

	var w widget
	err := c.Generate(context.Background(), Request{System: "x", Input: "y"}, &w)
	require.NoError(t, err)
	assert.Equal(t, "alpha", w.Name)
}

func TestParseInto_ExtractsFromProse(t *testing.T) {
	var w widget
	err := ParseInto(`Sure, here is the result: {"name": "beta"} — hope that helps!`, &w)
	require.NoError(t, err)
	assert.Equal(t, "beta", w.Name)
}

func TestParseInto_SchemaErrorOnBadJSON(t *testing.T) {
	var w widget
	err := ParseInto(`{"name": `, &w)
	assert.True(t, IsSchemaError(err))

	var schema *SchemaError
	require.ErrorAs(t, err, &schema)
	assert.NotEmpty(t, schema.Raw)
}

func TestParseInto_SchemaErrorOnNoJSON(t *testing.T) {
	var w widget
	err := ParseInto("I'm sorry, I can't help with that.", &w)
	assert.True(t, IsSchemaError(err))
}

func TestParseInto_ValidatorFailure(t *testing.T) {
	var w widget
	err := ParseInto(`{"name": ""}`, &w)
	assert.True(t, IsSchemaError(err))
	assert.Contains(t, err.Error(), "name is required")
}

func TestParseInto_TruncatesRaw(t *testing.T) {
	var w widget
	long := "not json " + strings.Repeat("x", 1000)
	err := ParseInto(long, &w)

	var schema *SchemaError
	require.ErrorAs(t, err, &schema)
	assert.LessOrEqual(t, len(schema.Raw), 503)
	assert.True(t, strings.HasSuffix(schema.Raw, "..."))
}
