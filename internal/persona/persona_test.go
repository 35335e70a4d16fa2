package persona

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/sprintkit/internal/llm/llmtest"
	"github.com/apresai/sprintkit/internal/structgen"
)

func countingIDGen() IDGen {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("expert-%d", n)
	}
}

func TestGenerate(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{
		`{"experts": [
			{"name": "Dana Liu", "description": "Runs a specialty coffee roastery."},
			{"name": " Priya Shah ", "description": "Supply chain analyst for food retail."},
			{"name": "Tom Okafor", "description": "Barista trainer and competition judge."}
		]}`,
	}}
	g := NewGenerator(structgen.NewClient(p), countingIDGen(), nil)

	experts, err := g.Generate(context.Background(), "get more people to buy coffee online", 3)
	require.NoError(t, err)
	require.Len(t, experts, 3)

	assert.Equal(t, "expert-1", experts[0].ID)
	assert.Equal(t, "expert-2", experts[1].ID)
	assert.Equal(t, "expert-3", experts[2].ID)
	assert.Equal(t, "Priya Shah", experts[1].Name, "names are trimmed")

	require.Equal(t, 1, p.CallCount())
	sys := p.Calls[0].Req.SystemPrompt
	assert.Contains(t, sys, "get more people to buy coffee online")
	assert.Contains(t, sys, "3")
	assert.Equal(t, "Create the expert panel now.", p.Calls[0].Req.Messages[0].Content)
}

func TestGenerate_SchemaFailureYieldsEmptyPanel(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{"I cannot produce a panel for that."}}
	g := NewGenerator(structgen.NewClient(p), nil, nil)

	experts, err := g.Generate(context.Background(), "goal", 4)
	require.NoError(t, err, "schema failures are absorbed, not returned")
	assert.Empty(t, experts)
	assert.NotNil(t, experts, "empty panel, not a nil slice")
}

func TestGenerate_InvocationFailureYieldsEmptyPanel(t *testing.T) {
	p := &llmtest.Provider{Err: errors.New("connection refused")}
	g := NewGenerator(structgen.NewClient(p), nil, nil)

	experts, err := g.Generate(context.Background(), "goal", 4)
	require.NoError(t, err)
	assert.Empty(t, experts)
}

func TestGenerate_EmptyListFailsValidation(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{`{"experts": []}`}}
	g := NewGenerator(structgen.NewClient(p), nil, nil)

	experts, err := g.Generate(context.Background(), "goal", 2)
	require.NoError(t, err)
	assert.Empty(t, experts)
}

func TestGenerate_InvalidCount(t *testing.T) {
	p := &llmtest.Provider{}
	g := NewGenerator(structgen.NewClient(p), nil, nil)

	_, err := g.Generate(context.Background(), "goal", 0)
	assert.Error(t, err)
	assert.Zero(t, p.CallCount())
}
