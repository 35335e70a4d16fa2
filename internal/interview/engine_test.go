package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/sprintkit/internal/history"
	"github.com/apresai/sprintkit/internal/history/memstore"
	"github.com/apresai/sprintkit/internal/llm"
	"github.com/apresai/sprintkit/internal/llm/llmtest"
	"github.com/apresai/sprintkit/internal/structgen"
)

// scriptedRoles answers "Q<n>" to interviewer calls and "A<n>" to expert
// calls, distinguished by the system prompt framing.
func scriptedRoles() func(int, llm.CompletionRequest) (string, error) {
	return func(n int, req llm.CompletionRequest) (string, error) {
		if strings.Contains(req.SystemPrompt, "tasked with interviewing an expert") {
			return fmt.Sprintf("Q%d", n), nil
		}
		return fmt.Sprintf("A%d", n), nil
	}
}

func fixedIDGen(id string) history.IDGen {
	return func() string { return id }
}

func seqIDGen() history.IDGen {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("iv%d", n)
	}
}

func params(cycles int) Params {
	return Params{
		SprintGoal:        "get more people to buy coffee online",
		ExpertID:          "expert-1",
		ExpertDescription: "Runs a specialty coffee roastery.",
		NumCycles:         cycles,
	}
}

func TestRun_TurnCountAndAlternation(t *testing.T) {
	p := &llmtest.Provider{ResponseFunc: scriptedRoles()}
	e := NewEngine(structgen.NewClient(p), memstore.New(), seqIDGen(), nil)

	iv, err := e.Run(context.Background(), params(3))
	require.NoError(t, err)

	require.Len(t, iv.Turns, 6, "2 x NumCycles turns")
	require.NoError(t, iv.Validate())
	assert.Equal(t, RoleQuestion, iv.Turns[0].Role)
	assert.Equal(t, RoleAnswer, iv.Turns[5].Role)
	assert.Equal(t, "expert-1", iv.ExpertID)
	assert.Equal(t, 6, p.CallCount(), "one model call per turn")

	answers := iv.Answers()
	require.Len(t, answers, 3)
	assert.Equal(t, "A2", answers[0])
}

func TestRun_SingleCycle(t *testing.T) {
	p := &llmtest.Provider{ResponseFunc: scriptedRoles()}
	e := NewEngine(structgen.NewClient(p), memstore.New(), seqIDGen(), nil)

	iv, err := e.Run(context.Background(), params(1))
	require.NoError(t, err)
	require.Len(t, iv.Turns, 2)
	assert.Equal(t, RoleQuestion, iv.Turns[0].Role)
	assert.Equal(t, RoleAnswer, iv.Turns[1].Role)
}

func TestRun_SeedAndRelay(t *testing.T) {
	p := &llmtest.Provider{ResponseFunc: scriptedRoles()}
	e := NewEngine(structgen.NewClient(p), memstore.New(), seqIDGen(), nil)

	_, err := e.Run(context.Background(), params(2))
	require.NoError(t, err)

	// Call 1: interviewer, seeded with the opening cue and no history.
	first := p.Calls[0].Req
	require.Len(t, first.Messages, 1)
	assert.Equal(t, "What would you like to ask me?", first.Messages[0].Content)

	// Call 2: expert receives the interviewer's question verbatim.
	second := p.Calls[1].Req
	require.Len(t, second.Messages, 1)
	assert.Equal(t, "Q1", second.Messages[0].Content)

	// Call 3: interviewer again, now replaying its own two prior entries.
	third := p.Calls[2].Req
	require.Len(t, third.Messages, 3)
	assert.Equal(t, llm.RoleUser, third.Messages[0].Role)
	assert.Equal(t, "What would you like to ask me?", third.Messages[0].Content)
	assert.Equal(t, llm.RoleAssistant, third.Messages[1].Role)
	assert.Equal(t, "Q1", third.Messages[1].Content)
	assert.Equal(t, "A2", third.Messages[2].Content)

	// The expert never sees the seed cue or the interviewer's framing.
	for _, c := range p.Calls {
		if strings.Contains(c.Req.SystemPrompt, "adopting the following persona") {
			for _, m := range c.Req.Messages {
				assert.NotEqual(t, "What would you like to ask me?", m.Content)
			}
		}
	}
}

func TestRun_SessionsPerInterview(t *testing.T) {
	p := &llmtest.Provider{ResponseFunc: scriptedRoles()}
	store := memstore.New()
	e := NewEngine(structgen.NewClient(p), store, seqIDGen(), nil)

	_, err := e.Run(context.Background(), params(2))
	require.NoError(t, err)
	_, err = e.Run(context.Background(), params(2))
	require.NoError(t, err)

	assert.Equal(t, 4, store.Len(), "two sessions per interview, none shared")

	ctx := context.Background()
	interviewer, err := store.Open(ctx, "interviewer_iv1")
	require.NoError(t, err)
	entries, err := interviewer.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "two entries per interviewer turn")

	expert, err := store.Open(ctx, "expert_iv1")
	require.NoError(t, err)
	entries, err = expert.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestRun_FailureKeepsCompletedTurns(t *testing.T) {
	boom := errors.New("rate limited")
	p := &llmtest.Provider{
		ResponseFunc: scriptedRoles(),
		FailAt:       3,
		FailErr:      boom,
	}
	store := memstore.New()
	e := NewEngine(structgen.NewClient(p), store, fixedIDGen("iv1"), nil)

	iv, err := e.Run(context.Background(), params(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, structgen.IsInvocationError(err))
	assert.Contains(t, err.Error(), "turn 2")

	// The two completed turns survive; the failed call contributes nothing.
	require.NotNil(t, iv)
	require.Len(t, iv.Turns, 2)
	assert.Equal(t, 3, p.CallCount())

	ctx := context.Background()
	interviewer, err := store.Open(ctx, "interviewer_iv1")
	require.NoError(t, err)
	entries, err := interviewer.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "failed interviewer call persisted nothing")

	expert, err := store.Open(ctx, "expert_iv1")
	require.NoError(t, err)
	entries, err = expert.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRun_InvalidCycles(t *testing.T) {
	p := &llmtest.Provider{}
	e := NewEngine(structgen.NewClient(p), memstore.New(), nil, nil)

	_, err := e.Run(context.Background(), params(0))
	assert.Error(t, err)
	assert.Zero(t, p.CallCount())
}

func TestInterviewValidate(t *testing.T) {
	good := &Interview{Turns: []Turn{
		{Role: RoleQuestion, Text: "q"},
		{Role: RoleAnswer, Text: "a"},
	}}
	assert.NoError(t, good.Validate())

	odd := &Interview{Turns: []Turn{{Role: RoleQuestion, Text: "q"}}}
	assert.Error(t, odd.Validate())

	swapped := &Interview{Turns: []Turn{
		{Role: RoleAnswer, Text: "a"},
		{Role: RoleQuestion, Text: "q"},
	}}
	assert.Error(t, swapped.Validate())
}
