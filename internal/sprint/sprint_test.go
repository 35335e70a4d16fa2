package sprint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/sprintkit/internal/history/memstore"
	"github.com/apresai/sprintkit/internal/hmw"
	"github.com/apresai/sprintkit/internal/interview"
	"github.com/apresai/sprintkit/internal/llm"
	"github.com/apresai/sprintkit/internal/llm/llmtest"
	"github.com/apresai/sprintkit/internal/persona"
	"github.com/apresai/sprintkit/internal/progress"
	"github.com/apresai/sprintkit/internal/structgen"
)

const panelJSON = `{"experts": [
	{"name": "Dana Liu", "description": "Runs a specialty coffee roastery."},
	{"name": "Priya Shah", "description": "Supply chain analyst for food retail."}
]}`

const hmwJSON = `{"questions": [
	{"question": "HMW turn regulars into online buyers?", "role": "product"},
	{"question": "HMW make checkout effortless?", "role": "technology"},
	{"question": "HMW tell the origin story visually?", "role": "design"}
]}`

// scriptByPrompt routes each call on its system prompt: persona calls get
// the panel, synthesis calls get HMW questions, interview calls get Q/A text.
func scriptByPrompt(panel string, questions string) func(int, llm.CompletionRequest) (string, error) {
	return func(n int, req llm.CompletionRequest) (string, error) {
		sys := req.SystemPrompt
		switch {
		case strings.Contains(sys, "assembling a panel of experts"):
			return panel, nil
		case strings.Contains(sys, "three perspectives"):
			return questions, nil
		case strings.Contains(sys, "tasked with interviewing an expert"):
			return fmt.Sprintf("Q%d", n), nil
		default:
			return fmt.Sprintf("A%d", n), nil
		}
	}
}

func testDeps(p *llmtest.Provider) Deps {
	gen := structgen.NewClient(p)
	ids := func() func() string {
		n := 0
		return func() string {
			n++
			return fmt.Sprintf("id%d", n)
		}
	}()
	return Deps{
		Personas:   persona.NewGenerator(gen, persona.IDGen(ids), nil),
		Interviews: interview.NewEngine(gen, memstore.New(), ids, nil),
		HMW:        hmw.NewSynthesizer(gen),
	}
}

func TestRun(t *testing.T) {
	p := &llmtest.Provider{ResponseFunc: scriptByPrompt(panelJSON, hmwJSON)}

	var events []progress.Event
	rep, err := Run(context.Background(), testDeps(p), Options{
		Goal:     "get more people to buy coffee online",
		Experts:  2,
		Cycles:   2,
		Progress: func(e progress.Event) { events = append(events, e) },
	})
	require.NoError(t, err)

	require.Len(t, rep.Experts, 2)
	require.Len(t, rep.Interviews, 2)
	for _, iv := range rep.Interviews {
		assert.Len(t, iv.Turns, 4)
		assert.NoError(t, iv.Validate())
	}
	require.Len(t, rep.Batches, 4, "one batch per answer, two answers per interview")
	assert.Equal(t, 12, rep.QuestionCount())
	assert.Equal(t, "get more people to buy coffee online", rep.Goal)
	assert.False(t, rep.CreatedAt.IsZero())

	for _, b := range rep.Batches {
		assert.NotEmpty(t, b.ExpertID)
		assert.NotEmpty(t, b.Answer)
		assert.Len(t, b.Questions, 3)
	}

	// 1 persona call + per expert: 4 interview calls and 2 synthesis calls.
	assert.Equal(t, 13, p.CallCount())

	require.NotEmpty(t, events)
	assert.Equal(t, progress.StagePersonas, events[0].Stage)
	last := events[len(events)-1]
	assert.Equal(t, progress.StageComplete, last.Stage)
	assert.Equal(t, 2, last.Experts)
	assert.Equal(t, 12, last.Questions)

	prev := -1.0
	for _, e := range events {
		assert.GreaterOrEqual(t, e.Percent, prev, "progress never moves backwards")
		prev = e.Percent
	}
}

func TestRun_NoExperts(t *testing.T) {
	p := &llmtest.Provider{Responses: []string{"I cannot produce a panel for that."}}

	var events []progress.Event
	rep, err := Run(context.Background(), testDeps(p), Options{
		Goal:     "goal",
		Experts:  3,
		Cycles:   2,
		Progress: func(e progress.Event) { events = append(events, e) },
	})
	require.NoError(t, err, "an empty panel is a terminal outcome, not a failure")

	assert.Empty(t, rep.Experts)
	assert.Empty(t, rep.Interviews)
	assert.Equal(t, 1, p.CallCount(), "no interviews without experts")

	last := events[len(events)-1]
	assert.Equal(t, progress.StageComplete, last.Stage)
	assert.Equal(t, "No experts found.", last.Message)
	assert.Zero(t, last.Experts)
}

func TestRun_ValidatesOptions(t *testing.T) {
	p := &llmtest.Provider{}
	deps := testDeps(p)

	_, err := Run(context.Background(), deps, Options{Goal: "", Experts: 2, Cycles: 2})
	var staged *Error
	require.ErrorAs(t, err, &staged)
	assert.Equal(t, "personas", staged.Stage)

	_, err = Run(context.Background(), deps, Options{Goal: "g", Experts: 0, Cycles: 2})
	require.ErrorAs(t, err, &staged)
	assert.Equal(t, "personas", staged.Stage)

	_, err = Run(context.Background(), deps, Options{Goal: "g", Experts: 2, Cycles: 0})
	require.ErrorAs(t, err, &staged)
	assert.Equal(t, "interview", staged.Stage)

	assert.Zero(t, p.CallCount())
}

func TestRun_InterviewFailure(t *testing.T) {
	boom := errors.New("rate limited")
	p := &llmtest.Provider{
		ResponseFunc: scriptByPrompt(panelJSON, hmwJSON),
		FailAt:       3, // first expert turn of the first interview
		FailErr:      boom,
	}

	rep, err := Run(context.Background(), testDeps(p), Options{
		Goal:    "goal",
		Experts: 2,
		Cycles:  2,
	})
	var staged *Error
	require.ErrorAs(t, err, &staged)
	assert.Equal(t, "interview", staged.Stage)
	assert.ErrorIs(t, err, boom)

	// The panel survives the failed interview.
	assert.Len(t, rep.Experts, 2)
	assert.Empty(t, rep.Interviews)
}

func TestRun_SynthesisFailure(t *testing.T) {
	p := &llmtest.Provider{ResponseFunc: scriptByPrompt(panelJSON, "not json at all")}

	rep, err := Run(context.Background(), testDeps(p), Options{
		Goal:    "goal",
		Experts: 2,
		Cycles:  2,
	})
	var staged *Error
	require.ErrorAs(t, err, &staged)
	assert.Equal(t, "hmw", staged.Stage)
	assert.True(t, structgen.IsSchemaError(err))

	// Everything completed before the failure is retained.
	assert.Len(t, rep.Experts, 2)
	assert.Len(t, rep.Interviews, 1)
	assert.Empty(t, rep.Batches)
}
