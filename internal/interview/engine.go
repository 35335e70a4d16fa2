package interview

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apresai/sprintkit/internal/history"
	"github.com/apresai/sprintkit/internal/llm"
	"github.com/apresai/sprintkit/internal/structgen"
)

// Params configures one interview run.
type Params struct {
	SprintGoal        string
	ExpertID          string
	ExpertDescription string

	// NumCycles is the number of question/answer pairs; must be >= 1.
	// The transcript always closes on an answer.
	NumCycles int
}

// Engine runs interviews. Safe for concurrent use; each Run owns its two
// sessions exclusively through identifier allocation, so no locking is
// needed across interviews.
type Engine struct {
	gen   *structgen.Client
	store history.Store
	ids   history.IDGen
	log   *slog.Logger
}

// NewEngine creates an Engine. ids may be nil for the ULID default.
func NewEngine(gen *structgen.Client, store history.Store, ids history.IDGen, logger *slog.Logger) *Engine {
	if ids == nil {
		ids = history.NewULIDGen()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{gen: gen, store: store, ids: ids, log: logger}
}

// Run conducts one full interview. On a mid-conversation model failure it
// aborts immediately: the error propagates, entries already persisted stay
// persisted, and the returned Interview holds exactly the turns that
// completed. There is no retry and no partial-turn substitution.
func (e *Engine) Run(ctx context.Context, p Params) (*Interview, error) {
	if p.NumCycles < 1 {
		return nil, fmt.Errorf("interview: NumCycles must be >= 1, got %d", p.NumCycles)
	}

	id := e.ids()
	interviewer, err := e.store.Open(ctx, "interviewer_"+id)
	if err != nil {
		return nil, fmt.Errorf("open interviewer session: %w", err)
	}
	defer interviewer.Close(context.WithoutCancel(ctx))

	expert, err := e.store.Open(ctx, "expert_"+id)
	if err != nil {
		return nil, fmt.Errorf("open expert session: %w", err)
	}
	defer expert.Close(context.WithoutCancel(ctx))

	log := e.log.With("expert_id", p.ExpertID, "interviewer_session", interviewer.ID(), "expert_session", expert.ID())
	log.DebugContext(ctx, "Interview starting", "num_cycles", p.NumCycles)

	iv := &Interview{ExpertID: p.ExpertID}
	vars := map[string]string{
		"design_sprint_goal": p.SprintGoal,
		"expert_description": p.ExpertDescription,
	}

	// Turn 0: seed the interviewer. The seed consumes no expert history slot.
	question, err := e.invokeRole(ctx, interviewer, interviewerSystemPrompt, vars, seedInput)
	if err != nil {
		return iv, fmt.Errorf("interview turn %d: %w", len(iv.Turns), err)
	}
	iv.Turns = append(iv.Turns, Turn{Role: RoleQuestion, Text: question})

	for i := 0; i < p.NumCycles-1; i++ {
		answer, err := e.invokeRole(ctx, expert, expertSystemPrompt, vars, question)
		if err != nil {
			return iv, fmt.Errorf("interview turn %d: %w", len(iv.Turns), err)
		}
		iv.Turns = append(iv.Turns, Turn{Role: RoleAnswer, Text: answer})

		question, err = e.invokeRole(ctx, interviewer, interviewerSystemPrompt, vars, answer)
		if err != nil {
			return iv, fmt.Errorf("interview turn %d: %w", len(iv.Turns), err)
		}
		iv.Turns = append(iv.Turns, Turn{Role: RoleQuestion, Text: question})
	}

	// Closing answer: the transcript always ends on the expert.
	answer, err := e.invokeRole(ctx, expert, expertSystemPrompt, vars, question)
	if err != nil {
		return iv, fmt.Errorf("interview turn %d: %w", len(iv.Turns), err)
	}
	iv.Turns = append(iv.Turns, Turn{Role: RoleAnswer, Text: answer})

	log.DebugContext(ctx, "Interview complete", "turns", len(iv.Turns))
	return iv, nil
}

// invokeRole replays the role's own history, sends input, and persists the
// exchange. Only this role's prior turns are replayed: interviewer and
// expert never see each other's framing.
func (e *Engine) invokeRole(ctx context.Context, session history.Session, systemPrompt string, vars map[string]string, input string) (string, error) {
	entries, err := session.Entries(ctx)
	if err != nil {
		return "", fmt.Errorf("read session %s: %w", session.ID(), err)
	}

	messages := make([]llm.Message, 0, len(entries))
	for _, entry := range entries {
		switch entry.Role {
		case history.RoleHuman:
			messages = append(messages, llm.NewUserMessage(entry.Text))
		case history.RoleAI:
			messages = append(messages, llm.NewAssistantMessage(entry.Text))
		}
	}

	output, err := e.gen.Complete(ctx, structgen.Request{
		System:  systemPrompt,
		Vars:    vars,
		History: messages,
		Input:   input,
	})
	if err != nil {
		return "", err
	}

	if err := session.Append(ctx, history.Entry{Role: history.RoleHuman, Text: input}); err != nil {
		return "", fmt.Errorf("persist input to session %s: %w", session.ID(), err)
	}
	if err := session.Append(ctx, history.Entry{Role: history.RoleAI, Text: output}); err != nil {
		return "", fmt.Errorf("persist output to session %s: %w", session.ID(), err)
	}

	return output, nil
}
