// Package sprint sequences one design sprint run: persona generation, one
// interview per expert, and HMW synthesis per interview answer, strictly in
// order. It owns the experts for the duration of the run and assembles the
// final report.
package sprint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apresai/sprintkit/internal/hmw"
	"github.com/apresai/sprintkit/internal/interview"
	"github.com/apresai/sprintkit/internal/persona"
	"github.com/apresai/sprintkit/internal/progress"
	"github.com/apresai/sprintkit/internal/report"
)

// Deps bundles the collaborators a sprint run needs.
type Deps struct {
	Personas   *persona.Generator
	Interviews *interview.Engine
	HMW        *hmw.Synthesizer
	Log        *slog.Logger
}

// Options configures one sprint run.
type Options struct {
	// Goal is the sprint problem statement.
	Goal string

	// Experts is how many personas to request; must be >= 1.
	Experts int

	// Cycles is the question/answer pair count per interview; must be >= 1.
	Cycles int

	// Progress receives stage events; nil means silent.
	Progress progress.Callback
}

// Error is a staged sprint failure.
type Error struct {
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Run executes one sprint. An empty expert panel is a legitimate terminal
// outcome, returned as a report with no experts and a nil error, distinct
// from a failed sprint. A mid-sprint failure halts the run; the returned
// report retains everything completed before the failure.
func Run(ctx context.Context, deps Deps, opts Options) (*report.Report, error) {
	start := time.Now()

	cb := opts.Progress
	if cb == nil {
		cb = progress.NopCallback
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	rep := &report.Report{Goal: opts.Goal, CreatedAt: start.UTC()}

	if opts.Goal == "" {
		return rep, &Error{Stage: "personas", Message: "sprint goal is required"}
	}
	if opts.Experts < 1 {
		return rep, &Error{Stage: "personas", Message: fmt.Sprintf("expert count must be >= 1, got %d", opts.Experts)}
	}
	if opts.Cycles < 1 {
		return rep, &Error{Stage: "interview", Message: fmt.Sprintf("cycle count must be >= 1, got %d", opts.Cycles)}
	}

	// Stage 1: personas
	cb(progress.NewEvent(progress.StagePersonas, "Generating experts...", 0.0, start))
	experts, err := deps.Personas.Generate(ctx, opts.Goal, opts.Experts)
	if err != nil {
		return rep, &Error{Stage: "personas", Message: "failed to generate experts", Err: err}
	}
	rep.Experts = experts

	if len(experts) == 0 {
		log.InfoContext(ctx, "No experts generated", "goal", opts.Goal)
		cb(completeEvent(rep, "No experts found.", start))
		return rep, nil
	}
	log.InfoContext(ctx, "Experts generated", "count", len(experts))

	// Stages 2+3, per expert: interview then HMW synthesis
	for i, expert := range experts {
		pct := stagePct(i, len(experts), 0.0)
		ev := progress.NewEvent(progress.StageInterview,
			fmt.Sprintf("Interviewing %s (%d/%d)...", expert.Name, i+1, len(experts)), pct, start)
		ev.ExpertNum, ev.ExpertTotal = i+1, len(experts)
		cb(ev)

		iv, err := deps.Interviews.Run(ctx, interview.Params{
			SprintGoal:        opts.Goal,
			ExpertID:          expert.ID,
			ExpertDescription: expert.Description,
			NumCycles:         opts.Cycles,
		})
		if err != nil {
			return rep, &Error{Stage: "interview", Message: fmt.Sprintf("interview with %s failed", expert.Name), Err: err}
		}
		rep.Interviews = append(rep.Interviews, *iv)

		ev = progress.NewEvent(progress.StageHMW,
			fmt.Sprintf("Synthesizing HMW questions for %s (%d/%d)...", expert.Name, i+1, len(experts)),
			stagePct(i, len(experts), 0.5), start)
		ev.ExpertNum, ev.ExpertTotal = i+1, len(experts)
		cb(ev)

		for _, answer := range iv.Answers() {
			questions, err := deps.HMW.Synthesize(ctx, answer, opts.Goal)
			if err != nil {
				return rep, &Error{Stage: "hmw", Message: fmt.Sprintf("HMW synthesis for %s failed", expert.Name), Err: err}
			}
			rep.Batches = append(rep.Batches, report.Batch{
				ExpertID:  expert.ID,
				Answer:    answer,
				Questions: questions,
			})
		}
	}

	log.InfoContext(ctx, "Sprint complete",
		"experts", len(rep.Experts),
		"interviews", len(rep.Interviews),
		"questions", rep.QuestionCount(),
		"elapsed", time.Since(start).Round(time.Millisecond))

	cb(completeEvent(rep, "Sprint complete.", start))
	return rep, nil
}

// stagePct maps per-expert progress onto the 10%..100% band; the first 10%
// belongs to persona generation.
func stagePct(expertIdx, expertTotal int, within float64) float64 {
	perExpert := 0.9 / float64(expertTotal)
	return 0.1 + perExpert*(float64(expertIdx)+within)
}

func completeEvent(rep *report.Report, msg string, start time.Time) progress.Event {
	ev := progress.NewEvent(progress.StageComplete, msg, 1.0, start)
	ev.Experts = len(rep.Experts)
	ev.Questions = rep.QuestionCount()
	return ev
}
