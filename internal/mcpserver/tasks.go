package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/sprintkit/internal/history"
	"github.com/apresai/sprintkit/internal/hmw"
	"github.com/apresai/sprintkit/internal/interview"
	"github.com/apresai/sprintkit/internal/llm"
	"github.com/apresai/sprintkit/internal/llm/anyllm"
	"github.com/apresai/sprintkit/internal/llm/claude"
	"github.com/apresai/sprintkit/internal/llm/nova"
	"github.com/apresai/sprintkit/internal/observability"
	"github.com/apresai/sprintkit/internal/persona"
	"github.com/apresai/sprintkit/internal/progress"
	"github.com/apresai/sprintkit/internal/sprint"
	"github.com/apresai/sprintkit/internal/structgen"
)

// RunRequest holds parameters for a sprint run task.
type RunRequest struct {
	Goal     string
	Experts  int
	Cycles   int
	Provider string
	Model    string
	Owner    string

	// Per-request API key overrides (BYOK). Empty = use server defaults.
	AnthropicAPIKey string
	OpenAIAPIKey    string
}

// TaskManager manages async sprint run tasks.
type TaskManager struct {
	store    *Store
	storage  *Storage
	sessions history.Store
	log      *slog.Logger
	baseCtx  context.Context // cancelled on SIGTERM for graceful shutdown

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
	maxTasks int
	running  int
}

// NewTaskManager creates a task manager.
// baseCtx should be cancelled on SIGTERM so sprint goroutines can clean up.
func NewTaskManager(store *Store, storage *Storage, sessions history.Store, maxTasks int, logger *slog.Logger, baseCtx context.Context) *TaskManager {
	if maxTasks <= 0 {
		maxTasks = 5
	}
	return &TaskManager{
		store:    store,
		storage:  storage,
		sessions: sessions,
		log:      logger,
		baseCtx:  baseCtx,
		cancels:  make(map[string]context.CancelFunc),
		maxTasks: maxTasks,
	}
}

// StartTask creates a DynamoDB record and starts sprint.Run in a goroutine.
// Returns the sprint ID immediately.
func (tm *TaskManager) StartTask(ctx context.Context, req RunRequest) (string, error) {
	id, err := NewSprintID()
	if err != nil {
		return "", err
	}

	tm.mu.Lock()
	if tm.running >= tm.maxTasks {
		tm.mu.Unlock()
		return "", fmt.Errorf("max concurrent tasks reached (%d)", tm.maxTasks)
	}
	tm.running++

	// Derive goroutine context from baseCtx (cancelled on SIGTERM) rather than
	// the HTTP request context (cancelled when the response is sent).
	// Carry trace span from the HTTP request for observability linking.
	taskCtx := observability.DetachTraceContextFrom(ctx, tm.baseCtx)
	taskCtx, cancel := context.WithCancel(taskCtx)
	tm.cancels[id] = cancel
	tm.mu.Unlock()

	if err := tm.store.CreateJob(ctx, id, req.Owner, req.Goal, req.Provider, req.Model, req.Experts, req.Cycles); err != nil {
		cancel()
		tm.mu.Lock()
		delete(tm.cancels, id)
		tm.running--
		tm.mu.Unlock()
		return "", fmt.Errorf("create job: %w", err)
	}

	go tm.runSprint(taskCtx, id, req)

	return id, nil
}

// CancelTask cancels a running task.
func (tm *TaskManager) CancelTask(id string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if cancel, ok := tm.cancels[id]; ok {
		cancel()
	}
}

func (tm *TaskManager) runSprint(ctx context.Context, id string, req RunRequest) {
	ctx, span := tracer.Start(ctx, "sprint.run",
		trace.WithAttributes(attribute.String("sprint_id", id)),
	)
	defer span.End()

	defer func() {
		// On shutdown (SIGTERM), mark any in-progress job as failed so it doesn't
		// appear stuck in "interviewing" forever.
		if ctx.Err() != nil {
			failCtx, failCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer failCancel()
			tm.store.FailJob(failCtx, id, "server shutdown during processing")
			tm.log.Info("Marked job as failed due to shutdown", "sprint_id", id)
		}
		tm.mu.Lock()
		delete(tm.cancels, id)
		tm.running--
		tm.mu.Unlock()
	}()

	log := tm.log.With("sprint_id", id)

	provider, err := newProvider(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create provider failed")
		tm.store.FailJob(ctx, id, fmt.Sprintf("create provider: %v", err))
		return
	}

	// Throttle DynamoDB writes: max 1 per 2 seconds except on stage transitions.
	var lastWrite time.Time
	var lastStage progress.Stage

	progressCb := func(evt progress.Event) {
		now := time.Now()
		stageChanged := evt.Stage != lastStage
		throttled := now.Sub(lastWrite) < 2*time.Second

		if throttled && !stageChanged {
			return
		}

		if stageChanged {
			fmt.Fprintf(os.Stderr, "[%s] stage=%s msg=%s pct=%.2f\n", id, evt.Stage, evt.Message, evt.Percent)
			span.AddEvent("stage_transition",
				trace.WithAttributes(
					attribute.String("stage", evt.Message),
					attribute.Float64("percent", evt.Percent),
				),
			)
		}

		status := mapStage(evt.Stage)
		if err := tm.store.UpdateProgress(ctx, id, status, evt.Percent, evt.Message); err != nil {
			log.WarnContext(ctx, "Update progress failed", "error", err)
		}
		lastWrite = now
		lastStage = evt.Stage
	}

	gen := structgen.NewClient(provider)
	deps := sprint.Deps{
		Personas:   persona.NewGenerator(gen, nil, log),
		Interviews: interview.NewEngine(gen, tm.sessions, nil, log),
		HMW:        hmw.NewSynthesizer(gen),
		Log:        log,
	}

	runStart := time.Now()
	log.InfoContext(ctx, "Sprint starting",
		"goal", req.Goal, "experts", req.Experts, "cycles", req.Cycles,
		"provider", req.Provider, "model", req.Model)

	rep, err := sprint.Run(ctx, deps, sprint.Options{
		Goal:     req.Goal,
		Experts:  req.Experts,
		Cycles:   req.Cycles,
		Progress: progressCb,
	})
	if err != nil {
		elapsed := time.Since(runStart).Round(time.Second)
		span.RecordError(err)
		span.SetStatus(codes.Error, "sprint failed")
		log.ErrorContext(ctx, "Sprint failed", "error", err, "elapsed", elapsed.String())
		tm.store.FailJob(ctx, id, err.Error())
		return
	}

	reportJSON, err := json.Marshal(rep)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal report failed")
		tm.store.FailJob(ctx, id, fmt.Sprintf("marshal report: %v", err))
		return
	}

	// Upload to S3
	tm.store.UpdateProgress(ctx, id, JobStatusSynthesizing, 0.95, "Uploading report...")
	reportKey, reportURL, err := tm.storage.Upload(ctx, id, reportJSON)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		log.ErrorContext(ctx, "S3 upload failed", "error", err)
		tm.store.FailJob(ctx, id, fmt.Sprintf("upload to S3: %v", err))
		return
	}

	experts := len(rep.Experts)
	questions := rep.QuestionCount()
	if err := tm.store.CompleteJob(ctx, id, experts, questions, string(reportJSON), reportKey, reportURL); err != nil {
		log.ErrorContext(ctx, "Complete job failed", "error", err)
	}

	elapsed := time.Since(runStart).Round(time.Second)
	span.SetAttributes(
		attribute.Int("experts", experts),
		attribute.Int("questions", questions),
		attribute.String("report_url", reportURL),
	)
	span.SetStatus(codes.Ok, "complete")
	log.InfoContext(ctx, "Sprint complete",
		"experts", experts, "questions", questions, "report_url", reportURL, "elapsed", elapsed.String())
}

// newProvider builds the llm.Provider for a run request. "claude" and "nova"
// use the native SDK providers; everything else goes through any-llm-go.
func newProvider(req RunRequest) (llm.Provider, error) {
	switch req.Provider {
	case "", "claude":
		var opts []option.RequestOption
		if req.AnthropicAPIKey != "" {
			opts = append(opts, option.WithAPIKey(req.AnthropicAPIKey))
		}
		return claude.New(req.Model, opts...), nil
	case "nova":
		return nova.New(req.Model)
	default:
		var opts []anyllmlib.Option
		if req.Provider == "anthropic" && req.AnthropicAPIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(req.AnthropicAPIKey))
		}
		if req.Provider == "openai" && req.OpenAIAPIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(req.OpenAIAPIKey))
		}
		model := req.Model
		if model == "" {
			model = defaultModels[req.Provider]
		}
		if model == "" {
			return nil, fmt.Errorf("model is required for provider %q", req.Provider)
		}
		return anyllm.New(req.Provider, model, opts...)
	}
}

// defaultModels maps any-llm provider names to a sensible default model.
var defaultModels = map[string]string{
	"openai":  "gpt-4o-mini",
	"ollama":  "mistral",
	"mistral": "mistral-small-latest",
	"gemini":  "gemini-2.0-flash",
	"groq":    "llama-3.3-70b-versatile",
}

// mapStage maps a sprint progress stage to a job status.
func mapStage(stage progress.Stage) JobStatus {
	switch stage {
	case progress.StagePersonas:
		return JobStatusPersonas
	case progress.StageInterview:
		return JobStatusInterviewing
	case progress.StageHMW:
		return JobStatusSynthesizing
	case progress.StageComplete:
		return JobStatusComplete
	default:
		return JobStatusSubmitted
	}
}
