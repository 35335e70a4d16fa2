package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("sprintkit-mcp")

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "run_sprint",
			Description: "Run an automated design sprint for a problem statement: generate an expert panel, interview each expert, and synthesize How Might We questions from their answers. Starts an async task and returns a sprint ID. Use get_sprint to check progress.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"goal": map[string]any{
						"type":        "string",
						"description": "The design sprint goal or problem statement to investigate",
					},
					"experts": map[string]any{
						"type":        "integer",
						"description": "Number of expert personas to generate and interview (1-10)",
						"default":     4,
					},
					"cycles": map[string]any{
						"type":        "integer",
						"description": "Question/answer cycles per interview",
						"default":     3,
					},
					"provider": map[string]any{
						"type":        "string",
						"description": "LLM provider: claude, nova, openai, anthropic, gemini, ollama, mistral, groq",
						"default":     "claude",
					},
					"model": map[string]any{
						"type":        "string",
						"description": "Model alias or ID for the chosen provider (e.g. haiku, sonnet, gpt-4o-mini)",
					},
					"anthropic_api_key": map[string]any{
						"type":        "string",
						"description": "Your Anthropic API key (for the claude and anthropic providers if the server has no default key)",
					},
					"openai_api_key": map[string]any{
						"type":        "string",
						"description": "Your OpenAI API key (for the openai provider if the server has no default key)",
					},
				},
				Required: []string{"goal"},
			},
		},
		{
			Name:        "get_sprint",
			Description: "Get the status and details of a sprint by ID. Use this to check on a running sprint or retrieve a completed sprint's report URL and HMW questions.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"sprint_id": map[string]any{
						"type":        "string",
						"description": "The sprint ID returned from run_sprint",
					},
				},
				Required: []string{"sprint_id"},
			},
		},
		{
			Name:        "list_sprints",
			Description: "List all sprints, newest first. Returns sprint IDs, goals, status, and report URLs.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results (default 20)",
						"default":     20,
					},
					"cursor": map[string]any{
						"type":        "string",
						"description": "Pagination cursor from a previous list_sprints call",
					},
				},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	tasks *TaskManager
	store *Store
	log   *slog.Logger
}

// NewHandlers creates tool handlers.
func NewHandlers(tasks *TaskManager, store *Store, logger *slog.Logger) *Handlers {
	return &Handlers{tasks: tasks, store: store, log: logger}
}

// HandleRunSprint starts a sprint run task.
func (h *Handlers) HandleRunSprint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.run_sprint")
	defer span.End()

	runReq := RunRequest{
		Goal:            mcp.ParseString(req, "goal", ""),
		Experts:         parseIntParam(req, "experts", 4),
		Cycles:          parseIntParam(req, "cycles", 3),
		Provider:        mcp.ParseString(req, "provider", "claude"),
		Model:           mcp.ParseString(req, "model", ""),
		AnthropicAPIKey: mcp.ParseString(req, "anthropic_api_key", ""),
		OpenAIAPIKey:    mcp.ParseString(req, "openai_api_key", ""),
		Owner:           "mcp-server",
	}

	span.SetAttributes(
		attribute.String("goal", runReq.Goal),
		attribute.Int("experts", runReq.Experts),
		attribute.Int("cycles", runReq.Cycles),
		attribute.String("provider", runReq.Provider),
		attribute.String("model", runReq.Model),
	)

	if runReq.Goal == "" {
		span.SetStatus(codes.Error, "missing goal")
		return mcp.NewToolResultError("goal is required"), nil
	}
	if runReq.Experts < 1 || runReq.Experts > 10 {
		span.SetStatus(codes.Error, "invalid experts")
		return mcp.NewToolResultError("experts must be between 1 and 10"), nil
	}
	if runReq.Cycles < 1 || runReq.Cycles > 10 {
		span.SetStatus(codes.Error, "invalid cycles")
		return mcp.NewToolResultError("cycles must be between 1 and 10"), nil
	}

	id, err := h.tasks.StartTask(ctx, runReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start task failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to start task: %v", err)), nil
	}

	span.SetAttributes(attribute.String("sprint_id", id))
	h.log.InfoContext(ctx, "Sprint started", "sprint_id", id, "provider", runReq.Provider, "experts", runReq.Experts)

	result := map[string]any{
		"sprint_id": id,
		"status":    "submitted",
		"message":   "Sprint started. Use get_sprint with this sprint_id to check progress.",
	}
	return jsonResult(result)
}

// HandleGetSprint returns sprint details.
func (h *Handlers) HandleGetSprint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.get_sprint")
	defer span.End()

	id := mcp.ParseString(req, "sprint_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing sprint_id")
		return mcp.NewToolResultError("sprint_id is required"), nil
	}

	span.SetAttributes(attribute.String("sprint_id", id))

	item, err := h.store.GetSprint(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get sprint failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to get sprint: %v", err)), nil
	}
	if item == nil {
		span.SetStatus(codes.Error, "not found")
		return mcp.NewToolResultError(fmt.Sprintf("sprint %s not found", id)), nil
	}

	result := map[string]any{
		"sprint_id":        item.SprintID,
		"goal":             item.Goal,
		"status":           item.Status,
		"progress_percent": item.ProgressPercent,
		"stage_message":    item.StageMessage,
		"created_at":       item.CreatedAt,
	}

	if item.ExpertCount > 0 {
		result["expert_count"] = item.ExpertCount
	}
	if item.QuestionCount > 0 {
		result["question_count"] = item.QuestionCount
	}
	if item.ReportURL != "" {
		result["report_url"] = item.ReportURL
	}
	if item.ReportJSON != "" {
		result["report"] = json.RawMessage(item.ReportJSON)
	}
	if item.ErrorMessage != "" {
		result["error"] = item.ErrorMessage
	}
	if item.Provider != "" {
		result["provider"] = item.Provider
	}
	if item.Model != "" {
		result["model"] = item.Model
	}

	return jsonResult(result)
}

// HandleListSprints returns a paginated list of sprints.
func (h *Handlers) HandleListSprints(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.list_sprints")
	defer span.End()

	limit := parseIntParam(req, "limit", 20)
	cursor := mcp.ParseString(req, "cursor", "")

	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.String("cursor", cursor),
	)

	items, nextCursor, err := h.store.ListSprints(ctx, limit, cursor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list sprints failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sprints: %v", err)), nil
	}

	span.SetAttributes(attribute.Int("result_count", len(items)))

	sprints := make([]map[string]any, 0, len(items))
	for _, item := range items {
		s := map[string]any{
			"sprint_id":  item.SprintID,
			"goal":       item.Goal,
			"status":     item.Status,
			"created_at": item.CreatedAt,
		}
		if item.QuestionCount > 0 {
			s["question_count"] = item.QuestionCount
		}
		if item.ReportURL != "" {
			s["report_url"] = item.ReportURL
		}
		sprints = append(sprints, s)
	}

	result := map[string]any{
		"sprints": sprints,
		"count":   len(sprints),
	}
	if nextCursor != "" {
		result["next_cursor"] = nextCursor
	}

	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseIntParam(req mcp.CallToolRequest, key string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	raw, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}
