package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// DetachTraceContextFrom copies the trace span from src into baseCtx.
// Use this when a background goroutine should inherit a parent context's
// cancellation (e.g., SIGTERM) while carrying trace context from a different
// source (e.g., the MCP tool-call request context).
func DetachTraceContextFrom(src, baseCtx context.Context) context.Context {
	sc := trace.SpanContextFromContext(src)
	if !sc.IsValid() {
		return baseCtx
	}
	return trace.ContextWithRemoteSpanContext(baseCtx, sc)
}
