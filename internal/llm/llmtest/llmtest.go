// Package llmtest provides a scripted test double for the llm.Provider
// interface. Use it to feed controlled completions without a live backend
// and to inspect the exact requests the orchestration layers send.
//
// Example:
//
//	p := &llmtest.Provider{Responses: []string{"first", "second"}}
//	resp, err := p.Complete(ctx, req)
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/apresai/sprintkit/internal/llm"
)

// Call records a single invocation of Complete.
type Call struct {
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a scripted implementation of llm.Provider.
//
// Responses are consumed in order; once exhausted, Complete returns a
// generated placeholder so fixed-length conversations keep flowing. Set
// FailAt (1-based) to make that call return FailErr instead, and Err to
// make every call fail.
type Provider struct {
	mu sync.Mutex

	// Responses is the ordered script of completion texts.
	Responses []string

	// ResponseFunc, if set, overrides Responses entirely. callNum is 1-based.
	ResponseFunc func(callNum int, req llm.CompletionRequest) (string, error)

	// Err, if non-nil, is returned by every call.
	Err error

	// FailAt makes the Nth call (1-based) return FailErr. Zero disables.
	FailAt  int
	FailErr error

	// Calls records every invocation in order.
	Calls []Call
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, Call{Req: req})
	n := len(p.Calls)

	if p.Err != nil {
		return nil, p.Err
	}
	if p.FailAt > 0 && n == p.FailAt {
		err := p.FailErr
		if err == nil {
			err = fmt.Errorf("llmtest: scripted failure at call %d", n)
		}
		return nil, err
	}
	if p.ResponseFunc != nil {
		text, err := p.ResponseFunc(n, req)
		if err != nil {
			return nil, err
		}
		return &llm.CompletionResponse{Content: text}, nil
	}
	if n <= len(p.Responses) {
		return &llm.CompletionResponse{Content: p.Responses[n-1]}, nil
	}
	return &llm.CompletionResponse{Content: fmt.Sprintf("scripted response %d", n)}, nil
}

// CallCount returns how many times Complete has been invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
