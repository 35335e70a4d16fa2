// Package persona generates the synthetic expert panel for a sprint goal.
package persona

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/apresai/sprintkit/internal/structgen"
)

// Expert is one synthetic interviewee. Immutable once generated.
type Expert struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// expertList is the structured-generation target for a persona batch.
type expertList struct {
	Experts []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"experts"`
}

// Validate implements structgen.Validator.
func (l *expertList) Validate() error {
	if len(l.Experts) == 0 {
		return fmt.Errorf("expert list is empty")
	}
	for i, e := range l.Experts {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("expert %d has empty name", i)
		}
		if strings.TrimSpace(e.Description) == "" {
			return fmt.Errorf("expert %d has empty description", i)
		}
	}
	return nil
}

// IDGen produces expert identifiers; tests inject a deterministic one.
type IDGen func() string

func defaultIDGen() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Generator produces expert panels via one structured-generation call.
type Generator struct {
	gen *structgen.Client
	ids IDGen
	log *slog.Logger
}

// NewGenerator creates a Generator. ids may be nil for the ULID default.
func NewGenerator(gen *structgen.Client, ids IDGen, logger *slog.Logger) *Generator {
	if ids == nil {
		ids = defaultIDGen
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{gen: gen, ids: ids, log: logger}
}

// Generate invents count distinct expert personas for the sprint goal and
// assigns each a fresh identifier.
//
// Generation failure must not crash a sprint: schema and invocation errors
// are logged and swallowed into an empty slice: "no experts" is a
// legitimate terminal outcome the caller reports, not an error. Template
// errors still propagate.
func (g *Generator) Generate(ctx context.Context, sprintGoal string, count int) ([]Expert, error) {
	if count < 1 {
		return nil, fmt.Errorf("persona: count must be >= 1, got %d", count)
	}

	var list expertList
	err := g.gen.Generate(ctx, structgen.Request{
		System: systemPrompt,
		Vars: map[string]string{
			"sprint_goal": sprintGoal,
			"num_experts": strconv.Itoa(count),
		},
		Input: "Create the expert panel now.",
	}, &list)
	if err != nil {
		if structgen.IsSchemaError(err) || structgen.IsInvocationError(err) {
			g.log.WarnContext(ctx, "Persona generation failed, continuing with no experts",
				"error", err)
			return []Expert{}, nil
		}
		return nil, err
	}

	experts := make([]Expert, 0, len(list.Experts))
	for _, e := range list.Experts {
		experts = append(experts, Expert{
			ID:          g.ids(),
			Name:        strings.TrimSpace(e.Name),
			Description: strings.TrimSpace(e.Description),
		})
	}
	return experts, nil
}
