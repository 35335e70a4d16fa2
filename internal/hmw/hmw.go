// Package hmw distills interview answers into "How Might We" reframing
// questions, one per fixed perspective.
package hmw

import (
	"context"
	"fmt"
	"strings"

	"github.com/apresai/sprintkit/internal/structgen"
)

// Roles is the fixed perspective set, one question per role per answer.
var Roles = []string{"product", "technology", "design"}

// Question is one HMW reframing tagged with its perspective.
type Question struct {
	Question string `json:"question"`
	Role     string `json:"role"`
}

// questionList is the structured-generation target for one synthesis call.
type questionList struct {
	Questions []Question `json:"questions"`
}

// Validate implements structgen.Validator: exactly one question per
// configured role, and every question must carry the HMW framing.
func (l *questionList) Validate() error {
	if len(l.Questions) != len(Roles) {
		return fmt.Errorf("got %d questions, want %d (one per role)", len(l.Questions), len(Roles))
	}
	seen := make(map[string]bool, len(Roles))
	for i, q := range l.Questions {
		role := strings.ToLower(strings.TrimSpace(q.Role))
		if !validRole(role) {
			return fmt.Errorf("question %d has unknown role %q", i, q.Role)
		}
		if seen[role] {
			return fmt.Errorf("duplicate role %q", role)
		}
		seen[role] = true
		if !strings.Contains(q.Question, "HMW") {
			return fmt.Errorf("question %d is not in HMW form: %q", i, q.Question)
		}
	}
	return nil
}

func validRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Synthesizer converts answers into HMW question batches.
type Synthesizer struct {
	gen *structgen.Client
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(gen *structgen.Client) *Synthesizer {
	return &Synthesizer{gen: gen}
}

// Synthesize produces one HMW question per perspective for a single
// interview answer. Unlike persona generation, failures propagate: a broken
// synthesis mid-sprint is an error the caller must decide about, not a
// quietly empty result.
func (s *Synthesizer) Synthesize(ctx context.Context, answer, sprintGoal string) ([]Question, error) {
	var list questionList
	err := s.gen.Generate(ctx, structgen.Request{
		System: systemPrompt,
		Vars: map[string]string{
			"design_sprint_goal": sprintGoal,
		},
		Input: answer,
	}, &list)
	if err != nil {
		return nil, err
	}

	for i := range list.Questions {
		list.Questions[i].Role = strings.ToLower(strings.TrimSpace(list.Questions[i].Role))
	}
	return list.Questions, nil
}
