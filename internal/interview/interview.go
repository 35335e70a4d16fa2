// Package interview drives the turn-taking conversation between the
// automated interviewer and one expert persona.
//
// The two participants are modeled as two separate chat histories that
// never see each other's system framing; only the literal question and
// answer text crosses between them as the next turn's input. Each history
// is persisted turn-by-turn under its own session identifier, so a
// conversation survives process restarts and two concurrent interviews can
// never touch each other's state.
package interview

import "fmt"

// TurnRole tags a transcript turn.
type TurnRole string

const (
	// RoleQuestion marks an interviewer turn.
	RoleQuestion TurnRole = "question"
	// RoleAnswer marks an expert turn.
	RoleAnswer TurnRole = "answer"
)

// Turn is one utterance in an interview transcript.
type Turn struct {
	Role TurnRole `json:"role"`
	Text string   `json:"text"`
}

// Interview is the complete transcript of one expert's interview. Turns
// alternate strictly, starting with a question and closing on an answer;
// a completed interview has exactly 2 x NumCycles turns.
type Interview struct {
	ExpertID string `json:"expert_id"`
	Turns    []Turn `json:"turns"`
}

// Answers returns the text of every answer turn in order.
func (iv *Interview) Answers() []string {
	var out []string
	for _, t := range iv.Turns {
		if t.Role == RoleAnswer {
			out = append(out, t.Text)
		}
	}
	return out
}

// Validate checks the alternation invariant.
func (iv *Interview) Validate() error {
	for i, t := range iv.Turns {
		want := RoleQuestion
		if i%2 == 1 {
			want = RoleAnswer
		}
		if t.Role != want {
			return fmt.Errorf("turn %d has role %q, want %q", i, t.Role, want)
		}
	}
	if len(iv.Turns)%2 != 0 {
		return fmt.Errorf("transcript has %d turns, want an even count", len(iv.Turns))
	}
	return nil
}
