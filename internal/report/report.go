// Package report defines the sprint report document and its JSON
// persistence.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/apresai/sprintkit/internal/hmw"
	"github.com/apresai/sprintkit/internal/interview"
	"github.com/apresai/sprintkit/internal/persona"
)

// Batch groups the HMW questions synthesized from one interview answer.
type Batch struct {
	ExpertID  string         `json:"expert_id"`
	Answer    string         `json:"answer"`
	Questions []hmw.Question `json:"questions"`
}

// Report is the full output of one sprint run.
type Report struct {
	Goal       string                `json:"goal"`
	CreatedAt  time.Time             `json:"created_at"`
	Experts    []persona.Expert      `json:"experts"`
	Interviews []interview.Interview `json:"interviews"`
	Batches    []Batch               `json:"hmw_batches"`
}

// QuestionCount returns the total number of HMW questions across batches.
func (r *Report) QuestionCount() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b.Questions)
	}
	return n
}

// Save writes the report as indented JSON.
func Save(r *Report, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report to %s: %w", path, err)
	}
	return nil
}

// Load reads a report saved by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report from %s: %w", path, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report from %s: %w", path, err)
	}
	return &r, nil
}
