package progress

import "time"

// Stage identifies which sprint stage is active.
type Stage string

const (
	StagePersonas  Stage = "personas"
	StageInterview Stage = "interview"
	StageHMW       Stage = "hmw"
	StageComplete  Stage = "complete"
)

// Event carries progress information from the sprint pipeline to the renderer.
type Event struct {
	Stage       Stage
	Message     string
	Percent     float64 // 0.0–1.0
	ExpertNum   int
	ExpertTotal int
	Elapsed     time.Duration
	Error       error
	// ReportFile is set on StageComplete with the saved report path, if any.
	ReportFile string
	// Experts is the expert count, set on StageComplete.
	Experts int
	// Questions is the total HMW question count, set on StageComplete.
	Questions int
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, pct float64, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: pct,
		Elapsed: time.Since(start),
	}
}
