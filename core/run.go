package core

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	// RunStatusPending is the initial state before the first turn.
	RunStatusPending RunStatus = "pending"
	// RunStatusRunning means the loop is evaluating turns.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted means a final answer was produced.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed means the run terminated with an EngineError.
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Run is the mutable state of one end-to-end execution. It is created per
// request and mutated only by the goroutine driving its loop.
type Run struct {
	ID           string
	RootAgent    string
	ActiveAgent  string
	Conversation *Conversation
	TurnCount    int
	Status       RunStatus
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
}

// NewRun creates a pending run whose conversation holds only input.
func NewRun(rootAgent, input string) *Run {
	return &Run{
		ID:           NewID(),
		RootAgent:    rootAgent,
		ActiveAgent:  rootAgent,
		Conversation: NewConversation(input),
		Status:       RunStatusPending,
	}
}

func (r *Run) transition(to RunStatus) error {
	allowed := false

	switch r.Status {
	case RunStatusPending:
		allowed = to == RunStatusRunning || to == RunStatusFailed
	case RunStatusRunning:
		allowed = to == RunStatusCompleted || to == RunStatusFailed
	}

	if !allowed {
		return fmt.Errorf("run %s: invalid status transition %s -> %s", r.ID, r.Status, to)
	}

	r.Status = to

	return nil
}

// Start moves the run from Pending to Running.
func (r *Run) Start() error {
	if err := r.transition(RunStatusRunning); err != nil {
		return err
	}

	r.StartedAt = time.Now().UTC()

	return nil
}

// Complete appends the final answer authored by the active agent and moves
// the run to Completed.
func (r *Run) Complete(text string) error {
	if err := r.transition(RunStatusCompleted); err != nil {
		return err
	}

	r.Conversation.Append(NewAssistantMessage(r.ActiveAgent, text))
	r.FinishedAt = time.Now().UTC()

	return nil
}

// Fail moves the run to Failed and returns the error enriched with the run
// context (id, agent, turn and partial transcript). Errors that are not
// EngineErrors are classified by AsEngineError.
func (r *Run) Fail(err error) *EngineError {
	if r.Status.IsTerminal() {
		if ee, ok := r.Err.(*EngineError); ok {
			return ee
		}

		return AsEngineError(err)
	}

	ee := AsEngineError(err)
	ee.RunID = r.ID
	ee.Agent = r.ActiveAgent
	ee.Turn = r.TurnCount
	ee.Transcript = r.Conversation.Messages()

	r.Status = RunStatusFailed
	r.Err = ee
	r.FinishedAt = time.Now().UTC()

	return ee
}

// SwitchAgent makes name the active agent. History is left untouched.
func (r *Run) SwitchAgent(name string) {
	r.ActiveAgent = name
}

// Duration returns the wall time between start and finish (or now).
func (r *Run) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}

	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}

	return r.FinishedAt.Sub(r.StartedAt)
}

// RunResult is the immutable, caller-visible snapshot of a completed run.
type RunResult struct {
	RunID       string    `json:"run_id"`
	FinalOutput string    `json:"final_output"`
	LastAgent   string    `json:"last_agent"`
	TurnCount   int       `json:"turn_count"`
	Turns       []Message `json:"turns"`
}
