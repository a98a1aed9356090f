// Package core provides the foundational domain types shared by every layer
// of agentrelay:
//
//   - Messages and the per-run Conversation they are appended to
//   - Decisions (the closed set of outcomes of one model turn)
//   - Runs, their lifecycle status and the caller-visible RunResult
//   - EngineError, the structured failure returned when a run fails
//   - ToolContext, the scoped surface handed to tool implementations
//
// The package holds no orchestration logic; the runner package drives runs
// and the model and tool packages produce the values defined here.
package core
