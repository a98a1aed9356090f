// Package runner implements the orchestration loop of agentrelay.
//
// A Runner owns no conversation state of its own. Every call of Run or
// Stream creates a core.Run that moves Pending -> Running -> Completed or
// Failed. Each iteration of the loop increments the turn counter (failing
// with turn_limit_exceeded on turn MaxTurns+1), asks the active agent's
// model for exactly one decision and dispatches it:
//   - a final answer completes the run
//   - a tool call is checked against the agent's own tools and executed by
//     the tool.Invoker; failures are appended to the conversation, not fatal
//   - a handoff is routed through the agent registry and switches the
//     active agent while keeping the full history
//
// Aggregate turns a completed run into its core.RunResult.
package runner
