package core

import (
	"context"

	"github.com/hupe1980/agentrelay/logging"
)

// ToolContext provides the scoped surface handed to tool implementations:
// the invocation's context (carrying cancellation and the per-call
// deadline), correlation identifiers and a logger pre-populated with them.
type ToolContext struct {
	ctx    context.Context
	runID  string
	agent  string
	callID string
	logger logging.Logger
}

// NewToolContext binds a tool invocation to its run, agent and call id.
func NewToolContext(ctx context.Context, runID, agent, callID string, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}

	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &ToolContext{ctx: ctx, runID: runID, agent: agent, callID: callID, logger: logger}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runID }

// AgentName returns the name of the agent that requested the call.
func (tc *ToolContext) AgentName() string { return tc.agent }

// CallID returns the provider-assigned id of the tool call.
func (tc *ToolContext) CallID() string { return tc.callID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// LogInfo logs an info message tagged with the call correlation ids.
func (tc *ToolContext) LogInfo(msg string, args ...any) {
	tc.logger.Info(msg, append([]any{"run_id", tc.runID, "agent", tc.agent, "call_id", tc.callID}, args...)...)
}

// LogWarn logs a warning tagged with the call correlation ids.
func (tc *ToolContext) LogWarn(msg string, args ...any) {
	tc.logger.Warn(msg, append([]any{"run_id", tc.runID, "agent", tc.agent, "call_id", tc.callID}, args...)...)
}
