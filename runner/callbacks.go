package runner

import (
	"context"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// CallbackType defines the lifecycle points of a run where callbacks are
// executed.
//
// Callbacks of the before_* types act as guardrails: an error returned by
// one of them vetoes the next step and fails the run with a
// callback_rejected error. Errors from every other type are logged and
// otherwise ignored.
type CallbackType string

const (
	// CallbackBeforeModel runs before the active agent's model is asked for
	// a decision.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel runs after a decision was obtained.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackBeforeTool runs before an authorized tool call is invoked.
	CallbackBeforeTool CallbackType = "before_tool"

	// CallbackAfterTool runs after the tool result was appended.
	CallbackAfterTool CallbackType = "after_tool"

	// CallbackOnHandoff runs after control moved to another agent.
	CallbackOnHandoff CallbackType = "on_handoff"

	// CallbackOnComplete runs once the run produced its final answer.
	CallbackOnComplete CallbackType = "on_complete"

	// CallbackOnError runs once the run failed.
	CallbackOnError CallbackType = "on_error"
)

// vetoes reports whether an error of a callback of this type stops the run.
func (t CallbackType) vetoes() bool {
	return t == CallbackBeforeModel || t == CallbackBeforeTool
}

// CallbackContext carries the state visible to a callback. Only the fields
// relevant to the callback type are set.
type CallbackContext struct {
	Type     CallbackType
	RunID    string
	Agent    string
	Turn     int
	Decision core.Decision

	ToolCall   *core.ToolCall
	ToolResult *core.ToolResult
	Handoff    *core.Handoff

	FinalOutput string
	Err         error

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for run lifecycle hooks.
//
// Callbacks run synchronously on the run's goroutine and must be safe for
// concurrent use when the runner serves concurrent runs.
type Callback interface {
	// Type returns the lifecycle point this callback handles.
	Type() CallbackType

	// Execute performs the callback logic.
	Execute(ctx context.Context, cc *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	guard := runner.NewFunctionCallback(runner.CallbackBeforeTool,
//	    func(ctx context.Context, cc *runner.CallbackContext) error {
//	        if cc.ToolCall.Name == "websearch" && cc.Agent != "Websearch Agent" {
//	            return errors.New("web search is reserved for the websearch agent")
//	        }
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cc *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, cc *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function.
func (c *FunctionCallback) Execute(ctx context.Context, cc *CallbackContext) error {
	return c.fn(ctx, cc)
}

// CallbackManager holds the callbacks of a Runner, grouped by type.
//
// Registration is not synchronized and must complete before the runner
// starts serving runs; execution is safe for concurrent use afterwards.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// Register adds callbacks. Callbacks of one type run in registration order.
func (cm *CallbackManager) Register(callbacks ...Callback) *CallbackManager {
	for _, cb := range callbacks {
		cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
	}

	return cm
}

// Execute runs every callback of the given type in registration order and
// stops at the first error.
func (cm *CallbackManager) Execute(ctx context.Context, callbackType CallbackType, cc *CallbackContext) error {
	if cm == nil {
		return nil
	}

	cc.Type = callbackType

	for _, cb := range cm.callbacks[callbackType] {
		if err := cb.Execute(ctx, cc); err != nil {
			return err
		}
	}

	return nil
}

// Len returns the number of registered callbacks of the given type.
func (cm *CallbackManager) Len(callbackType CallbackType) int {
	if cm == nil {
		return 0
	}

	return len(cm.callbacks[callbackType])
}

// LoggingCallback writes one structured log line per lifecycle event.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{callbackType: callbackType, logger: logger}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event. It never fails.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	args := []any{"run_id", cc.RunID, "agent", cc.Agent, "turn", cc.Turn}

	if cc.Decision != nil {
		args = append(args, "decision", core.DecisionKind(cc.Decision))
	}

	if cc.ToolCall != nil {
		args = append(args, "tool", cc.ToolCall.Name)
	}

	if cc.Handoff != nil {
		args = append(args, "from", cc.Handoff.Source, "to", cc.Handoff.Target)
	}

	if cc.Err != nil {
		args = append(args, "error", cc.Err.Error())
	}

	c.logger.Info("runner.callback."+string(c.callbackType), args...)

	return nil
}

// NewToolGuard returns a before_tool callback that vetoes every tool call
// for which allow returns an error.
func NewToolGuard(allow func(agent string, call core.ToolCall) error) Callback {
	return NewFunctionCallback(CallbackBeforeTool, func(_ context.Context, cc *CallbackContext) error {
		if cc.ToolCall == nil {
			return nil
		}

		return allow(cc.Agent, *cc.ToolCall)
	})
}
