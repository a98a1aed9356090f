package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/tracing"
	"github.com/hupe1980/agentrelay/logging"
)

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	// Timeout bounds every single invocation. Zero disables the bound.
	Timeout time.Duration
	Logger  logging.Logger
}

// Invoker executes tool calls: it decodes and validates arguments, runs the
// tool under a per-call timeout with panic recovery and renders the outcome
// as a ToolResult. It never retries; retrying is up to the model.
type Invoker struct {
	timeout time.Duration
	logger  logging.Logger
	schemas sync.Map // Tool -> *Schema
}

// NewInvoker creates an Invoker.
func NewInvoker(optFns ...func(o *InvokerOptions)) *Invoker {
	opts := InvokerOptions{
		Timeout: 30 * time.Second,
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Invoker{timeout: opts.Timeout, logger: opts.Logger}
}

// Invocation identifies one tool call within a run.
type Invocation struct {
	RunID string
	Agent string
	Call  core.ToolCall
}

type callOutcome struct {
	value any
	err   error
}

// Invoke runs t for the given call. The returned ToolResult is always
// populated and ready to be appended to the conversation; on failure its
// content describes the *ToolError that is also returned.
func (inv *Invoker) Invoke(ctx context.Context, t Tool, in Invocation) (core.ToolResult, *ToolError) {
	start := time.Now()
	result := core.ToolResult{CallID: in.Call.ID, Name: in.Call.Name}

	ctx, span := tracing.StartSpan(ctx, "tool.invoke",
		tracing.StringAttr("tool.name", in.Call.Name),
		tracing.StringAttr("agent", in.Agent),
		tracing.StringAttr("run_id", in.RunID),
	)
	defer span.End()

	fail := func(te *ToolError) (core.ToolResult, *ToolError) {
		result.Content = te.Content()
		result.IsError = true

		tracing.RecordError(span, te)
		inv.logCall(in, time.Since(start), te)

		return result, te
	}

	args, err := ParseArguments(in.Call.Arguments)
	if err != nil {
		return fail(NewToolError(in.Call.Name, err.Error(), CodeInvalidArguments))
	}

	schema, err := inv.schema(t)
	if err != nil {
		return fail(NewToolError(in.Call.Name, err.Error(), CodeExecution))
	}

	if err := schema.Validate(args); err != nil {
		te := NewToolError(in.Call.Name, fmt.Sprintf("parameter validation failed: %v", err), CodeInvalidArguments)
		te.Details = in.Call.Arguments

		return fail(te)
	}

	callCtx := ctx
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, inv.timeout)

		defer cancel()
	}

	tc := core.NewToolContext(callCtx, in.RunID, in.Agent, in.Call.ID, inv.logger)

	inv.logger.Debug("tool.invoke.start", "run_id", in.RunID, "agent", in.Agent, "tool", in.Call.Name, "call_id", in.Call.ID)

	done := make(chan callOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				inv.logger.Error("tool.invoke.panic", "tool", in.Call.Name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				done <- callOutcome{err: NewToolError(in.Call.Name, fmt.Sprintf("tool panicked: %v", r), CodePanic)}
			}
		}()

		v, err := t.Call(tc, args)
		done <- callOutcome{value: v, err: err}
	}()

	var out callOutcome

	select {
	case out = <-done:
	case <-callCtx.Done():
		// the tool goroutine is left to observe cancellation on its own
		if ctx.Err() != nil {
			return fail(NewToolError(in.Call.Name, "invocation cancelled", CodeCancelled))
		}

		return fail(NewToolError(in.Call.Name, fmt.Sprintf("tool did not finish within %s", inv.timeout), CodeTimeout))
	}

	if out.err != nil {
		if ctx.Err() != nil {
			return fail(NewToolError(in.Call.Name, "invocation cancelled", CodeCancelled))
		}

		var te *ToolError
		if !errors.As(out.err, &te) {
			te = NewToolError(in.Call.Name, out.err.Error(), CodeExecution)
		}

		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			te = NewToolError(in.Call.Name, fmt.Sprintf("tool did not finish within %s", inv.timeout), CodeTimeout)
		}

		return fail(te)
	}

	content, err := Stringify(out.value)
	if err != nil {
		return fail(NewToolError(in.Call.Name, err.Error(), CodeExecution))
	}

	result.Content = content

	tracing.SetOK(span)
	inv.logCall(in, time.Since(start), nil)

	return result, nil
}

func (inv *Invoker) logCall(in Invocation, dur time.Duration, te *ToolError) {
	if sl, ok := inv.logger.(*logging.StructuredLogger); ok {
		l := sl.WithRun(in.RunID).WithAgent(in.Agent)
		if te != nil {
			l.With("code", te.Code).LogToolCall(in.Call.Name, dur, false, te)
			return
		}

		l.LogToolCall(in.Call.Name, dur, true, nil)

		return
	}

	if te != nil {
		inv.logger.Warn("tool.invoke.failed", "run_id", in.RunID, "agent", in.Agent, "tool", in.Call.Name,
			"code", te.Code, "error", te.Message, "duration_ms", dur.Milliseconds())

		return
	}

	inv.logger.Info("tool.invoke.completed", "run_id", in.RunID, "agent", in.Agent, "tool", in.Call.Name,
		"duration_ms", dur.Milliseconds())
}

// schema returns the compiled argument schema of t. The cache is keyed by
// the tool value itself since names are only unique within one agent.
// Tools of a non-comparable type are compiled on every call.
func (inv *Invoker) schema(t Tool) (*Schema, error) {
	cacheable := reflect.TypeOf(t).Comparable()

	if cacheable {
		if s, ok := inv.schemas.Load(t); ok {
			return s.(*Schema), nil
		}
	}

	s, err := CompileSchema(t.Name(), t.Parameters())
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", t.Name(), err)
	}

	if !cacheable {
		return s, nil
	}

	actual, _ := inv.schemas.LoadOrStore(t, s)

	return actual.(*Schema), nil
}

// Stringify renders a tool return value as message content: strings pass
// through, fmt.Stringers use their String method, nil becomes the empty
// string and everything else is encoded as JSON.
func Stringify(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case fmt.Stringer:
		return val.String(), nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}

	return string(b), nil
}
