package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/tracing"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/tool"
)

// AgentLookup resolves handoff targets to their definitions. *agent.Registry
// implements it.
type AgentLookup interface {
	Get(name string) (*agent.Definition, bool)
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// Timeout bounds every single model call (0 disables the bound).
	Timeout time.Duration
	// MaxAttempts is the total number of attempts for transient failures.
	MaxAttempts int
	// InitialInterval and MaxInterval shape the exponential backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Agents supplies target descriptions for handoff declarations.
	Agents AgentLookup
	Logger logging.Logger
}

// Client turns one model round trip into one core.Decision.
type Client struct {
	endpoints *Endpoints
	opts      ClientOptions
}

// NewClient creates a Client resolving agent model references against
// endpoints.
func NewClient(endpoints *Endpoints, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		Timeout:         60 * time.Second,
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Client{endpoints: endpoints, opts: opts}
}

// Decide asks def's model endpoint for the next step of the conversation.
// Transient transport failures are retried with exponential backoff; a call
// exceeding the per-call timeout fails with a timeout EngineError, an
// exhausted retry budget with a transport_failure EngineError and an
// unparseable response with a decision_parse_failure EngineError.
func (c *Client) Decide(
	ctx context.Context,
	def *agent.Definition,
	conv *core.Conversation,
	ic agent.InstructionContext,
) (core.Decision, error) {
	if !conv.HasUserMessage() {
		return nil, core.NewEngineError(core.KindInvalidInput, "conversation has no user message")
	}

	m, ok := c.endpoints.Get(def.ModelRef())
	if !ok {
		return nil, core.NewEngineError(core.KindInternal, fmt.Sprintf("agent %q: model endpoint %q is not configured", def.Name(), def.ModelRef()))
	}

	instructions, err := def.Instructions(ic)
	if err != nil {
		return nil, core.WrapEngineError(core.KindInternal, fmt.Sprintf("agent %q: resolve instructions", def.Name()), err)
	}

	req := BuildRequest(def, instructions, conv.Messages(), c.opts.Agents)

	ctx, span := tracing.StartSpan(ctx, "model.decide",
		tracing.StringAttr("agent.name", def.Name()),
		tracing.StringAttr("model.name", m.Info().Name),
		tracing.StringAttr("model.provider", m.Info().Provider),
	)
	defer span.End()

	start := time.Now()
	resp, attempts, err := c.generate(ctx, m, req)

	span.SetAttributes(tracing.IntAttr("model.attempts", attempts))

	if err != nil {
		tracing.RecordError(span, err)
		c.logCall(def.Name(), m.Info().Name, attempts, time.Since(start), err)

		return nil, err
	}

	decision, err := ParseDecision(def, resp)
	if err != nil {
		tracing.RecordError(span, err)
		c.opts.Logger.Warn("model.decide.unparseable", "agent", def.Name(), "model", m.Info().Name, "error", err.Error())

		return nil, err
	}

	span.SetAttributes(tracing.StringAttr("decision.kind", core.DecisionKind(decision)))
	tracing.SetOK(span)

	c.logCall(def.Name(), m.Info().Name, attempts, time.Since(start), nil)

	return decision, nil
}

func (c *Client) logCall(agentName, modelName string, attempts int, dur time.Duration, err error) {
	if sl, ok := c.opts.Logger.(*logging.StructuredLogger); ok {
		sl.WithAgent(agentName).LogModelCall(modelName, attempts, dur, err == nil, err)
		return
	}

	if err != nil {
		c.opts.Logger.Warn("model.decide.failed", "agent", agentName, "model", modelName,
			"attempts", attempts, "duration_ms", dur.Milliseconds(), "error", err.Error())

		return
	}

	c.opts.Logger.Debug("model.decide.completed", "agent", agentName, "model", modelName,
		"attempts", attempts, "duration_ms", dur.Milliseconds())
}

func (c *Client) generate(ctx context.Context, m Model, req Request) (*Response, int, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialInterval
	bo.MaxInterval = c.opts.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.opts.MaxAttempts-1)), ctx)

	attempts := 0

	op := func() (*Response, error) {
		attempts++

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.opts.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		}
		defer cancel()

		resp, err := m.Generate(callCtx, req)
		if err == nil && resp == nil {
			err = errors.New("empty response")
		}

		if err == nil {
			return resp, nil
		}

		if ctx.Err() != nil {
			return nil, backoff.Permanent(core.AsEngineError(ctx.Err()))
		}

		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, backoff.Permanent(core.WrapEngineError(core.KindTimeout,
				fmt.Sprintf("model %q did not answer within %s", m.Info().Name, c.opts.Timeout), err))
		}

		if !IsTransient(err) {
			return nil, backoff.Permanent(err)
		}

		return nil, err
	}

	notify := func(err error, wait time.Duration) {
		c.opts.Logger.Warn("model.decide.retry",
			"model", m.Info().Name, "attempt", attempts, "backoff_ms", wait.Milliseconds(), "error", err.Error())
	}

	resp, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err == nil {
		return resp, attempts, nil
	}

	var ee *core.EngineError
	if errors.As(err, &ee) {
		return nil, attempts, ee
	}

	if ctx.Err() != nil {
		return nil, attempts, core.AsEngineError(ctx.Err())
	}

	return nil, attempts, core.WrapEngineError(core.KindTransport,
		fmt.Sprintf("model %q failed after %d attempt(s)", m.Info().Name, attempts), err)
}

// BuildRequest serializes the agent's instructions, the conversation and
// the declarations of the agent's tools followed by its handoff targets.
func BuildRequest(def *agent.Definition, instructions string, messages []core.Message, agents AgentLookup) Request {
	decls := tool.Definitions(def.Tools())

	for _, h := range def.Handoffs() {
		description := ""

		if agents != nil {
			if target, ok := agents.Get(h); ok {
				description = target.Description()
			}
		}

		decls = append(decls, tool.HandoffDefinition(h, description))
	}

	return Request{
		Instructions: instructions,
		Messages:     messages,
		Tools:        decls,
	}
}

// ParseDecision maps a response onto exactly one Decision. Text without a
// function call is a FinalAnswer, a single transfer_to_* call a Handoff and
// a single other call a ToolCall. Empty responses and multiple calls are
// decision_parse_failure errors.
func ParseDecision(def *agent.Definition, resp *Response) (core.Decision, error) {
	switch len(resp.ToolCalls) {
	case 0:
		if strings.TrimSpace(resp.Text) == "" {
			return nil, core.NewEngineError(core.KindDecisionParseFailure,
				fmt.Sprintf("response contains neither text nor a function call (finish reason %q)", resp.FinishReason))
		}

		return core.FinalAnswer{Text: resp.Text}, nil
	case 1:
	default:
		names := make([]string, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			names = append(names, tc.Name)
		}

		return nil, core.NewEngineError(core.KindDecisionParseFailure,
			fmt.Sprintf("response contains %d function calls (%s), expected at most one", len(names), strings.Join(names, ", ")))
	}

	call := resp.ToolCalls[0]
	if call.Name == "" {
		return nil, core.NewEngineError(core.KindDecisionParseFailure, "function call without a name")
	}

	id := call.ID
	if id == "" {
		id = "call_" + core.NewID()
	}

	if tool.IsHandoffToolName(call.Name) {
		target, ok := def.HandoffTarget(call.Name)
		if !ok {
			target = strings.TrimPrefix(call.Name, tool.HandoffPrefix)
		}

		return core.Handoff{CallID: id, ToolName: call.Name, Source: def.Name(), Target: target}, nil
	}

	return core.ToolCall{ID: id, Name: call.Name, Arguments: call.Arguments}, nil
}
