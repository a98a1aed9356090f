package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/tracing"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/tool"
)

// Decider produces the next decision of an agent. *model.Client implements it.
type Decider interface {
	Decide(ctx context.Context, def *agent.Definition, conv *core.Conversation, ic agent.InstructionContext) (core.Decision, error)
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxTurns bounds the loop iterations of one run (0 = unlimited).
	MaxTurns int
	// MaxConcurrentRuns limits concurrently executing runs (0 = unlimited).
	MaxConcurrentRuns int
	// EventBufferSize sets the channel buffering of Stream.
	EventBufferSize int
	// Invoker executes tool calls. A default Invoker is used when nil.
	Invoker *tool.Invoker
	// Callbacks are executed at the run lifecycle points.
	Callbacks *CallbackManager
	// Now provides the clock for the "date" instruction variable.
	Now    func() time.Time
	Logger logging.Logger
}

// Runner drives runs over a read-only agent registry: it asks the active
// agent for a decision, dispatches it to the tool invoker or the handoff
// router and stops at a final answer or a fatal error. Public methods are
// safe for concurrent use; runs never share conversation state.
type Runner struct {
	registry *agent.Registry
	decider  Decider
	invoker  *tool.Invoker

	callbacks       *CallbackManager
	maxTurns        int
	eventBufferSize int
	sem             chan struct{}
	now             func() time.Time
	logger          logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(registry *agent.Registry, decider Decider, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxTurns:          10,
		MaxConcurrentRuns: 16,
		EventBufferSize:   100,
		Now:               time.Now,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Invoker == nil {
		opts.Invoker = tool.NewInvoker(func(o *tool.InvokerOptions) { o.Logger = opts.Logger })
	}

	r := &Runner{
		registry:        registry,
		decider:         decider,
		invoker:         opts.Invoker,
		callbacks:       opts.Callbacks,
		maxTurns:        opts.MaxTurns,
		eventBufferSize: opts.EventBufferSize,
		now:             opts.Now,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
	}

	if opts.MaxConcurrentRuns > 0 {
		r.sem = make(chan struct{}, opts.MaxConcurrentRuns)
	}

	return r
}

// Run executes one run synchronously, starting at rootAgent (the registry
// root when empty), and returns its aggregated result. A failed run returns
// a *core.EngineError carrying the partial transcript.
func (r *Runner) Run(ctx context.Context, rootAgent, input string) (*core.RunResult, error) {
	run, err := r.newRun(rootAgent, input)
	if err != nil {
		return nil, err
	}

	if err := r.execute(ctx, run, nil); err != nil {
		return nil, err
	}

	return Aggregate(run)
}

// Stream starts a run asynchronously. Messages are delivered on the first
// channel as they are appended to the conversation, starting with the user
// input. A failure is delivered on the error channel; both channels are
// closed when the run is over.
func (r *Runner) Stream(ctx context.Context, rootAgent, input string) (string, <-chan core.Message, <-chan error, error) {
	run, err := r.newRun(rootAgent, input)
	if err != nil {
		return "", nil, nil, err
	}

	msgCh := make(chan core.Message, r.eventBufferSize)
	errCh := make(chan error, 1)

	// registered before returning so Cancel works on the returned id at once
	ctx, cancel := context.WithCancel(ctx)
	r.track(run.ID, cancel)

	go func() {
		defer close(errCh)
		defer close(msgCh)
		defer cancel()

		emit := func(m core.Message) {
			select {
			case msgCh <- m:
			case <-ctx.Done():
			}
		}

		if err := r.execute(ctx, run, emit); err != nil {
			errCh <- err
		}
	}()

	return run.ID, msgCh, errCh, nil
}

// Cancel cancels a running run by ID. The run fails with a cancelled error
// at its next suspension point.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// ActiveRuns returns the number of runs currently executing.
func (r *Runner) ActiveRuns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.activeRuns)
}

// Registry returns the agent registry the runner works on.
func (r *Runner) Registry() *agent.Registry { return r.registry }

func (r *Runner) newRun(rootAgent, input string) (*core.Run, error) {
	if strings.TrimSpace(input) == "" {
		return nil, core.NewEngineError(core.KindInvalidInput, "input must not be empty")
	}

	if rootAgent == "" {
		rootAgent = r.registry.Root()
	}

	if _, ok := r.registry.Get(rootAgent); !ok {
		return nil, core.NewEngineError(core.KindUnknownAgent, fmt.Sprintf("agent %q is not registered", rootAgent))
	}

	return core.NewRun(rootAgent, input), nil
}

func (r *Runner) track(runID string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()
}

func (r *Runner) untrack(runID string) {
	r.mu.Lock()
	delete(r.activeRuns, runID)
	r.mu.Unlock()
}

// execute drives run to a terminal state. emit, when set, receives every
// message appended to the conversation.
func (r *Runner) execute(ctx context.Context, run *core.Run, emit func(core.Message)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.track(run.ID, cancel)
	defer r.untrack(run.ID)

	ctx, span := tracing.StartSpan(ctx, "runner.run",
		tracing.StringAttr("run_id", run.ID),
		tracing.StringAttr("root_agent", run.RootAgent),
	)
	defer span.End()

	if r.sem != nil {
		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-ctx.Done():
			return r.fail(ctx, run, ctx.Err())
		}
	}

	if err := run.Start(); err != nil {
		return r.fail(ctx, run, core.WrapEngineError(core.KindInternal, "start run", err))
	}

	r.logger.Info("runner.run.start", "run_id", run.ID, "agent", run.RootAgent)

	if emit != nil {
		if first, ok := run.Conversation.Last(); ok {
			emit(first)
		}
	}

	limiter := core.NewTurnLimiter(r.maxTurns)

	for {
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, run, err)
		}

		turn, err := limiter.Increment()
		run.TurnCount = turn

		if err != nil {
			return r.fail(ctx, run, err)
		}

		done, err := r.step(ctx, run, emit)
		if err != nil {
			return r.fail(ctx, run, err)
		}

		if done {
			span.SetAttributes(tracing.IntAttr("turns", run.TurnCount), tracing.StringAttr("last_agent", run.ActiveAgent))
			tracing.SetOK(span)
			r.logRun(run, nil)

			return nil
		}
	}
}

// step evaluates one turn. It reports whether the run completed.
func (r *Runner) step(ctx context.Context, run *core.Run, emit func(core.Message)) (bool, error) {
	def, ok := r.registry.Get(run.ActiveAgent)
	if !ok {
		return false, core.NewEngineError(core.KindUnknownAgent, fmt.Sprintf("agent %q is not registered", run.ActiveAgent))
	}

	ctx, span := tracing.StartSpan(ctx, "runner.turn",
		tracing.StringAttr("agent", def.Name()),
		tracing.IntAttr("turn", run.TurnCount),
	)
	defer span.End()

	r.logger.Debug("runner.turn.start", "run_id", run.ID, "agent", def.Name(), "turn", run.TurnCount)

	cc := &CallbackContext{RunID: run.ID, Agent: def.Name(), Turn: run.TurnCount}

	if err := r.veto(ctx, CallbackBeforeModel, cc); err != nil {
		return false, err
	}

	decision, err := r.decider.Decide(ctx, def, run.Conversation, agent.InstructionContext{
		RunID: run.ID,
		Agent: def.Name(),
		Turn:  run.TurnCount,
		Vars:  r.vars(),
	})
	if err != nil {
		tracing.RecordError(span, err)
		return false, err
	}

	span.SetAttributes(tracing.StringAttr("decision", core.DecisionKind(decision)))

	cc.Decision = decision
	r.notify(ctx, CallbackAfterModel, cc)

	switch d := decision.(type) {
	case core.FinalAnswer:
		if err := run.Complete(d.Text); err != nil {
			return false, core.WrapEngineError(core.KindInternal, "complete run", err)
		}

		if emit != nil {
			last, _ := run.Conversation.Last()
			emit(last)
		}

		cc.FinalOutput = d.Text
		r.notify(ctx, CallbackOnComplete, cc)

		return true, nil

	case core.ToolCall:
		return false, r.callTool(ctx, run, def, d, cc, emit)

	case core.Handoff:
		return false, r.handoff(ctx, run, def, d, cc, emit)

	default:
		return false, core.NewEngineError(core.KindInternal, fmt.Sprintf("unsupported decision %T", decision))
	}
}

func (r *Runner) callTool(
	ctx context.Context,
	run *core.Run,
	def *agent.Definition,
	call core.ToolCall,
	cc *CallbackContext,
	emit func(core.Message),
) error {
	t, ok := def.Tool(call.Name)
	if !ok {
		return core.NewEngineError(core.KindUnauthorizedToolCall,
			fmt.Sprintf("agent %q called tool %q which it does not own", def.Name(), call.Name))
	}

	r.append(run, core.NewToolCallMessage(def.Name(), call), emit)

	cc.ToolCall = &call
	if err := r.veto(ctx, CallbackBeforeTool, cc); err != nil {
		return err
	}

	result, terr := r.invoker.Invoke(ctx, t, tool.Invocation{RunID: run.ID, Agent: def.Name(), Call: call})

	r.append(run, core.NewToolResultMessage(def.Name(), result), emit)

	if terr != nil && terr.Code == tool.CodeCancelled {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	cc.ToolResult = &result
	r.notify(ctx, CallbackAfterTool, cc)

	return nil
}

func (r *Runner) handoff(
	ctx context.Context,
	run *core.Run,
	def *agent.Definition,
	h core.Handoff,
	cc *CallbackContext,
	emit func(core.Message),
) error {
	next, err := r.registry.Resolve(def, h.Target)
	if err != nil {
		return err
	}

	r.append(run, core.NewHandoffMessage(h), emit)
	r.append(run, core.NewToolResultMessage(def.Name(), core.ToolResult{
		CallID:  h.CallID,
		Name:    h.ToolName,
		Content: fmt.Sprintf(`{"assistant":%q}`, next.Name()),
	}), emit)

	run.SwitchAgent(next.Name())

	r.logger.Info("agent.handoff", "run_id", run.ID, "from", def.Name(), "to", next.Name(), "turn", run.TurnCount)

	cc.Handoff = &h
	r.notify(ctx, CallbackOnHandoff, cc)

	return nil
}

func (r *Runner) append(run *core.Run, m core.Message, emit func(core.Message)) {
	run.Conversation.Append(m)

	if emit != nil {
		emit(m)
	}
}

// veto executes a guardrail callback type; an error rejects the step.
func (r *Runner) veto(ctx context.Context, t CallbackType, cc *CallbackContext) error {
	if err := r.callbacks.Execute(ctx, t, cc); err != nil {
		return core.WrapEngineError(core.KindCallbackRejected, fmt.Sprintf("%s callback rejected the step", t), err)
	}

	return nil
}

// notify executes an informational callback type; errors are only logged.
func (r *Runner) notify(ctx context.Context, t CallbackType, cc *CallbackContext) {
	if err := r.callbacks.Execute(ctx, t, cc); err != nil {
		r.logger.Warn("runner.callback.failed", "run_id", cc.RunID, "type", string(t), "error", err.Error())
	}
}

func (r *Runner) vars() map[string]any {
	vars := r.registry.Vars()
	if _, ok := vars["date"]; !ok {
		vars["date"] = r.now().Format("2006-01-02")
	}

	return vars
}

func (r *Runner) fail(ctx context.Context, run *core.Run, err error) error {
	ee := run.Fail(err)

	r.logRun(run, ee)

	// on_error runs even when ctx is already cancelled
	r.notify(context.WithoutCancel(ctx), CallbackOnError, &CallbackContext{
		RunID: run.ID,
		Agent: run.ActiveAgent,
		Turn:  run.TurnCount,
		Err:   ee,
	})

	return ee
}

func (r *Runner) logRun(run *core.Run, err error) {
	if sl, ok := r.logger.(*logging.StructuredLogger); ok {
		sl.WithRun(run.ID).LogRun(run.ActiveAgent, run.TurnCount, run.Duration(), err)
		return
	}

	if err != nil {
		r.logger.Error("runner.run.failed", "run_id", run.ID, "last_agent", run.ActiveAgent,
			"turns", run.TurnCount, "error", err.Error())

		return
	}

	r.logger.Info("runner.run.completed", "run_id", run.ID, "last_agent", run.ActiveAgent, "turns", run.TurnCount)
}

// Aggregate builds the caller-visible result of a completed run. It fails
// with a run_not_complete error for runs in any other state. The result is
// a snapshot: repeated calls return equal values.
func Aggregate(run *core.Run) (*core.RunResult, error) {
	if run.Status != core.RunStatusCompleted {
		return nil, core.NewEngineError(core.KindRunNotComplete, fmt.Sprintf("run %s is %s", run.ID, run.Status))
	}

	final, ok := run.Conversation.LastFinalText()
	if !ok {
		return nil, core.NewEngineError(core.KindInternal, fmt.Sprintf("run %s completed without a final answer", run.ID))
	}

	return &core.RunResult{
		RunID:       run.ID,
		FinalOutput: final.Content,
		LastAgent:   run.ActiveAgent,
		TurnCount:   run.TurnCount,
		Turns:       run.Conversation.Messages(),
	}, nil
}
