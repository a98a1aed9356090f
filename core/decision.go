package core

// Decision is the outcome of exactly one model turn. Concrete decisions
// implement the unexported isDecision marker so the set is closed: callers
// switch over FinalAnswer, ToolCall and Handoff and treat anything else as
// a programming error.
type Decision interface{ isDecision() }

// FinalAnswer terminates a run with the given text.
type FinalAnswer struct {
	Text string `json:"text"`
}

func (FinalAnswer) isDecision() {}

// ToolCall requests execution of a named tool. Arguments holds the raw JSON
// object produced by the model; it is validated by the tool invoker.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

func (ToolCall) isDecision() {}

// Handoff requests transferring the active-agent role to Target. ToolName
// and CallID preserve the provider-level function call that encoded the
// request so transcripts can be replayed to the endpoint.
type Handoff struct {
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
	Source   string `json:"source"`
	Target   string `json:"target"`
}

func (Handoff) isDecision() {}

// DecisionKind returns a short label for logging and tracing.
func DecisionKind(d Decision) string {
	switch d.(type) {
	case FinalAnswer, *FinalAnswer:
		return "final_answer"
	case ToolCall, *ToolCall:
		return "tool_call"
	case Handoff, *Handoff:
		return "handoff"
	default:
		return "unknown"
	}
}
