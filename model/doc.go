// Package model is the model client layer of agentrelay. It defines the
// provider neutral Model interface implemented by the endpoint adapters
// (model/openai, model/anthropic), and the Client that turns one model
// round trip into exactly one core.Decision.
//
// The Client serializes an agent's instructions, the conversation and the
// declarations of the agent's tools and handoff targets into a Request,
// retries transient transport failures with exponential backoff and parses
// the Response exhaustively: a plain text answer becomes a FinalAnswer, a
// single call of a transfer_to_* function becomes a Handoff, a single call
// of any other function becomes a ToolCall. Anything else is reported as a
// decision_parse_failure rather than coerced.
//
// Resilient wraps a Model with a rate limiter and a circuit breaker, and
// ScriptedModel plays back canned responses for tests.
package model
