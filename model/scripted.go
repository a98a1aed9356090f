package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/tool"
)

// ErrScriptExhausted is returned by ScriptedModel when no step is left.
var ErrScriptExhausted = errors.New("scripted model: no response left")

// Step is one scripted round trip: either a Response or an error, optionally
// delayed. A delayed step honours cancellation of the call context.
type Step struct {
	Response *Response
	Err      error
	Delay    time.Duration
}

// Reply scripts a plain text answer.
func Reply(text string) Step {
	return Step{Response: &Response{Text: text, FinishReason: "stop"}}
}

// CallTool scripts a single function call. An empty id is filled in with a
// generated one.
func CallTool(name, arguments string) Step {
	return Step{Response: &Response{
		ToolCalls:    []ToolCall{{ID: "call_" + core.NewID(), Name: name, Arguments: arguments}},
		FinishReason: "tool_calls",
	}}
}

// TransferTo scripts a handoff to agent.
func TransferTo(agent string) Step {
	return CallTool(tool.HandoffToolName(agent), "{}")
}

// Fail scripts a failing round trip.
func Fail(err error) Step { return Step{Err: err} }

// ScriptedModel is an in-memory Model that plays back steps in order and
// records every request. It is safe for concurrent use.
type ScriptedModel struct {
	mu       sync.Mutex
	info     Info
	steps    []Step
	requests []Request
}

// NewScriptedModel returns a ScriptedModel playing back steps.
func NewScriptedModel(name string, steps ...Step) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: name, Provider: "scripted", SupportsTools: true},
		steps: steps,
	}
}

// Push appends steps to the script.
func (m *ScriptedModel) Push(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps = append(m.steps, steps...)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()

	m.requests = append(m.requests, cloneRequest(req))

	if len(m.steps) == 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", m.info.Name, ErrScriptExhausted)
	}

	step := m.steps[0]
	m.steps = m.steps[1:]
	m.mu.Unlock()

	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if step.Err != nil {
		return nil, step.Err
	}

	resp := *step.Response
	resp.ToolCalls = append([]ToolCall(nil), step.Response.ToolCalls...)

	return &resp, nil
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// Requests returns the recorded requests in call order.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Request(nil), m.requests...)
}

// Calls returns the number of Generate calls so far.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.requests)
}

// Remaining returns the number of unplayed steps.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.steps)
}

func cloneRequest(req Request) Request {
	c := req
	c.Messages = make([]core.Message, len(req.Messages))

	for i, msg := range req.Messages {
		c.Messages[i] = msg.Clone()
	}

	c.Tools = append([]tool.Definition(nil), req.Tools...)

	return c
}
