package testutil

import (
	"github.com/hupe1980/agentrelay/core"
)

// ConversationBuilder provides a fluent helper for constructing conversations
// in tests. Example:
//
//	conv := testutil.NewConversation("weather?").
//		ToolCall("Triage Agent", "call-1", "get_weather", `{"city":"Bern"}`).
//		ToolResult("Triage Agent", "call-1", "get_weather", "sunny").
//		Build()
type ConversationBuilder struct {
	conv *core.Conversation
}

// NewConversation starts a builder seeded with a user message.
func NewConversation(input string) *ConversationBuilder {
	return &ConversationBuilder{conv: core.NewConversation(input)}
}

// Assistant appends a plain assistant text message (chainable).
func (b *ConversationBuilder) Assistant(agent, text string) *ConversationBuilder {
	b.conv.Append(core.NewAssistantMessage(agent, text))
	return b
}

// ToolCall appends an assistant tool call (chainable).
func (b *ConversationBuilder) ToolCall(agent, id, name, args string) *ConversationBuilder {
	b.conv.Append(core.NewToolCallMessage(agent, core.ToolCall{ID: id, Name: name, Arguments: args}))
	return b
}

// ToolResult appends a successful tool result (chainable).
func (b *ConversationBuilder) ToolResult(agent, id, name, content string) *ConversationBuilder {
	b.conv.Append(core.NewToolResultMessage(agent, core.ToolResult{CallID: id, Name: name, Content: content}))
	return b
}

// Handoff appends a handoff from source to target plus the transfer
// acknowledgement the runner records (chainable).
func (b *ConversationBuilder) Handoff(id, toolName, source, target string) *ConversationBuilder {
	b.conv.Append(core.NewHandoffMessage(core.Handoff{CallID: id, ToolName: toolName, Source: source, Target: target}))
	b.conv.Append(core.NewToolResultMessage(source, core.ToolResult{CallID: id, Name: toolName, Content: `{"assistant":"` + target + `"}`}))

	return b
}

// Build returns the conversation.
func (b *ConversationBuilder) Build() *core.Conversation { return b.conv }
