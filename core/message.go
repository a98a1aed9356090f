package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the producer of a Message within a conversation.
type Role string

const (
	// RoleUser marks input supplied by the caller.
	RoleUser Role = "user"
	// RoleAssistant marks output produced by an agent's model turn.
	RoleAssistant Role = "assistant"
	// RoleTool marks the result (or failure) of a tool invocation.
	RoleTool Role = "tool"
)

// UserAuthor is the Author value of caller supplied messages.
const UserAuthor = "user"

// ToolResult carries the outcome of a tool invocation back into the
// conversation. IsError is set when Content describes a failure.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is a single entry of a Conversation. Exactly one of ToolCall,
// Handoff and ToolResult is set for structured entries; plain text turns
// only carry Content. Messages are treated as immutable once appended.
type Message struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Author     string      `json:"author"`
	Content    string      `json:"content,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	Handoff    *Handoff    `json:"handoff,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

func newMessage(role Role, author string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Author:    author,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserMessage creates the caller-authored message that seeds a run.
func NewUserMessage(text string) Message {
	m := newMessage(RoleUser, UserAuthor)
	m.Content = text

	return m
}

// NewAssistantMessage creates a plain text assistant message authored by agent.
func NewAssistantMessage(agent, text string) Message {
	m := newMessage(RoleAssistant, agent)
	m.Content = text

	return m
}

// NewToolCallMessage records an agent requesting execution of a tool.
func NewToolCallMessage(agent string, call ToolCall) Message {
	m := newMessage(RoleAssistant, agent)
	m.ToolCall = &call

	return m
}

// NewHandoffMessage records the transfer of control from h.Source to h.Target.
func NewHandoffMessage(h Handoff) Message {
	m := newMessage(RoleAssistant, h.Source)
	m.Handoff = &h

	return m
}

// NewToolResultMessage records the outcome of a tool call. The content is
// mirrored into Message.Content so transcripts read naturally.
func NewToolResultMessage(agent string, result ToolResult) Message {
	m := newMessage(RoleTool, agent)
	m.Content = result.Content
	m.ToolResult = &result

	return m
}

// IsFinalText reports whether the message is a plain assistant text turn,
// i.e. a candidate final answer.
func (m Message) IsFinalText() bool {
	return m.Role == RoleAssistant && m.ToolCall == nil && m.Handoff == nil && m.Content != ""
}

// Clone returns a deep copy of the message so snapshots never alias the
// payload pointers of the live conversation.
func (m Message) Clone() Message {
	c := m
	if m.ToolCall != nil {
		tc := *m.ToolCall
		c.ToolCall = &tc
	}

	if m.Handoff != nil {
		h := *m.Handoff
		c.Handoff = &h
	}

	if m.ToolResult != nil {
		tr := *m.ToolResult
		c.ToolResult = &tr
	}

	return c
}

// NewID generates a new unique identifier for runs, messages and calls.
func NewID() string { return uuid.NewString() }
