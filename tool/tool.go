// Package tool implements the tool calling subsystem that lets agents invoke
// structured capabilities (web search, weather lookup, clock reads) with
// schema validated arguments, per-call timeouts and consistent, conversational
// error reporting.
package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentrelay/core"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools are the only place where outbound side effects (network calls,
// clock reads) happen. Implementations should:
//   - Provide a descriptive snake_case name, unique within an agent
//   - Define a JSON schema for their parameters
//   - Honour cancellation of toolCtx.Context()
//   - Be safe for concurrent use; one Tool value serves every run
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the model to help it decide when to call the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// The schema is used for argument validation and model function calling.
	Parameters() map[string]any

	// Call executes the tool with arguments that already passed schema
	// validation.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Error codes carried by ToolError.
const (
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeExecution        = "EXECUTION_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodePanic            = "PANIC"
	CodeCancelled        = "CANCELLED"
)

// ToolError represents a recoverable tool failure. It is reported back into
// the conversation so the model can react to it in its next turn.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Content renders the failure as the JSON body of a tool message.
func (e *ToolError) Content() string {
	b, err := json.Marshal(map[string]any{
		"error": map[string]any{"code": e.Code, "message": e.Message},
	})
	if err != nil {
		return e.Error()
	}

	return string(b)
}

// Definitions returns the tools' model facing declarations in order.
func Definitions(tools []Tool) []Definition {
	defs := make([]Definition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}

	return defs
}

// Definition is the provider neutral declaration of a callable function.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
