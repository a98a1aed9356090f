package server

import (
	"encoding/json"
	"strings"

	"github.com/hupe1980/agentrelay/core"
)

// ChatMessage is one message of an OpenAI style chat request.
type ChatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Text returns the textual content. Both the plain string form and the
// array of content parts form are accepted; non-text parts are skipped.
func (m ChatMessage) Text() string {
	if len(m.Content) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}

	if err := json.Unmarshal(m.Content, &parts); err != nil {
		return ""
	}

	texts := make([]string, 0, len(parts))

	for _, p := range parts {
		if p.Type == "text" || p.Type == "" {
			texts = append(texts, p.Text)
		}
	}

	return strings.Join(texts, "\n")
}

// ChatCompletionRequest is the accepted subset of the OpenAI request body.
type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

// Usage reports word counts in place of token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResponseMessage is the assistant message of a choice.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice is one completion choice.
type Choice struct {
	Index        int              `json:"index"`
	Message      *ResponseMessage `json:"message,omitempty"`
	Delta        *ResponseMessage `json:"delta,omitempty"`
	FinishReason string           `json:"finish_reason"`
}

// ChatCompletionResponse is a chat.completion or chat.completion.chunk object.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
	// RunID and LastAgent are extensions identifying the run.
	RunID     string `json:"run_id,omitempty"`
	LastAgent string `json:"last_agent,omitempty"`
}

// APIError is the error object of ErrorResponse.
type APIError struct {
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	RunID      string         `json:"run_id,omitempty"`
	Transcript []core.Message `json:"transcript,omitempty"`
}

// ErrorResponse wraps an APIError.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// AgentInfo describes one registered agent for GET /v1/agents.
type AgentInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Model       string   `json:"model"`
	Tools       []string `json:"tools"`
	Handoffs    []string `json:"handoffs"`
	Root        bool     `json:"root,omitempty"`
}
