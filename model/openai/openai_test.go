package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/testutil"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "phi4-tools",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{"id": "call_2", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"Bern\"}"}}]
    }
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func newServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		if captured != nil {
			require.NoError(t, json.Unmarshal(raw, captured))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestModel_GenerateMapsConversation(t *testing.T) {
	var body map[string]any

	srv := newServer(t, http.StatusOK, toolCallCompletion, &body)

	m := NewModel(func(o *Options) {
		o.BaseURL = srv.URL + "/v1/"
		o.APIKey = "fake"
		o.Model = "phi4-tools"
	})

	conv := testutil.NewConversation("weather in Bern?").
		Handoff("call_1", "transfer_to_location_assistant", "Triage Agent", "Location Assistant").
		Build()

	resp, err := m.Generate(context.Background(), model.Request{
		Instructions: "You are a weather assistant.",
		Messages:     conv.Messages(),
		Tools: []tool.Definition{{
			Name:        "get_weather",
			Description: "Weather lookup",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{"city": map[string]any{"type": "string"}}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, model.ToolCall{ID: "call_2", Name: "get_weather", Arguments: `{"city":"Bern"}`}, resp.ToolCalls[0])
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "phi4-tools", body["model"])
	assert.Equal(t, false, body["parallel_tool_calls"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)

	roles := make([]string, 0, len(msgs))
	for _, raw := range msgs {
		roles = append(roles, raw.(map[string]any)["role"].(string))
	}

	assert.Equal(t, []string{"system", "user", "assistant", "tool"}, roles)

	assistant := msgs[2].(map[string]any)
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 1)
	fn := calls[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "transfer_to_location_assistant", fn["name"])

	toolMsg := msgs[3].(map[string]any)
	assert.Equal(t, "call_1", toolMsg["tool_call_id"])
}

func TestModel_GenerateClassifiesAPIErrors(t *testing.T) {
	srv := newServer(t, http.StatusServiceUnavailable, `{"error":{"message":"overloaded","type":"server_error"}}`, nil)

	m := NewModel(func(o *Options) {
		o.BaseURL = srv.URL + "/v1/"
		o.APIKey = "fake"
	})

	_, err := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("hi")}})
	require.Error(t, err)

	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.True(t, model.IsTransient(err))
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "gpt-4o-mini" })
	assert.Equal(t, model.Info{Name: "gpt-4o-mini", Provider: "openai", SupportsTools: true}, m.Info())
}
