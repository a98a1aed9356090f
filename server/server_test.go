package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
)

type runnerFunc func(ctx context.Context, root, input string) (*core.RunResult, error)

func (f runnerFunc) Run(ctx context.Context, root, input string) (*core.RunResult, error) {
	return f(ctx, root, input)
}

type recordingRunner struct {
	root, input string
	result      *core.RunResult
	err         error
}

func (r *recordingRunner) Run(_ context.Context, root, input string) (*core.RunResult, error) {
	r.root, r.input = root, input
	return r.result, r.err
}

func testRegistry(t *testing.T) *agent.Registry {
	t.Helper()

	reg, err := agent.NewRegistry([]*agent.Definition{
		agent.MustNew("Triage", agent.WithModel("local"), agent.WithHandoffs("Formatter")),
		agent.MustNew("Formatter", agent.WithModel("local"), func(o *agent.Options) { o.Description = "formats" }),
	}, func(o *agent.RegistryOptions) { o.Root = "Triage" })
	require.NoError(t, err)

	return reg
}

func newTestServer(t *testing.T, r Runner) *Server {
	t.Helper()

	return New(r, testRegistry(t), func(o *Options) {
		o.ModelName = "relay"
		o.Now = func() time.Time { return time.Unix(1700000000, 0) }
	})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, &recordingRunner{}), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListAgents(t *testing.T) {
	rec := do(t, newTestServer(t, &recordingRunner{}), http.MethodGet, "/v1/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Agents []AgentInfo `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Agents, 2)

	assert.Equal(t, "Triage", body.Agents[0].Name)
	assert.True(t, body.Agents[0].Root)
	assert.Equal(t, []string{"Formatter"}, body.Agents[0].Handoffs)
	assert.Equal(t, "formats", body.Agents[1].Description)
	assert.Equal(t, "local", body.Agents[1].Model)
}

func TestChatCompletions_UsesLastUserMessage(t *testing.T) {
	r := &recordingRunner{result: &core.RunResult{RunID: "run-1", FinalOutput: "Hallo Welt 👋", LastAgent: "Formatter"}}
	s := newTestServer(t, r)

	rec := do(t, s, http.MethodPost, "/v1/chat/completions", `{
		"model": "relay",
		"messages": [
			{"role": "system", "content": "be nice"},
			{"role": "user", "content": "first question"},
			{"role": "assistant", "content": "answer"},
			{"role": "user", "content": [{"type": "text", "text": "say hello"}]}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "say hello", r.input)
	assert.Empty(t, r.root)

	var resp ChatCompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, strings.HasPrefix(resp.ID, "chatcmpl-"))
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "relay", resp.Model)
	assert.Equal(t, int64(1700000000), resp.Created)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "Hallo Welt 👋", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5}, *resp.Usage)
	assert.Equal(t, "run-1", resp.RunID)
}

func TestChatCompletions_ModelSelectsAgent(t *testing.T) {
	r := &recordingRunner{result: &core.RunResult{FinalOutput: "ok"}}

	rec := do(t, newTestServer(t, r), http.MethodPost, "/v1/chat/completions",
		`{"model":"Formatter","messages":[{"role":"user","content":"x"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Formatter", r.root)
}

func TestChatCompletions_Stream(t *testing.T) {
	r := &recordingRunner{result: &core.RunResult{FinalOutput: "streamed answer"}}

	rec := do(t, newTestServer(t, r), http.MethodPost, "/v1/chat/completions",
		`{"model":"relay","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var events []string

	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}

	require.Len(t, events, 2)
	assert.Equal(t, "[DONE]", events[1])

	var chunk ChatCompletionResponse
	require.NoError(t, json.Unmarshal([]byte(events[0]), &chunk))
	assert.Equal(t, "chat.completion.chunk", chunk.Object)
	require.Len(t, chunk.Choices, 1)
	assert.Equal(t, "streamed answer", chunk.Choices[0].Delta.Content)
	assert.Nil(t, chunk.Usage)
}

func TestChatCompletions_BadRequests(t *testing.T) {
	s := newTestServer(t, runnerFunc(func(context.Context, string, string) (*core.RunResult, error) {
		t.Fatal("runner must not be called")
		return nil, nil
	}))

	for name, body := range map[string]string{
		"invalid json":    `{"messages":`,
		"no messages":     `{"model":"relay","messages":[]}`,
		"no user message": `{"model":"relay","messages":[{"role":"system","content":"x"}]}`,
		"blank user":      `{"model":"relay","messages":[{"role":"user","content":"   "}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/v1/chat/completions", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "invalid_request_error", resp.Error.Type)
		})
	}
}

func TestChatCompletions_RunErrors(t *testing.T) {
	transcript := []core.Message{{ID: "m1", Role: core.RoleUser, Author: "user", Content: "hi"}}

	tests := []struct {
		kind   core.ErrorKind
		status int
	}{
		{core.KindTransport, http.StatusBadGateway},
		{core.KindTimeout, http.StatusGatewayTimeout},
		{core.KindTurnLimitExceeded, http.StatusInternalServerError},
		{core.KindUnauthorizedToolCall, http.StatusInternalServerError},
		{core.KindInvalidInput, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			ee := core.NewEngineError(tt.kind, "boom")
			ee.RunID = "run-9"
			ee.Transcript = transcript

			r := &recordingRunner{err: ee}

			rec := do(t, newTestServer(t, r), http.MethodPost, "/v1/chat/completions",
				`{"messages":[{"role":"user","content":"hi"}]}`)
			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, string(tt.kind), resp.Error.Type)
			assert.Equal(t, "run-9", resp.Error.RunID)
			require.Len(t, resp.Error.Transcript, 1)
			assert.Equal(t, "hi", resp.Error.Transcript[0].Content)
		})
	}
}

func TestListModels(t *testing.T) {
	rec := do(t, newTestServer(t, &recordingRunner{}), http.MethodGet, "/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"relay"`)
}
