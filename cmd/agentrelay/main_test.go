package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatServer answers every chat completion with the next reply.
func fakeChatServer(t *testing.T, replies ...string) *httptest.Server {
	t.Helper()

	var n atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}

		i := int(n.Add(1)) - 1
		reply := replies[len(replies)-1]

		if i < len(replies) {
			reply = replies[i]
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      fmt.Sprintf("chatcmpl-%d", i),
			"object":  "chat.completion",
			"created": 1,
			"model":   "test",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)

	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()

	doc := fmt.Sprintf(`
endpoints:
  - name: local
    provider: openai
    base_url: %s
    api_key: test
    model: test
agents:
  - name: Echo
    instructions: Reply in {{.language}}.
    model: local
root_agent: Echo
logging:
  level: error
`, baseURL)

	path := filepath.Join(t.TempDir(), "agentrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	return path
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	require.Error(t, run(context.Background(), nil, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage: agentrelay")

	stderr.Reset()
	require.Error(t, run(context.Background(), []string{"bogus"}, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Commands:")

	require.NoError(t, run(context.Background(), []string{"help"}, nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "ask")
}

func TestRun_AskFromArgs(t *testing.T) {
	srv := fakeChatServer(t, "Hallo! 👋")
	path := writeConfig(t, srv.URL)

	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"ask", "-config", path, "say", "hello"}, nil, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Equal(t, "Hallo! 👋\n", stdout.String())
}

func TestRun_AskFromStdin(t *testing.T) {
	srv := fakeChatServer(t, "from stdin")
	path := writeConfig(t, srv.URL)

	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"ask", "-config", path, "-trace"}, strings.NewReader("what now?\n"), &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Equal(t, "from stdin\n", stdout.String())
	assert.Contains(t, stderr.String(), "[user] what now?")
	assert.Contains(t, stderr.String(), "[Echo] from stdin")
}

func TestRun_AskEmptyPrompt(t *testing.T) {
	srv := fakeChatServer(t, "unused")
	path := writeConfig(t, srv.URL)

	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"ask", "-config", path}, strings.NewReader("  \n"), &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_input")
}

func TestRun_Agents(t *testing.T) {
	var stdout, stderr bytes.Buffer

	path := filepath.Join(t.TempDir(), "missing.yaml")
	t.Setenv("AGENTRELAY_LOG_LEVEL", "error")

	require.NoError(t, run(context.Background(), []string{"agents", "-config", path}, nil, &stdout, &stderr))

	out := stdout.String()
	assert.Contains(t, out, "* Triage Agent (model: local)")
	assert.Contains(t, out, "handoffs: Get Date And Day, Location Assistant, Websearch Agent, News Search Agent, Format and Translate Agent")
	assert.Contains(t, out, "tools:    get_date_and_day, get_weather, newssearch, websearch")
}
