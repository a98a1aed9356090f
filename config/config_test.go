package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_Valid(t *testing.T) {
	cfg := Defaults()

	require.NoError(t, Validate(cfg))
	assert.Equal(t, TriageAgent, cfg.RootAgent)
	assert.Len(t, cfg.Agents, 6)
	assert.Equal(t, 10, cfg.Runner.MaxTurns)
	assert.Equal(t, "german", cfg.Tools.Clock.Language)

	ep, ok := cfg.Endpoint("")
	require.True(t, ok)
	assert.Equal(t, DefaultEndpoint, ep.Name)
}

func TestDefaultAgents_TriageDelegatesToEverySpecialist(t *testing.T) {
	agents := DefaultAgents()

	var triage AgentConfig

	for _, a := range agents {
		if a.Name == TriageAgent {
			triage = a
		}
	}

	assert.ElementsMatch(t, []string{DateAgent, LocationAgent, WebAgent, NewsAgent, FormatAgent}, triage.Handoffs)
	assert.ElementsMatch(t, KnownTools, triage.Tools)
	assert.Contains(t, triage.Instructions, "{{.language}}")
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Runner, cfg.Runner)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, TriageAgent, cfg.RootAgent)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentrelay.yaml")
	doc := `
runner:
  max_turns: 4
  model_timeout: 10s
endpoints:
  - name: claude
    provider: anthropic
    model: claude-3-5-haiku-latest
    rate_limit: 2
    burst: 1
agents:
  - name: Helper
    instructions: Answer in {{.language}}.
    model: claude
    tools: [get_date_and_day]
root_agent: Helper
tools:
  clock:
    language: english
    timezone: Europe/Berlin
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Runner.MaxTurns)
	assert.Equal(t, 10*time.Second, cfg.Runner.ModelTimeout)
	assert.Equal(t, 30*time.Second, cfg.Runner.ToolTimeout)
	require.Len(t, cfg.Endpoints, 1)
	assert.Equal(t, "anthropic", cfg.Endpoints[0].Provider)
	assert.InDelta(t, 2.0, cfg.Endpoints[0].RateLimit, 0.001)
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "Helper", cfg.RootAgent)
	assert.Equal(t, "english", cfg.Tools.Clock.Language)
	assert.Equal(t, "duckduckgo", cfg.Tools.Search.Backend)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runner: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvEndpointBaseURL, "http://llm:8080/v1")
	t.Setenv(EnvEndpointModel, "qwen")
	t.Setenv(EnvMaxTurns, "7")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLanguage, "french")
	t.Setenv(EnvTracingEnabled, "true")

	cfg := Defaults()
	require.NoError(t, ApplyEnvOverrides(cfg))

	assert.Equal(t, "http://llm:8080/v1", cfg.Endpoints[0].BaseURL)
	assert.Equal(t, "qwen", cfg.Endpoints[0].Model)
	assert.Equal(t, 7, cfg.Runner.MaxTurns)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "french", cfg.Tools.Clock.Language)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestApplyEnvOverrides_BadValues(t *testing.T) {
	t.Setenv(EnvMaxTurns, "many")
	require.Error(t, ApplyEnvOverrides(Defaults()))

	t.Setenv(EnvMaxTurns, "")
	t.Setenv(EnvTracingEnabled, "perhaps")
	require.Error(t, ApplyEnvOverrides(Defaults()))
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Runner.MaxTurns = 0
	cfg.Retry.MaxAttempts = 0
	cfg.Endpoints = append(cfg.Endpoints, EndpointConfig{Name: DefaultEndpoint, Provider: "gemini"})
	cfg.Tools.Search.Backend = "searxng"
	cfg.Tools.Clock.Timezone = "Mars/Olympus"
	cfg.Agents[0].Tools = append(cfg.Agents[0].Tools, "teleport")
	cfg.Agents[0].Handoffs = append(cfg.Agents[0].Handoffs, "Ghost")
	cfg.Agents[1].Model = "nowhere"
	cfg.RootAgent = "Nobody"
	cfg.Logging.Format = "xml"

	err := Validate(cfg)
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	joined := ve.Error()
	for _, want := range []string{
		"runner.max_turns",
		"retry.max_attempts",
		"is duplicated",
		`provider "gemini"`,
		"endpoints[1].model",
		"searxng_url",
		"Mars/Olympus",
		`unknown tool "teleport"`,
		`unknown agent "Ghost"`,
		`unknown endpoint "nowhere"`,
		`root_agent "Nobody"`,
		`logging.format "xml"`,
	} {
		assert.Contains(t, joined, want)
	}
}

func TestValidate_DuplicateAgent(t *testing.T) {
	cfg := Defaults()
	cfg.Agents = append(cfg.Agents, AgentConfig{Name: FormatAgent})

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Format and Translate Agent" is duplicated`)
}

func TestValidate_StaticWeatherNeedsLocation(t *testing.T) {
	cfg := Defaults()
	cfg.Tools.Weather.Backend = "static"
	require.Error(t, Validate(cfg))

	cfg.Tools.Weather.Location = "Berlin"
	require.NoError(t, Validate(cfg))
}
