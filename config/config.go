// Package config loads the process-wide agentrelay configuration: model
// endpoints, the agent graph, tool backends and runner limits. It is read
// once at startup; nothing in it changes while runs execute.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Runner    RunnerConfig     `yaml:"runner"`
	Retry     RetryConfig      `yaml:"retry"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
	Tools     ToolsConfig      `yaml:"tools"`
	Agents    []AgentConfig    `yaml:"agents"`
	RootAgent string           `yaml:"root_agent"`
	Logging   LoggingConfig    `yaml:"logging"`
	Tracing   TracingConfig    `yaml:"tracing"`
	Server    ServerConfig     `yaml:"server"`
}

// RunnerConfig bounds every run.
type RunnerConfig struct {
	MaxTurns          int           `yaml:"max_turns"`
	ModelTimeout      time.Duration `yaml:"model_timeout"`
	ToolTimeout       time.Duration `yaml:"tool_timeout"`
	MaxConcurrentRuns int           `yaml:"max_concurrent_runs"`
}

// RetryConfig shapes the retry policy for transient model failures.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// EndpointConfig describes one model endpoint agents can reference by name.
type EndpointConfig struct {
	Name        string        `yaml:"name"`
	Provider    string        `yaml:"provider"` // openai | anthropic
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int64         `yaml:"max_tokens"`
	RateLimit   float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst       int           `yaml:"burst"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the per-endpoint circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ToolsConfig selects and configures the tool backends.
type ToolsConfig struct {
	Search  SearchConfig  `yaml:"search"`
	Weather WeatherConfig `yaml:"weather"`
	Clock   ClockConfig   `yaml:"clock"`
}

// SearchConfig configures websearch and newssearch.
type SearchConfig struct {
	Backend        string `yaml:"backend"` // duckduckgo | searxng
	SearXNGURL     string `yaml:"searxng_url"`
	MaxResults     int    `yaml:"max_results"`
	NewsMaxResults int    `yaml:"news_max_results"`
}

// WeatherConfig configures get_weather.
type WeatherConfig struct {
	Backend  string `yaml:"backend"`  // open-meteo | static
	Location string `yaml:"location"` // answer of the static backend
}

// ClockConfig configures get_date_and_day. Language is also the preferred
// output language exposed to instruction templates as {{.language}}.
type ClockConfig struct {
	Language string `yaml:"language"`
	Timezone string `yaml:"timezone"`
}

// AgentConfig declares one agent of the graph.
type AgentConfig struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Instructions string   `yaml:"instructions"`
	Model        string   `yaml:"model"`
	Tools        []string `yaml:"tools"`
	Handoffs     []string `yaml:"handoffs"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // text | json
	Output    string `yaml:"output"` // stderr | stdout | file path
	AddSource bool   `yaml:"add_source"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Exporter    string `yaml:"exporter"` // stdout | noop
	ServiceName string `yaml:"service_name"`
	Output      string `yaml:"output"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ModelName    string        `yaml:"model_name"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Defaults returns the built-in configuration: a local OpenAI compatible
// endpoint and the triage agent graph.
func Defaults() *Config {
	return &Config{
		Runner: RunnerConfig{
			MaxTurns:          10,
			ModelTimeout:      60 * time.Second,
			ToolTimeout:       30 * time.Second,
			MaxConcurrentRuns: 16,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		Endpoints: []EndpointConfig{{
			Name:        DefaultEndpoint,
			Provider:    "openai",
			BaseURL:     "http://localhost:11434/v1",
			APIKey:      "fake",
			Model:       "jacob-ebey/phi4-tools:latest",
			Temperature: 0.7,
			MaxTokens:   2048,
			Breaker:     BreakerConfig{MaxFailures: 5, Timeout: 30 * time.Second},
		}},
		Tools: ToolsConfig{
			Search:  SearchConfig{Backend: "duckduckgo", MaxResults: 4, NewsMaxResults: 10},
			Weather: WeatherConfig{Backend: "open-meteo"},
			Clock:   ClockConfig{Language: "german"},
		},
		Agents:    DefaultAgents(),
		RootAgent: TriageAgent,
		Logging:   LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
		Tracing:   TracingConfig{Exporter: "stdout", ServiceName: "agentrelay"},
		Server: ServerConfig{
			Addr:         ":8000",
			ModelName:    "agentrelay",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
	}
}

// Load reads a YAML config file on top of the defaults, applies AGENTRELAY_*
// environment overrides and validates the result. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)

		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Environment variables read by ApplyEnvOverrides.
const (
	EnvEndpointBaseURL = "AGENTRELAY_ENDPOINT_BASE_URL"
	EnvEndpointAPIKey  = "AGENTRELAY_ENDPOINT_API_KEY"
	EnvEndpointModel   = "AGENTRELAY_ENDPOINT_MODEL"
	EnvMaxTurns        = "AGENTRELAY_MAX_TURNS"
	EnvLogLevel        = "AGENTRELAY_LOG_LEVEL"
	EnvServerAddr      = "AGENTRELAY_SERVER_ADDR"
	EnvLanguage        = "AGENTRELAY_LANGUAGE"
	EnvTracingEnabled  = "AGENTRELAY_TRACING_ENABLED"
)

// ApplyEnvOverrides maps AGENTRELAY_* env vars to config fields. The
// endpoint variables apply to the first endpoint.
func ApplyEnvOverrides(cfg *Config) error {
	if len(cfg.Endpoints) > 0 {
		ep := &cfg.Endpoints[0]
		if v := os.Getenv(EnvEndpointBaseURL); v != "" {
			ep.BaseURL = v
		}

		if v := os.Getenv(EnvEndpointAPIKey); v != "" {
			ep.APIKey = v
		}

		if v := os.Getenv(EnvEndpointModel); v != "" {
			ep.Model = v
		}
	}

	if v := os.Getenv(EnvMaxTurns); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxTurns, err)
		}

		cfg.Runner.MaxTurns = n
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv(EnvServerAddr); v != "" {
		cfg.Server.Addr = v
	}

	if v := os.Getenv(EnvLanguage); v != "" {
		cfg.Tools.Clock.Language = v
	}

	if v := os.Getenv(EnvTracingEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTracingEnabled, err)
		}

		cfg.Tracing.Enabled = enabled
	}

	return nil
}

// Endpoint returns the endpoint with the given name; the empty name selects
// the first one.
func (c *Config) Endpoint(name string) (EndpointConfig, bool) {
	for i, ep := range c.Endpoints {
		if ep.Name == name || (name == "" && i == 0) {
			return ep, true
		}
	}

	return EndpointConfig{}, false
}
