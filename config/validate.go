package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a
// *ValidationError listing every problem found. Graph level checks
// (reachability, handoff cycles) are left to agent.NewRegistry.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateRunner(cfg, ve)
	validateEndpoints(cfg, ve)
	validateTools(cfg, ve)
	validateAgents(cfg, ve)
	validateLogging(cfg, ve)

	if ve.HasErrors() {
		return ve
	}

	return nil
}

func validateRunner(cfg *Config, ve *ValidationError) {
	if cfg.Runner.MaxTurns <= 0 {
		ve.Add("runner.max_turns must be > 0")
	}

	if cfg.Runner.ModelTimeout <= 0 {
		ve.Add("runner.model_timeout must be > 0")
	}

	if cfg.Runner.ToolTimeout <= 0 {
		ve.Add("runner.tool_timeout must be > 0")
	}

	if cfg.Runner.MaxConcurrentRuns < 0 {
		ve.Add("runner.max_concurrent_runs must be >= 0")
	}

	if cfg.Retry.MaxAttempts < 1 {
		ve.Add("retry.max_attempts must be >= 1")
	}

	if cfg.Retry.InitialInterval < 0 || cfg.Retry.MaxInterval < 0 {
		ve.Add("retry intervals must not be negative")
	}
}

var validProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
}

func validateEndpoints(cfg *Config, ve *ValidationError) {
	if len(cfg.Endpoints) == 0 {
		ve.Add("at least one endpoint is required")
	}

	seen := make(map[string]bool, len(cfg.Endpoints))

	for i, ep := range cfg.Endpoints {
		if ep.Name == "" {
			ve.Add("endpoints[%d].name must not be empty", i)
		} else if seen[ep.Name] {
			ve.Add("endpoints[%d].name %q is duplicated", i, ep.Name)
		}

		seen[ep.Name] = true

		if !validProviders[ep.Provider] {
			ve.Add("endpoints[%d].provider %q is not supported (openai, anthropic)", i, ep.Provider)
		}

		if ep.Model == "" {
			ve.Add("endpoints[%d].model must not be empty", i)
		}

		if ep.RateLimit < 0 {
			ve.Add("endpoints[%d].rate_limit must be >= 0", i)
		}
	}
}

func validateTools(cfg *Config, ve *ValidationError) {
	switch cfg.Tools.Search.Backend {
	case "duckduckgo":
	case "searxng":
		if cfg.Tools.Search.SearXNGURL == "" {
			ve.Add("tools.search.searxng_url is required for the searxng backend")
		}
	default:
		ve.Add("tools.search.backend %q is not supported (duckduckgo, searxng)", cfg.Tools.Search.Backend)
	}

	if cfg.Tools.Search.MaxResults <= 0 || cfg.Tools.Search.NewsMaxResults <= 0 {
		ve.Add("tools.search result limits must be > 0")
	}

	switch cfg.Tools.Weather.Backend {
	case "open-meteo":
	case "static":
		if cfg.Tools.Weather.Location == "" {
			ve.Add("tools.weather.location is required for the static backend")
		}
	default:
		ve.Add("tools.weather.backend %q is not supported (open-meteo, static)", cfg.Tools.Weather.Backend)
	}

	if tz := cfg.Tools.Clock.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			ve.Add("tools.clock.timezone %q: %v", tz, err)
		}
	}
}

func validateAgents(cfg *Config, ve *ValidationError) {
	if len(cfg.Agents) == 0 {
		ve.Add("at least one agent is required")
		return
	}

	known := make(map[string]bool, len(KnownTools))
	for _, t := range KnownTools {
		known[t] = true
	}

	names := make(map[string]bool, len(cfg.Agents))
	for i, a := range cfg.Agents {
		if strings.TrimSpace(a.Name) == "" {
			ve.Add("agents[%d].name must not be empty", i)
			continue
		}

		if names[a.Name] {
			ve.Add("agents[%d].name %q is duplicated", i, a.Name)
		}

		names[a.Name] = true
	}

	for _, a := range cfg.Agents {
		if a.Model != "" {
			if _, ok := cfg.Endpoint(a.Model); !ok {
				ve.Add("agent %q references unknown endpoint %q", a.Name, a.Model)
			}
		}

		for _, t := range a.Tools {
			if !known[t] {
				ve.Add("agent %q references unknown tool %q", a.Name, t)
			}
		}

		for _, h := range a.Handoffs {
			if !names[h] {
				ve.Add("agent %q hands off to unknown agent %q", a.Name, h)
			}
		}
	}

	if cfg.RootAgent != "" && !names[cfg.RootAgent] {
		ve.Add("root_agent %q is not defined", cfg.RootAgent)
	}
}

func validateLogging(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logging.level %q is not supported", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		ve.Add("logging.format %q is not supported (text, json)", cfg.Logging.Format)
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Exporter {
		case "stdout", "noop", "none":
		default:
			ve.Add("tracing.exporter %q is not supported (stdout, noop)", cfg.Tracing.Exporter)
		}
	}
}
