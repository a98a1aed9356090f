// Package agentrelay assembles a complete multi-agent runtime from a
// config.Config: model endpoints wrapped with rate limiting and circuit
// breaking, the tool catalog, the validated agent registry and the runner.
// Most applications interact with this package by:
//  1. Loading a configuration via config.Load
//  2. Creating a Relay via New (optionally overriding models or backends)
//  3. Running user input through the root agent with Run or Stream
package agentrelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/tracing"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
	anthropicmodel "github.com/hupe1980/agentrelay/model/anthropic"
	openaimodel "github.com/hupe1980/agentrelay/model/openai"
	"github.com/hupe1980/agentrelay/runner"
	"github.com/hupe1980/agentrelay/tool"
	"github.com/hupe1980/agentrelay/tool/clock"
	"github.com/hupe1980/agentrelay/tool/search"
	"github.com/hupe1980/agentrelay/tool/weather"
)

// Options holds overrides applied on top of the configuration.
type Options struct {
	// Models replaces configured endpoints by name. Useful for tests and
	// for custom providers.
	Models map[string]model.Model
	// SearchBackend replaces the configured search backend.
	SearchBackend search.Backend
	// WeatherBackend replaces the configured weather backend.
	WeatherBackend weather.Backend
	// HTTPClient is used by the HTTP tool backends.
	HTTPClient *http.Client
	// Callbacks are passed to the runner.
	Callbacks *runner.CallbackManager
	// Now is the clock of the runner and the clock tool.
	Now func() time.Time
	// Logger overrides the logger built from cfg.Logging.
	Logger logging.Logger
}

// Relay is the assembled runtime.
type Relay struct {
	cfg       *config.Config
	logger    logging.Logger
	endpoints *model.Endpoints
	catalog   *tool.Catalog
	registry  *agent.Registry
	runner    *runner.Runner
	closers   []func(context.Context) error
}

// New builds a Relay from cfg. The configuration is validated first; any
// problem in the agent graph is reported before a run can start.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Relay, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}

	opts := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	rl := &Relay{cfg: cfg}

	if err := rl.setupLogging(opts.Logger); err != nil {
		return nil, err
	}

	if err := rl.setupTracing(); err != nil {
		_ = rl.Close(context.Background())
		return nil, err
	}

	if err := rl.build(opts); err != nil {
		_ = rl.Close(context.Background())
		return nil, err
	}

	return rl, nil
}

func (rl *Relay) setupLogging(logger logging.Logger) error {
	if logger != nil {
		rl.logger = logger
		return nil
	}

	out, closeOut, err := logging.OpenOutput(rl.cfg.Logging.Output)
	if err != nil {
		return err
	}

	rl.closers = append(rl.closers, func(context.Context) error { return closeOut() })
	rl.logger = logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(rl.cfg.Logging.Level),
		Format:    rl.cfg.Logging.Format,
		Output:    out,
		AddSource: rl.cfg.Logging.AddSource,
		Component: "agentrelay",
	})

	return nil
}

func (rl *Relay) setupTracing() error {
	tc := rl.cfg.Tracing
	if !tc.Enabled {
		return nil
	}

	var out io.Writer

	if tc.Output != "" {
		w, closeOut, err := logging.OpenOutput(tc.Output)
		if err != nil {
			return fmt.Errorf("tracing output: %w", err)
		}

		out = w
		rl.closers = append(rl.closers, func(context.Context) error { return closeOut() })
	}

	shutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:     true,
		Exporter:    tc.Exporter,
		ServiceName: tc.ServiceName,
		Output:      out,
	})
	if err != nil {
		return err
	}

	// Flush spans before the output is closed.
	rl.closers = append([]func(context.Context) error{shutdown}, rl.closers...)

	return nil
}

func (rl *Relay) build(opts Options) error {
	cfg := rl.cfg

	endpoints, err := buildEndpoints(cfg, opts.Models, rl.logger)
	if err != nil {
		return err
	}

	rl.endpoints = endpoints

	catalog, err := buildCatalog(cfg, opts)
	if err != nil {
		return err
	}

	rl.catalog = catalog

	registry, err := buildRegistry(cfg, catalog, endpoints.Names(), rl.logger)
	if err != nil {
		return err
	}

	rl.registry = registry

	client := model.NewClient(endpoints, func(o *model.ClientOptions) {
		o.Timeout = cfg.Runner.ModelTimeout
		o.MaxAttempts = cfg.Retry.MaxAttempts
		o.InitialInterval = cfg.Retry.InitialInterval
		o.MaxInterval = cfg.Retry.MaxInterval
		o.Agents = registry
		o.Logger = rl.logger
	})

	invoker := tool.NewInvoker(func(o *tool.InvokerOptions) {
		o.Timeout = cfg.Runner.ToolTimeout
		o.Logger = rl.logger
	})

	rl.runner = runner.New(registry, client, func(o *runner.Options) {
		o.MaxTurns = cfg.Runner.MaxTurns
		o.MaxConcurrentRuns = cfg.Runner.MaxConcurrentRuns
		o.Invoker = invoker
		o.Callbacks = opts.Callbacks
		o.Now = opts.Now
		o.Logger = rl.logger
	})

	return nil
}

func buildEndpoints(cfg *config.Config, overrides map[string]model.Model, logger logging.Logger) (*model.Endpoints, error) {
	endpoints := model.NewEndpoints()

	for _, ep := range cfg.Endpoints {
		m, ok := overrides[ep.Name]
		if !ok {
			var err error
			if m, err = newProviderModel(ep); err != nil {
				return nil, err
			}
		}

		resilient := model.NewResilient(m, func(o *model.ResilientOptions) {
			o.RateLimit = ep.RateLimit
			o.Burst = ep.Burst
			o.MaxFailures = ep.Breaker.MaxFailures
			o.OpenTimeout = ep.Breaker.Timeout
			o.Logger = logger
		})

		if err := endpoints.Register(ep.Name, resilient); err != nil {
			return nil, err
		}
	}

	return endpoints, nil
}

func newProviderModel(ep config.EndpointConfig) (model.Model, error) {
	switch ep.Provider {
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			o.Model = ep.Model
			o.BaseURL = ep.BaseURL
			o.APIKey = ep.APIKey
			o.Temperature = ep.Temperature
			if ep.MaxTokens > 0 {
				o.MaxCompletionTokens = ep.MaxTokens
			}
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.Model = anthropic.Model(ep.Model)
			o.BaseURL = ep.BaseURL
			o.APIKey = ep.APIKey
			o.Temperature = ep.Temperature
			if ep.MaxTokens > 0 {
				o.MaxTokens = ep.MaxTokens
			}
		}), nil
	default:
		return nil, fmt.Errorf("endpoint %q: unsupported provider %q", ep.Name, ep.Provider)
	}
}

func buildCatalog(cfg *config.Config, opts Options) (*tool.Catalog, error) {
	tc := cfg.Tools

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Runner.ToolTimeout}
	}

	searchBackend := opts.SearchBackend
	if searchBackend == nil {
		switch tc.Search.Backend {
		case "searxng":
			searchBackend = search.NewSearXNGBackend(tc.Search.SearXNGURL, "", httpClient)
		default:
			searchBackend = search.NewDuckDuckGoBackend(func(o *search.DuckDuckGoOptions) {
				o.HTTPClient = httpClient
			})
		}
	}

	weatherBackend := opts.WeatherBackend
	if weatherBackend == nil {
		switch tc.Weather.Backend {
		case "static":
			weatherBackend = weather.StaticBackend{Location: tc.Weather.Location}
		default:
			weatherBackend = weather.NewOpenMeteoBackend(func(o *weather.OpenMeteoOptions) {
				o.HTTPClient = httpClient
			})
		}
	}

	loc := time.Local

	if tc.Clock.Timezone != "" {
		l, err := time.LoadLocation(tc.Clock.Timezone)
		if err != nil {
			return nil, fmt.Errorf("clock timezone: %w", err)
		}

		loc = l
	}

	searchOpts := func(o *search.Options) {
		o.MaxResults = tc.Search.MaxResults
		o.NewsMaxResults = tc.Search.NewsMaxResults
	}

	return tool.NewCatalog(
		search.NewWebSearchTool(searchBackend, searchOpts),
		search.NewNewsSearchTool(searchBackend, searchOpts),
		weather.NewTool(weatherBackend),
		clock.NewTool(func(o *clock.Options) {
			o.Language = tc.Clock.Language
			o.Location = loc
			if opts.Now != nil {
				o.Now = opts.Now
			}
		}),
	)
}

func buildRegistry(cfg *config.Config, catalog *tool.Catalog, models []string, logger logging.Logger) (*agent.Registry, error) {
	defs := make([]*agent.Definition, 0, len(cfg.Agents))

	var errs []error

	for _, ac := range cfg.Agents {
		tools, err := catalog.Lookup(ac.Tools...)
		if err != nil {
			errs = append(errs, fmt.Errorf("agent %q: %w", ac.Name, err))
			continue
		}

		modelRef := ac.Model
		if modelRef == "" && len(cfg.Endpoints) > 0 {
			modelRef = cfg.Endpoints[0].Name
		}

		def, err := agent.New(ac.Name, func(o *agent.Options) {
			if ac.Instructions != "" {
				o.Instruction = agent.NewInstructionFromTemplate(ac.Instructions)
			}

			o.Description = ac.Description
			o.ModelRef = modelRef
			o.Tools = tools
			o.Handoffs = ac.Handoffs
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}

		defs = append(defs, def)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return agent.NewRegistry(defs, func(o *agent.RegistryOptions) {
		o.Models = models
		o.Root = cfg.RootAgent
		o.Vars = map[string]any{"language": cfg.Tools.Clock.Language}
		o.Logger = logger
	})
}

// Run executes input through the root agent and returns the aggregated
// result. A failed run returns a *core.EngineError carrying the partial
// transcript.
func (rl *Relay) Run(ctx context.Context, input string) (*core.RunResult, error) {
	return rl.runner.Run(ctx, "", input)
}

// RunAgent executes input starting at the named agent.
func (rl *Relay) RunAgent(ctx context.Context, agentName, input string) (*core.RunResult, error) {
	return rl.runner.Run(ctx, agentName, input)
}

// Stream starts a run through the root agent and streams its messages.
func (rl *Relay) Stream(ctx context.Context, input string) (string, <-chan core.Message, <-chan error, error) {
	return rl.runner.Stream(ctx, "", input)
}

// Cancel cancels an in-flight run.
func (rl *Relay) Cancel(runID string) error { return rl.runner.Cancel(runID) }

// Runner returns the underlying runner.
func (rl *Relay) Runner() *runner.Runner { return rl.runner }

// Registry returns the agent registry.
func (rl *Relay) Registry() *agent.Registry { return rl.registry }

// Endpoints returns the registered model endpoints.
func (rl *Relay) Endpoints() *model.Endpoints { return rl.endpoints }

// Tools returns the tool catalog.
func (rl *Relay) Tools() *tool.Catalog { return rl.catalog }

// Config returns the configuration the relay was built from.
func (rl *Relay) Config() *config.Config { return rl.cfg }

// Logger returns the relay logger.
func (rl *Relay) Logger() logging.Logger { return rl.logger }

// Close flushes traces and closes log outputs.
func (rl *Relay) Close(ctx context.Context) error {
	var errs []error

	for _, c := range rl.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	rl.closers = nil

	return errors.Join(errs...)
}
