// Package server exposes the runner over an OpenAI compatible HTTP API so
// chat front ends can talk to the agent graph as if it were one model.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// Runner executes one run. *runner.Runner implements it.
type Runner interface {
	Run(ctx context.Context, rootAgent, input string) (*core.RunResult, error)
}

// Options configures a Server.
type Options struct {
	// ModelName is reported in responses and by GET /v1/models.
	ModelName string
	// Now is the clock for the created timestamps.
	Now    func() time.Time
	Logger logging.Logger
}

// Server serves the HTTP API.
type Server struct {
	echo     *echo.Echo
	runner   Runner
	registry *agent.Registry
	opts     Options
}

// New creates a Server. registry may be nil, in which case GET /v1/agents
// returns an empty list and the model field never selects an agent.
func New(r Runner, registry *agent.Registry, optFns ...func(o *Options)) *Server {
	opts := Options{
		ModelName: "agentrelay",
		Now:       time.Now,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, runner: r, registry: registry, opts: opts}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			opts.Logger.Info("server.request",
				"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String())
			return nil
		},
	}))

	s.RegisterRoutes(e)

	return s
}

// RegisterRoutes registers the API routes on e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.Health)
	e.GET("/v1/agents", s.ListAgents)
	e.GET("/v1/models", s.ListModels)
	e.POST("/v1/chat/completions", s.ChatCompletions)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start(addr string) error {
	s.opts.Logger.Info("server.start", "addr", addr)

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health handles GET /health.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListModels handles GET /v1/models.
func (s *Server) ListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{{
			"id":       s.opts.ModelName,
			"object":   "model",
			"owned_by": "agentrelay",
		}},
	})
}

// ListAgents handles GET /v1/agents.
func (s *Server) ListAgents(c echo.Context) error {
	agents := []AgentInfo{}

	if s.registry != nil {
		for _, name := range s.registry.Names() {
			def, _ := s.registry.Get(name)

			tools := make([]string, 0, len(def.Tools()))
			for _, t := range def.Tools() {
				tools = append(tools, t.Name())
			}

			agents = append(agents, AgentInfo{
				Name:        name,
				Description: def.Description(),
				Model:       def.ModelRef(),
				Tools:       tools,
				Handoffs:    append([]string{}, def.Handoffs()...),
				Root:        name == s.registry.Root(),
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]any{"agents": agents})
}

// ChatCompletions handles POST /v1/chat/completions. The last user message
// is the run input; a model naming a registered agent starts the run there.
func (s *Server) ChatCompletions(c echo.Context) error {
	var req ChatCompletionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse("invalid_request_error", "invalid request body"))
	}

	input, ok := lastUserMessage(req.Messages)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse("invalid_request_error", "messages must contain a user message"))
	}

	root := ""
	if s.registry != nil {
		if _, known := s.registry.Get(req.Model); known {
			root = req.Model
		}
	}

	res, err := s.runner.Run(c.Request().Context(), root, input)
	if err != nil {
		return s.writeRunError(c, err)
	}

	resp := ChatCompletionResponse{
		ID:        "chatcmpl-" + core.NewID(),
		Created:   s.opts.Now().Unix(),
		Model:     s.opts.ModelName,
		RunID:     res.RunID,
		LastAgent: res.LastAgent,
	}

	if !req.Stream {
		prompt, completion := wordCount(input), wordCount(res.FinalOutput)

		resp.Object = "chat.completion"
		resp.Choices = []Choice{{
			Message:      &ResponseMessage{Role: "assistant", Content: res.FinalOutput},
			FinishReason: "stop",
		}}
		resp.Usage = &Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}

		return c.JSON(http.StatusOK, resp)
	}

	resp.Object = "chat.completion.chunk"
	resp.Choices = []Choice{{
		Delta:        &ResponseMessage{Role: "assistant", Content: res.FinalOutput},
		FinishReason: "stop",
	}}

	return writeSSE(c, resp)
}

func writeSSE(c echo.Context, chunk ChatCompletionResponse) error {
	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}

	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		return err
	}

	w.Flush()

	return nil
}

func (s *Server) writeRunError(c echo.Context, err error) error {
	ee := core.AsEngineError(err)
	s.opts.Logger.Warn("server.run.failed", "run_id", ee.RunID, "kind", string(ee.Kind), "error", ee.Error())

	resp := errorResponse(string(ee.Kind), ee.Error())
	resp.Error.RunID = ee.RunID
	resp.Error.Transcript = ee.Transcript

	return c.JSON(statusFor(ee.Kind), resp)
}

func statusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindInvalidInput, core.KindUnknownAgent:
		return http.StatusBadRequest
	case core.KindTransport:
		return http.StatusBadGateway
	case core.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(typ, msg string) ErrorResponse {
	return ErrorResponse{Error: &APIError{Type: typ, Message: msg}}
}

func lastUserMessage(msgs []ChatMessage) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != "user" {
			continue
		}

		if text := msgs[i].Text(); strings.TrimSpace(text) != "" {
			return text, true
		}
	}

	return "", false
}

func wordCount(s string) int { return len(strings.Fields(s)) }
