// Command agentrelay runs the configured agent graph from the command line
// or serves it over an OpenAI compatible HTTP API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hupe1980/agentrelay"
	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/server"
)

const usage = `Usage: agentrelay <command> [flags]

Commands:
  ask [-config file] [-trace] [prompt...]   run one prompt through the root agent
  serve [-config file] [-addr addr]         serve the OpenAI compatible HTTP API
  agents [-config file]                     print the agent graph

Without a prompt, ask reads it from stdin.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "agentrelay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}

	switch args[0] {
	case "ask":
		return runAsk(ctx, args[1:], stdin, stdout, stderr)
	case "serve":
		return runServe(ctx, args[1:], stderr)
	case "agents":
		return runAgents(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("AGENTRELAY_CONFIG"), "Path to the YAML config file")

	return fs, configPath
}

func loadRelay(path string) (*agentrelay.Relay, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	return agentrelay.New(cfg)
}

func runAsk(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("ask", stderr)
	trace := fs.Bool("trace", false, "Print every transcript message while the run executes")

	if err := fs.Parse(args); err != nil {
		return err
	}

	prompt := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(prompt) == "" {
		p, err := readPrompt(stdin, stdout)
		if err != nil {
			return err
		}

		prompt = p
	}

	relay, err := loadRelay(*configPath)
	if err != nil {
		return err
	}

	defer func() { _ = relay.Close(context.Background()) }()

	if !*trace {
		res, err := relay.Run(ctx, prompt)
		if err != nil {
			return describeFailure(stderr, err)
		}

		fmt.Fprintln(stdout, res.FinalOutput)

		return nil
	}

	_, msgs, errs, err := relay.Stream(ctx, prompt)
	if err != nil {
		return err
	}

	var final string

	for m := range msgs {
		fmt.Fprintln(stderr, formatMessage(m))

		if m.Role == core.RoleAssistant && m.ToolCall == nil && m.Handoff == nil {
			final = m.Content
		}
	}

	if err := <-errs; err != nil {
		return describeFailure(stderr, err)
	}

	fmt.Fprintln(stdout, final)

	return nil
}

// readPrompt reads one prompt from stdin, showing an "Input:" prompt when
// stdin is a terminal.
func readPrompt(stdin io.Reader, stdout io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			fmt.Fprint(stdout, "Input: ")

			line, err := bufio.NewReader(f).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("read prompt: %w", err)
			}

			return strings.TrimSpace(line), nil
		}
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

func formatMessage(m core.Message) string {
	switch {
	case m.ToolCall != nil:
		return fmt.Sprintf("[%s] call %s(%s)", m.Author, m.ToolCall.Name, m.ToolCall.Arguments)
	case m.Handoff != nil:
		return fmt.Sprintf("[%s] handoff -> %s", m.Author, m.Handoff.Target)
	case m.ToolResult != nil:
		return fmt.Sprintf("[%s] %s: %s", m.Role, m.ToolResult.Name, m.ToolResult.Content)
	default:
		return fmt.Sprintf("[%s] %s", m.Author, m.Content)
	}
}

func describeFailure(stderr io.Writer, err error) error {
	ee := core.AsEngineError(err)
	if len(ee.Transcript) > 0 {
		fmt.Fprintln(stderr, "partial transcript:")

		for _, m := range ee.Transcript {
			fmt.Fprintln(stderr, "  "+formatMessage(m))
		}
	}

	return err
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs, configPath := newFlagSet("serve", stderr)
	addr := fs.String("addr", "", "Listen address (overrides server.addr)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	relay, err := loadRelay(*configPath)
	if err != nil {
		return err
	}

	defer func() { _ = relay.Close(context.Background()) }()

	cfg := relay.Config()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	srv := server.New(relay.Runner(), relay.Registry(), func(o *server.Options) {
		o.ModelName = cfg.Server.ModelName
		o.Logger = relay.Logger()
	})

	errCh := make(chan error, 1)

	go func() { errCh <- srv.Start(cfg.Server.Addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func runAgents(args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("agents", stderr)

	if err := fs.Parse(args); err != nil {
		return err
	}

	relay, err := loadRelay(*configPath)
	if err != nil {
		return err
	}

	defer func() { _ = relay.Close(context.Background()) }()

	reg := relay.Registry()
	graph := reg.Graph()

	for _, name := range reg.Names() {
		def, _ := reg.Get(name)

		marker := " "
		if name == reg.Root() {
			marker = "*"
		}

		tools := make([]string, 0, len(def.Tools()))
		for _, t := range def.Tools() {
			tools = append(tools, t.Name())
		}

		sort.Strings(tools)

		fmt.Fprintf(stdout, "%s %s (model: %s)\n", marker, name, def.ModelRef())

		if len(tools) > 0 {
			fmt.Fprintf(stdout, "    tools:    %s\n", strings.Join(tools, ", "))
		}

		if targets := graph[name]; len(targets) > 0 {
			fmt.Fprintf(stdout, "    handoffs: %s\n", strings.Join(targets, ", "))
		}
	}

	if reg.Cyclic() {
		fmt.Fprintln(stdout, "note: the handoff graph contains cycles; max_turns bounds every run")
	}

	return nil
}
