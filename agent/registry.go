package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// DefaultMaxAgents bounds the size of a registry.
const DefaultMaxAgents = 64

// ValidationError accumulates every problem found while building a registry.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid agent registry:\n  - " + strings.Join(e.Problems, "\n  - ")
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// RegistryOptions configures NewRegistry.
type RegistryOptions struct {
	// Models lists the configured endpoint names. When non-nil every agent's
	// ModelRef must be one of them.
	Models []string
	// Root names the entry agent. When set it must exist and reachability
	// is checked from it.
	Root string
	// RejectUnreachable turns agents unreachable from Root into errors
	// instead of warnings.
	RejectUnreachable bool
	// MaxAgents bounds the number of agents (0 = DefaultMaxAgents).
	MaxAgents int
	// Vars are template variables available to every instruction.
	Vars   map[string]any
	Logger logging.Logger
}

// Registry maps agent names to definitions. It is built once at startup and
// is read-only afterwards, so runs share it without locking.
type Registry struct {
	agents map[string]*Definition
	order  []string
	root   string
	vars   map[string]any
	cyclic bool
}

// NewRegistry validates defs as a whole and builds the registry. All
// problems are reported at once in a *ValidationError.
func NewRegistry(defs []*Definition, optFns ...func(o *RegistryOptions)) (*Registry, error) {
	opts := RegistryOptions{MaxAgents: DefaultMaxAgents, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxAgents <= 0 {
		opts.MaxAgents = DefaultMaxAgents
	}

	verr := &ValidationError{}

	r := &Registry{
		agents: make(map[string]*Definition, len(defs)),
		root:   opts.Root,
		vars:   make(map[string]any, len(opts.Vars)),
	}

	for k, v := range opts.Vars {
		r.vars[k] = v
	}

	if len(defs) == 0 {
		verr.add("no agents defined")
	}

	if len(defs) > opts.MaxAgents {
		verr.add("%d agents exceed the maximum of %d", len(defs), opts.MaxAgents)
	}

	var models map[string]struct{}
	if opts.Models != nil {
		models = make(map[string]struct{}, len(opts.Models))
		for _, m := range opts.Models {
			models[m] = struct{}{}
		}
	}

	for _, d := range defs {
		if d == nil {
			verr.add("nil agent definition")
			continue
		}

		if _, dup := r.agents[d.Name()]; dup {
			verr.add("duplicate agent name %q", d.Name())
			continue
		}

		r.agents[d.Name()] = d
		r.order = append(r.order, d.Name())

		if models != nil {
			if d.ModelRef() == "" {
				verr.add("agent %q: no model endpoint configured", d.Name())
			} else if _, ok := models[d.ModelRef()]; !ok {
				verr.add("agent %q: unknown model endpoint %q", d.Name(), d.ModelRef())
			}
		}
	}

	for _, name := range r.order {
		d := r.agents[name]
		for _, h := range d.Handoffs() {
			if h == name {
				verr.add("agent %q: cannot hand off to itself", name)
				continue
			}

			if _, ok := r.agents[h]; !ok {
				verr.add("agent %q: unknown handoff target %q", name, h)
			}
		}
	}

	if opts.Root != "" {
		if _, ok := r.agents[opts.Root]; !ok {
			verr.add("root agent %q is not defined", opts.Root)
		} else if unreachable := r.Unreachable(opts.Root); len(unreachable) > 0 {
			if opts.RejectUnreachable {
				verr.add("agents unreachable from %q: %s", opts.Root, strings.Join(unreachable, ", "))
			} else {
				opts.Logger.Warn("agent.registry.unreachable", "root", opts.Root, "agents", unreachable)
			}
		}
	}

	if len(verr.Problems) > 0 {
		return nil, verr
	}

	r.cyclic = r.detectCycle()
	if r.cyclic {
		opts.Logger.Info("agent.registry.cyclic", "detail", "handoff graph contains cycles; the turn limit bounds every run")
	}

	return r, nil
}

// Get returns the agent with the given name.
func (r *Registry) Get(name string) (*Definition, bool) {
	d, ok := r.agents[name]
	return d, ok
}

// Root returns the configured entry agent name (may be empty).
func (r *Registry) Root() string { return r.root }

// Names returns agent names in registration order.
func (r *Registry) Names() []string { return append([]string(nil), r.order...) }

// Len returns the number of agents.
func (r *Registry) Len() int { return len(r.order) }

// Vars returns a copy of the instruction template variables.
func (r *Registry) Vars() map[string]any {
	out := make(map[string]any, len(r.vars))
	for k, v := range r.vars {
		out[k] = v
	}

	return out
}

// Cyclic reports whether the handoff graph contains a cycle.
func (r *Registry) Cyclic() bool { return r.cyclic }

// Graph returns the handoff adjacency lists.
func (r *Registry) Graph() map[string][]string {
	g := make(map[string][]string, len(r.agents))
	for name, d := range r.agents {
		g[name] = d.Handoffs()
	}

	return g
}

// Resolve routes a handoff request from current to target. It fails with an
// unknown_handoff_target EngineError when target is not one of current's
// configured handoffs, even if an agent of that name exists.
func (r *Registry) Resolve(current *Definition, target string) (*Definition, error) {
	if !current.CanHandoffTo(target) {
		return nil, core.NewEngineError(core.KindUnknownHandoffTarget,
			fmt.Sprintf("agent %q may not hand off to %q (allowed: %s)", current.Name(), target, formatNames(current.Handoffs())))
	}

	next, ok := r.agents[target]
	if !ok {
		return nil, core.NewEngineError(core.KindUnknownHandoffTarget, fmt.Sprintf("handoff target %q is not registered", target))
	}

	return next, nil
}

// Unreachable returns the agents that cannot be reached from root by
// following handoffs, sorted by name.
func (r *Registry) Unreachable(root string) []string {
	seen := map[string]bool{root: true}
	queue := []string{root}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		d, ok := r.agents[cur]
		if !ok {
			continue
		}

		for _, h := range d.Handoffs() {
			if !seen[h] {
				seen[h] = true
				queue = append(queue, h)
			}
		}
	}

	var out []string

	for name := range r.agents {
		if !seen[name] {
			out = append(out, name)
		}
	}

	sort.Strings(out)

	return out
}

func (r *Registry) detectCycle() bool {
	const (
		white = iota
		grey
		black
	)

	color := make(map[string]int, len(r.agents))

	var visit func(string) bool
	visit = func(n string) bool {
		color[n] = grey

		for _, h := range r.agents[n].Handoffs() {
			switch color[h] {
			case grey:
				return true
			case white:
				if visit(h) {
					return true
				}
			}
		}

		color[n] = black

		return false
	}

	for _, name := range r.order {
		if color[name] == white && visit(name) {
			return true
		}
	}

	return false
}

func formatNames(names []string) string {
	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, ", ")
}
