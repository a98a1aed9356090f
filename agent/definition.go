package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrelay/tool"
)

// Options configures a Definition.
type Options struct {
	// Instruction is the system prompt of the agent.
	Instruction Instruction
	// Description is shown to other agents in the handoff declaration.
	Description string
	// ModelRef names the model endpoint the agent runs on.
	ModelRef string
	// Tools the agent may call. Names must be unique.
	Tools []tool.Tool
	// Handoffs lists the agents control may be transferred to. Names must
	// be unique and registered in the same Registry.
	Handoffs []string
}

// WithInstruction sets a static instruction.
func WithInstruction(text string) func(o *Options) {
	return func(o *Options) { o.Instruction = NewInstructionFromText(text) }
}

// WithModel sets the model endpoint reference.
func WithModel(ref string) func(o *Options) {
	return func(o *Options) { o.ModelRef = ref }
}

// WithTools appends tools.
func WithTools(tools ...tool.Tool) func(o *Options) {
	return func(o *Options) { o.Tools = append(o.Tools, tools...) }
}

// WithHandoffs appends handoff targets.
func WithHandoffs(names ...string) func(o *Options) {
	return func(o *Options) { o.Handoffs = append(o.Handoffs, names...) }
}

// Definition is the static description of one agent. It is immutable once
// built and safe for concurrent use.
type Definition struct {
	name        string
	description string
	instruction Instruction
	modelRef    string
	tools       []tool.Tool
	toolIndex   map[string]tool.Tool
	handoffs    []string
	handoffIdx  map[string]struct{}
}

// New builds a Definition. It fails when tool or handoff names are not
// unique, when a tool uses the reserved handoff prefix or when two handoff
// targets would be exposed under the same function name.
func New(name string, optFns ...func(o *Options)) (*Definition, error) {
	opts := Options{
		Instruction: NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var errs []error

	if strings.TrimSpace(name) == "" {
		errs = append(errs, errors.New("agent name must not be empty"))
	}

	d := &Definition{
		name:        name,
		description: opts.Description,
		instruction: opts.Instruction,
		modelRef:    opts.ModelRef,
		toolIndex:   make(map[string]tool.Tool, len(opts.Tools)),
		handoffIdx:  make(map[string]struct{}, len(opts.Handoffs)),
	}

	for _, t := range opts.Tools {
		if t == nil {
			errs = append(errs, fmt.Errorf("agent %q: nil tool", name))
			continue
		}

		tn := t.Name()

		if _, dup := d.toolIndex[tn]; dup {
			errs = append(errs, fmt.Errorf("agent %q: duplicate tool %q", name, tn))
			continue
		}

		if tool.IsHandoffToolName(tn) {
			errs = append(errs, fmt.Errorf("agent %q: tool %q uses the reserved prefix %q", name, tn, tool.HandoffPrefix))
			continue
		}

		d.toolIndex[tn] = t
		d.tools = append(d.tools, t)
	}

	fnNames := make(map[string]string, len(opts.Handoffs))

	for _, h := range opts.Handoffs {
		if _, dup := d.handoffIdx[h]; dup {
			errs = append(errs, fmt.Errorf("agent %q: duplicate handoff %q", name, h))
			continue
		}

		fn := tool.HandoffToolName(h)
		if other, clash := fnNames[fn]; clash {
			errs = append(errs, fmt.Errorf("agent %q: handoffs %q and %q share the function name %q", name, other, h, fn))
			continue
		}

		fnNames[fn] = h
		d.handoffIdx[h] = struct{}{}
		d.handoffs = append(d.handoffs, h)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return d, nil
}

// MustNew is like New but panics on error. Intended for examples and tests.
func MustNew(name string, optFns ...func(o *Options)) *Definition {
	d, err := New(name, optFns...)
	if err != nil {
		panic(err)
	}

	return d
}

// Name returns the registry wide unique agent name.
func (d *Definition) Name() string { return d.name }

// Description returns the handoff description.
func (d *Definition) Description() string { return d.description }

// ModelRef returns the referenced model endpoint.
func (d *Definition) ModelRef() string { return d.modelRef }

// Instructions resolves the instruction text for one turn.
func (d *Definition) Instructions(ic InstructionContext) (string, error) {
	ic.Agent = d.name
	return d.instruction.Resolve(ic)
}

// Tools returns the agent's tools in declaration order.
func (d *Definition) Tools() []tool.Tool {
	return append([]tool.Tool(nil), d.tools...)
}

// Tool returns the tool with the given name if the agent owns it.
func (d *Definition) Tool(name string) (tool.Tool, bool) {
	t, ok := d.toolIndex[name]
	return t, ok
}

// Handoffs returns the names of the handoff targets in declaration order.
func (d *Definition) Handoffs() []string {
	return append([]string(nil), d.handoffs...)
}

// CanHandoffTo reports whether name is a configured handoff target.
func (d *Definition) CanHandoffTo(name string) bool {
	_, ok := d.handoffIdx[name]
	return ok
}

// HandoffTarget maps a handoff function name back to the target agent.
func (d *Definition) HandoffTarget(functionName string) (string, bool) {
	for _, h := range d.handoffs {
		if tool.HandoffToolName(h) == functionName {
			return h, true
		}
	}

	return "", false
}
