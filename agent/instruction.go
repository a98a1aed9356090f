package agent

import "github.com/hupe1980/agentrelay/internal/util"

// InstructionContext is passed to dynamic instruction providers.
type InstructionContext struct {
	RunID string
	Agent string
	Turn  int
	// Vars are the registry wide template variables (language, date...).
	Vars map[string]any
}

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(InstructionContext) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(InstructionContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ic InstructionContext) (string, error) { return f(ic) }

// Instruction represents either a static instruction string, a template
// rendered with the registry variables, or a dynamic provider.
type Instruction struct {
	text     string
	template bool
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromTemplate creates an Instruction rendered per turn with
// text/template. Available fields: every registry variable plus .agent.
func NewInstructionFromTemplate(text string) Instruction {
	return Instruction{text: text, template: true}
}

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(InstructionContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is a plain string.
func (i Instruction) IsStatic() bool { return i.provider == nil && !i.template }

// Resolve returns the instruction text, rendering or invoking the provider if needed.
func (i Instruction) Resolve(ic InstructionContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ic)
	}

	if !i.template {
		return i.text, nil
	}

	vars := make(map[string]any, len(ic.Vars)+1)
	for k, v := range ic.Vars {
		vars[k] = v
	}

	vars["agent"] = ic.Agent

	return util.RenderTemplate(i.text, vars)
}
