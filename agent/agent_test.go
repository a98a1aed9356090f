package agent

import (
	"errors"
	"testing"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, name, nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "ok", nil
	})
}

func TestNew_Defaults(t *testing.T) {
	d, err := New("Helper", WithModel("local"))
	require.NoError(t, err)

	assert.Equal(t, "Helper", d.Name())
	assert.Equal(t, "local", d.ModelRef())

	text, err := d.Instructions(InstructionContext{})
	require.NoError(t, err)
	assert.Equal(t, "You are Helper, a helpful AI assistant.", text)
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New("A",
		WithTools(noopTool("websearch"), noopTool("websearch")),
		WithHandoffs("B", "B"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate tool "websearch"`)
	assert.Contains(t, err.Error(), `duplicate handoff "B"`)
}

func TestNew_RejectsReservedAndClashingNames(t *testing.T) {
	_, err := New("A", WithTools(noopTool("transfer_to_b")))
	assert.ErrorContains(t, err, "reserved prefix")

	_, err = New("A", WithHandoffs("News Agent", "news-agent"))
	assert.ErrorContains(t, err, "share the function name")

	_, err = New("  ")
	assert.ErrorContains(t, err, "name must not be empty")
}

func TestNew_NonASCIIHandoffsGetPortableFunctionNames(t *testing.T) {
	d, err := New("Triage Agent", WithHandoffs("Übersetzer Agent", "翻译"))
	require.NoError(t, err)

	require.Len(t, d.Handoffs(), 2)

	for _, h := range d.Handoffs() {
		assert.Regexp(t, `^[a-z0-9_]{1,64}$`, tool.HandoffDefinition(h, "").Name)
	}

	target, ok := d.HandoffTarget("transfer_to_uebersetzer_agent")
	require.True(t, ok)
	assert.Equal(t, "Übersetzer Agent", target)

	target, ok = d.HandoffTarget(tool.HandoffToolName("翻译"))
	require.True(t, ok)
	assert.Equal(t, "翻译", target)
}

func TestDefinition_Lookups(t *testing.T) {
	d := MustNew("Triage Agent",
		WithTools(noopTool("get_weather")),
		WithHandoffs("News Search Agent"),
	)

	_, ok := d.Tool("get_weather")
	assert.True(t, ok)
	_, ok = d.Tool("websearch")
	assert.False(t, ok)

	assert.True(t, d.CanHandoffTo("News Search Agent"))
	assert.False(t, d.CanHandoffTo("Triage Agent"))

	target, ok := d.HandoffTarget("transfer_to_news_search_agent")
	assert.True(t, ok)
	assert.Equal(t, "News Search Agent", target)

	handoffs := d.Handoffs()
	handoffs[0] = "mutated"
	assert.Equal(t, []string{"News Search Agent"}, d.Handoffs())
}

func TestInstruction_Variants(t *testing.T) {
	static := NewInstructionFromText("static instruction")
	assert.True(t, static.IsStatic())

	tmpl := NewInstructionFromTemplate("{{.agent}} answers in {{.language}}")
	assert.False(t, tmpl.IsStatic())

	got, err := tmpl.Resolve(InstructionContext{Agent: "Format Agent", Vars: map[string]any{"language": "german"}})
	require.NoError(t, err)
	assert.Equal(t, "Format Agent answers in german", got)

	fn := NewInstructionFromFunc(func(ic InstructionContext) (string, error) {
		if ic.Turn > 1 {
			return "", errors.New("too late")
		}
		return "turn one", nil
	})

	got, err = fn.Resolve(InstructionContext{Turn: 1})
	require.NoError(t, err)
	assert.Equal(t, "turn one", got)

	_, err = fn.Resolve(InstructionContext{Turn: 2})
	assert.Error(t, err)
}

func triageGraph(t *testing.T) []*Definition {
	t.Helper()

	return []*Definition{
		MustNew("Triage Agent", WithModel("local"), WithHandoffs("News Search Agent", "Format Agent")),
		MustNew("News Search Agent", WithModel("local"), WithTools(noopTool("newssearch"))),
		MustNew("Format Agent", WithModel("local")),
	}
}

func TestNewRegistry_Valid(t *testing.T) {
	r, err := NewRegistry(triageGraph(t), func(o *RegistryOptions) {
		o.Models = []string{"local"}
		o.Root = "Triage Agent"
		o.RejectUnreachable = true
		o.Vars = map[string]any{"language": "german"}
	})
	require.NoError(t, err)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, "Triage Agent", r.Root())
	assert.Equal(t, []string{"Triage Agent", "News Search Agent", "Format Agent"}, r.Names())
	assert.False(t, r.Cyclic())
	assert.Equal(t, "german", r.Vars()["language"])
	assert.Equal(t, []string{"News Search Agent", "Format Agent"}, r.Graph()["Triage Agent"])
}

func TestNewRegistry_AccumulatesProblems(t *testing.T) {
	defs := []*Definition{
		MustNew("A", WithModel("local"), WithHandoffs("Ghost", "A")),
		MustNew("A", WithModel("local")),
		MustNew("B", WithModel("remote")),
		MustNew("C"),
	}

	_, err := NewRegistry(defs, func(o *RegistryOptions) {
		o.Models = []string{"local"}
		o.Root = "Missing"
	})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems, `duplicate agent name "A"`)
	assert.Contains(t, verr.Problems, `agent "B": unknown model endpoint "remote"`)
	assert.Contains(t, verr.Problems, `agent "C": no model endpoint configured`)
	assert.Contains(t, verr.Problems, `agent "A": unknown handoff target "Ghost"`)
	assert.Contains(t, verr.Problems, `agent "A": cannot hand off to itself`)
	assert.Contains(t, verr.Problems, `root agent "Missing" is not defined`)
}

func TestNewRegistry_SizeAndReachability(t *testing.T) {
	_, err := NewRegistry(triageGraph(t), func(o *RegistryOptions) { o.MaxAgents = 2 })
	assert.ErrorContains(t, err, "exceed the maximum of 2")

	defs := append(triageGraph(t), MustNew("Orphan", WithModel("local")))

	_, err = NewRegistry(defs, func(o *RegistryOptions) {
		o.Root = "Triage Agent"
		o.RejectUnreachable = true
	})
	assert.ErrorContains(t, err, "Orphan")

	r, err := NewRegistry(defs, func(o *RegistryOptions) { o.Root = "Triage Agent" })
	require.NoError(t, err, "unreachable agents only warn by default")
	assert.Equal(t, []string{"Orphan"}, r.Unreachable("Triage Agent"))

	_, err = NewRegistry(nil)
	assert.ErrorContains(t, err, "no agents defined")
}

func TestRegistry_CycleDetected(t *testing.T) {
	r, err := NewRegistry([]*Definition{
		MustNew("Ping", WithHandoffs("Pong")),
		MustNew("Pong", WithHandoffs("Ping")),
	})
	require.NoError(t, err, "cycles are allowed")
	assert.True(t, r.Cyclic())
}

func TestRegistry_Resolve(t *testing.T) {
	r, err := NewRegistry(triageGraph(t))
	require.NoError(t, err)

	triage, _ := r.Get("Triage Agent")
	news, _ := r.Get("News Search Agent")

	next, err := r.Resolve(triage, "News Search Agent")
	require.NoError(t, err)
	assert.Same(t, news, next)

	// registered, but not a configured target of the news agent
	_, err = r.Resolve(news, "Format Agent")
	assert.ErrorIs(t, err, core.ErrUnknownHandoffTarget)

	_, err = r.Resolve(triage, "Nobody")
	assert.ErrorIs(t, err, core.ErrUnknownHandoffTarget)
}
