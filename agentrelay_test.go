package agentrelay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool/weather"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }

func newTestRelay(t *testing.T, cfg *config.Config, scripted *model.ScriptedModel) *Relay {
	t.Helper()

	rl, err := New(cfg, func(o *Options) {
		o.Models = map[string]model.Model{config.DefaultEndpoint: scripted}
		o.WeatherBackend = weather.StaticBackend{Location: "Zürich, Switzerland"}
		o.Now = fixedNow
		o.Logger = logging.NoOpLogger{}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rl.Close(context.Background()) })

	return rl
}

func TestRelay_DefaultGraph(t *testing.T) {
	rl := newTestRelay(t, config.Defaults(), model.NewScriptedModel("scripted"))

	assert.Equal(t, config.TriageAgent, rl.Registry().Root())
	assert.Len(t, rl.Registry().Names(), 6)
	assert.ElementsMatch(t, config.KnownTools, rl.Tools().Names())
	assert.Equal(t, []string{config.DefaultEndpoint}, rl.Endpoints().Names())

	triage, ok := rl.Registry().Get(config.TriageAgent)
	require.True(t, ok)
	assert.Len(t, triage.Tools(), 4)
	assert.Len(t, triage.Handoffs(), 5)
}

func TestRelay_RunThroughTriage(t *testing.T) {
	scripted := model.NewScriptedModel("scripted",
		model.CallTool(config.ToolClock, `{}`),
		model.TransferTo(config.FormatAgent),
		model.Reply("## Freitag 🎉"),
	)

	rl := newTestRelay(t, config.Defaults(), scripted)

	res, err := rl.Run(context.Background(), "What day is it?")
	require.NoError(t, err)

	assert.Equal(t, "## Freitag 🎉", res.FinalOutput)
	assert.Equal(t, config.FormatAgent, res.LastAgent)
	assert.Equal(t, 3, res.TurnCount)

	var clockResult string

	for _, m := range res.Turns {
		if m.ToolResult != nil && m.ToolResult.Name == config.ToolClock {
			clockResult = m.ToolResult.Content
		}
	}

	assert.Contains(t, clockResult, "14.03.2025")
	assert.Contains(t, clockResult, "Freitag")

	reqs := scripted.Requests()
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[0].Instructions, "german")
	assert.Len(t, reqs[0].Tools, 9)
	assert.Contains(t, reqs[2].Instructions, "translate the request to german")
	assert.Empty(t, reqs[2].Tools)
}

func TestRelay_CustomGraphAndLanguage(t *testing.T) {
	cfg := config.Defaults()
	cfg.Tools.Clock.Language = "english"
	cfg.Tools.Weather.Backend = "static"
	cfg.Tools.Weather.Location = "Bern"
	cfg.Agents = []config.AgentConfig{{
		Name:         "Weather",
		Instructions: "Answer in {{.language}} on {{.date}}.",
		Tools:        []string{config.ToolWeather},
	}}
	cfg.RootAgent = "Weather"

	scripted := model.NewScriptedModel("scripted",
		model.CallTool(config.ToolWeather, `{"city":"Bern"}`),
		model.Reply("It is sunny."),
	)

	rl := newTestRelay(t, cfg, scripted)

	res, err := rl.Run(context.Background(), "Weather in Bern?")
	require.NoError(t, err)
	assert.Equal(t, "It is sunny.", res.FinalOutput)

	reqs := scripted.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "Answer in english on 2025-03-14.", reqs[0].Instructions)
}

func TestRelay_FailedRunCarriesTranscript(t *testing.T) {
	cfg := config.Defaults()
	cfg.Runner.MaxTurns = 1

	scripted := model.NewScriptedModel("scripted",
		model.CallTool(config.ToolClock, `{}`),
		model.Reply("never reached"),
	)

	rl := newTestRelay(t, cfg, scripted)

	_, err := rl.Run(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTurnLimitExceeded))

	ee := core.AsEngineError(err)
	require.NotNil(t, ee)
	assert.NotEmpty(t, ee.Transcript)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Agents[0].Handoffs = []string{"Nobody"}

	_, err := New(cfg, func(o *Options) { o.Logger = logging.NoOpLogger{} })
	require.Error(t, err)

	var ve *config.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestNew_RejectsSelfHandoff(t *testing.T) {
	cfg := config.Defaults()
	cfg.Agents[1].Handoffs = []string{cfg.Agents[1].Name}

	_, err := New(cfg, func(o *Options) { o.Logger = logging.NoOpLogger{} })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot hand off to itself")
}
