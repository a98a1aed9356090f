package config

// DefaultEndpoint names the endpoint of the built-in configuration.
const DefaultEndpoint = "local"

// Agent names of the built-in graph.
const (
	TriageAgent   = "Triage Agent"
	LocationAgent = "Location Assistant"
	WebAgent      = "Websearch Agent"
	NewsAgent     = "News Search Agent"
	DateAgent     = "Get Date And Day"
	FormatAgent   = "Format and Translate Agent"
)

// Names of the tools agents can reference.
const (
	ToolWebSearch  = "websearch"
	ToolNewsSearch = "newssearch"
	ToolWeather    = "get_weather"
	ToolClock      = "get_date_and_day"
)

// KnownTools lists every tool name the tool catalog provides.
var KnownTools = []string{ToolWebSearch, ToolNewsSearch, ToolWeather, ToolClock}

// DefaultAgents returns the triage graph: a triage agent owning every tool
// and delegating to five specialists. Instructions are templates; the
// {{.language}} variable is taken from tools.clock.language.
func DefaultAgents() []AgentConfig {
	return []AgentConfig{
		{
			Name: TriageAgent,
			Instructions: "First you get the current date and day. " +
				"You triage the user's request and provide a response. " +
				"Translate the answer to {{.language}}, add emojis and format it as valid markdown.",
			Model:    DefaultEndpoint,
			Tools:    []string{ToolClock, ToolWebSearch, ToolWeather, ToolNewsSearch},
			Handoffs: []string{DateAgent, LocationAgent, WebAgent, NewsAgent, FormatAgent},
		},
		{
			Name:         LocationAgent,
			Description:  "Resolves places to exact geographic locations and current weather.",
			Instructions: "You populate the user's request with the exact geographic location.",
			Model:        DefaultEndpoint,
			Tools:        []string{ToolWeather},
		},
		{
			Name:         WebAgent,
			Description:  "Answers questions from a web search.",
			Instructions: "You search the web for topics and use the result to answer the question asked.",
			Model:        DefaultEndpoint,
			Tools:        []string{ToolWebSearch},
		},
		{
			Name:         NewsAgent,
			Description:  "Answers questions about current events from a news search.",
			Instructions: "You search the web for the latest news and use the result to answer the question asked.",
			Model:        DefaultEndpoint,
			Tools:        []string{ToolNewsSearch},
		},
		{
			Name:         DateAgent,
			Description:  "Knows the current date and weekday.",
			Instructions: "You return the current date and day to the user's request if needed.",
			Model:        DefaultEndpoint,
			Tools:        []string{ToolClock},
		},
		{
			Name:         FormatAgent,
			Description:  "Translates and formats the final answer.",
			Instructions: "You translate the request to {{.language}}, add emojis and format it as markdown.",
			Model:        DefaultEndpoint,
		},
	}
}
