package tool

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// HandoffPrefix starts the name of every handoff function exposed to models.
const HandoffPrefix = "transfer_to_"

// MaxFunctionNameLen is the longest function name OpenAI compatible
// endpoints accept.
const MaxFunctionNameLen = 64

var transliterations = map[rune]string{
	'ä': "ae",
	'ö': "oe",
	'ü': "ue",
	'ß': "ss",
}

// HandoffToolName returns the function name under which a handoff to agent
// is offered to the model, e.g. "News Search Agent" becomes
// "transfer_to_news_search_agent". The result always matches
// ^[a-z0-9_]{1,64}$; names without usable ASCII or too long for the limit
// get a hash suffix so distinct agents keep distinct functions.
func HandoffToolName(agent string) string {
	var b strings.Builder

	lastUnderscore := true // suppresses a leading underscore
	for _, r := range strings.ToLower(strings.TrimSpace(agent)) {
		if s, ok := transliterations[r]; ok {
			b.WriteString(s)
			lastUnderscore = false

			continue
		}

		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false

			continue
		}

		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	slug := strings.TrimRight(b.String(), "_")

	if slug != "" && len(HandoffPrefix)+len(slug) <= MaxFunctionNameLen {
		return HandoffPrefix + slug
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(agent))
	suffix := fmt.Sprintf("%08x", h.Sum32())

	if slug == "" {
		return HandoffPrefix + suffix
	}

	room := MaxFunctionNameLen - len(HandoffPrefix) - len(suffix) - 1
	slug = strings.TrimRight(slug[:room], "_")

	return HandoffPrefix + slug + "_" + suffix
}

// IsHandoffToolName reports whether name uses the handoff naming scheme.
func IsHandoffToolName(name string) bool {
	return strings.HasPrefix(name, HandoffPrefix)
}

// HandoffDefinition returns the model facing declaration of a handoff to
// agent. The function takes no arguments; calling it is the request.
func HandoffDefinition(agent, description string) Definition {
	desc := "Handoff to the " + agent + " agent to handle the request."
	if description != "" {
		desc += " " + description
	}

	return Definition{
		Name:        HandoffToolName(agent),
		Description: desc,
		Parameters: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
	}
}
