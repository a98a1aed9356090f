// Package clock provides the get_date_and_day tool.
package clock

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/tool"
)

// Options configures the clock tool.
type Options struct {
	// Language selects the weekday names and is echoed as the preferred
	// output language. Supported: english (default), german.
	Language string
	// Location is the time zone the date is reported in. Defaults to time.Local.
	Location *time.Location
	// Now is the clock source.
	Now func() time.Time
}

var germanWeekdays = [...]string{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"}

type dateArgs struct {
	Query string `json:"query,omitempty" description:"The user's request the date is needed for"`
}

// NewTool returns the "get_date_and_day" tool.
func NewTool(optFns ...func(o *Options)) tool.Tool {
	opts := Options{
		Language: "english",
		Location: time.Local,
		Now:      time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.NewTypedTool("get_date_and_day",
		"Return the current date and weekday together with the preferred output language.",
		func(tc *core.ToolContext, args dateArgs) (any, error) {
			now := opts.Now().In(opts.Location)
			tc.LogInfo("clock.read", "query", args.Query)

			return Describe(now, opts.Language), nil
		})
}

// Describe renders t as "the current date is: 02.01.2006, today is Monday,
// preferred language is english".
func Describe(t time.Time, language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		lang = "english"
	}

	day := t.Weekday().String()
	if lang == "german" || lang == "deutsch" || lang == "de" {
		day = germanWeekdays[t.Weekday()]
	}

	return fmt.Sprintf("the current date is: %s, today is %s, preferred language is %s", t.Format("02.01.2006"), day, lang)
}
