// Package weather provides the get_weather tool.
package weather

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/tool"
)

// Report is the outcome of a weather lookup.
type Report struct {
	Location    string
	Latitude    float64
	Longitude   float64
	Temperature float64 // °C
	WindSpeed   float64 // km/h
	Condition   string
	HasCurrent  bool
}

// String renders the report for the model.
func (r Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "the location is %s", r.Location)

	if r.HasCurrent {
		fmt.Fprintf(&b, " (%.4f, %.4f); current weather: %s, %.1f°C, wind %.1f km/h",
			r.Latitude, r.Longitude, r.Condition, r.Temperature, r.WindSpeed)
	}

	return b.String()
}

// Backend resolves a city to a location and its current weather.
type Backend interface {
	Lookup(ctx context.Context, city string) (Report, error)
	Name() string
}

type weatherArgs struct {
	City string `json:"city" description:"Name of the city to look up"`
}

// NewTool returns the "get_weather" tool.
func NewTool(backend Backend) tool.Tool {
	return tool.NewTypedTool("get_weather",
		"Resolve a city to its exact geographic location and return the current weather there.",
		func(tc *core.ToolContext, args weatherArgs) (any, error) {
			city := strings.TrimSpace(args.City)
			if city == "" {
				return nil, tool.NewToolError("get_weather", "city must not be empty", tool.CodeInvalidArguments)
			}

			tc.LogInfo("weather.lookup", "backend", backend.Name(), "city", city)

			report, err := backend.Lookup(tc.Context(), city)
			if err != nil {
				return nil, fmt.Errorf("%s lookup: %w", backend.Name(), err)
			}

			return report.String(), nil
		})
}

// StaticBackend always reports the configured location without current
// weather. It serves offline setups and demos.
type StaticBackend struct {
	Location string
}

// Name implements Backend.
func (StaticBackend) Name() string { return "static" }

// Lookup implements Backend.
func (s StaticBackend) Lookup(_ context.Context, city string) (Report, error) {
	loc := s.Location
	if loc == "" {
		loc = city
	}

	return Report{Location: loc}, nil
}
