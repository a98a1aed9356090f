package clock

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	ts := time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "the current date is: 14.03.2025, today is Friday, preferred language is english", Describe(ts, ""))
	assert.Equal(t, "the current date is: 14.03.2025, today is Freitag, preferred language is german", Describe(ts, "German"))
}

func TestTool(t *testing.T) {
	fixed := time.Date(2025, time.March, 16, 23, 30, 0, 0, time.UTC)
	zurich := time.FixedZone("CET", 3600)

	ct := NewTool(func(o *Options) {
		o.Language = "german"
		o.Location = zurich
		o.Now = func() time.Time { return fixed }
	})

	assert.Equal(t, "get_date_and_day", ct.Name())

	tc := core.NewToolContext(context.Background(), "run", "Get Date And Day", "c1", nil)
	out, err := ct.Call(tc, map[string]any{"query": "what day is it"})
	require.NoError(t, err)
	// 23:30 UTC is already Monday in CET
	assert.Equal(t, "the current date is: 17.03.2025, today is Montag, preferred language is german", out)
}
