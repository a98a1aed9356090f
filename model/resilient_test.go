package model

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResilient_BreakerOpensOnTransientFailures(t *testing.T) {
	cause := &APIError{Provider: "test", StatusCode: http.StatusInternalServerError, Err: errors.New("boom")}
	inner := NewScriptedModel("scripted", Fail(cause), Fail(cause), Reply("unused"))

	r := NewResilient(inner, func(o *ResilientOptions) {
		o.MaxFailures = 2
		o.OpenTimeout = time.Minute
	})

	for i := 0; i < 2; i++ {
		_, err := r.Generate(context.Background(), Request{})
		require.ErrorAs(t, err, new(*APIError))
	}

	assert.Equal(t, gobreaker.StateOpen, r.State())

	_, err := r.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, IsTransient(err))
	assert.Equal(t, 2, inner.Calls())
}

func TestResilient_PermanentFailuresDoNotTrip(t *testing.T) {
	cause := &APIError{Provider: "test", StatusCode: http.StatusBadRequest, Err: errors.New("bad request")}
	inner := NewScriptedModel("scripted", Fail(cause), Fail(cause), Reply("ok"))

	r := NewResilient(inner, func(o *ResilientOptions) { o.MaxFailures = 1 })

	_, _ = r.Generate(context.Background(), Request{})
	_, _ = r.Generate(context.Background(), Request{})
	assert.Equal(t, gobreaker.StateClosed, r.State())

	resp, err := r.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}

func TestResilient_RateLimit(t *testing.T) {
	inner := NewScriptedModel("scripted", Reply("first"), Reply("second"))
	r := NewResilient(inner, func(o *ResilientOptions) {
		o.RateLimit = 0.01
		o.Burst = 1
	})

	_, err := r.Generate(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = r.Generate(ctx, Request{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.Calls())
	assert.Equal(t, inner.Info(), r.Info())
}
