package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineError_IsMatchesKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("decide: %w", WrapEngineError(KindTransport, "retries exhausted", cause))

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
}

func TestEngineError_Message(t *testing.T) {
	e := NewEngineError(KindUnknownHandoffTarget, `"x" is not a handoff target`)
	e.Agent = "Triage Agent"
	e.Turn = 2

	assert.Equal(t, `unknown_handoff_target (agent "Triage Agent", turn 2): "x" is not a handoff target`, e.Error())
}

func TestAsEngineError_Classifies(t *testing.T) {
	assert.Equal(t, KindCancelled, AsEngineError(context.Canceled).Kind)
	assert.Equal(t, KindTimeout, AsEngineError(fmt.Errorf("x: %w", context.DeadlineExceeded)).Kind)
	assert.Equal(t, KindInternal, AsEngineError(errors.New("boom")).Kind)

	orig := NewEngineError(KindDecisionParseFailure, "empty")
	cp := AsEngineError(orig)
	cp.RunID = "r"
	assert.Empty(t, orig.RunID)
}
