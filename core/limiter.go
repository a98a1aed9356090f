package core

import "fmt"

// TurnLimiter enforces the maximum number of loop iterations of one run.
// It is owned by the run's loop and needs no locking.
type TurnLimiter struct {
	max   int
	count int
}

// NewTurnLimiter creates a limiter allowing max turns.
// If max == 0, unlimited turns are allowed.
func NewTurnLimiter(max int) *TurnLimiter {
	return &TurnLimiter{max: max}
}

// Increment starts the next turn and returns its 1-based number. It returns
// an ErrTurnLimitExceeded error once the count exceeds the maximum, i.e. on
// turn max+1.
func (tl *TurnLimiter) Increment() (int, error) {
	tl.count++
	if tl.max > 0 && tl.count > tl.max {
		return tl.count, NewEngineError(KindTurnLimitExceeded, fmt.Sprintf("exceeded max turns: %d", tl.max))
	}

	return tl.count, nil
}

// Count returns the number of turns started so far.
func (tl *TurnLimiter) Count() int { return tl.count }

// Remaining returns how many turns are left before hitting the limit.
func (tl *TurnLimiter) Remaining() int {
	if tl.max == 0 {
		return -1 // unlimited
	}

	return tl.max - tl.count
}
