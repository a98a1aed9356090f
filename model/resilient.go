package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hupe1980/agentrelay/logging"
)

// Default circuit breaker settings.
const (
	DefaultBreakerMaxFailures uint32 = 5
	DefaultBreakerTimeout            = 30 * time.Second
)

// ResilientOptions configures a Resilient model.
type ResilientOptions struct {
	// RateLimit is the sustained number of requests per second (0 = unlimited).
	RateLimit float64
	// Burst is the limiter bucket size (defaults to 1 when RateLimit is set).
	Burst int
	// MaxFailures is the number of consecutive transient failures that opens
	// the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a probe request
	// is let through.
	OpenTimeout time.Duration
	Logger      logging.Logger
}

// Resilient guards a Model with a token bucket rate limiter and a circuit
// breaker. Only transient failures count against the breaker; an open
// circuit fails fast with gobreaker.ErrOpenState.
type Resilient struct {
	next    Model
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*Response]
}

// NewResilient wraps next.
func NewResilient(next Model, optFns ...func(o *ResilientOptions)) *Resilient {
	opts := ResilientOptions{
		MaxFailures: DefaultBreakerMaxFailures,
		OpenTimeout: DefaultBreakerTimeout,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxFailures == 0 {
		opts.MaxFailures = DefaultBreakerMaxFailures
	}

	r := &Resilient{next: next}

	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}

		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	name := next.Info().Provider + ":" + next.Info().Name
	logger := opts.Logger

	r.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("model.breaker.state", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})

	return r
}

// Generate implements Model.
func (r *Resilient) Generate(ctx context.Context, req Request) (*Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	resp, err := r.breaker.Execute(func() (*Response, error) {
		return r.next.Generate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("model %q circuit open: %w", r.next.Info().Name, err)
		}

		return nil, err
	}

	return resp, nil
}

// Info implements Model.
func (r *Resilient) Info() Info { return r.next.Info() }

// State returns the current circuit breaker state.
func (r *Resilient) State() gobreaker.State { return r.breaker.State() }
