// CLAUDE:SUMMARY Correction provider contract (instruction + payload -> raw text), function adapter and call middleware.
// Package provider abstracts the generative service that proposes corrected
// markup. The engine only ever sees raw text; validating its shape is the
// caller's job.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("provider: empty response")

// Provider proposes a correction. instruction is the system-level directive,
// payload the request body (fragment or document plus side data).
type Provider interface {
	Correct(ctx context.Context, instruction, payload string) (string, error)
}

// Func adapts a function to Provider.
type Func func(ctx context.Context, instruction, payload string) (string, error)

func (f Func) Correct(ctx context.Context, instruction, payload string) (string, error) {
	return f(ctx, instruction, payload)
}

// Middleware wraps a Provider.
type Middleware func(Provider) Provider

// Chain applies middlewares so that the first one is the outermost.
func Chain(p Provider, mws ...Middleware) Provider {
	for i := len(mws) - 1; i >= 0; i-- {
		p = mws[i](p)
	}
	return p
}

// WithTimeout bounds every call to d. A zero d leaves calls unbounded.
func WithTimeout(d time.Duration) Middleware {
	return func(next Provider) Provider {
		if d <= 0 {
			return next
		}
		return Func(func(ctx context.Context, instruction, payload string) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			out, err := next.Correct(ctx, instruction, payload)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("provider: timed out after %s: %w", d, err)
			}
			return out, err
		})
	}
}

// Call describes one completed provider call.
type Call struct {
	Instruction string
	Payload     string
	Response    string
	Err         error
	Duration    time.Duration
}

// WithObserver reports every call to fn after it completes. Observers are
// used for metrics and for the prompt/response audit log.
func WithObserver(fn func(ctx context.Context, c Call)) Middleware {
	return func(next Provider) Provider {
		return Func(func(ctx context.Context, instruction, payload string) (string, error) {
			start := time.Now()
			out, err := next.Correct(ctx, instruction, payload)
			fn(ctx, Call{
				Instruction: instruction,
				Payload:     payload,
				Response:    out,
				Err:         err,
				Duration:    time.Since(start),
			})
			return out, err
		})
	}
}

// kindKey tags a call with the strategy that issued it.
type kindKey struct{}

// WithKind annotates ctx with the kind of request ("fragment", "batch").
func WithKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, kindKey{}, kind)
}

// Kind returns the request kind set by WithKind, or "".
func Kind(ctx context.Context) string {
	v, _ := ctx.Value(kindKey{}).(string)
	return v
}
