package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAttempts bounds how many endpoints one operation may try.
const DefaultAttempts = 3

// TransportError marks a network-level failure against one endpoint. The
// operation is eligible for a re-pick and retry; every other error kind
// propagates to the caller untouched.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure against %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps a network failure observed against an endpoint.
func NewTransportError(endpoint string, err error) error {
	return &TransportError{Endpoint: endpoint, Err: err}
}

// IsTransport reports whether the error chain contains a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Retry runs an operation against freshly picked endpoints until it succeeds,
// returns a non-transport error, or the attempt budget is spent. A rate
// limiter spaces the attempts so a flapping network does not trigger a burst
// of remote calls.
type Retry struct {
	selector *Selector
	attempts int
	limiter  *rate.Limiter
}

// NewRetry constructs a retry helper. attempts <= 0 selects DefaultAttempts.
func NewRetry(selector *Selector, attempts int) *Retry {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Retry{
		selector: selector,
		attempts: attempts,
		limiter:  rate.NewLimiter(rate.Every(250*time.Millisecond), attempts),
	}
}

// Do invokes fn with a freshly picked endpoint, re-picking on transport
// failures up to the attempt budget.
func (r *Retry) Do(ctx context.Context, fn func(ctx context.Context, endpoint string) error) error {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		endpoint := r.selector.Pick()
		err := fn(ctx, endpoint)
		if err == nil {
			return nil
		}
		if !IsTransport(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}
