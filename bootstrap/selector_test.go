package bootstrap

import (
	"context"
	"errors"
	"testing"
)

func TestPickAlwaysReturnsKnownEndpoint(t *testing.T) {
	sel := NewSelector("https://extra.example.com/")
	known := make(map[string]bool)
	for _, endpoint := range sel.Endpoints() {
		known[endpoint] = true
	}
	if !known["https://extra.example.com"] {
		t.Fatalf("extra endpoint missing from pool: %v", sel.Endpoints())
	}
	for i := 0; i < 100; i++ {
		if picked := sel.Pick(); !known[picked] {
			t.Fatalf("picked unknown endpoint %q", picked)
		}
	}
}

func TestMergeDeduplicates(t *testing.T) {
	sel := NewSelector()
	before := len(sel.Endpoints())
	sel.Merge(DefaultEndpoints[0], DefaultEndpoints[0]+"/", "", "  ")
	if got := len(sel.Endpoints()); got != before {
		t.Fatalf("expected %d endpoints after duplicate merge, got %d", before, got)
	}
	sel.Merge("https://boot9.qnet.network")
	if got := len(sel.Endpoints()); got != before+1 {
		t.Fatalf("expected %d endpoints after merge, got %d", before+1, got)
	}
}

func TestRetryRepicksOnTransportFailure(t *testing.T) {
	sel := NewSelector()
	retry := NewRetry(sel, 3)
	calls := 0
	err := retry.Do(context.Background(), func(ctx context.Context, endpoint string) error {
		calls++
		if calls < 3 {
			return NewTransportError(endpoint, errors.New("connection refused"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryStopsOnNonTransportError(t *testing.T) {
	sel := NewSelector()
	retry := NewRetry(sel, 5)
	fatal := errors.New("remote rejected")
	calls := 0
	err := retry.Do(context.Background(), func(ctx context.Context, endpoint string) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-transport errors must not be retried, got %d calls", calls)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	sel := NewSelector()
	retry := NewRetry(sel, 2)
	calls := 0
	err := retry.Do(context.Background(), func(ctx context.Context, endpoint string) error {
		calls++
		return NewTransportError(endpoint, errors.New("timeout"))
	})
	if !IsTransport(err) {
		t.Fatalf("expected transport error after exhaustion, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls)
	}
}
