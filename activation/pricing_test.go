package activation

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestQuotePhaseOneTierFlooring(t *testing.T) {
	cases := []struct {
		burn float64
		want int64
	}{
		{0, 1500},
		{9.999, 1500},
		{10, 1350},
		{15.7, 1350}, // tier is floored after scaling, not rounded on the percentage
		{15.700000001, 1350},
		{19.999, 1350},
		{20, 1200},
		{55.5, 750},
		{80, 300},
		{89.9, 300},
	}
	for _, tc := range cases {
		quote, err := QuotePhaseOne(NodeClassLight, tc.burn)
		if err != nil {
			t.Fatalf("QuotePhaseOne(%v): %v", tc.burn, err)
		}
		if quote.Amount.Int64() != tc.want {
			t.Fatalf("QuotePhaseOne(%v) = %s, want %d", tc.burn, quote.Amount, tc.want)
		}
		if quote.Currency != BurnTokenSymbol {
			t.Fatalf("phase-1 quote denominated in %q", quote.Currency)
		}
	}
}

func TestQuotePhaseOneSharedAcrossClasses(t *testing.T) {
	for _, class := range []NodeClass{NodeClassLight, NodeClassFull, NodeClassSuper} {
		quote, err := QuotePhaseOne(class, 15.7)
		if err != nil {
			t.Fatalf("QuotePhaseOne(%s): %v", class, err)
		}
		if quote.Amount.Int64() != 1350 {
			t.Fatalf("burn schedule must be universal, class %s got %s", class, quote.Amount)
		}
	}
}

func TestQuotePhaseOneNeverBelowFloor(t *testing.T) {
	for burn := 0.0; burn < BurnThresholdPercent; burn += 0.5 {
		quote, err := QuotePhaseOne(NodeClassLight, burn)
		if err != nil {
			t.Fatalf("QuotePhaseOne(%v): %v", burn, err)
		}
		if quote.Amount.Int64() < PhaseOneFloor {
			t.Fatalf("price %s below floor at burn %v", quote.Amount, burn)
		}
	}
}

func TestQuotePhaseOneClosedAboveThreshold(t *testing.T) {
	var mismatch *PhaseMismatchError
	if _, err := QuotePhaseOne(NodeClassLight, 90); !errors.As(err, &mismatch) {
		t.Fatalf("expected PhaseMismatchError at threshold, got %v", err)
	}
	if _, err := QuotePhaseOne(NodeClassLight, 97.3); !errors.As(err, &mismatch) {
		t.Fatalf("expected PhaseMismatchError above threshold, got %v", err)
	}
}

func TestQuotePhaseTwoMultiplierBoundaries(t *testing.T) {
	cases := []struct {
		class NodeClass
		size  uint64
		want  int64
	}{
		{NodeClassLight, 0, 2500},
		{NodeClassFull, 99_999, 3750},
		{NodeClassLight, 100_000, 5000}, // lower bound joins the higher tier
		{NodeClassLight, 999_999, 5000},
		{NodeClassLight, 1_000_000, 10000},
		{NodeClassSuper, 9_999_999, 20000},
		{NodeClassLight, 10_000_000, 15000},
		{NodeClassSuper, math.MaxUint64, 30000},
	}
	for _, tc := range cases {
		quote, err := QuotePhaseTwo(tc.class, tc.size)
		if err != nil {
			t.Fatalf("QuotePhaseTwo(%s, %d): %v", tc.class, tc.size, err)
		}
		if quote.Amount.Int64() != tc.want {
			t.Fatalf("QuotePhaseTwo(%s, %d) = %s, want %d", tc.class, tc.size, quote.Amount, tc.want)
		}
		if quote.Currency != NativeTokenSymbol {
			t.Fatalf("phase-2 quote denominated in %q", quote.Currency)
		}
	}
}

func TestMultiplierTableIsTotal(t *testing.T) {
	// Every representable size must land in exactly one tier; probing around
	// each boundary catches gaps or overlaps.
	probes := []uint64{0, 1, 99_999, 100_000, 100_001, 999_999, 1_000_000, 9_999_999, 10_000_000, math.MaxUint64}
	for _, size := range probes {
		if _, err := QuotePhaseTwo(NodeClassLight, size); err != nil {
			t.Fatalf("no tier for network size %d: %v", size, err)
		}
	}
}

func TestEngineRejectsWrongPhaseRequest(t *testing.T) {
	engine := NewEngine(&stubSource{burn: 15.7, age: 1})
	var mismatch *PhaseMismatchError
	if _, err := engine.Quote(context.Background(), NodeClassLight, PhaseTwo); !errors.As(err, &mismatch) {
		t.Fatalf("expected PhaseMismatchError for phase-2 request during phase 1, got %v", err)
	}
	quote, err := engine.Quote(context.Background(), NodeClassLight, PhaseOne)
	if err != nil {
		t.Fatalf("matching phase quote: %v", err)
	}
	if quote.Amount.Int64() != 1350 {
		t.Fatalf("unexpected amount %s", quote.Amount)
	}
}

func TestEngineQuoteCurrentPhaseTwo(t *testing.T) {
	engine := NewEngine(&stubSource{burn: 95, age: 0, size: 100_000})
	quote, err := engine.QuoteCurrent(context.Background(), NodeClassLight)
	if err != nil {
		t.Fatalf("quote current: %v", err)
	}
	if quote.Phase != PhaseTwo || quote.Amount.Int64() != 5000 {
		t.Fatalf("unexpected quote %+v", quote)
	}
}

func TestEngineUnfetchableSizeIsPhaseUnknown(t *testing.T) {
	engine := NewEngine(&stubSource{burn: 95, sizeErr: errors.New("timeout")})
	if _, err := engine.QuoteCurrent(context.Background(), NodeClassLight); !errors.Is(err, ErrPhaseUnknown) {
		t.Fatalf("expected ErrPhaseUnknown, got %v", err)
	}
}
