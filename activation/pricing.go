package activation

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
)

// NodeClass enumerates the activatable node tiers.
type NodeClass uint8

const (
	NodeClassLight NodeClass = iota
	NodeClassFull
	NodeClassSuper
)

func (c NodeClass) String() string {
	switch c {
	case NodeClassLight:
		return "light"
	case NodeClassFull:
		return "full"
	case NodeClassSuper:
		return "super"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseNodeClass maps a user-supplied class name onto a NodeClass.
func ParseNodeClass(raw string) (NodeClass, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "light":
		return NodeClassLight, nil
	case "full":
		return NodeClassFull, nil
	case "super":
		return NodeClassSuper, nil
	default:
		return 0, fmt.Errorf("unknown node class %q", raw)
	}
}

const (
	// BurnTokenSymbol denominates phase-1 burn prices.
	BurnTokenSymbol = "1DEV"
	// NativeTokenSymbol denominates phase-2 transfer prices.
	NativeTokenSymbol = "QNC"
)

// Phase-1 burn schedule. Every node class shares the same schedule: the base
// price drops by one flat step for every full ten percentage points burned,
// clamped at the floor.
const (
	PhaseOneBasePrice = 1500
	PhaseOneStep      = 150
	PhaseOneFloor     = 150
)

// Phase-2 base costs per node class, in native token units.
var phaseTwoBaseCost = map[NodeClass]int64{
	NodeClassLight: 5000,
	NodeClassFull:  7500,
	NodeClassSuper: 10000,
}

// networkSizeTier maps a half-open range of network sizes to a price
// multiplier expressed as a rational so floor(base*multiplier) is exact.
// Lower bounds are inclusive; the table is ordered and gap-free.
type networkSizeTier struct {
	lower  uint64
	mulNum int64
	mulDen int64
}

var phaseTwoMultipliers = []networkSizeTier{
	{lower: 0, mulNum: 1, mulDen: 2},
	{lower: 100_000, mulNum: 1, mulDen: 1},
	{lower: 1_000_000, mulNum: 2, mulDen: 1},
	{lower: 10_000_000, mulNum: 3, mulDen: 1},
}

// PriceQuote is the result of one live pricing request. Quotes are never
// locked in; they must be recomputed whenever the inputs move.
type PriceQuote struct {
	Class    NodeClass
	Phase    Phase
	Amount   *big.Int
	Currency string
}

// QuotePhaseOne prices a burn-based activation. The tier index is floored
// after scaling the percentage; rounding the percentage first produced wrong
// prices near tier boundaries. At or above the burn threshold the schedule is
// no longer queryable because the network is already in phase 2.
func QuotePhaseOne(class NodeClass, burnPercent float64) (PriceQuote, error) {
	if burnPercent < 0 {
		return PriceQuote{}, fmt.Errorf("burn percent must not be negative, got %v", burnPercent)
	}
	if burnPercent >= BurnThresholdPercent {
		return PriceQuote{}, &PhaseMismatchError{Requested: PhaseOne, Current: PhaseTwo}
	}
	tier := int64(math.Floor(burnPercent / 10))
	price := int64(PhaseOneBasePrice) - tier*PhaseOneStep
	if price < PhaseOneFloor {
		price = PhaseOneFloor
	}
	return PriceQuote{
		Class:    class,
		Phase:    PhaseOne,
		Amount:   big.NewInt(price),
		Currency: BurnTokenSymbol,
	}, nil
}

// QuotePhaseTwo prices a stake-based activation from the per-class base cost
// and the network-size multiplier table.
func QuotePhaseTwo(class NodeClass, networkSize uint64) (PriceQuote, error) {
	base, ok := phaseTwoBaseCost[class]
	if !ok {
		return PriceQuote{}, fmt.Errorf("no phase-2 base cost for class %s", class)
	}
	tier := phaseTwoMultipliers[0]
	for _, candidate := range phaseTwoMultipliers {
		if networkSize >= candidate.lower {
			tier = candidate
		}
	}
	price := base * tier.mulNum / tier.mulDen
	return PriceQuote{
		Class:    class,
		Phase:    PhaseTwo,
		Amount:   big.NewInt(price),
		Currency: NativeTokenSymbol,
	}, nil
}

// Engine answers live pricing requests using fresh inputs from the data
// source. A requested phase that disagrees with the derived phase fails with
// PhaseMismatchError.
type Engine struct {
	oracle *Oracle
	source DataSource
}

func NewEngine(source DataSource) *Engine {
	return &Engine{oracle: NewOracle(source), source: source}
}

// Quote prices the class under the requested phase after confirming the phase
// is actually in force.
func (e *Engine) Quote(ctx context.Context, class NodeClass, requested Phase) (PriceQuote, error) {
	state, err := e.oracle.Snapshot(ctx)
	if err != nil {
		return PriceQuote{}, err
	}
	if requested != state.Phase {
		return PriceQuote{}, &PhaseMismatchError{Requested: requested, Current: state.Phase}
	}
	return e.quoteForState(ctx, class, state)
}

// QuoteCurrent prices the class under whichever phase is currently in force.
func (e *Engine) QuoteCurrent(ctx context.Context, class NodeClass) (PriceQuote, error) {
	state, err := e.oracle.Snapshot(ctx)
	if err != nil {
		return PriceQuote{}, err
	}
	return e.quoteForState(ctx, class, state)
}

func (e *Engine) quoteForState(ctx context.Context, class NodeClass, state PhaseState) (PriceQuote, error) {
	if state.Phase == PhaseOne {
		return QuotePhaseOne(class, state.BurnPercent)
	}
	size, err := e.source.NetworkSize(ctx)
	if err != nil {
		return PriceQuote{}, fmt.Errorf("%w: network size unavailable: %v", ErrPhaseUnknown, err)
	}
	return QuotePhaseTwo(class, size)
}
