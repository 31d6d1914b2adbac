package activation

import (
	"context"
	"fmt"
)

// Phase identifies which of the two mutually exclusive economic regimes is in
// force: burn-based activation (phase 1) or stake-based activation (phase 2).
type Phase uint8

const (
	PhaseOne Phase = 1
	PhaseTwo Phase = 2
)

const (
	// BurnThresholdPercent flips the network to phase 2 once the cumulative
	// burn of the reference token reaches it.
	BurnThresholdPercent = 90.0
	// AgeThresholdYears flips the network to phase 2 on elapsed age alone.
	AgeThresholdYears = 5.0
)

// PhaseState is a point-in-time snapshot of the phase inputs and the phase
// they imply. Snapshots are recomputed on demand and never cached across long
// idle periods.
type PhaseState struct {
	BurnPercent     float64
	NetworkAgeYears float64
	Phase           Phase
}

// CurrentPhase derives the activation phase from the burn percentage and the
// network age. The two conditions are independently sufficient.
func CurrentPhase(burnPercent, networkAgeYears float64) Phase {
	if burnPercent >= BurnThresholdPercent || networkAgeYears >= AgeThresholdYears {
		return PhaseTwo
	}
	return PhaseOne
}

// DataSource supplies the live inputs for phase derivation and pricing. The
// bridge client implements it against the external node service.
type DataSource interface {
	BurnPercent(ctx context.Context) (float64, error)
	NetworkAgeYears(ctx context.Context) (float64, error)
	NetworkSize(ctx context.Context) (uint64, error)
}

// Oracle fetches fresh phase inputs and derives the current phase. A fetch
// failure surfaces as ErrPhaseUnknown so callers refuse both activation paths
// instead of defaulting to either one.
type Oracle struct {
	source DataSource
}

func NewOracle(source DataSource) *Oracle {
	return &Oracle{source: source}
}

// Snapshot fetches both inputs and returns the derived phase state.
func (o *Oracle) Snapshot(ctx context.Context) (PhaseState, error) {
	burn, err := o.source.BurnPercent(ctx)
	if err != nil {
		return PhaseState{}, fmt.Errorf("%w: burn percent unavailable: %v", ErrPhaseUnknown, err)
	}
	age, err := o.source.NetworkAgeYears(ctx)
	if err != nil {
		return PhaseState{}, fmt.Errorf("%w: network age unavailable: %v", ErrPhaseUnknown, err)
	}
	return PhaseState{
		BurnPercent:     burn,
		NetworkAgeYears: age,
		Phase:           CurrentPhase(burn, age),
	}, nil
}
