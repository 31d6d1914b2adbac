package activation

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrPhaseUnknown indicates the phase inputs could not be fetched. Both
// activation paths must be refused rather than guessed at.
var ErrPhaseUnknown = errors.New("activation: phase unknown")

// PhaseMismatchError is returned by the pricing engine when a quote is
// requested for a phase other than the one currently in force.
type PhaseMismatchError struct {
	Requested Phase
	Current   Phase
}

func (e *PhaseMismatchError) Error() string {
	return fmt.Sprintf("phase %d pricing unavailable while phase %d is active", e.Requested, e.Current)
}

// WrongPhaseError is returned by the activation gate when the requested
// payment method does not match the current phase. This is a definitive
// rejection, not a transient failure.
type WrongPhaseError struct {
	Method Method
	Phase  Phase
}

func (e *WrongPhaseError) Error() string {
	return fmt.Sprintf("method %q is not allowed during phase %d", e.Method, e.Phase)
}

// InsufficientBalanceError reports a failed pre-flight balance check,
// including which token is short and by how much.
type InsufficientBalanceError struct {
	Token string
	Need  *big.Int
	Have  *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	missing := new(big.Int).Sub(e.Need, e.Have)
	return fmt.Sprintf("insufficient %s balance: need %s, have %s (missing %s)", e.Token, e.Need, e.Have, missing)
}

// RemoteRejectedError carries a server-side validation failure through to the
// caller unchanged.
type RemoteRejectedError struct {
	Message string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("remote rejected activation: %s", e.Message)
}
