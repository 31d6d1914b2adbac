package activation

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"qnetclient/crypto"
)

// Method selects the payment path for an activation.
type Method string

const (
	MethodBurn     Method = "burn"
	MethodTransfer Method = "transfer"
)

// ChainClient executes the external burn/transfer call and answers balance
// queries. The bridge client implements it over HTTP.
type ChainClient interface {
	BalanceOf(ctx context.Context, wallet, token string) (*big.Int, error)
	Burn(ctx context.Context, wallet string, amount *big.Int) (string, error)
	Transfer(ctx context.Context, wallet string, amount *big.Int) (string, error)
}

// ActivationResult carries everything the liveness service needs to register
// the freshly activated node.
type ActivationResult struct {
	Class    NodeClass
	Method   Method
	Phase    Phase
	Paid     *big.Int
	Currency string
	NodeID   string
	TxRef    string
}

// Gate enforces that only the activation path matching the current phase may
// execute. The burn and transfer paths are economically mutually exclusive;
// allowing both would let late joiners bypass the intended cost curve.
type Gate struct {
	oracle *Oracle
	engine *Engine
	chain  ChainClient
}

func NewGate(source DataSource, chain ChainClient) *Gate {
	return &Gate{
		oracle: NewOracle(source),
		engine: NewEngine(source),
		chain:  chain,
	}
}

// Activate checks the phase, prices the class, verifies the balance and
// executes the external burn or transfer. No registration state is created
// here; on any failure the caller observes no partial state change.
func (g *Gate) Activate(ctx context.Context, wallet string, class NodeClass, method Method) (*ActivationResult, error) {
	state, err := g.oracle.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if method == MethodBurn && state.Phase != PhaseOne {
		return nil, &WrongPhaseError{Method: method, Phase: state.Phase}
	}
	if method == MethodTransfer && state.Phase != PhaseTwo {
		return nil, &WrongPhaseError{Method: method, Phase: state.Phase}
	}

	quote, err := g.engine.quoteForState(ctx, class, state)
	if err != nil {
		return nil, err
	}

	balance, err := g.chain.BalanceOf(ctx, wallet, quote.Currency)
	if err != nil {
		return nil, fmt.Errorf("balance check: %w", err)
	}
	if balance.Cmp(quote.Amount) < 0 {
		return nil, &InsufficientBalanceError{Token: quote.Currency, Need: quote.Amount, Have: balance}
	}

	var txRef string
	switch method {
	case MethodBurn:
		txRef, err = g.chain.Burn(ctx, wallet, quote.Amount)
	case MethodTransfer:
		txRef, err = g.chain.Transfer(ctx, wallet, quote.Amount)
	default:
		return nil, fmt.Errorf("unknown activation method %q", method)
	}
	if err != nil {
		return nil, err
	}

	return &ActivationResult{
		Class:    class,
		Method:   method,
		Phase:    state.Phase,
		Paid:     quote.Amount,
		Currency: quote.Currency,
		NodeID:   DeriveNodeID(wallet, txRef),
		TxRef:    txRef,
	}, nil
}

// DeriveNodeID computes the stable node identity from the wallet address and
// the activation transaction reference.
func DeriveNodeID(wallet, txRef string) string {
	digest := crypto.Digest([]byte(wallet + ":" + txRef))
	return hex.EncodeToString(digest[:16])
}
