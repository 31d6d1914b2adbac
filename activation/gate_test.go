package activation

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

type stubChain struct {
	balance     *big.Int
	balanceErr  error
	burnCalls   int
	xferCalls   int
	burnErr     error
	transferErr error
}

func (c *stubChain) BalanceOf(context.Context, string, string) (*big.Int, error) {
	if c.balanceErr != nil {
		return nil, c.balanceErr
	}
	return c.balance, nil
}

func (c *stubChain) Burn(context.Context, string, *big.Int) (string, error) {
	c.burnCalls++
	if c.burnErr != nil {
		return "", c.burnErr
	}
	return "burn-tx-1", nil
}

func (c *stubChain) Transfer(context.Context, string, *big.Int) (string, error) {
	c.xferCalls++
	if c.transferErr != nil {
		return "", c.transferErr
	}
	return "xfer-tx-1", nil
}

const testWallet = "qnet1testwalletaddress"

func TestGateRejectsBurnDuringPhaseTwo(t *testing.T) {
	chain := &stubChain{balance: big.NewInt(1_000_000)}
	gate := NewGate(&stubSource{burn: 92, size: 50_000}, chain)
	var wrong *WrongPhaseError
	if _, err := gate.Activate(context.Background(), testWallet, NodeClassLight, MethodBurn); !errors.As(err, &wrong) {
		t.Fatalf("expected WrongPhaseError, got %v", err)
	}
	if chain.burnCalls != 0 {
		t.Fatalf("burn executed despite phase rejection")
	}
}

func TestGateRejectsTransferDuringPhaseOne(t *testing.T) {
	chain := &stubChain{balance: big.NewInt(1_000_000)}
	gate := NewGate(&stubSource{burn: 10, age: 1}, chain)
	var wrong *WrongPhaseError
	if _, err := gate.Activate(context.Background(), testWallet, NodeClassSuper, MethodTransfer); !errors.As(err, &wrong) {
		t.Fatalf("expected WrongPhaseError, got %v", err)
	}
	if chain.xferCalls != 0 {
		t.Fatalf("transfer executed despite phase rejection")
	}
}

func TestGateRefusesBothPathsWhenPhaseUnknown(t *testing.T) {
	chain := &stubChain{balance: big.NewInt(1_000_000)}
	gate := NewGate(&stubSource{burnErr: errors.New("unreachable")}, chain)
	for _, method := range []Method{MethodBurn, MethodTransfer} {
		if _, err := gate.Activate(context.Background(), testWallet, NodeClassLight, method); !errors.Is(err, ErrPhaseUnknown) {
			t.Fatalf("method %s: expected ErrPhaseUnknown, got %v", method, err)
		}
	}
	if chain.burnCalls+chain.xferCalls != 0 {
		t.Fatalf("chain calls executed while phase unknown")
	}
}

func TestGateInsufficientBalance(t *testing.T) {
	chain := &stubChain{balance: big.NewInt(100)}
	gate := NewGate(&stubSource{burn: 15.7, age: 1}, chain)
	var short *InsufficientBalanceError
	_, err := gate.Activate(context.Background(), testWallet, NodeClassLight, MethodBurn)
	if !errors.As(err, &short) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if short.Token != BurnTokenSymbol || short.Need.Int64() != 1350 || short.Have.Int64() != 100 {
		t.Fatalf("unexpected balance details: %+v", short)
	}
	if chain.burnCalls != 0 {
		t.Fatalf("burn executed despite insufficient balance")
	}
}

func TestGateBurnSuccess(t *testing.T) {
	chain := &stubChain{balance: big.NewInt(2000)}
	gate := NewGate(&stubSource{burn: 15.7, age: 1}, chain)
	result, err := gate.Activate(context.Background(), testWallet, NodeClassLight, MethodBurn)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if result.Paid.Int64() != 1350 || result.Currency != BurnTokenSymbol {
		t.Fatalf("unexpected payment %s %s", result.Paid, result.Currency)
	}
	if result.NodeID == "" || result.TxRef != "burn-tx-1" {
		t.Fatalf("missing node identity: %+v", result)
	}
	if result.NodeID != DeriveNodeID(testWallet, "burn-tx-1") {
		t.Fatalf("node id not derived from wallet and tx ref")
	}
}

func TestGateTransferSuccess(t *testing.T) {
	chain := &stubChain{balance: big.NewInt(10_000)}
	gate := NewGate(&stubSource{burn: 95, size: 100_000}, chain)
	result, err := gate.Activate(context.Background(), testWallet, NodeClassLight, MethodTransfer)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if result.Paid.Int64() != 5000 || result.Currency != NativeTokenSymbol {
		t.Fatalf("unexpected payment %s %s", result.Paid, result.Currency)
	}
}

func TestGateChainFailureProducesNoResult(t *testing.T) {
	rejection := &RemoteRejectedError{Message: "burn refused"}
	chain := &stubChain{balance: big.NewInt(2000), burnErr: rejection}
	gate := NewGate(&stubSource{burn: 15.7, age: 1}, chain)
	result, err := gate.Activate(context.Background(), testWallet, NodeClassLight, MethodBurn)
	if result != nil {
		t.Fatalf("result returned despite chain failure")
	}
	var remote *RemoteRejectedError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteRejectedError passthrough, got %v", err)
	}
}
