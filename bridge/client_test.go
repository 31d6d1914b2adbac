package bridge

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"qnetclient/activation"
	"qnetclient/bootstrap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	selector, err := bootstrap.NewStaticSelector(server.URL)
	if err != nil {
		t.Fatalf("selector: %v", err)
	}
	return NewClient(selector), server
}

func TestBurnPercent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bridge/burn-percent" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"success":true,"burn_percent":15.7}`))
	}))
	got, err := client.BurnPercent(context.Background())
	if err != nil {
		t.Fatalf("burn percent: %v", err)
	}
	if got != 15.7 {
		t.Fatalf("unexpected burn percent %v", got)
	}
}

func TestBalanceOf(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("wallet") == "" || r.URL.Query().Get("token") != "1DEV" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"success":true,"balance":"123456789012345678901"}`))
	}))
	got, err := client.BalanceOf(context.Background(), "qnet1abc", "1DEV")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	want, _ := new(big.Int).SetString("123456789012345678901", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("unexpected balance %s", got)
	}
}

func TestServerErrorIsRetriedAsTransport(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"success":true,"network_age_years":1.5,"network_size":42000}`))
	}))
	size, err := client.NetworkSize(context.Background())
	if err != nil {
		t.Fatalf("network size: %v", err)
	}
	if size != 42000 {
		t.Fatalf("unexpected size %d", size)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestRemoteRejectionIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"success":false,"error":"burn refused: account frozen"}`))
	}))
	_, err := client.Burn(context.Background(), "qnet1abc", big.NewInt(1350))
	var remote *activation.RemoteRejectedError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteRejectedError, got %v", err)
	}
	if remote.Message != "burn refused: account frozen" {
		t.Fatalf("server message not passed through: %q", remote.Message)
	}
	if calls.Load() != 1 {
		t.Fatalf("remote rejections must not be retried, got %d calls", calls.Load())
	}
}

func TestTransferSubmitsAmount(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/bridge/transfer" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Idempotency-Key") == "" {
			http.Error(w, "missing idempotency key", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"success":true,"tx_ref":"xfer-99"}`))
	}))
	txRef, err := client.Transfer(context.Background(), "qnet1abc", big.NewInt(5000))
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if txRef != "xfer-99" {
		t.Fatalf("unexpected tx ref %q", txRef)
	}
}

func TestBurnReusesIdempotencyKeyAcrossRetries(t *testing.T) {
	var calls atomic.Int32
	keys := make(map[string]struct{})
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys[r.Header.Get("Idempotency-Key")] = struct{}{}
		if calls.Add(1) < 2 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"success":true,"tx_ref":"burn-7"}`))
	}))
	if _, err := client.Burn(context.Background(), "qnet1abc", big.NewInt(1350)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("idempotency key must stay constant across retries, saw %d distinct keys", len(keys))
	}
}
