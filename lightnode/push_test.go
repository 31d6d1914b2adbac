package lightnode

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fixedProbe struct {
	kind   PushKind
	handle string
	err    error
}

func (p *fixedProbe) Kind() PushKind { return p.kind }
func (p *fixedProbe) Probe(context.Context) (string, error) {
	return p.handle, p.err
}

func TestDetectChannelPriorityOrder(t *testing.T) {
	probes := []ChannelProbe{
		&fixedProbe{kind: PushKindUnified, err: ErrChannelUnavailable},
		&fixedProbe{kind: PushKindNative, handle: "token-123"},
	}
	kind, handle := DetectChannel(context.Background(), nil, probes)
	if kind != PushKindNative || handle != "token-123" {
		t.Fatalf("expected native channel, got %s %q", kind, handle)
	}
}

func TestDetectChannelFirstSuccessWins(t *testing.T) {
	probes := []ChannelProbe{
		&fixedProbe{kind: PushKindUnified, handle: "https://push.example.com/dev1"},
		&fixedProbe{kind: PushKindNative, handle: "token-123"},
	}
	kind, handle := DetectChannel(context.Background(), nil, probes)
	if kind != PushKindUnified || handle != "https://push.example.com/dev1" {
		t.Fatalf("expected unified channel, got %s %q", kind, handle)
	}
}

func TestDetectChannelFallsBackToPolling(t *testing.T) {
	probes := []ChannelProbe{
		&fixedProbe{kind: PushKindUnified, err: ErrChannelUnavailable},
		&fixedProbe{kind: PushKindNative, err: errors.New("no play services")},
	}
	kind, handle := DetectChannel(context.Background(), nil, probes)
	if kind != PushKindPolling || handle != "" {
		t.Fatalf("expected polling fallback, got %s %q", kind, handle)
	}
}

func TestUnifiedPushProbeUnconfigured(t *testing.T) {
	probe := NewUnifiedPushProbe("")
	if _, err := probe.Probe(context.Background()); !errors.Is(err, ErrChannelUnavailable) {
		t.Fatalf("expected ErrChannelUnavailable, got %v", err)
	}
}

func TestUnifiedPushProbeReachableDistributor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()
	probe := NewUnifiedPushProbe(server.URL)
	handle, err := probe.Probe(context.Background())
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if handle != server.URL {
		t.Fatalf("unexpected handle %q", handle)
	}
}

func TestPushReceiverDeliversChallenge(t *testing.T) {
	challenges := make(chan PingChallenge, 1)
	receiver := NewPushReceiver(challenges, nil)
	server := httptest.NewServer(receiver.Routes())
	defer server.Close()

	body := []byte(`{"node_id":"node-1","challenge":"nonce-abc","issued_at":1700000000}`)
	resp, err := http.Post(server.URL+"/push/delivery-1", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	select {
	case challenge := <-challenges:
		if challenge.NodeID != "node-1" || challenge.Nonce != "nonce-abc" {
			t.Fatalf("unexpected challenge %+v", challenge)
		}
	default:
		t.Fatalf("challenge not delivered")
	}
}

func TestPushReceiverRejectsMalformedPayload(t *testing.T) {
	challenges := make(chan PingChallenge, 1)
	receiver := NewPushReceiver(challenges, nil)
	server := httptest.NewServer(receiver.Routes())
	defer server.Close()

	resp, err := http.Post(server.URL+"/push/delivery-1", "application/json", bytes.NewReader([]byte(`{"node_id":""}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
