package lightnode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ChannelProbe checks whether one push delivery channel is usable and, if so,
// returns its handle (an endpoint URL or a delivery token). Probes run in
// priority order; the first success wins.
type ChannelProbe interface {
	Kind() PushKind
	Probe(ctx context.Context) (string, error)
}

// ErrChannelUnavailable is returned by probes whose channel is not configured
// or not reachable on this device.
var ErrChannelUnavailable = errors.New("lightnode: push channel unavailable")

// UnifiedPushProbe checks a self-hosted push distributor endpoint.
type UnifiedPushProbe struct {
	Endpoint string
	http     *http.Client
}

func NewUnifiedPushProbe(endpoint string) *UnifiedPushProbe {
	return &UnifiedPushProbe{
		Endpoint: endpoint,
		http:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (p *UnifiedPushProbe) Kind() PushKind { return PushKindUnified }

// Probe verifies the distributor answers at all; the handle is the endpoint
// URL the bootstrap service will push challenges to.
func (p *UnifiedPushProbe) Probe(ctx context.Context) (string, error) {
	if p.Endpoint == "" {
		return "", ErrChannelUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.Endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("%w: distributor returned %d", ErrChannelUnavailable, resp.StatusCode)
	}
	return p.Endpoint, nil
}

// NativePushProbe asks the platform glue for a vendor push delivery token.
type NativePushProbe struct {
	TokenSource func(ctx context.Context) (string, error)
}

func (p *NativePushProbe) Kind() PushKind { return PushKindNative }

func (p *NativePushProbe) Probe(ctx context.Context) (string, error) {
	if p.TokenSource == nil {
		return "", ErrChannelUnavailable
	}
	token, err := p.TokenSource(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	if token == "" {
		return "", ErrChannelUnavailable
	}
	return token, nil
}

// DetectChannel walks the probes in priority order and returns the first
// usable channel. When none succeeds the node falls back to polling, which
// always works.
func DetectChannel(ctx context.Context, log *slog.Logger, probes []ChannelProbe) (PushKind, string) {
	for _, probe := range probes {
		handle, err := probe.Probe(ctx)
		if err != nil {
			if log != nil {
				log.Debug("push channel probe failed", "kind", string(probe.Kind()), "error", err.Error())
			}
			continue
		}
		return probe.Kind(), handle
	}
	return PushKindPolling, ""
}

// pushMessage is the JSON body delivered by either push channel. Both feeds
// decode into the same shape so challenge handling has exactly one code path.
type pushMessage struct {
	NodeID    string `json:"node_id"`
	Challenge string `json:"challenge"`
	IssuedAt  int64  `json:"issued_at"`
}

// PushReceiver turns inbound UnifiedPush deliveries into challenge events on
// the service's challenge channel.
type PushReceiver struct {
	challenges chan<- PingChallenge
	log        *slog.Logger
}

func NewPushReceiver(challenges chan<- PingChallenge, log *slog.Logger) *PushReceiver {
	return &PushReceiver{challenges: challenges, log: log}
}

// Routes mounts the receiver endpoints. The delivery path segment is the
// opaque identifier registered with the distributor.
func (r *PushReceiver) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/push/{delivery}", r.handleDelivery)
	return router
}

func (r *PushReceiver) handleDelivery(w http.ResponseWriter, req *http.Request) {
	var msg pushMessage
	if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
		http.Error(w, "malformed push payload", http.StatusBadRequest)
		return
	}
	if msg.NodeID == "" || msg.Challenge == "" {
		http.Error(w, "missing challenge fields", http.StatusBadRequest)
		return
	}
	challenge := PingChallenge{
		NodeID:   msg.NodeID,
		Nonce:    msg.Challenge,
		IssuedAt: time.Unix(msg.IssuedAt, 0),
	}
	select {
	case r.challenges <- challenge:
		w.WriteHeader(http.StatusAccepted)
	default:
		// A full queue means a challenge is already being handled; the remote
		// will redeliver or the next poll will pick it up.
		if r.log != nil {
			r.log.Warn("challenge queue full, dropping push delivery", "node_id", msg.NodeID)
		}
		http.Error(w, "busy", http.StatusTooManyRequests)
	}
}
