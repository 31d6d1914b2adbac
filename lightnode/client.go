package lightnode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"qnetclient/bootstrap"
	"qnetclient/observability/metrics"
)

const requestTimeout = 10 * time.Second

// RemoteError carries a server-side rejection from the bootstrap service.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bootstrap rejected request: %s", e.Message)
}

// Client is the HTTP client for the light-node liveness API. Every call picks
// a fresh bootstrap endpoint and retries transport failures a bounded number
// of times against re-picked endpoints.
type Client struct {
	retry     *bootstrap.Retry
	http      *http.Client
	telemetry *metrics.LightnodeMetrics
}

// NewClient builds a liveness API client on top of the endpoint selector.
func NewClient(selector *bootstrap.Selector) *Client {
	return &Client{
		retry: bootstrap.NewRetry(selector, bootstrap.DefaultAttempts),
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		telemetry: metrics.Lightnode(),
	}
}

// RegisterParams is the payload for POST /light-node/register.
type RegisterParams struct {
	NodeID              string
	WalletAddress       string
	DeviceID            string
	QuantumPubKey       string
	QuantumSignature    string
	PushKind            PushKind
	DeviceToken         string
	UnifiedPushEndpoint string
}

type registerRequest struct {
	NodeID              string `json:"node_id"`
	WalletAddress       string `json:"wallet_address"`
	DeviceID            string `json:"device_id"`
	QuantumPubKey       string `json:"quantum_pubkey"`
	QuantumSignature    string `json:"quantum_signature"`
	PushType            string `json:"push_type"`
	DeviceToken         string `json:"device_token,omitempty"`
	UnifiedPushEndpoint string `json:"unified_push_endpoint,omitempty"`
}

type scheduleResponse struct {
	Success        bool   `json:"success"`
	NodeID         string `json:"node_id,omitempty"`
	NextPingTime   int64  `json:"next_ping_time"`
	NextPingWindow int64  `json:"next_ping_window"`
	Error          string `json:"error,omitempty"`
}

// Register announces the node and its push channel to the bootstrap service
// and returns the authoritative first ping schedule.
func (c *Client) Register(ctx context.Context, params RegisterParams) (PingSchedule, error) {
	body := registerRequest{
		NodeID:              params.NodeID,
		WalletAddress:       params.WalletAddress,
		DeviceID:            params.DeviceID,
		QuantumPubKey:       params.QuantumPubKey,
		QuantumSignature:    params.QuantumSignature,
		PushType:            string(params.PushKind),
		DeviceToken:         params.DeviceToken,
		UnifiedPushEndpoint: params.UnifiedPushEndpoint,
	}
	var resp scheduleResponse
	if err := c.post(ctx, "/light-node/register", body, &resp); err != nil {
		return PingSchedule{}, err
	}
	return scheduleFromResponse(resp), nil
}

type pendingChallengeResponse struct {
	Success      bool   `json:"success"`
	HasChallenge bool   `json:"has_challenge"`
	Challenge    string `json:"challenge,omitempty"`
	Error        string `json:"error,omitempty"`
}

// PendingChallenge asks whether a challenge is waiting for the node. Used by
// the polling fallback and by scheduled wake-ups.
func (c *Client) PendingChallenge(ctx context.Context, nodeID string) (*PingChallenge, error) {
	query := url.Values{"node_id": {nodeID}}
	var resp pendingChallengeResponse
	if err := c.get(ctx, "/light-node/pending-challenge", query, &resp); err != nil {
		return nil, err
	}
	if !resp.HasChallenge {
		return nil, nil
	}
	return &PingChallenge{NodeID: nodeID, Nonce: resp.Challenge, IssuedAt: time.Now()}, nil
}

type pingResponseResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PingResponse submits the signed answer to a challenge.
func (c *Client) PingResponse(ctx context.Context, nodeID, challenge, signatureHex string) error {
	query := url.Values{
		"node_id":   {nodeID},
		"challenge": {challenge},
		"signature": {signatureHex},
	}
	var resp pingResponseResponse
	return c.get(ctx, "/light-node/ping-response", query, &resp)
}

// NextPing fetches the next ping schedule for the node.
func (c *Client) NextPing(ctx context.Context, nodeID string) (PingSchedule, error) {
	query := url.Values{"node_id": {nodeID}}
	var resp scheduleResponse
	if err := c.get(ctx, "/light-node/next-ping", query, &resp); err != nil {
		return PingSchedule{}, err
	}
	return scheduleFromResponse(resp), nil
}

type statusResponse struct {
	Success             bool   `json:"success"`
	IsActive            bool   `json:"is_active"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastSeen            int64  `json:"last_seen"`
	PushType            string `json:"push_type"`
	NextPingTime        int64  `json:"next_ping_time"`
	NextPingWindow      int64  `json:"next_ping_window"`
	NeedsReactivation   bool   `json:"needs_reactivation"`
	Error               string `json:"error,omitempty"`
}

// Status fetches the remote's authoritative liveness view of the node.
func (c *Client) Status(ctx context.Context, nodeID string) (LivenessStatus, error) {
	query := url.Values{"node_id": {nodeID}}
	var resp statusResponse
	if err := c.get(ctx, "/light-node/status", query, &resp); err != nil {
		return LivenessStatus{}, err
	}
	return LivenessStatus{
		NodeID:              nodeID,
		IsActive:            resp.IsActive,
		ConsecutiveFailures: resp.ConsecutiveFailures,
		LastSeen:            time.Unix(resp.LastSeen, 0),
		PushKind:            PushKind(resp.PushType),
		NextPingTime:        time.Unix(resp.NextPingTime, 0),
		NextPingWindow:      time.Duration(resp.NextPingWindow) * time.Second,
		NeedsReactivation:   resp.NeedsReactivation,
	}, nil
}

type reactivateRequest struct {
	NodeID        string `json:"node_id"`
	WalletAddress string `json:"wallet_address"`
	Signature     string `json:"signature"`
	Timestamp     int64  `json:"timestamp"`
}

type reactivateResponse struct {
	Success        bool   `json:"success"`
	WasReactivated bool   `json:"was_reactivated"`
	NextPingTime   int64  `json:"next_ping_time"`
	NextPingWindow int64  `json:"next_ping_window"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ReactivateResult reports the outcome of a reactivation request.
type ReactivateResult struct {
	WasReactivated bool
	Schedule       PingSchedule
	Message        string
}

// Reactivate submits a signed reactivation request. Calling it for an already
// active node is a harmless no-op reported via WasReactivated=false.
func (c *Client) Reactivate(ctx context.Context, nodeID, wallet, signatureHex string, timestamp int64) (ReactivateResult, error) {
	body := reactivateRequest{
		NodeID:        nodeID,
		WalletAddress: wallet,
		Signature:     signatureHex,
		Timestamp:     timestamp,
	}
	var resp reactivateResponse
	if err := c.post(ctx, "/light-node/reactivate", body, &resp); err != nil {
		return ReactivateResult{}, err
	}
	return ReactivateResult{
		WasReactivated: resp.WasReactivated,
		Schedule: PingSchedule{
			NextPingTime:   time.Unix(resp.NextPingTime, 0),
			NextPingWindow: time.Duration(resp.NextPingWindow) * time.Second,
		},
		Message: resp.Message,
	}, nil
}

type serverStatusResponse struct {
	Success            bool   `json:"success"`
	IsOnline           bool   `json:"is_online"`
	HeartbeatCount     uint64 `json:"heartbeat_count"`
	RequiredHeartbeats uint64 `json:"required_heartbeats"`
	IsRewardEligible   bool   `json:"is_reward_eligible"`
	PendingRewards     string `json:"pending_rewards"`
	Error              string `json:"error,omitempty"`
}

// ServerNodeStatus fetches the monitoring view of a server-class node by node
// id or activation code.
func (c *Client) ServerNodeStatus(ctx context.Context, nodeID, activationCode string) (ServerNodeStatus, error) {
	query := url.Values{}
	if nodeID != "" {
		query.Set("node_id", nodeID)
	}
	if activationCode != "" {
		query.Set("activation_code", activationCode)
	}
	if len(query) == 0 {
		return ServerNodeStatus{}, fmt.Errorf("node id or activation code required")
	}
	var resp serverStatusResponse
	if err := c.get(ctx, "/node/status", query, &resp); err != nil {
		return ServerNodeStatus{}, err
	}
	return ServerNodeStatus{
		NodeID:             nodeID,
		IsOnline:           resp.IsOnline,
		HeartbeatCount:     resp.HeartbeatCount,
		RequiredHeartbeats: resp.RequiredHeartbeats,
		IsRewardEligible:   resp.IsRewardEligible,
		PendingRewards:     resp.PendingRewards,
	}, nil
}

func scheduleFromResponse(resp scheduleResponse) PingSchedule {
	return PingSchedule{
		NextPingTime:   time.Unix(resp.NextPingTime, 0),
		NextPingWindow: time.Duration(resp.NextPingWindow) * time.Second,
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.retry.Do(ctx, func(ctx context.Context, endpoint string) error {
		target := endpoint + path
		if len(query) > 0 {
			target += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		return c.do(req, endpoint, out)
	})
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.retry.Do(ctx, func(ctx context.Context, endpoint string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.do(req, endpoint, out)
	})
}

func (c *Client) do(req *http.Request, endpoint string, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		c.telemetry.IncEndpointRetry()
		return bootstrap.NewTransportError(endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		c.telemetry.IncEndpointRetry()
		return bootstrap.NewTransportError(endpoint, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &RemoteError{Message: fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return bootstrap.NewTransportError(endpoint, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode bootstrap response: %w", err)
	}
	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = "request failed"
		}
		return &RemoteError{Message: msg}
	}
	return nil
}
