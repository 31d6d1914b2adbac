// Package bridge talks to the external node/bridge service that executes
// burns and transfers and serves the live phase inputs. All consensus and
// execution logic lives on the remote side; this client only calls it over
// HTTP against bootstrap endpoints.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"qnetclient/activation"
	"qnetclient/bootstrap"
)

const requestTimeout = 8 * time.Second

// Client implements activation.DataSource and activation.ChainClient over the
// bootstrap HTTP API. Transport failures are retried against freshly picked
// endpoints.
type Client struct {
	retry *bootstrap.Retry
	http  *http.Client
}

// NewClient builds a bridge client on top of the endpoint selector.
func NewClient(selector *bootstrap.Selector) *Client {
	return &Client{
		retry: bootstrap.NewRetry(selector, bootstrap.DefaultAttempts),
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type burnPercentResponse struct {
	Success     bool    `json:"success"`
	BurnPercent float64 `json:"burn_percent"`
	Error       string  `json:"error,omitempty"`
}

type networkStatsResponse struct {
	Success         bool    `json:"success"`
	NetworkAgeYears float64 `json:"network_age_years"`
	NetworkSize     uint64  `json:"network_size"`
	Error           string  `json:"error,omitempty"`
}

type balanceResponse struct {
	Success bool   `json:"success"`
	Balance string `json:"balance"`
	Error   string `json:"error,omitempty"`
}

type submitRequest struct {
	WalletAddress string `json:"wallet_address"`
	Amount        string `json:"amount"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	TxRef   string `json:"tx_ref"`
	Error   string `json:"error,omitempty"`
}

// BurnPercent fetches the cumulative burn percentage of the reference token.
func (c *Client) BurnPercent(ctx context.Context) (float64, error) {
	var resp burnPercentResponse
	if err := c.get(ctx, "/bridge/burn-percent", nil, &resp); err != nil {
		return 0, err
	}
	return resp.BurnPercent, nil
}

// NetworkAgeYears fetches the elapsed network age.
func (c *Client) NetworkAgeYears(ctx context.Context) (float64, error) {
	var resp networkStatsResponse
	if err := c.get(ctx, "/bridge/network-stats", nil, &resp); err != nil {
		return 0, err
	}
	return resp.NetworkAgeYears, nil
}

// NetworkSize fetches the current number of active nodes.
func (c *Client) NetworkSize(ctx context.Context) (uint64, error) {
	var resp networkStatsResponse
	if err := c.get(ctx, "/bridge/network-stats", nil, &resp); err != nil {
		return 0, err
	}
	return resp.NetworkSize, nil
}

// BalanceOf queries the wallet balance for the given token symbol.
func (c *Client) BalanceOf(ctx context.Context, wallet, token string) (*big.Int, error) {
	query := url.Values{"wallet": {wallet}, "token": {token}}
	var resp balanceResponse
	if err := c.get(ctx, "/bridge/balance", query, &resp); err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(resp.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("malformed balance %q", resp.Balance)
	}
	return balance, nil
}

// Burn submits an irreversible burn of the reference token and returns the
// transaction reference.
func (c *Client) Burn(ctx context.Context, wallet string, amount *big.Int) (string, error) {
	return c.submit(ctx, "/bridge/burn", wallet, amount)
}

// Transfer submits a native-token transfer into the redistribution pool.
func (c *Client) Transfer(ctx context.Context, wallet string, amount *big.Int) (string, error) {
	return c.submit(ctx, "/bridge/transfer", wallet, amount)
}

// submit posts a burn or transfer. One idempotency key covers all transport
// retries of the same submission so the remote never executes it twice.
func (c *Client) submit(ctx context.Context, path, wallet string, amount *big.Int) (string, error) {
	body := submitRequest{WalletAddress: wallet, Amount: amount.String()}
	var resp submitResponse
	if err := c.post(ctx, path, body, &resp, uuid.NewString()); err != nil {
		return "", err
	}
	return resp.TxRef, nil
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

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}, idempotencyKey string) error {
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
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}
		return c.do(req, endpoint, out)
	})
}

// do executes the request and maps failures onto the error taxonomy: network
// errors and 5xx responses are retryable transport failures, anything else is
// a remote rejection passed through verbatim.
func (c *Client) do(req *http.Request, endpoint string, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return bootstrap.NewTransportError(endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return bootstrap.NewTransportError(endpoint, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &activation.RemoteRejectedError{Message: fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return bootstrap.NewTransportError(endpoint, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode bridge response: %w", err)
	}
	if ok, msg := responseStatus(raw); !ok {
		return &activation.RemoteRejectedError{Message: msg}
	}
	return nil
}

// responseStatus extracts the shared success/error envelope fields.
func responseStatus(raw []byte) (bool, string) {
	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return false, "malformed response envelope"
	}
	if envelope.Success {
		return true, ""
	}
	if envelope.Error == "" {
		return false, "request failed"
	}
	return false, envelope.Error
}
