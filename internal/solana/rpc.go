package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/httputil"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/observability"
)

// ErrAccountNotFound means the address has no account on chain, which
// for battle accounts reads as "battle not started yet".
var ErrAccountNotFound = errors.New("account not found on chain")

// Client is a minimal Solana JSON-RPC client covering the read calls
// the analytics core needs.
type Client struct {
	endpoint   string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        zerolog.Logger
}

func NewClient(endpoint string, retry httputil.RetryConfig) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      retry,
		log:        observability.NewLogger("solana-rpc"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error (%d): %s", e.Code, e.Message)
}

type accountValue struct {
	Data     []string `json:"data"` // [payload, encoding]
	Lamports uint64   `json:"lamports"`
	Owner    string   `json:"owner"`
}

type accountInfoResponse struct {
	Result *struct {
		Value *accountValue `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// GetAccountInfo fetches the raw bytes of an account. A missing
// account returns ErrAccountNotFound.
func (c *Client) GetAccountInfo(ctx context.Context, address string) ([]byte, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getAccountInfo",
		Params: []any{
			address,
			map[string]any{"encoding": "base64", "commitment": "confirmed"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal getAccountInfo request: %w", err)
	}

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("getAccountInfo %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("getAccountInfo %s: rpc status %d: %s", address, resp.StatusCode, string(body))
	}

	var out accountInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode getAccountInfo response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("getAccountInfo %s: %w", address, out.Error)
	}
	if out.Result == nil || out.Result.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if len(out.Result.Value.Data) == 0 {
		return nil, fmt.Errorf("getAccountInfo %s: account has no data payload", address)
	}

	raw, err := base64.StdEncoding.DecodeString(out.Result.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("decode account data for %s: %w", address, err)
	}

	c.log.Debug().Str("address", address).Int("bytes", len(raw)).Msg("fetched account")
	return raw, nil
}
