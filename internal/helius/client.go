package helius

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/httputil"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/observability"
)

// DefaultBaseURL is the public Helius enriched-transactions API.
const DefaultBaseURL = "https://api.helius.xyz"

// Client fetches enriched transaction history for an address. The
// enriched form matters because it carries parsed native transfers,
// which the raw RPC getTransaction call does not.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        zerolog.Logger
}

func NewClient(baseURL, apiKey string, retry httputil.RetryConfig) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      retry,
		log:        observability.NewLogger("helius"),
	}
}

// NativeTransfer is one SOL movement inside a transaction. Amounts are
// lamports.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"`
}

type Instruction struct {
	ProgramID string   `json:"programId"`
	Accounts  []string `json:"accounts"`
}

type AccountData struct {
	Account string `json:"account"`
}

// Transaction is the subset of the enriched payload the analytics core
// reads. Timestamp is unix seconds.
type Transaction struct {
	Signature       string           `json:"signature"`
	Timestamp       int64            `json:"timestamp"`
	Type            string           `json:"type"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	Instructions    []Instruction    `json:"instructions"`
	AccountData     []AccountData    `json:"accountData"`
}

// TouchesProgram reports whether the transaction invokes the program
// or lists it among the touched accounts.
func (t Transaction) TouchesProgram(programID string) bool {
	for _, ins := range t.Instructions {
		if ins.ProgramID == programID {
			return true
		}
	}
	for _, acc := range t.AccountData {
		if acc.Account == programID {
			return true
		}
	}
	return false
}

// AddressTransactions fetches one page of history for an address,
// newest first. Pass the last signature of the previous page as before
// to continue paging backward; empty means the newest page.
func (c *Client) AddressTransactions(ctx context.Context, address string, limit int, before string) ([]Transaction, error) {
	endpoint := fmt.Sprintf("%s/v0/addresses/%s/transactions", c.baseURL, address)

	query := url.Values{}
	query.Set("api-key", c.apiKey)
	query.Set("limit", strconv.Itoa(limit))
	if before != "" {
		query.Set("before", before)
	}
	fullURL := endpoint + "?" + query.Encode()

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("history page for %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("history page for %s: HTTP %d: %s", address, resp.StatusCode, string(body))
	}

	var txs []Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		return nil, fmt.Errorf("decode history page for %s: %w", address, err)
	}

	c.log.Debug().
		Str("address", address).
		Int("transactions", len(txs)).
		Str("before", before).
		Msg("fetched history page")
	return txs, nil
}
